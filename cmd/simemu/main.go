// Copyright 2024 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Binary simemu is a minimal smoke test for the pty-backed emulator
// board: it spawns two demo tasks that print to the board's tty once a
// second, with no console attached, so a harness can attach a terminal
// to the reported slave path and watch the scheduler run.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mlabonne/simplistic-os/internal/bcd"
	"github.com/mlabonne/simplistic-os/internal/board"
	"github.com/mlabonne/simplistic-os/internal/board/ptyboard"
	"github.com/mlabonne/simplistic-os/internal/crc16"
	"github.com/mlabonne/simplistic-os/internal/executor"
	"github.com/mlabonne/simplistic-os/internal/logging"
	"github.com/mlabonne/simplistic-os/internal/suspend"
)

func main() {
	baud := flag.Int("baud", 115200, "simulated baud rate of the emulated link")
	flag.Parse()

	b, err := ptyboard.New(*baud)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	board.Init(b)
	defer func() {
		if err := board.Close(); err != nil {
			logging.Warningf("simemu: closing board: %v", err)
		}
	}()

	fmt.Printf("simemu: attach a terminal to %s\n", b.SlavePath())

	executor.PanicHook = func(msg string) {
		board.CpuDriver().Panic(msg)
	}

	exec := executor.New()
	exec.Spawn("task1", task1Continuation())
	exec.Spawn("task2", task2Continuation())
	exec.Run()
}

func writeLine(s string) {
	tty := board.TtyDriver()
	for i := 0; i < len(s); i++ {
		_ = tty.PutC(s[i])
	}
	_ = tty.PutC('\r')
	_ = tty.PutC('\n')
	_ = tty.Flush()
}

// task1Continuation prints a line once a second, forever. The sleep
// Awaitable is captured in the closure so it survives across dispatch
// laps rather than being rebuilt on every poll.
func task1Continuation() executor.Continuation {
	var sleep suspend.Awaitable[struct{}]
	return func(self executor.TaskID, ctx *suspend.Ctx) (int8, bool) {
		if sleep == nil {
			writeLine("task1")
			sleep = suspend.SleepMs(1000)
		}
		if _, ready := sleep.Poll(ctx); !ready {
			return 0, false
		}
		sleep = nil
		return 0, false
	}
}

// task2Continuation prints a line, computes a CRC16 over a fixed payload,
// reads a simulated RTC seconds register through a BCD round trip, and
// sleeps a second between iterations — mirroring the demo's sub_test step.
func task2Continuation() executor.Continuation {
	var sleep suspend.Awaitable[struct{}]
	return func(self executor.TaskID, ctx *suspend.Ctx) (int8, bool) {
		if sleep == nil {
			writeLine("task2")
			payload := []byte("Hello, world!")
			writeLine(fmt.Sprintf("CRC16 of %q is %04X", payload, crc16.Checksum(payload)))
			writeLine(fmt.Sprintf("RTC seconds register: %02d", readRTCSeconds()))
			sleep = suspend.SleepMs(1000)
		}
		if _, ready := sleep.Poll(ctx); !ready {
			return 0, false
		}
		sleep = nil
		return 0, false
	}
}

// readRTCSeconds stands in for reading a real-time-clock chip's seconds
// register: a chip like this reports time fields packed as BCD bytes over
// the wire, so the driver side encodes the wall-clock value and the
// caller side decodes it back, exactly as a live RTC register read would.
func readRTCSeconds() uint8 {
	wallSeconds := uint8(time.Now().Second())
	reg := bcd.Encode(wallSeconds)
	return bcd.Decode(reg)
}
