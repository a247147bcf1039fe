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

// Package hostboard implements board.Board directly against the process's
// own stdin/stdout: the simplest possible port, useful for running the
// console as an ordinary terminal program. The real monotonic clock backs
// Systick. Cpu.Reset restores the terminal and re-executes the current
// binary; Cpu.Panic restores the terminal and exits the process.
package hostboard

import (
	"bufio"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"
	"gopkg.in/tomb.v1"

	"github.com/mlabonne/simplistic-os/internal/board"
	"github.com/mlabonne/simplistic-os/internal/logging"
)

// Board is a board.Board backed by the controlling terminal, placed into
// raw mode for the duration so the console sees every keystroke
// unprocessed.
type Board struct {
	oldState *term.State
	out      *bufio.Writer
	rx       *board.RXQueue
	boot     time.Time
	t        tomb.Tomb
}

// New puts stdin into raw mode and starts the background byte pump. Call
// Close to restore the terminal; Close does not stop the pump.
func New() (*Board, error) {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("hostboard: entering raw mode: %w", err)
	}
	b := &Board{
		oldState: oldState,
		out:      bufio.NewWriter(os.Stdout),
		rx:       board.NewRXQueue(),
		boot:     time.Now(),
	}
	go b.pump()
	return b, nil
}

// pump reads stdin one byte at a time, forever, pushing each into the RX
// queue. It is the one real OS thread in this board; everything it feeds
// is drained cooperatively.
func (b *Board) pump() {
	defer b.t.Done()
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			b.rx.Push(buf[0])
		}
		if err != nil {
			logging.Warningf("hostboard: stdin read: %v", err)
			b.t.Kill(err)
			return
		}
		select {
		case <-b.t.Dying():
			return
		default:
		}
	}
}

func (b *Board) Cpu() board.Cpu         { return cpu{b} }
func (b *Board) Tty() board.Tty         { return tty{b} }
func (b *Board) Systick() board.Systick { return systick{b} }

// Close restores the terminal's prior mode. The stdin pump goroutine is a
// blocking read with no cancelable handle on a real terminal fd, so it is
// left to die naturally on the next keystroke or process exit rather than
// joined here.
func (b *Board) Close() error {
	if b.oldState == nil {
		return nil
	}
	return term.Restore(int(os.Stdin.Fd()), b.oldState)
}

type cpu struct{ b *Board }

func (c cpu) Reset() {
	_ = c.b.Close()
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		logging.Errorf("hostboard: re-exec on reset failed: %v", err)
		os.Exit(1)
	}
}

func (c cpu) Panic(msg string) {
	logging.Errorf("panic: %s", msg)
	_ = c.b.out.Flush()
	_ = c.b.Close()
	fmt.Fprintf(os.Stderr, "panic: %s\n", msg)
	os.Exit(2)
}

type systick struct{ b *Board }

func (s systick) NowMs() uint32 {
	return uint32(time.Since(s.b.boot).Milliseconds())
}

func (s systick) DelayMs(n uint32) {
	time.Sleep(time.Duration(n) * time.Millisecond)
}

type tty struct{ b *Board }

func (t tty) GetC() (byte, bool) { return t.b.rx.GetC() }

func (t tty) PutC(c byte) error {
	if err := t.b.out.WriteByte(c); err != nil {
		return errors.Wrap(err, "hostboard: write")
	}
	return nil
}

func (t tty) Flush() error {
	if err := t.b.out.Flush(); err != nil {
		return errors.Wrap(err, "hostboard: flush")
	}
	return nil
}

func (t tty) GetBreak() bool { return t.b.rx.GetBreak() }

func (t tty) ClearRx() { t.b.rx.Clear() }
