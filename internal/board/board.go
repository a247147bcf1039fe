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

// Package board implements the process-wide board binding: a single
// indirection giving every task access to the CPU reset hook, the
// monotonic clock, and character I/O, installed once at boot. Grounded on
// pkg/sentry/devices/ttydev/ttydev.go's pattern of a late-bound singleton
// device resolved from ambient context, generalized here to a trio of
// driver slots instead of one.
//
// Because the executor is single-threaded and strictly cooperative, the
// exclusive references handed out by CpuDriver/TtyDriver/SystickDriver are never live
// concurrently from two tasks, which is what makes a package-level
// variable safe here without a mutex around every access (the boot-time
// Init call is the only write).
package board

// Cpu is the CPU driver contract: reset and panic hooks, neither of which
// returns.
type Cpu interface {
	// Reset restarts the board. Never returns.
	Reset()
	// Panic invokes the fatal-error path with a formatted message. Never
	// returns.
	Panic(msg string)
}

// Systick is the monotonic millisecond clock contract.
type Systick interface {
	// NowMs returns the current value of a monotonic, wrapping 32-bit
	// millisecond counter.
	NowMs() uint32
	// DelayMs busy-waits for approximately n milliseconds. Rarely used by
	// the cooperative core, which prefers suspend.SleepMs.
	DelayMs(n uint32)
}

// Tty is the character I/O contract.
type Tty interface {
	// GetC returns the next received byte, if any, without blocking.
	GetC() (b byte, ok bool)
	// PutC enqueues one byte for transmission. May be buffered; must
	// eventually transmit on Flush.
	PutC(b byte) error
	// Flush drains the transmit path.
	Flush() error
	// GetBreak returns and clears the latched "Ctrl-C received" flag
	// maintained by the driver's receive path.
	GetBreak() bool
	// ClearRx drains any pending received bytes, including a latched
	// break.
	ClearRx()
}

// Board groups the three driver objects a port must supply.
type Board interface {
	Cpu() Cpu
	Tty() Tty
	Systick() Systick
	// Close releases any host resources (goroutines, file descriptors)
	// the board opened. Not part of the embedded-target contract, but
	// every hosted board in this repository needs one.
	Close() error
}

var current Board

// Init installs b as the process-wide board binding. Must be called
// exactly once, before any task runs.
func Init(b Board) {
	current = b
}

// Installed reports whether Init has been called.
func Installed() bool {
	return current != nil
}

func mustBeInstalled() {
	if current == nil {
		panic("board: accessed before board.Init; this is a programmer error")
	}
}

// CpuDriver returns the installed CPU driver. Panics if Init has not been
// called.
func CpuDriver() Cpu {
	mustBeInstalled()
	return current.Cpu()
}

// TtyDriver returns the installed character I/O driver. Panics if Init has
// not been called.
func TtyDriver() Tty {
	mustBeInstalled()
	return current.Tty()
}

// SystickDriver returns the installed clock driver. Panics if Init has not
// been called.
func SystickDriver() Systick {
	mustBeInstalled()
	return current.Systick()
}

// Close tears down the installed board, if any.
func Close() error {
	if current == nil {
		return nil
	}
	return current.Close()
}
