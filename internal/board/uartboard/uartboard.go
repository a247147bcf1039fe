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

// Package uartboard implements board.Board over a real serial device
// (e.g. /dev/ttyUSB0), the port this runtime was written for. Termios
// configuration follows the raw-mode recipe of Daedaluz-goserial's
// Port.MakeRaw: it disables every line-discipline feature a wire
// protocol between two bare-metal ends has no use for, leaving an
// unprocessed byte pipe in both directions. Opening the device retries
// with backoff, since a USB-serial adapter frequently is not yet
// enumerated when this runtime starts.
package uartboard

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"gopkg.in/tomb.v1"

	"github.com/mlabonne/simplistic-os/internal/board"
	"github.com/mlabonne/simplistic-os/internal/logging"
)

// baudRates maps a requested integer baud rate onto the POSIX termios
// constant it corresponds to. Unlisted rates fall back to 115200.
var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

func baudConstant(baud int) uint32 {
	if b, ok := baudRates[baud]; ok {
		return b
	}
	return unix.B115200
}

// Board is a board.Board backed by a real serial device file.
type Board struct {
	f    *os.File
	rx   *board.RXQueue
	boot time.Time
	t    tomb.Tomb
}

// Open opens device at the given baud rate, retrying with exponential
// backoff up to 10 seconds if the device is not yet present.
func Open(device string, baud int) (*Board, error) {
	var f *os.File
	attempt := 0
	open := func() error {
		attempt++
		var err error
		f, err = os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
		if err != nil {
			logging.Warningf("uartboard: open %s attempt %d: %v", device, attempt, err)
		}
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(open, bo); err != nil {
		return nil, fmt.Errorf("uartboard: opening %s: %w", device, err)
	}

	fd := int(f.Fd())
	if err := makeRaw(fd, baud); err != nil {
		f.Close()
		return nil, fmt.Errorf("uartboard: configuring %s: %w", device, err)
	}

	b := &Board{
		f:    f,
		rx:   board.NewRXQueue(),
		boot: time.Now(),
	}
	go b.pump()
	return b, nil
}

// makeRaw configures fd as an unprocessed 8N1 byte pipe at the given baud
// rate: no input/output translation, no canonical line editing, no
// signal-generating control characters, local-only (no modem control
// lines required to consider the link up).
func makeRaw(fd int, baud int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	rate := baudConstant(baud)
	t.Cflag &^= unix.CBAUD
	t.Cflag |= rate
	t.Ispeed = rate
	t.Ospeed = rate

	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

func (b *Board) pump() {
	defer b.t.Done()
	buf := make([]byte, 1)
	for {
		n, err := b.f.Read(buf)
		if n > 0 {
			b.rx.Push(buf[0])
		}
		if err != nil {
			logging.Warningf("uartboard: device read: %v", err)
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

// Close stops the pump and closes the device file.
func (b *Board) Close() error {
	b.t.Kill(nil)
	return b.f.Close()
}

type cpu struct{ b *Board }

func (c cpu) Reset() {
	_ = c.b.Close()
	os.Exit(0)
}

func (c cpu) Panic(msg string) {
	logging.Errorf("panic: %s", msg)
	fmt.Fprintf(c.b.f, "panic: %s\r\n", msg)
	_ = c.b.Close()
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
	if _, err := t.b.f.Write([]byte{c}); err != nil {
		return errors.Wrap(err, "uartboard: write")
	}
	return nil
}

func (t tty) Flush() error { return nil }

func (t tty) GetBreak() bool { return t.b.rx.GetBreak() }

func (t tty) ClearRx() { t.b.rx.Clear() }
