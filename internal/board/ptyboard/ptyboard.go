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

// Package ptyboard implements board.Board over a pseudoterminal pair: the
// runtime drives the master end, and anything attached to the slave's
// device path (a real terminal emulator, screen, or a test harness) sees
// exactly what the target would have sent over the wire. Write throughput
// is capped to emulate the baud rate of the serial link this board
// stands in for, since a pty otherwise has no notion of one.
package ptyboard

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kr/pty"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"gopkg.in/tomb.v1"

	"github.com/mlabonne/simplistic-os/internal/board"
	"github.com/mlabonne/simplistic-os/internal/logging"
)

// bytesPerSecond converts a baud rate (bits/sec, 8N1 framing) to a byte
// rate for the limiter: 8 data bits plus a start and a stop bit, 10 bits
// per transmitted byte.
func bytesPerSecond(baud int) rate.Limit {
	return rate.Limit(float64(baud) / 10.0)
}

// Board is a board.Board backed by a kr/pty master/slave pair.
type Board struct {
	master  *os.File
	slave   *os.File
	limiter *rate.Limiter
	rx      *board.RXQueue
	boot    time.Time
	t       tomb.Tomb
}

// New opens a pty pair and starts the background byte pump reading from
// the master end. baud sets the simulated write rate; SlavePath() reports
// where to attach a terminal to see the other side of the link.
func New(baud int) (*Board, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("ptyboard: opening pty: %w", err)
	}
	burst := baud / 10
	if burst < 1 {
		burst = 1
	}
	b := &Board{
		master:  master,
		slave:   slave,
		limiter: rate.NewLimiter(bytesPerSecond(baud), burst),
		rx:      board.NewRXQueue(),
		boot:    time.Now(),
	}
	go b.pump()
	return b, nil
}

// SlavePath returns the device path of the pty's slave end.
func (b *Board) SlavePath() string { return b.slave.Name() }

func (b *Board) pump() {
	defer b.t.Done()
	buf := make([]byte, 1)
	for {
		n, err := b.master.Read(buf)
		if n > 0 {
			b.rx.Push(buf[0])
		}
		if err != nil {
			logging.Warningf("ptyboard: master read: %v", err)
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

// Close stops the pump and closes both ends of the pty, aggregating
// errors from each rather than discarding whichever happened second.
func (b *Board) Close() error {
	b.t.Kill(nil)
	var result *multierror.Error
	if err := b.slave.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "ptyboard: closing slave"))
	}
	if err := b.master.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "ptyboard: closing master"))
	}
	return result.ErrorOrNil()
}

type cpu struct{ b *Board }

func (c cpu) Reset() {
	_ = c.b.Close()
	os.Exit(0)
}

func (c cpu) Panic(msg string) {
	logging.Errorf("panic: %s", msg)
	fmt.Fprintf(c.b.master, "panic: %s\n", msg)
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

// PutC blocks, if necessary, to hold writes to the configured baud rate
// before handing the byte to the pty master.
func (t tty) PutC(c byte) error {
	if err := t.b.limiter.Wait(context.Background()); err != nil {
		return errors.Wrap(err, "ptyboard: rate limiter")
	}
	if _, err := t.b.master.Write([]byte{c}); err != nil {
		return errors.Wrap(err, "ptyboard: write")
	}
	return nil
}

func (t tty) Flush() error { return nil }

func (t tty) GetBreak() bool { return t.b.rx.GetBreak() }

func (t tty) ClearRx() { t.b.rx.Clear() }
