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

package commands

import (
	"strconv"
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mlabonne/simplistic-os/internal/board"
	"github.com/mlabonne/simplistic-os/internal/executor"
	"github.com/mlabonne/simplistic-os/internal/suspend"
)

type fakeTty struct {
	out []byte
}

func (f *fakeTty) GetC() (byte, bool) { return 0, false }
func (f *fakeTty) PutC(b byte) error  { f.out = append(f.out, b); return nil }
func (f *fakeTty) Flush() error       { return nil }
func (f *fakeTty) GetBreak() bool     { return false }
func (f *fakeTty) ClearRx()           {}

type fakeBoard struct {
	tty       *fakeTty
	resetCall int
	panicMsg  string
}

func (b *fakeBoard) Cpu() board.Cpu         { return fakeCpu{b} }
func (b *fakeBoard) Tty() board.Tty         { return b.tty }
func (b *fakeBoard) Systick() board.Systick { return fakeSystick{} }
func (b *fakeBoard) Close() error           { return nil }

type fakeCpu struct{ b *fakeBoard }

func (c fakeCpu) Reset()           { c.b.resetCall++ }
func (c fakeCpu) Panic(msg string) { c.b.panicMsg = msg }

type fakeSystick struct{}

func (fakeSystick) NowMs() uint32    { return 0 }
func (fakeSystick) DelayMs(_ uint32) {}

func installFakeBoard(t *testing.T) *fakeBoard {
	t.Helper()
	b := &fakeBoard{tty: &fakeTty{}}
	board.Init(b)
	return b
}

func pollToCompletion(a suspend.Awaitable[int8]) int8 {
	ctx := &suspend.Ctx{}
	for {
		if code, ready := a.Poll(ctx); ready {
			return code
		}
	}
}

func TestUnrecognizedVerbReturnsNotFound(t *testing.T) {
	installFakeBoard(t)
	b := New(executor.New())
	code := pollToCompletion(b.Parse(1, []string{"frobnicate"}))
	assert.Equal(t, code, int8(127))
}

func TestPsListsLiveTasks(t *testing.T) {
	fb := installFakeBoard(t)
	exec := executor.New()
	exec.Spawn("alpha", func(executor.TaskID, *suspend.Ctx) (int8, bool) { return 0, false })
	b := New(exec)

	code := pollToCompletion(b.Parse(1, []string{"ps"}))
	assert.Equal(t, code, codeOK)
	assert.Assert(t, strings.Contains(string(fb.tty.out), "alpha"))
}

func TestKillUsageErrorOnWrongArgCount(t *testing.T) {
	installFakeBoard(t)
	b := New(executor.New())
	code := pollToCompletion(b.Parse(1, []string{"kill"}))
	assert.Equal(t, code, codeUsage)
}

func TestKillArgErrorOnNonNumericId(t *testing.T) {
	installFakeBoard(t)
	b := New(executor.New())
	code := pollToCompletion(b.Parse(1, []string{"kill", "abc"}))
	assert.Equal(t, code, codeArgError)
}

func TestKillArgErrorOnUnknownTask(t *testing.T) {
	installFakeBoard(t)
	b := New(executor.New())
	code := pollToCompletion(b.Parse(1, []string{"kill", "42"}))
	assert.Equal(t, code, codeArgError)
}

func TestKillSendsSigtermToExistingTask(t *testing.T) {
	installFakeBoard(t)
	exec := executor.New()
	target := exec.Spawn("victim", func(executor.TaskID, *suspend.Ctx) (int8, bool) { return 0, false })
	b := New(exec)

	code := pollToCompletion(b.Parse(1, []string{"kill", strconv.Itoa(int(target))}))
	assert.Equal(t, code, codeOK)

	exec.Run()
	assert.Assert(t, !exec.IsRunning(target))
}

func TestResetInvokesCpuReset(t *testing.T) {
	fb := installFakeBoard(t)
	b := New(executor.New())
	code := pollToCompletion(b.Parse(1, []string{"reset"}))
	assert.Equal(t, code, codeOK)
	assert.Equal(t, fb.resetCall, 1)
}

func TestPanicInvokesCpuPanicWithJoinedMessage(t *testing.T) {
	fb := installFakeBoard(t)
	b := New(executor.New())
	code := pollToCompletion(b.Parse(1, []string{"panic", "boom", "now"}))
	assert.Equal(t, code, codeOK)
	assert.Equal(t, fb.panicMsg, "boom now")
}

func TestHelpListsAllSixBuiltins(t *testing.T) {
	b := New(executor.New())
	entries := b.Help()
	assert.Equal(t, len(entries), 6)
}
