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

package suspend

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mlabonne/simplistic-os/internal/board"
)

// fakeClock is a minimal board.Board exposing only an adjustable systick,
// used to drive SleepMs deterministically without a real clock.
type fakeClock struct {
	ms uint32
}

func (f *fakeClock) Cpu() board.Cpu         { return nil }
func (f *fakeClock) Tty() board.Tty         { return nil }
func (f *fakeClock) Systick() board.Systick { return fakeSystick{f} }
func (f *fakeClock) Close() error           { return nil }

type fakeSystick struct{ f *fakeClock }

func (s fakeSystick) NowMs() uint32   { return s.f.ms }
func (s fakeSystick) DelayMs(n uint32) {}

func installFakeClock(t *testing.T) *fakeClock {
	t.Helper()
	f := &fakeClock{}
	board.Init(f)
	return f
}

func TestYieldNowTakesExactlyTwoPolls(t *testing.T) {
	y := YieldNow()
	ctx := &Ctx{}

	_, ready := y.Poll(ctx)
	assert.Assert(t, !ready)

	_, ready = y.Poll(ctx)
	assert.Assert(t, ready)
}

func TestSleepMsWaitsForElapsedDuration(t *testing.T) {
	clock := installFakeClock(t)
	ctx := &Ctx{}

	s := SleepMs(100)
	_, ready := s.Poll(ctx)
	assert.Assert(t, !ready)

	clock.ms += 50
	_, ready = s.Poll(ctx)
	assert.Assert(t, !ready)

	clock.ms += 50
	_, ready = s.Poll(ctx)
	assert.Assert(t, ready)
}

func TestSleepMsZeroBehavesLikeYield(t *testing.T) {
	installFakeClock(t)
	ctx := &Ctx{}

	s := SleepMs(0)
	_, ready := s.Poll(ctx)
	assert.Assert(t, !ready)
	_, ready = s.Poll(ctx)
	assert.Assert(t, ready)
}

func TestSleepMsWrapsAroundClockOverflow(t *testing.T) {
	clock := installFakeClock(t)
	clock.ms = ^uint32(0) - 10 // 11ms before the counter wraps to zero
	ctx := &Ctx{}

	s := SleepMs(20)
	_, ready := s.Poll(ctx)
	assert.Assert(t, !ready)

	clock.ms = 5 // wrapped past zero, 16ms elapsed overall
	_, ready = s.Poll(ctx)
	assert.Assert(t, !ready)

	clock.ms = 15 // 26ms elapsed overall
	_, ready = s.Poll(ctx)
	assert.Assert(t, ready)
}

func TestReadyIsImmediatelyReady(t *testing.T) {
	r := Ready(42)
	v, ready := r.Poll(&Ctx{})
	assert.Assert(t, ready)
	assert.Equal(t, v, 42)
}

func TestJoinWaitsForBothSides(t *testing.T) {
	a := YieldNow()
	b := Ready(struct{}{})
	j := Join(a, b)
	ctx := &Ctx{}

	_, ready := j.Poll(ctx)
	assert.Assert(t, !ready)

	v, ready := j.Poll(ctx)
	assert.Assert(t, ready)
	_ = v.First
	_ = v.Second
}

func TestSelectResolvesOnFirstReady(t *testing.T) {
	a := Ready("fast")
	b := YieldNow()
	sel := Select[string, struct{}](a, b)

	v, ready := sel.Poll(&Ctx{})
	assert.Assert(t, ready)
	assert.Assert(t, v.FromFirst)
	assert.Equal(t, v.First, "fast")
}

func TestSelectResolvesOnSecondWhenFirstIsSlower(t *testing.T) {
	a := YieldNow()
	b := Ready("second")
	sel := Select[struct{}, string](a, b)
	ctx := &Ctx{}

	// First poll: a is pending (its first poll), b is ready, but Select
	// only checks b after a reports not-ready on this same poll.
	v, ready := sel.Poll(ctx)
	assert.Assert(t, ready)
	assert.Assert(t, !v.FromFirst)
	assert.Equal(t, v.Second, "second")
}
