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

// Package suspend implements the executor-agnostic suspension primitives:
// yield_now, sleep_ms, join, select. These are lazy-poll values over the
// installed board's millisecond clock, not goroutines — a no-op waker is
// correct here because internal/executor revisits every live, unpaused
// task on each lap of its dispatch loop regardless of whether a wake event
// occurred.
package suspend

import "github.com/mlabonne/simplistic-os/internal/board"

// Ctx is the trivial poll context threaded through Poll calls. It carries
// no wake-up machinery on purpose: there is nothing for a waker to do in a
// scheduler that revisits every task every lap.
type Ctx struct{}

// Awaitable is a resumable value: Poll advances it once and reports
// whether it produced its final value.
type Awaitable[T any] interface {
	Poll(ctx *Ctx) (T, bool)
}

// funcAwaitable adapts a poll function into an Awaitable.
type funcAwaitable[T any] struct {
	poll func(ctx *Ctx) (T, bool)
}

func (f *funcAwaitable[T]) Poll(ctx *Ctx) (T, bool) {
	return f.poll(ctx)
}

// yieldState is the two-poll state machine behind YieldNow: the first
// poll requests re-polling, the second is Ready.
type yieldState struct {
	polled bool
}

// YieldNow returns the cooperative scheduling point primitive: the first
// Poll returns Pending, the second returns Ready. Any loop that must share
// the CPU awaits this between iterations.
func YieldNow() Awaitable[struct{}] {
	s := &yieldState{}
	return &funcAwaitable[struct{}]{poll: func(ctx *Ctx) (struct{}, bool) {
		if !s.polled {
			s.polled = true
			return struct{}{}, false
		}
		return struct{}{}, true
	}}
}

// wrappingElapsed returns now-start computed under 32-bit wrap-around
// arithmetic, equivalent to now().wrapping_sub(start) in the source.
func wrappingElapsed(now, start uint32) uint32 {
	return now - start
}

// SleepMs captures start = systick.NowMs() at call time and polls Ready
// once now() has advanced at least n ms past that starting point (the
// same instant as start+n, wrapping 32-bit), using wrap-aware comparison
// so it behaves correctly
// across a clock wraparound. The first poll is always Pending, regardless
// of n, so SleepMs(0) is equivalent to YieldNow: both need exactly one
// Pending poll before Ready instead of resolving synchronously on their
// very first poll.
func SleepMs(n uint32) Awaitable[struct{}] {
	start := board.SystickDriver().NowMs()
	polled := false
	return &funcAwaitable[struct{}]{poll: func(ctx *Ctx) (struct{}, bool) {
		now := board.SystickDriver().NowMs()
		if polled && wrappingElapsed(now, start) >= n {
			return struct{}{}, true
		}
		polled = true
		return struct{}{}, false
	}}
}

// readyAwaitable wraps an already-known value in a one-poll Awaitable, for
// callers whose work completes synchronously but still need to satisfy an
// Awaitable-typed contract.
type readyAwaitable[T any] struct{ value T }

func (r readyAwaitable[T]) Poll(ctx *Ctx) (T, bool) {
	return r.value, true
}

// Ready returns an Awaitable that is immediately Ready with value.
func Ready[T any](value T) Awaitable[T] {
	return readyAwaitable[T]{value: value}
}

// pairResult is the output of Join.
type pairResult[A, B any] struct {
	First  A
	Second B
}

// Join drives both a and b on every poll and completes once both have
// completed, yielding their combined output.
func Join[A, B any](a Awaitable[A], b Awaitable[B]) Awaitable[pairResult[A, B]] {
	var (
		aDone, bDone bool
		aVal         A
		bVal         B
	)
	return &funcAwaitable[pairResult[A, B]]{poll: func(ctx *Ctx) (pairResult[A, B], bool) {
		if !aDone {
			if v, ready := a.Poll(ctx); ready {
				aVal, aDone = v, true
			}
		}
		if !bDone {
			if v, ready := b.Poll(ctx); ready {
				bVal, bDone = v, true
			}
		}
		if aDone && bDone {
			return pairResult[A, B]{First: aVal, Second: bVal}, true
		}
		return pairResult[A, B]{}, false
	}}
}

// eitherResult tags which side of a Select completed.
type eitherResult[A, B any] struct {
	FromFirst bool
	First     A
	Second    B
}

// Select drives a first, then b, completing with whichever produces a
// value first. It never cancels the loser: the loser is simply never
// polled again once Select itself is dropped, and any cleanup that
// implies is the loser's own concern.
func Select[A, B any](a Awaitable[A], b Awaitable[B]) Awaitable[eitherResult[A, B]] {
	return &funcAwaitable[eitherResult[A, B]]{poll: func(ctx *Ctx) (eitherResult[A, B], bool) {
		if v, ready := a.Poll(ctx); ready {
			return eitherResult[A, B]{FromFirst: true, First: v}, true
		}
		if v, ready := b.Poll(ctx); ready {
			return eitherResult[A, B]{FromFirst: false, Second: v}, true
		}
		return eitherResult[A, B]{}, false
	}}
}
