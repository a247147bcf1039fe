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

package ring

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestPushPopOrder(t *testing.T) {
	b := New[int](4)
	assert.Equal(t, b.Cap(), 3)
	assert.Assert(t, b.Push(1))
	assert.Assert(t, b.Push(2))
	assert.Assert(t, b.Push(3))
	assert.Assert(t, !b.Push(4)) // full: capacity 4-1

	v, ok := b.Pop()
	assert.Assert(t, ok)
	assert.Equal(t, v, 1)
	assert.Assert(t, b.Push(4))

	for _, want := range []int{2, 3, 4} {
		got, ok := b.Pop()
		assert.Assert(t, ok)
		assert.Equal(t, got, want)
	}
	_, ok = b.Pop()
	assert.Assert(t, !ok)
}

func TestAtIndexesFromFront(t *testing.T) {
	b := New[string](5)
	b.Push("a")
	b.Push("b")
	b.Push("c")

	v, ok := b.At(0)
	assert.Assert(t, ok)
	assert.Equal(t, v, "a")

	v, ok = b.At(2)
	assert.Assert(t, ok)
	assert.Equal(t, v, "c")

	_, ok = b.At(3)
	assert.Assert(t, !ok)
	_, ok = b.At(-1)
	assert.Assert(t, !ok)
}

func TestAtSurvivesWraparound(t *testing.T) {
	b := New[int](4) // usable capacity 3
	b.Push(1)
	b.Push(2)
	b.Push(3)
	b.Pop()
	b.Pop()
	b.Push(4)
	b.Push(5)

	v, ok := b.At(0)
	assert.Assert(t, ok)
	assert.Equal(t, v, 3)
	v, ok = b.At(2)
	assert.Assert(t, ok)
	assert.Equal(t, v, 5)
}

func TestRemoveMatching(t *testing.T) {
	b := New[int](5)
	b.Push(10)
	b.Push(20)
	b.Push(30)

	assert.Assert(t, b.RemoveMatching(func(v int) bool { return v == 20 }))
	assert.Equal(t, b.Len(), 2)

	var got []int
	b.Each(func(v int) { got = append(got, v) })
	assert.DeepEqual(t, got, []int{10, 30})

	assert.Assert(t, !b.RemoveMatching(func(v int) bool { return v == 999 }))
}

func TestNewPanicsBelowMinimumCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for capacity < 2")
		}
	}()
	New[int](1)
}
