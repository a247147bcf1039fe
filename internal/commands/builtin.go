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

// Package commands implements the default console.Parser shipped with
// every board: reset, ps, kill, free, pref, and panic.
package commands

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/mlabonne/simplistic-os/internal/board"
	"github.com/mlabonne/simplistic-os/internal/console"
	"github.com/mlabonne/simplistic-os/internal/executor"
	"github.com/mlabonne/simplistic-os/internal/suspend"
)

const (
	codeOK       int8 = 0
	codeArgError int8 = 1
	codeUsage    int8 = 2
)

// Builtin is the default command parser, bound to the executor it spawns
// subtasks on.
type Builtin struct {
	exec *executor.Executor
}

// New returns a Builtin bound to exec.
func New(exec *executor.Executor) *Builtin {
	return &Builtin{exec: exec}
}

var _ console.Parser = (*Builtin)(nil)

func (b *Builtin) Help() []console.HelpEntry {
	return []console.HelpEntry{
		{Syntax: "reset", Description: "reset the board"},
		{Syntax: "ps", Description: "list tasks"},
		{Syntax: "kill <id>", Description: "send SIGTERM to a task"},
		{Syntax: "free", Description: "probe available heap"},
		{Syntax: "pref", Description: "report scheduler yields per second"},
		{Syntax: "panic <msg...>", Description: "invoke the fatal-error path"},
	}
}

func (b *Builtin) Parse(self executor.TaskID, args []string) suspend.Awaitable[int8] {
	switch args[0] {
	case "reset":
		return b.cmdReset()
	case "ps":
		return b.cmdPs()
	case "kill":
		return b.cmdKill(args)
	case "free":
		return b.cmdFree()
	case "pref":
		return b.cmdPref(self)
	case "panic":
		return b.cmdPanic(args)
	default:
		return suspend.Ready(int8(127))
	}
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

func (b *Builtin) cmdReset() suspend.Awaitable[int8] {
	board.CpuDriver().Reset()
	return suspend.Ready(codeOK)
}

func (b *Builtin) cmdPs() suspend.Awaitable[int8] {
	for _, t := range b.exec.TaskList() {
		writeLine(fmt.Sprintf("%d\t%s", t.ID, t.Name))
	}
	return suspend.Ready(codeOK)
}

func (b *Builtin) cmdKill(args []string) suspend.Awaitable[int8] {
	if len(args) != 2 {
		writeLine("usage: kill <id>")
		return suspend.Ready(codeUsage)
	}
	n, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		writeLine("kill: invalid task id: " + args[1])
		return suspend.Ready(codeArgError)
	}
	if !b.exec.Kill(executor.TaskID(n)) {
		writeLine("kill: no such task")
		return suspend.Ready(codeArgError)
	}
	return suspend.Ready(codeOK)
}

// probeSizes is the descending series of allocation sizes free() tries,
// from one megabyte down to sixteen bytes.
func probeSizes() []int {
	var sizes []int
	for n := 1 << 20; n >= 16; n /= 2 {
		sizes = append(sizes, n)
	}
	return sizes
}

func (b *Builtin) cmdFree() suspend.Awaitable[int8] {
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	var held [][]byte
	var total uint64
	for _, sz := range probeSizes() {
		buf := make([]byte, sz)
		held = append(held, buf)
		total += uint64(sz)
	}
	held = nil // drop the references; the next GC reclaims them

	writeLine(fmt.Sprintf("free: probed %d bytes, heap_alloc=%d heap_sys=%d",
		total, before.HeapAlloc, before.HeapSys))
	return suspend.Ready(codeOK)
}

func (b *Builtin) cmdPanic(args []string) suspend.Awaitable[int8] {
	msg := strings.Join(args[1:], " ")
	board.CpuDriver().Panic(msg)
	return suspend.Ready(codeOK)
}
