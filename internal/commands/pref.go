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
	"fmt"

	"github.com/mlabonne/simplistic-os/internal/executor"
	"github.com/mlabonne/simplistic-os/internal/suspend"
)

// cmdPref spawns two subtasks — one that increments a shared counter every
// dispatch lap, one that prints and resets it once a second — and joins
// both. It registers its own SIGTERM handler so that a Ctrl-C-forwarded
// break from the console kills both subtasks before letting itself exit;
// without that, the subtasks would otherwise keep occupying dispatch laps
// forever with no task left waiting on them.
func (b *Builtin) cmdPref(self executor.TaskID) suspend.Awaitable[int8] {
	p := &prefJoin{exec: b.exec, self: self}
	return p
}

type prefJoin struct {
	exec    *executor.Executor
	self    executor.TaskID
	started bool

	counterID executor.TaskID
	printerID executor.TaskID

	counterWait suspend.Awaitable[executor.ExitStatus]
	printerWait suspend.Awaitable[executor.ExitStatus]
	counterDone bool
	printerDone bool
}

func (p *prefJoin) Poll(ctx *suspend.Ctx) (int8, bool) {
	if !p.started {
		counter := new(int32)
		p.counterID = p.exec.Spawn("pref-counter", counterContinuation(counter))
		p.printerID = p.exec.Spawn("pref-printer", printerContinuation(counter))
		p.counterWait = p.exec.Wait(p.self, p.counterID)
		p.printerWait = p.exec.Wait(p.self, p.printerID)
		p.exec.RegisterSignalHandler(p.self, p.onSignal)
		p.started = true
	}
	if !p.counterDone {
		if _, ready := p.counterWait.Poll(ctx); ready {
			p.counterDone = true
		}
	}
	if !p.printerDone {
		if _, ready := p.printerWait.Poll(ctx); ready {
			p.printerDone = true
		}
	}
	if p.counterDone && p.printerDone {
		return codeOK, true
	}
	return 0, false
}

// onSignal runs in place of the default policy for the pref task itself:
// on SIGINT/SIGTERM it kills both subtasks before terminating, so Ctrl-C
// cleanly tears down the whole command rather than orphaning them.
func (p *prefJoin) onSignal(sig executor.Signal) executor.SignalAction {
	switch sig.Kind {
	case executor.SIGINT, executor.SIGTERM:
		p.exec.Kill(p.counterID)
		p.exec.Kill(p.printerID)
		return executor.Terminate(-1)
	case executor.SIGKILL:
		return executor.Terminate(-9)
	default:
		return executor.Ignore()
	}
}

func counterContinuation(counter *int32) executor.Continuation {
	return func(self executor.TaskID, ctx *suspend.Ctx) (int8, bool) {
		*counter = *counter + 1
		return 0, false
	}
}

func printerContinuation(counter *int32) executor.Continuation {
	var sleep suspend.Awaitable[struct{}]
	return func(self executor.TaskID, ctx *suspend.Ctx) (int8, bool) {
		if sleep == nil {
			sleep = suspend.SleepMs(1000)
		}
		if _, ready := sleep.Poll(ctx); !ready {
			return 0, false
		}
		n := *counter
		*counter = 0
		writeLine(fmt.Sprintf("pref: %d yields/sec", n))
		sleep = nil
		return 0, false
	}
}
