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

// Package console implements the interactive line-editing shell: it turns
// a byte stream from the board's tty into parsed command invocations and
// runs each as a child task with Ctrl-C-derived signal forwarding.
//
// The dispatch loop is written the same way the rest of this runtime
// handles concurrency: as an explicit, resumable state machine driven one
// step at a time by the executor, rather than a blocking read loop. Each
// call to Step does a small bounded amount of work and returns Pending,
// relying on the executor's round-robin rotation to supply the "yield"
// between steps — the same trick internal/executor's own step function
// uses internally.
package console

import (
	"strings"

	"github.com/mlabonne/simplistic-os/internal/board"
	"github.com/mlabonne/simplistic-os/internal/executor"
	"github.com/mlabonne/simplistic-os/internal/suspend"
)

// Console owns the line editor, the registered parser chain, and the
// dispatch state for the command segments of the line most recently
// committed.
type Console struct {
	editor  *lineEditor
	parsers []Parser
	exec    *executor.Executor
	selfID  executor.TaskID

	promptPending bool
	segments      [][]string
	child         *childWait
}

// childWait tracks the foreground child task currently being dispatched.
type childWait struct {
	id   executor.TaskID
	wait suspend.Awaitable[executor.ExitStatus]
}

// New returns a Console bound to exec, with prompt as its initial prompt
// string and historyCap lines of scrollback (<= 0 for the default of 10).
// Call AddCommands to register parsers, then Spawn its Step method as a
// task before calling exec.Run.
func New(exec *executor.Executor, prompt string, historyCap int) *Console {
	return &Console{
		editor:        newLineEditor(prompt, historyCap),
		exec:          exec,
		promptPending: true,
	}
}

// SetPrompt replaces the prompt string used on future redraws.
func (c *Console) SetPrompt(prompt string) {
	c.editor.prompt = prompt
}

// AddCommands appends p to the parser chain. Order is preserved and
// determines resolution priority.
func (c *Console) AddCommands(p Parser) {
	c.parsers = append(c.parsers, p)
}

// Step is the Console's executor.Continuation. It never reports ready:
// the shell loop runs for the lifetime of the process.
func (c *Console) Step(self executor.TaskID, ctx *suspend.Ctx) (int8, bool) {
	c.selfID = self

	if c.promptPending {
		c.editor.writeString(c.editor.prompt)
		c.editor.flush()
		c.promptPending = false
	}

	if c.child != nil {
		c.pollChild(ctx)
		return 0, false
	}

	if len(c.segments) > 0 {
		c.dispatchNext()
		return 0, false
	}

	c.pumpInput()
	return 0, false
}

// pumpInput drains every byte currently buffered by the tty driver,
// feeding each through the line editor. A committed line is split into
// dispatch segments; an in-progress (uncommitted) line simply waits for
// the next Step.
func (c *Console) pumpInput() {
	tty := board.TtyDriver()
	for {
		b, ok := tty.GetC()
		if !ok {
			return
		}
		line, committed := c.editor.feed(b)
		if committed {
			c.segments = splitCommandLine(line)
			if len(c.segments) == 0 {
				c.promptPending = true
			}
			return
		}
	}
}

// splitCommandLine splits line on ';' and whitespace-tokenizes each
// segment, discarding empty token vectors.
func splitCommandLine(line string) [][]string {
	var out [][]string
	for _, part := range strings.Split(line, ";") {
		tokens := strings.Fields(part)
		if len(tokens) > 0 {
			out = append(out, tokens)
		}
	}
	return out
}

// dispatchNext consumes one pending segment: either printing the help
// listing inline, or spawning a child task to run it through the parser
// chain.
func (c *Console) dispatchNext() {
	segment := c.segments[0]
	c.segments = c.segments[1:]

	if segment[0] == "help" || segment[0] == "?" {
		c.printHelp()
		if len(c.segments) == 0 {
			c.promptPending = true
		}
		return
	}

	args := segment
	r := &cmdRunner{args: args, parsers: c.parsers}
	childID := c.exec.Spawn(args[0], r.step)
	c.child = &childWait{id: childID, wait: c.exec.Wait(c.selfID, childID)}
}

// pollChild advances the foreground child's wait and forwards a Ctrl-C
// break from the tty as SIGTERM, exactly the polling loop described for
// command dispatch: yield, check liveness, check break, forward.
func (c *Console) pollChild(ctx *suspend.Ctx) {
	_, ready := c.child.wait.Poll(ctx)
	if ready {
		c.child = nil
		if len(c.segments) == 0 {
			c.promptPending = true
		}
		return
	}
	if board.TtyDriver().GetBreak() {
		c.exec.SendSignal(c.child.id, executor.Signal{Kind: executor.SIGTERM})
	}
}

// printHelp concatenates the help listing of every registered parser.
func (c *Console) printHelp() {
	for _, p := range c.parsers {
		for _, h := range p.Help() {
			c.editor.writeString(h.Syntax)
			c.editor.writeString("\t")
			c.editor.writeString(h.Description)
			c.editor.writeString("\n")
		}
	}
	c.editor.flush()
}

// cmdRunner is the continuation body of a spawned command task: it tries
// each parser in order, running one fully to completion before deciding
// whether to fall through to the next.
type cmdRunner struct {
	args    []string
	parsers []Parser
	index   int
	current suspend.Awaitable[int8]
}

func (r *cmdRunner) step(self executor.TaskID, ctx *suspend.Ctx) (int8, bool) {
	if r.current == nil {
		if r.index >= len(r.parsers) {
			writeUnknownCommand(r.args)
			return notFound, true
		}
		r.current = r.parsers[r.index].Parse(self, r.args)
	}
	code, ready := r.current.Poll(ctx)
	if !ready {
		return 0, false
	}
	if code != notFound {
		return code, true
	}
	r.index++
	r.current = nil
	return 0, false
}

func writeUnknownCommand(args []string) {
	tty := board.TtyDriver()
	msg := "Unknown command: " + strings.Join(args, " ") + "\r\n"
	for i := 0; i < len(msg); i++ {
		_ = tty.PutC(msg[i])
	}
	_ = tty.Flush()
}
