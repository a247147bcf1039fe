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

package console

import (
	"github.com/mlabonne/simplistic-os/internal/board"
	"github.com/mlabonne/simplistic-os/internal/ring"
)

const maxLineLen = 512
const defaultHistoryCapacity = 10 // usable entries; ring.New wants +1

// escState is the byte-level input state machine driving ANSI escape
// recognition.
type escState int

const (
	escNormal escState = iota
	escAfterESC
	escAfterCSI
)

const (
	byteBell      = 0x07
	byteBackspace = 0x08
	byteLF        = 0x0A
	byteCR        = 0x0D
	byteESC       = 0x1B
	byteCtrlC     = 0x03
	byteDEL       = 0x7F
)

// lineEditor owns the in-progress command line, the history ring, and the
// escape-sequence state machine. It never touches the executor; console.go
// wires its committed-line output into dispatch.
type lineEditor struct {
	prompt       string
	line         []byte
	cursor       int
	esc          escState
	history      *ring.Buffer[string]
	historyIndex *int // nil while typing / not browsing history
}

// newLineEditor returns a lineEditor with room for historyCap entries of
// scrollback. historyCap <= 0 falls back to defaultHistoryCapacity.
func newLineEditor(prompt string, historyCap int) *lineEditor {
	if historyCap <= 0 {
		historyCap = defaultHistoryCapacity
	}
	return &lineEditor{
		prompt:  prompt,
		history: ring.New[string](historyCap + 1),
	}
}

func (e *lineEditor) tty() board.Tty { return board.TtyDriver() }

func (e *lineEditor) writeByte(b byte) {
	_ = e.tty().PutC(b)
}

// writeString emits s, translating every '\n' into "\r\n" since this
// package owns that convenience rather than relying on a driver-level one.
func (e *lineEditor) writeString(s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			e.writeByte('\r')
			e.writeByte('\n')
			continue
		}
		e.writeByte(s[i])
	}
}

func (e *lineEditor) flush() {
	_ = e.tty().Flush()
}

// clearLine returns the cursor to column 0, erases to end of line, and
// reprints the prompt.
func (e *lineEditor) clearLine() {
	e.writeByte(byteCR)
	e.writeString("\x1b[K")
	e.writeString(e.prompt)
}

// redrawLine emits the current line and backs the terminal cursor up to
// its logical position within it.
func (e *lineEditor) redrawLine() {
	e.writeString(string(e.line))
	for i := len(e.line); i > e.cursor; i-- {
		e.writeByte(byteBackspace)
	}
}

func (e *lineEditor) fullRedraw() {
	e.clearLine()
	e.redrawLine()
	e.flush()
}

// resetLine clears the buffer, cursor, and history index — the state
// every committed or aborted line returns to.
func (e *lineEditor) resetLine() {
	e.line = e.line[:0]
	e.cursor = 0
	e.historyIndex = nil
}

// insert inserts b at the cursor, taking the append-and-echo fast path
// when the cursor sits at the end of the line.
func (e *lineEditor) insert(b byte) {
	if len(e.line) >= maxLineLen {
		return
	}
	if e.cursor == len(e.line) {
		e.line = append(e.line, b)
		e.cursor++
		e.writeByte(b)
		e.flush()
		return
	}
	e.line = append(e.line, 0)
	copy(e.line[e.cursor+1:], e.line[e.cursor:])
	e.line[e.cursor] = b
	e.cursor++
	e.fullRedraw()
}

// backspace removes the byte before the cursor, if any.
func (e *lineEditor) backspace() {
	if e.cursor == 0 {
		return
	}
	e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
	e.cursor--
	e.fullRedraw()
}

func (e *lineEditor) moveLeft() {
	if e.cursor > 0 {
		e.cursor--
		e.fullRedraw()
	}
}

func (e *lineEditor) moveRight() {
	if e.cursor < len(e.line) {
		e.cursor++
		e.fullRedraw()
	}
}

// loadHistory replaces the current line with the history entry at index i,
// redraws, and places the cursor at the end.
func (e *lineEditor) loadHistory(i int) {
	entry, ok := e.history.At(i)
	if !ok {
		return
	}
	e.line = append(e.line[:0], entry...)
	e.cursor = len(e.line)
	e.fullRedraw()
}

// historyUp recalls the previous (older) history entry.
func (e *lineEditor) historyUp() {
	n := e.history.Len()
	if n == 0 {
		return
	}
	if e.historyIndex == nil {
		idx := n - 1
		e.historyIndex = &idx
		e.loadHistory(idx)
		return
	}
	if *e.historyIndex > 0 {
		*e.historyIndex--
		e.loadHistory(*e.historyIndex)
	}
}

// historyDown recalls the next (newer) history entry, or clears the line
// and unsets the index once past the newest entry. This intentionally
// discards whatever was being typed before the first Up press: a quirk of
// the original console preserved here rather than fixed.
func (e *lineEditor) historyDown() {
	if e.historyIndex == nil {
		return
	}
	n := e.history.Len()
	if *e.historyIndex >= n-1 {
		e.historyIndex = nil
		e.line = e.line[:0]
		e.cursor = 0
		e.fullRedraw()
		return
	}
	*e.historyIndex++
	e.loadHistory(*e.historyIndex)
}

// pushHistory records line if non-empty and not a duplicate of the most
// recent entry, evicting the oldest entry first if the ring is full.
func (e *lineEditor) pushHistory(line string) {
	if line == "" {
		return
	}
	if last, ok := e.history.At(e.history.Len() - 1); ok && last == line {
		return
	}
	if e.history.Len() == e.history.Cap() {
		e.history.Pop()
	}
	e.history.Push(line)
}

// feed processes one received byte. It returns (line, true) when the byte
// commits a line (possibly empty), and resets editor state in that case.
func (e *lineEditor) feed(b byte) (committed string, ok bool) {
	switch e.esc {
	case escAfterESC:
		if b == '[' {
			e.esc = escAfterCSI
		} else {
			e.esc = escNormal
		}
		return "", false
	case escAfterCSI:
		e.esc = escNormal
		switch b {
		case 'A':
			e.historyUp()
		case 'B':
			e.historyDown()
		case 'C':
			e.moveRight()
		case 'D':
			e.moveLeft()
		}
		return "", false
	}

	switch {
	case b == byteCR || b == byteLF:
		line := string(e.line)
		e.writeString("\r\n")
		e.flush()
		e.pushHistory(line)
		e.resetLine()
		return line, true
	case b == byteCtrlC:
		e.writeString("^C\r\n")
		e.flush()
		e.resetLine()
		return "", false
	case b == byteBackspace || b == byteDEL:
		e.backspace()
		return "", false
	case b == byteESC:
		e.esc = escAfterESC
		return "", false
	case b >= 0x20 && b < 0x7F:
		e.insert(b)
		return "", false
	default:
		return "", false
	}
}
