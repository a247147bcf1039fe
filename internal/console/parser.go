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
	"github.com/mlabonne/simplistic-os/internal/executor"
	"github.com/mlabonne/simplistic-os/internal/suspend"
)

// HelpEntry is one row of a parser's help listing: the command syntax and
// a one-line description.
type HelpEntry struct {
	Syntax      string
	Description string
}

// Parser is a pluggable command recognizer. Parse is asynchronous because
// a recognized command may itself need several dispatch laps to finish
// (pref joins two subtasks across a full second, for instance). self is
// the TaskID the console spawned to run this invocation, usable to spawn
// further subtasks and wait on them.
//
// Parse returns 127 iff it does not recognize args[0]; any other code
// (including 0) counts as "handled", and no parser further down the chain
// is tried.
type Parser interface {
	Help() []HelpEntry
	Parse(self executor.TaskID, args []string) suspend.Awaitable[int8]
}

// notFound is the sentinel exit code meaning "not my command".
const notFound int8 = 127
