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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/mlabonne/simplistic-os/internal/board"
	"github.com/mlabonne/simplistic-os/internal/board/hostboard"
	"github.com/mlabonne/simplistic-os/internal/board/ptyboard"
	"github.com/mlabonne/simplistic-os/internal/board/uartboard"
	"github.com/mlabonne/simplistic-os/internal/bootconfig"
	"github.com/mlabonne/simplistic-os/internal/commands"
	"github.com/mlabonne/simplistic-os/internal/console"
	"github.com/mlabonne/simplistic-os/internal/executor"
	"github.com/mlabonne/simplistic-os/internal/logging"
)

// runCmd implements subcommands.Command for the "run" verb: install a
// board, construct an executor, and run the console task to completion.
type runCmd struct {
	cfg *bootconfig.Config
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "boot a board and run the console" }
func (*runCmd) Usage() string {
	return "run [flags]\n\tBoots the selected board and runs the console until reset or killed.\n"
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	r.cfg = bootconfig.RegisterFlags(f)
}

func (r *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if err := r.cfg.LoadOverlay(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	logging.SetLevel(r.cfg.LogLevel)

	kind, err := r.cfg.BoardKindValue()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	b, err := installBoard(kind, r.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	board.Init(b)
	defer func() {
		if err := board.Close(); err != nil {
			logging.Warningf("simosctl: closing board: %v", err)
		}
	}()

	executor.PanicHook = func(msg string) {
		board.CpuDriver().Panic(msg)
	}

	exec := executor.New()
	cons := console.New(exec, r.cfg.Prompt, r.cfg.HistoryCapacity)
	cons.AddCommands(commands.New(exec))
	exec.Spawn("console", cons.Step)
	exec.Run()

	return subcommands.ExitSuccess
}

// installBoard constructs the concrete board.Board for kind, opening
// whatever host resource backs it.
func installBoard(kind bootconfig.BoardKind, cfg *bootconfig.Config) (board.Board, error) {
	switch kind {
	case bootconfig.BoardHost:
		return hostboard.New()
	case bootconfig.BoardPty:
		b, err := ptyboard.New(cfg.UartBaud)
		if err != nil {
			return nil, err
		}
		logging.Infof("simosctl: pty slave at %s", b.SlavePath())
		return b, nil
	case bootconfig.BoardUart:
		return uartboard.Open(cfg.UartDevice, cfg.UartBaud)
	default:
		return nil, fmt.Errorf("simosctl: unhandled board kind %q", kind)
	}
}
