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

// Package bootconfig parses the boot-time configuration shared by every
// hosted board binary: which board kind to install, the console prompt,
// history depth, and log level. It mirrors runsc/config's house style —
// a RegisterFlags(*flag.FlagSet) function filling in a Config — with an
// optional TOML file layered on top for settings not worth a flag.
package bootconfig

import (
	"flag"
	"fmt"

	"github.com/BurntSushi/toml"
)

// BoardKind selects which internal/board implementation to install.
type BoardKind string

const (
	BoardHost BoardKind = "host"
	BoardPty  BoardKind = "pty"
	BoardUart BoardKind = "uart"
)

// Config holds every boot-time setting. Zero value is a usable set of
// defaults once passed through RegisterFlags.
type Config struct {
	Board           string `toml:"board"`
	Prompt          string `toml:"prompt"`
	HistoryCapacity int    `toml:"history_capacity"`
	LogLevel        string `toml:"log_level"`

	UartDevice string `toml:"uart_device"`
	UartBaud   int    `toml:"uart_baud"`

	ConfigFile string `toml:"-"`
}

// RegisterFlags registers flags used to populate Config, returning the
// Config they fill in. Call flag.Parse (or parse fs directly) afterward.
func RegisterFlags(fs *flag.FlagSet) *Config {
	cfg := &Config{}
	fs.StringVar(&cfg.Board, "board", string(BoardHost), "board to install: host, pty, or uart.")
	fs.StringVar(&cfg.Prompt, "prompt", "> ", "console prompt string.")
	fs.IntVar(&cfg.HistoryCapacity, "history-capacity", 10, "number of lines of command history to retain.")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, or error.")
	fs.StringVar(&cfg.UartDevice, "uart-device", "/dev/ttyUSB0", "serial device path, used only when -board=uart.")
	fs.IntVar(&cfg.UartBaud, "uart-baud", 115200, "serial baud rate, used when -board=uart or -board=pty.")
	fs.StringVar(&cfg.ConfigFile, "config", "", "optional TOML file overlaying these flags.")
	return cfg
}

// LoadOverlay decodes cfg.ConfigFile, if set, over cfg. Only keys present
// in the file are touched; flags (or their defaults) stand for everything
// else, so a config file only needs to mention what it changes.
func (c *Config) LoadOverlay() error {
	if c.ConfigFile == "" {
		return nil
	}
	if _, err := toml.DecodeFile(c.ConfigFile, c); err != nil {
		return fmt.Errorf("bootconfig: decoding %s: %w", c.ConfigFile, err)
	}
	return nil
}

// BoardKindValue returns c.Board as a validated BoardKind, or an error if it
// names something this runtime does not know how to install.
func (c *Config) BoardKindValue() (BoardKind, error) {
	switch BoardKind(c.Board) {
	case BoardHost, BoardPty, BoardUart:
		return BoardKind(c.Board), nil
	default:
		return "", fmt.Errorf("bootconfig: unknown board kind %q", c.Board)
	}
}
