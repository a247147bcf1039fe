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

// Package logging provides the structured logger used across every layer
// of the runtime, mirroring the Infof/Warningf/Debugf/Errorf call shape of
// gVisor's internal pkg/log package but backed by a real third-party
// logger instead of an in-tree one.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.Mutex
	log = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel parses level (e.g. "debug", "info", "warn", "error") and applies
// it to the package logger. An unrecognized level leaves the current level
// untouched.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(lvl)
}

// SetOutput redirects where log lines are written. Tests commonly point
// this at a bytes.Buffer to assert on log content.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
}

// Reset restores the package logger to its default configuration
// (info level, text format, stderr). Intended for test isolation.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	log = newDefault()
	log.SetOutput(os.Stderr)
}

func Debugf(format string, args ...any) {
	mu.Lock()
	l := log
	mu.Unlock()
	l.Debugf(format, args...)
}

func Infof(format string, args ...any) {
	mu.Lock()
	l := log
	mu.Unlock()
	l.Infof(format, args...)
}

func Warningf(format string, args ...any) {
	mu.Lock()
	l := log
	mu.Unlock()
	l.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	mu.Lock()
	l := log
	mu.Unlock()
	l.Errorf(format, args...)
}
