// Copyright 2024 Mango Authors
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

// Package logging provides logging helpers.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/mangodb/mango/internal/util/lazyerrors"
)

// Levels returns a string with all supported log levels for usage messages.
func Levels() string {
	return strings.Join([]string{
		slog.LevelDebug.String(),
		slog.LevelInfo.String(),
		slog.LevelWarn.String(),
		slog.LevelError.String(),
	}, "', '")
}

// Error returns a slog.Attr for the given error.
func Error(err error) slog.Attr {
	if err == nil {
		panic("err must not be nil")
	}

	return slog.String("error", err.Error())
}

// ParseLevel parses a textual log level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, lazyerrors.Error(err)
	}

	return l, nil
}

// Setup returns a logger writing text records at the given level to w.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(h)
}
