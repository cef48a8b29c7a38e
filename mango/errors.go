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

package mango

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered is returned by every collection operation
	// until the collection is registered with a database.
	ErrNotRegistered = errors.New("mango: collection is not registered")

	// ErrNoDocuments is returned by FindOne when no document matches.
	// Find returns an empty slice and no error in that case.
	ErrNoDocuments = errors.New("mango: no documents matched")
)

// CommandError represents a command failure reported by the server.
type CommandError struct {
	Message string
	Name    string
	Code    int32
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("mango: command failed: %s (%d %s)", e.Message, e.Code, e.Name)
}

// WriteError represents a write failure reported by the server.
//
// It is returned by mutating operations only when the client
// is configured with StrictWrites.
type WriteError struct {
	Message string
	Code    int32
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("mango: write failed: %s (%d)", e.Message, e.Code)
}
