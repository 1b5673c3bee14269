// Copyright 2025 Tom Barlow
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

// Package state persists the record of the currently supervised worker.
// The record is advisory: the pid inside it must be re-verified against
// the process table before anyone acts on it.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidState indicates a record that should never be persisted.
var ErrInvalidState = errors.New("invalid worker state")

// WorkerState describes one spawned worker process.
type WorkerState struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// Store reads and writes the worker state file. Writes are plain
// truncate-and-write: the supervisor startup lock serializes writers, so
// the store itself takes no locks.
type Store struct {
	path string
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Write persists the record, creating the parent directory if needed.
func (s *Store) Write(ws WorkerState) error {
	if ws.PID <= 0 {
		return fmt.Errorf("%w: pid %d", ErrInvalidState, ws.PID)
	}
	if ws.Port <= 0 {
		return fmt.Errorf("%w: port %d", ErrInvalidState, ws.Port)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to encode worker state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Read returns the current record. ok is false when the file is absent,
// unreadable, unparsable, or fails basic validation; callers treat all of
// those identically as "no known worker".
func (s *Store) Read() (WorkerState, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return WorkerState{}, false
	}
	var ws WorkerState
	if err := json.Unmarshal(data, &ws); err != nil {
		return WorkerState{}, false
	}
	if ws.PID <= 0 || ws.Port <= 0 {
		return WorkerState{}, false
	}
	return ws, true
}

// Remove deletes the state file. A missing file is success.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
