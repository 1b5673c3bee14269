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

package shared

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/tombee/warden/pkg/errors"
)

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{Code: ExitFailure, Message: "stop failed"}
	if err.Error() != "stop failed" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	withCause := &ExitError{Code: ExitFailure, Message: "stop failed", Cause: errors.New("no such process")}
	if withCause.Error() != "stop failed: no such process" {
		t.Errorf("unexpected message: %q", withCause.Error())
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	sentinel := errors.New("root cause")
	err := NewStartFailedError("worker never became ready", fmt.Errorf("probing: %w", sentinel))

	if !errors.Is(err, sentinel) {
		t.Error("expected errors.Is to reach the cause through the chain")
	}
}

func TestConstructorsSetCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *ExitError
		code int
	}{
		{"invalid args", NewInvalidArgsError("bad port", nil), ExitInvalidArgs},
		{"contended", NewContendedError("lock held", nil), ExitContended},
		{"start failed", NewStartFailedError("never ready", nil), ExitStartFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, tt.err.Code)
			}
		})
	}
}

func TestSuggestionReachableThroughChain(t *testing.T) {
	cause := &pkgerrors.ValidationError{
		Field:   "worker.port",
		Message: "must be between 1024 and 65535",
		Hint:    "Pick an unprivileged port, e.g. 8787",
	}
	err := NewInvalidArgsError("invalid port", fmt.Errorf("checking flags: %w", cause))

	var userErr pkgerrors.UserVisibleError
	if !errors.As(err, &userErr) {
		t.Fatal("expected a UserVisibleError in the chain")
	}
	if !userErr.IsUserVisible() {
		t.Error("validation errors should be user visible")
	}
	if userErr.Suggestion() != "Pick an unprivileged port, e.g. 8787" {
		t.Errorf("unexpected suggestion: %q", userErr.Suggestion())
	}
}
