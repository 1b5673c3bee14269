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

package errors_test

import (
	"errors"
	"testing"
	"time"

	wardenerrors "github.com/tombee/warden/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *wardenerrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &wardenerrors.ValidationError{
				Field:   "port",
				Message: "must be between 1024 and 65535",
				Hint:    "Pick an unprivileged port",
			},
			wantMsg: "validation failed on port: must be between 1024 and 65535",
		},
		{
			name: "without field",
			err: &wardenerrors.ValidationError{
				Message: "invalid format",
			},
			wantMsg: "validation failed: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestValidationError_UserVisible(t *testing.T) {
	err := &wardenerrors.ValidationError{
		Field:   "port",
		Message: "must be between 1024 and 65535",
		Hint:    "Pick an unprivileged port",
	}

	var visible wardenerrors.UserVisibleError = err
	if !visible.IsUserVisible() {
		t.Error("validation errors should be user visible")
	}
	if visible.UserMessage() != "must be between 1024 and 65535" {
		t.Errorf("UserMessage() = %q", visible.UserMessage())
	}
	if visible.Suggestion() != "Pick an unprivileged port" {
		t.Errorf("Suggestion() = %q", visible.Suggestion())
	}
}

func TestNotFoundError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *wardenerrors.NotFoundError
		wantMsg string
	}{
		{
			name:    "with id",
			err:     &wardenerrors.NotFoundError{Resource: "log file", ID: "worker-2025-03-07.log"},
			wantMsg: "log file not found: worker-2025-03-07.log",
		},
		{
			name:    "without id",
			err:     &wardenerrors.NotFoundError{Resource: "worker"},
			wantMsg: "worker not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("NotFoundError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	cause := errors.New("yaml: line 3: mapping values are not allowed")
	err := &wardenerrors.ConfigError{
		Key:    "config_file",
		Reason: "failed to parse",
		Cause:  cause,
	}

	if got := err.Error(); got != "config error at config_file: failed to parse" {
		t.Errorf("ConfigError.Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("ConfigError should unwrap to its cause")
	}

	bare := &wardenerrors.ConfigError{Reason: "empty config"}
	if got := bare.Error(); got != "config error: empty config" {
		t.Errorf("ConfigError.Error() = %q", got)
	}
}

func TestTimeoutError(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &wardenerrors.TimeoutError{
		Operation: "worker readiness",
		Duration:  10 * time.Second,
		Hint:      "Check the worker log for startup failures",
		Cause:     cause,
	}

	if got := err.Error(); got != "worker readiness timed out after 10s" {
		t.Errorf("TimeoutError.Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("TimeoutError should unwrap to its cause")
	}
	if err.Suggestion() != "Check the worker log for startup failures" {
		t.Errorf("Suggestion() = %q", err.Suggestion())
	}
}
