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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// envKeys are all the variables FromEnv consults.
var envKeys = []string{"WARDEN_DEBUG", "WARDEN_LOG_LEVEL", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE"}

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, vars[key])
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}
	if cfg.Format != FormatJSON {
		t.Errorf("expected default format 'json', got %q", cfg.Format)
	}
	if cfg.Output != os.Stderr {
		t.Errorf("expected default output to be os.Stderr")
	}
	if cfg.AddSource {
		t.Errorf("expected default AddSource to be false")
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected *Config
	}{
		{
			name:    "defaults when no env vars",
			envVars: map[string]string{},
			expected: &Config{
				Level:  "info",
				Format: FormatJSON,
			},
		},
		{
			name: "LOG_LEVEL=debug",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			expected: &Config{
				Level:  "debug",
				Format: FormatJSON,
			},
		},
		{
			name: "LOG_LEVEL=DEBUG (case insensitive)",
			envVars: map[string]string{
				"LOG_LEVEL": "DEBUG",
			},
			expected: &Config{
				Level:  "debug",
				Format: FormatJSON,
			},
		},
		{
			name: "WARDEN_LOG_LEVEL takes precedence over LOG_LEVEL",
			envVars: map[string]string{
				"WARDEN_LOG_LEVEL": "error",
				"LOG_LEVEL":        "debug",
			},
			expected: &Config{
				Level:  "error",
				Format: FormatJSON,
			},
		},
		{
			name: "WARDEN_DEBUG enables debug and source",
			envVars: map[string]string{
				"WARDEN_DEBUG":     "1",
				"WARDEN_LOG_LEVEL": "error",
			},
			expected: &Config{
				Level:     "debug",
				Format:    FormatJSON,
				AddSource: true,
			},
		},
		{
			name: "LOG_FORMAT=text",
			envVars: map[string]string{
				"LOG_FORMAT": "text",
			},
			expected: &Config{
				Level:  "info",
				Format: FormatText,
			},
		},
		{
			name: "LOG_SOURCE=1",
			envVars: map[string]string{
				"LOG_SOURCE": "1",
			},
			expected: &Config{
				Level:     "info",
				Format:    FormatJSON,
				AddSource: true,
			},
		},
		{
			name: "all env vars",
			envVars: map[string]string{
				"LOG_LEVEL":  "error",
				"LOG_FORMAT": "text",
				"LOG_SOURCE": "1",
			},
			expected: &Config{
				Level:     "error",
				Format:    FormatText,
				AddSource: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.envVars)

			cfg := FromEnv()

			if cfg.Level != tt.expected.Level {
				t.Errorf("Level = %q, want %q", cfg.Level, tt.expected.Level)
			}
			if cfg.Format != tt.expected.Format {
				t.Errorf("Format = %q, want %q", cfg.Format, tt.expected.Format)
			}
			if cfg.AddSource != tt.expected.AddSource {
				t.Errorf("AddSource = %v, want %v", cfg.AddSource, tt.expected.AddSource)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("json format produces valid JSON", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

		logger.Info("test message", "key", "value")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
		}
		if entry["msg"] != "test message" {
			t.Errorf("msg = %v, want 'test message'", entry["msg"])
		}
		if entry["key"] != "value" {
			t.Errorf("key = %v, want 'value'", entry["key"])
		}
	})

	t.Run("text format is human readable", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&Config{Level: "info", Format: FormatText, Output: &buf})

		logger.Info("test message", "key", "value")

		out := buf.String()
		if !strings.Contains(out, "test message") || !strings.Contains(out, "key=value") {
			t.Errorf("unexpected text output: %s", out)
		}
	})

	t.Run("level filters lower levels", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&Config{Level: "warn", Format: FormatJSON, Output: &buf})

		logger.Info("should not appear")
		logger.Warn("should appear")

		out := buf.String()
		if strings.Contains(out, "should not appear") {
			t.Error("info message logged despite warn level")
		}
		if !strings.Contains(out, "should appear") {
			t.Error("warn message missing")
		}
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		logger := New(nil)
		if logger == nil {
			t.Fatal("New(nil) returned nil")
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithComponent(logger, "supervisor").Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry[ComponentKey] != "supervisor" {
		t.Errorf("component = %v, want 'supervisor'", entry[ComponentKey])
	}
}

func TestWithWorker(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithWorker(logger, 4321, 8787).Info("worker ready")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry[PIDKey] != float64(4321) {
		t.Errorf("pid = %v, want 4321", entry[PIDKey])
	}
	if entry[PortKey] != float64(8787) {
		t.Errorf("port = %v, want 8787", entry[PortKey])
	}
}

func TestAttrHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger.LogAttrs(nil, slog.LevelInfo, "attrs",
		String("s", "v"),
		Int("i", 7),
		Bool("b", true),
		Error(errors.New("boom")),
		Duration("elapsed", 42),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["s"] != "v" || entry["i"] != float64(7) || entry["b"] != true {
		t.Errorf("unexpected attrs: %v", entry)
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want 'boom'", entry["error"])
	}
	if entry["elapsed_ms"] != float64(42) {
		t.Errorf("elapsed_ms = %v, want 42", entry["elapsed_ms"])
	}
}

func TestTrace(t *testing.T) {
	t.Run("suppressed at debug level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&Config{Level: "debug", Format: FormatJSON, Output: &buf})

		Trace(logger, "hidden")

		if buf.Len() != 0 {
			t.Errorf("trace message logged at debug level: %s", buf.String())
		}
	})

	t.Run("emitted at trace level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&Config{Level: "trace", Format: FormatJSON, Output: &buf})

		Trace(logger, "visible", String("k", "v"))

		if !strings.Contains(buf.String(), "visible") {
			t.Errorf("trace message missing: %s", buf.String())
		}
	})
}
