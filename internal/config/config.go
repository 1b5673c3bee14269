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

// Package config loads and validates warden configuration from YAML
// files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	wardenerrors "github.com/tombee/warden/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Port bounds accepted for the worker. Privileged ports are rejected.
const (
	MinPort = 1024
	MaxPort = 65535
)

// DefaultPort is the worker port used when none is configured.
const DefaultPort = 8787

// Config represents the complete warden configuration.
type Config struct {
	Worker     WorkerConfig     `yaml:"worker"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerConfig describes the process being supervised.
type WorkerConfig struct {
	// Script is the worker entry point.
	// Environment: WARDEN_WORKER_SCRIPT
	Script string `yaml:"script,omitempty"`

	// Interpreter optionally names the program that runs Script
	// (e.g. "node", "python3"). Empty runs Script directly.
	// Environment: WARDEN_WORKER_INTERPRETER
	Interpreter string `yaml:"interpreter,omitempty"`

	// Port is the port the worker serves on.
	// Environment: WARDEN_PORT
	// Default: 8787
	Port int `yaml:"port,omitempty"`

	// Env holds extra KEY=VALUE pairs passed to the worker.
	Env []string `yaml:"env,omitempty"`
}

// SupervisorConfig tunes lifecycle management.
type SupervisorConfig struct {
	// DataDir holds the lock file, state file, worker logs, and history.
	// Environment: WARDEN_DATA_DIR
	// Default: $XDG_DATA_HOME/warden or ~/.warden/data
	DataDir string `yaml:"data_dir,omitempty"`

	// ReadyTimeout bounds the wait for worker readiness after a launch.
	// Zero selects the platform default.
	// Environment: WARDEN_READY_TIMEOUT
	ReadyTimeout time.Duration `yaml:"ready_timeout,omitempty"`

	// StopTimeout is the grace period before a stop escalates to a kill.
	// Zero keeps the built-in default.
	// Environment: WARDEN_STOP_TIMEOUT
	StopTimeout time.Duration `yaml:"stop_timeout,omitempty"`

	// LockStale is how old a startup lock may grow before it is presumed
	// abandoned. Zero keeps the built-in default.
	LockStale time.Duration `yaml:"lock_stale,omitempty"`

	// History records lifecycle events to a local database.
	// Default: true
	History bool `yaml:"history"`
}

// LogConfig configures CLI and supervisor logging.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty"`

	// Format is the log format (text, json).
	Format string `yaml:"format,omitempty"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			Port: DefaultPort,
		},
		Supervisor: SupervisorConfig{
			DataDir: defaultDataDir(),
			History: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given path, falling back to defaults
// when the path is empty or the file does not exist. Environment
// variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &wardenerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &wardenerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from the standard config path if one
// exists, otherwise returns defaults with environment overrides applied.
func LoadDefault() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Load("")
	}
	if _, err := os.Stat(path); err != nil {
		return Load("")
	}
	return Load(path)
}

// applyDefaults fills in zero values with sensible defaults. This allows
// minimal configs (e.g. just a script) to work without specifying all
// fields explicitly.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Worker.Port == 0 {
		c.Worker.Port = defaults.Worker.Port
	}
	if c.Supervisor.DataDir == "" {
		c.Supervisor.DataDir = defaults.Supervisor.DataDir
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("WARDEN_WORKER_SCRIPT"); val != "" {
		c.Worker.Script = val
	}
	if val := os.Getenv("WARDEN_WORKER_INTERPRETER"); val != "" {
		c.Worker.Interpreter = val
	}
	if val := os.Getenv("WARDEN_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Worker.Port = port
		}
	}

	if val := os.Getenv("WARDEN_DATA_DIR"); val != "" {
		c.Supervisor.DataDir = val
	}
	if val := os.Getenv("WARDEN_READY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Supervisor.ReadyTimeout = d
		}
	}
	if val := os.Getenv("WARDEN_STOP_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Supervisor.StopTimeout = d
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Worker.Port < MinPort || c.Worker.Port > MaxPort {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, &wardenerrors.ValidationError{
			Field:   "worker.port",
			Message: fmt.Sprintf("port %d outside [%d, %d]", c.Worker.Port, MinPort, MaxPort),
			Hint:    "Pick an unprivileged port, e.g. 8787",
		})
	}
	for _, kv := range c.Worker.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, &wardenerrors.ValidationError{
				Field:   "worker.env",
				Message: fmt.Sprintf("entry %q is not KEY=VALUE", kv),
			})
		}
	}
	if c.Supervisor.ReadyTimeout < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, &wardenerrors.ValidationError{
			Field:   "supervisor.ready_timeout",
			Message: "must not be negative",
		})
	}
	if c.Supervisor.StopTimeout < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, &wardenerrors.ValidationError{
			Field:   "supervisor.stop_timeout",
			Message: "must not be negative",
		})
	}
	if c.Supervisor.LockStale < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, &wardenerrors.ValidationError{
			Field:   "supervisor.lock_stale",
			Message: "must not be negative",
		})
	}
	return nil
}

// HistoryPath returns the lifecycle event database path.
func (c *SupervisorConfig) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	// Use XDG_DATA_HOME if available
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "warden")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "warden-data")
	}

	return filepath.Join(homeDir, ".warden", "data")
}
