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

// Package launcher spawns worker processes and confirms they came up.
// Two variants exist behind one interface: Direct execs the worker as a
// detached child, Wrapper re-invokes this binary in a hidden helper mode
// on hosts where a spawned console would flash a window. Both persist the
// worker record before probing readiness, so a crash mid-startup still
// leaves enough state behind for later cleanup.
package launcher

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tombee/warden/internal/health"
	"github.com/tombee/warden/internal/platform"
	"github.com/tombee/warden/internal/proc"
	"github.com/tombee/warden/internal/state"
)

// PortEnvVar carries the assigned listening port into the worker.
const PortEnvVar = "WARDEN_WORKER_PORT"

// LaunchSpec describes one worker launch.
type LaunchSpec struct {
	// Script is the worker entry point on disk.
	Script string

	// Interpreter optionally names the program that runs Script. Empty
	// means Script is directly executable.
	Interpreter string

	// Port is the loopback port the worker must serve readiness on.
	Port int

	// Env holds extra KEY=VALUE pairs beyond the inherited environment.
	Env []string

	// LogDir receives the worker's combined output, one file per
	// calendar day, opened in append mode.
	LogDir string

	// ReadyTimeout bounds the wait for readiness. Zero selects the
	// platform default.
	ReadyTimeout time.Duration
}

// Launcher starts a worker and blocks until it is ready or provably not
// coming up. The returned pid is only meaningful on success.
type Launcher interface {
	Launch(spec LaunchSpec) (int, error)
}

// Config carries the collaborators shared by all launcher variants.
type Config struct {
	Store    *state.Store
	Prober   *health.Prober
	Version  string
	Logger   *slog.Logger
	Platform platform.Descriptor
}

// New returns the launcher variant matching the platform descriptor.
func New(cfg Config) Launcher {
	if cfg.Platform.WrapperSpawn {
		return NewWrapper(cfg)
	}
	return NewDirect(cfg)
}

// LogFileName returns the worker log file name for the given day.
func LogFileName(now time.Time) string {
	return "worker-" + now.Format("2006-01-02") + ".log"
}

type base struct {
	store   *state.Store
	prober  *health.Prober
	version string
	logger  *slog.Logger
	desc    platform.Descriptor
}

func newBase(cfg Config) base {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return base{
		store:   cfg.Store,
		prober:  cfg.Prober,
		version: cfg.Version,
		logger:  logger,
		desc:    cfg.Platform,
	}
}

func (b *base) validate(spec LaunchSpec) error {
	if spec.Script == "" {
		return fmt.Errorf("no worker script configured")
	}
	if _, err := os.Stat(spec.Script); err != nil {
		return fmt.Errorf("worker script not found: %s", spec.Script)
	}
	if spec.Port <= 0 {
		return fmt.Errorf("invalid worker port %d", spec.Port)
	}
	if spec.LogDir == "" {
		return fmt.Errorf("no log directory configured")
	}
	return nil
}

func (b *base) logPath(spec LaunchSpec) string {
	return filepath.Join(spec.LogDir, LogFileName(time.Now()))
}

func (b *base) readyTimeout(spec LaunchSpec) time.Duration {
	if spec.ReadyTimeout > 0 {
		return spec.ReadyTimeout
	}
	return health.DefaultReadyTimeout * time.Duration(b.desc.ReadyTimeoutScale)
}

// confirm records the spawned worker and waits for it to answer ready.
func (b *base) confirm(pid int, spec LaunchSpec) error {
	ws := state.WorkerState{
		PID:       pid,
		Port:      spec.Port,
		StartedAt: time.Now().UTC(),
		Version:   b.version,
	}
	if err := b.store.Write(ws); err != nil {
		// An unrecorded worker could never be stopped again. Take it
		// back down rather than leak it.
		if kerr := proc.Kill(pid, b.desc.KillTree); kerr != nil {
			b.logger.Warn("failed to kill unrecorded worker",
				slog.Int("pid", pid), slog.String("error", kerr.Error()))
		}
		return fmt.Errorf("failed to record worker state: %w", err)
	}

	if err := b.prober.WaitForReady(pid, spec.Port, b.readyTimeout(spec)); err != nil {
		// The record stays: the worker may still come up late, and the
		// next supervisor operation will reconcile either way.
		return err
	}

	b.logger.Info("worker ready",
		slog.Int("pid", pid),
		slog.Int("port", spec.Port))
	return nil
}

// argv assembles the worker command line.
func argv(spec LaunchSpec) []string {
	if spec.Interpreter != "" {
		return []string{spec.Interpreter, spec.Script}
	}
	return []string{spec.Script}
}

// buildEnv extends the inherited environment with the launch extras and
// the worker port.
func buildEnv(port int, extra []string) []string {
	env := append(os.Environ(), extra...)
	return append(env, fmt.Sprintf("%s=%d", PortEnvVar, port))
}
