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

// Package worker holds the CLI commands that drive the supervisor:
// start, stop, restart, status, logs, and history.
package worker

import (
	"log/slog"
	"os"

	"github.com/tombee/warden/internal/commands/shared"
	"github.com/tombee/warden/internal/config"
	"github.com/tombee/warden/internal/history"
	internallog "github.com/tombee/warden/internal/log"
	"github.com/tombee/warden/internal/supervisor"
)

// loadConfig resolves configuration from the --config flag or the
// default lookup chain.
func loadConfig() (*config.Config, error) {
	if path := shared.GetConfigPath(); path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

// newLogger builds the command logger from config, with --verbose
// forcing debug level.
func newLogger(cfg *config.Config) *slog.Logger {
	logCfg := &internallog.Config{
		Level:  cfg.Log.Level,
		Format: internallog.Format(cfg.Log.Format),
		Output: os.Stderr,
	}
	if shared.GetVerbose() {
		logCfg.Level = "debug"
	}
	return internallog.New(logCfg)
}

// buildSupervisor wires a supervisor from the loaded config. The
// returned cleanup closes the history store and must always be called.
func buildSupervisor(cfg *config.Config, logger *slog.Logger) (*supervisor.Supervisor, func(), error) {
	v, _, _ := shared.GetVersion()

	sup, err := supervisor.New(supervisor.Config{
		DataDir:      cfg.Supervisor.DataDir,
		Script:       cfg.Worker.Script,
		Interpreter:  cfg.Worker.Interpreter,
		Env:          cfg.Worker.Env,
		Version:      v,
		StaleAfter:   cfg.Supervisor.LockStale,
		ReadyTimeout: cfg.Supervisor.ReadyTimeout,
		StopTimeout:  cfg.Supervisor.StopTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if cfg.Supervisor.History {
		store, err := history.New(history.Config{Path: cfg.Supervisor.HistoryPath()})
		if err != nil {
			// Supervision works without the audit trail.
			logger.Warn("history store unavailable", internallog.Error(err))
		} else {
			sup.WithRecorder(store)
			cleanup = func() { store.Close() }
		}
	}

	return sup, cleanup, nil
}
