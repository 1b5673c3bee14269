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

package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/warden/internal/commands/shared"
	"github.com/tombee/warden/internal/supervisor"
)

// Start command flags
var (
	startPort    int
	startTimeout time.Duration
)

// NewStartCommand creates the start command
func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the background worker",
		Long: `Start the background worker if it is not already running.

At most one worker runs system-wide. Starting an already running worker
succeeds and reports the existing instance. When another process is
starting the worker at the same time, this command waits for that start
to finish instead of launching a second worker.`,
		Example: `  # Start on the configured port
  warden start

  # Start on a specific port with a longer readiness window
  warden start --port 9200 --timeout 30s`,
		RunE: runStart,
	}

	cmd.Flags().IntVar(&startPort, "port", 0, "Port for the worker to listen on (default: from config)")
	cmd.Flags().DurationVar(&startTimeout, "timeout", 0, "How long to wait for worker readiness (default: from config)")

	return cmd
}

type startResponse struct {
	shared.JSONResponse
	PID            int  `json:"pid"`
	Port           int  `json:"port"`
	AlreadyRunning bool `json:"already_running"`
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if startTimeout > 0 {
		cfg.Supervisor.ReadyTimeout = startTimeout
	}

	sup, cleanup, err := buildSupervisor(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	port := cfg.Worker.Port
	if startPort != 0 {
		port = startPort
	}

	res, err := sup.Start(port)
	if err != nil {
		switch {
		case errors.Is(err, supervisor.ErrPortOutOfRange):
			return shared.NewInvalidArgsError("invalid port", err)
		case errors.Is(err, supervisor.ErrLockContended):
			return shared.NewContendedError("another process is starting the worker", err)
		default:
			return shared.NewStartFailedError("failed to start worker", err)
		}
	}

	if shared.GetJSON() {
		return shared.EmitJSON(startResponse{
			JSONResponse:   shared.JSONResponse{Version: "1.0", Command: "start", Success: true},
			PID:            res.PID,
			Port:           res.Port,
			AlreadyRunning: res.AlreadyRunning,
		})
	}

	if res.AlreadyRunning {
		cmd.Println(shared.RenderOK(fmt.Sprintf("worker already running (pid %d, port %d)", res.PID, res.Port)))
		return nil
	}
	cmd.Println(shared.RenderOK(fmt.Sprintf("worker started (pid %d, port %d)", res.PID, res.Port)))
	return nil
}
