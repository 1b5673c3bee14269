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

	"github.com/spf13/cobra"
	"github.com/tombee/warden/internal/commands/shared"
	"github.com/tombee/warden/internal/supervisor"
)

// Restart command flags
var restartPort int

// NewRestartCommand creates the restart command
func NewRestartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background worker",
		Long: `Stop the background worker and start a fresh instance. The new worker
gets a new pid; nothing of the old instance carries over.`,
		Example: `  # Restart on the configured port
  warden restart

  # Restart on a different port
  warden restart --port 9300`,
		RunE: runRestart,
	}

	cmd.Flags().IntVar(&restartPort, "port", 0, "Port for the new worker (default: from config)")

	return cmd
}

func runRestart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sup, cleanup, err := buildSupervisor(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	port := cfg.Worker.Port
	if restartPort != 0 {
		port = restartPort
	}

	res, err := sup.Restart(port)
	if err != nil {
		switch {
		case errors.Is(err, supervisor.ErrPortOutOfRange):
			return shared.NewInvalidArgsError("invalid port", err)
		case errors.Is(err, supervisor.ErrLockContended):
			return shared.NewContendedError("another process is starting the worker", err)
		default:
			return shared.NewStartFailedError("failed to restart worker", err)
		}
	}

	if shared.GetJSON() {
		return shared.EmitJSON(startResponse{
			JSONResponse:   shared.JSONResponse{Version: "1.0", Command: "restart", Success: true},
			PID:            res.PID,
			Port:           res.Port,
			AlreadyRunning: res.AlreadyRunning,
		})
	}

	cmd.Println(shared.RenderOK(fmt.Sprintf("worker restarted (pid %d, port %d)", res.PID, res.Port)))
	return nil
}
