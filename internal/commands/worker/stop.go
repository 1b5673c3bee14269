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
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/warden/internal/commands/shared"
)

// Stop command flags
var (
	stopTimeout time.Duration
	stopForce   bool
)

// NewStopCommand creates the stop command
func NewStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background worker",
		Long: `Stop the background worker, first asking it to exit gracefully and
escalating to a forced kill when it does not cooperate in time.

Stopping a worker that is not running succeeds and does nothing.`,
		Example: `  # Stop with the configured grace period
  warden stop

  # Give the worker a minute to drain
  warden stop --timeout 1m

  # Skip the grace period
  warden stop --force`,
		RunE: runStop,
	}

	cmd.Flags().DurationVar(&stopTimeout, "timeout", 0, "Grace period before a forced kill (default: from config)")
	cmd.Flags().BoolVar(&stopForce, "force", false, "Escalate to a forced kill immediately")

	return cmd
}

type stopResponse struct {
	shared.JSONResponse
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sup, cleanup, err := buildSupervisor(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	timeout := stopTimeout
	if stopForce {
		// A minimal grace period fails the first liveness check, so the
		// forced kill happens right away.
		timeout = time.Millisecond
	}

	if err := sup.Stop(timeout); err != nil {
		return &shared.ExitError{Code: shared.ExitFailure, Message: "failed to stop worker", Cause: err}
	}

	if shared.GetJSON() {
		return shared.EmitJSON(stopResponse{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "stop", Success: true},
		})
	}

	cmd.Println(shared.RenderOK("worker stopped"))
	return nil
}
