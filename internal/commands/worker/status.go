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

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the worker is running",
		Long: `Show the worker's current state: pid, port, uptime, and the version
that started it. A worker whose process has died reads as not running.`,
		Example: `  # Human readable status
  warden status

  # Machine readable status
  warden status --json`,
		RunE: runStatus,
	}

	return cmd
}

type statusResponse struct {
	shared.JSONResponse
	Running   bool   `json:"running"`
	PID       int    `json:"pid,omitempty"`
	Port      int    `json:"port,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	UptimeSec int64  `json:"uptime_seconds,omitempty"`
	Uptime    string `json:"uptime,omitempty"`
	Worker    string `json:"version,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sup, cleanup, err := buildSupervisor(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	st := sup.Status()

	if shared.GetJSON() {
		resp := statusResponse{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "status", Success: true},
			Running:      st.Running,
		}
		if st.Running {
			resp.PID = st.PID
			resp.Port = st.Port
			resp.StartedAt = st.StartedAt.UTC().Format(time.RFC3339)
			resp.UptimeSec = int64(st.Uptime.Seconds())
			resp.Uptime = st.Uptime.Round(time.Second).String()
			resp.Worker = st.Version
		}
		return shared.EmitJSON(resp)
	}

	if !st.Running {
		cmd.Println(shared.RenderStatus(false, "STOPPED") + " worker not running")
		return nil
	}

	cmd.Println(shared.RenderStatus(true, "RUNNING") + " worker")
	cmd.Printf("  %s %d\n", shared.RenderLabel("pid:"), st.PID)
	cmd.Printf("  %s %d\n", shared.RenderLabel("port:"), st.Port)
	cmd.Printf("  %s %s\n", shared.RenderLabel("uptime:"), st.Uptime.Round(time.Second))
	if st.Version != "" {
		cmd.Printf("  %s %s\n", shared.RenderLabel("version:"), st.Version)
	}
	cmd.Printf("  %s %s\n", shared.RenderLabel("started:"), st.StartedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}
