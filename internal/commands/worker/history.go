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
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/warden/internal/commands/shared"
	"github.com/tombee/warden/internal/history"
	"github.com/tombee/warden/internal/supervisor"
)

// History command flags
var historyLimit int

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent worker lifecycle events",
		Long: `Show the most recent lifecycle transitions: starts, stops, failures,
and stale-state cleanups, newest first. Events are kept in a local
database under the data directory.`,
		Example: `  # Last 20 events
  warden history

  # Last 100 events as JSON
  warden history --limit 100 --json`,
		RunE: runHistory,
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of events to show")

	return cmd
}

type historyEvent struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	PID       int    `json:"pid,omitempty"`
	Port      int    `json:"port,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type historyResponse struct {
	shared.JSONResponse
	Events []historyEvent `json:"events"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Supervisor.History {
		cmd.Println(shared.Muted.Render("history is disabled in config"))
		return nil
	}

	store, err := history.New(history.Config{Path: cfg.Supervisor.HistoryPath()})
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	events, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if shared.GetJSON() {
		resp := historyResponse{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "history", Success: true},
			Events:       make([]historyEvent, 0, len(events)),
		}
		for _, ev := range events {
			resp.Events = append(resp.Events, historyEvent{
				Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
				Event:     ev.Name,
				PID:       ev.PID,
				Port:      ev.Port,
				Detail:    ev.Detail,
			})
		}
		return shared.EmitJSON(resp)
	}

	if len(events) == 0 {
		cmd.Println(shared.Muted.Render("no events recorded yet"))
		return nil
	}

	for _, ev := range events {
		line := fmt.Sprintf("%s  %s pid=%-7d port=%d",
			shared.Muted.Render(ev.Timestamp.Local().Format("2006-01-02 15:04:05")),
			renderEventName(ev.Name), ev.PID, ev.Port)
		if ev.Detail != "" {
			line += "  " + shared.Muted.Render(ev.Detail)
		}
		cmd.Println(line)
	}
	return nil
}

// renderEventName colors an event name by how much attention it deserves.
// Padding happens before styling so the escape codes do not skew column
// alignment.
func renderEventName(name string) string {
	padded := fmt.Sprintf("%-19s", name)
	switch name {
	case supervisor.EventStarted, supervisor.EventStopped:
		return shared.StatusOK.Render(padded)
	case supervisor.EventStartFailed, supervisor.EventStopFailed:
		return shared.StatusError.Render(padded)
	case supervisor.EventStopForced, supervisor.EventStaleCleaned:
		return shared.StatusWarn.Render(padded)
	default:
		return padded
	}
}
