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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tombee/warden/internal/commands/shared"
	"github.com/tombee/warden/internal/logtail"
	"github.com/tombee/warden/internal/supervisor"
	wardenerrors "github.com/tombee/warden/pkg/errors"
)

// Logs command flags
var (
	logsLines  int
	logsFollow bool
)

// NewLogsCommand creates the logs command
func NewLogsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the worker's log output",
		Long: `Print the tail of the newest worker log file. The worker writes one
log file per launch day under the data directory.

With --follow, keep streaming new log lines until interrupted.`,
		Example: `  # Last 50 lines
  warden logs

  # Last 200 lines, then keep following
  warden logs -n 200 -f`,
		RunE: runLogs,
	}

	cmd.Flags().IntVarP(&logsLines, "lines", "n", logtail.DefaultLines, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Keep streaming new log lines")

	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sup, err := supervisor.New(supervisor.Config{DataDir: cfg.Supervisor.DataDir})
	if err != nil {
		return err
	}

	path, err := logtail.LatestPath(sup.LogDir())
	if err != nil {
		var notFound *wardenerrors.NotFoundError
		if errors.As(err, &notFound) {
			cmd.Println(shared.Muted.Render("no worker logs yet"))
			return nil
		}
		return err
	}

	if !logsFollow {
		return logtail.Tail(os.Stdout, path, logsLines)
	}

	// Follow until the user interrupts.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return logtail.Follow(ctx, os.Stdout, path, logsLines)
}
