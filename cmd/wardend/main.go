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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tombee/warden/internal/launcher"
	"github.com/tombee/warden/internal/log"
	"github.com/tombee/warden/internal/worker"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command line flags
	var (
		port        = flag.Int("port", 0, "Port to bind on 127.0.0.1 (default: $WARDEN_WORKER_PORT)")
		readyDelay  = flag.Duration("ready-delay", 0, "Report 'starting' for this long after boot")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("wardend %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Initialize structured logging from environment. Output goes to
	// stderr; the launcher redirects it into the daily log file.
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	// The supervisor hands the port over through the environment.
	if *port == 0 {
		if v := os.Getenv(launcher.PortEnvVar); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				logger.Error("invalid port in environment",
					slog.String("var", launcher.PortEnvVar),
					slog.String("value", v))
				os.Exit(1)
			}
			*port = p
		}
	}
	if *port == 0 {
		logger.Error("no port configured; pass --port or set " + launcher.PortEnvVar)
		os.Exit(1)
	}

	srv := worker.New(worker.Config{
		Port:       *port,
		Version:    version,
		ReadyDelay: *readyDelay,
		Logger:     logger,
	})

	// Run until SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Error("worker failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Graceful drain with a bounded window.
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		os.Exit(1)
	}
}
