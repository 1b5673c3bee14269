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
	"os"

	"github.com/tombee/warden/internal/cli"
	versioncmd "github.com/tombee/warden/internal/commands/version"
	workercmd "github.com/tombee/warden/internal/commands/worker"
	"github.com/tombee/warden/internal/launcher"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// The hidden launch-helper mode runs before any cobra processing.
	// It is how wrapper launches re-invoke this binary to do the spawn.
	if launcher.IsHelperInvocation(os.Args[1:]) {
		os.Exit(launcher.RunHelper(os.Args[2:], os.Stdout, os.Stderr))
	}

	// Normal CLI mode
	// Set version information from build-time ldflags
	cli.SetVersion(version, commit, buildDate)

	// Create root command and add subcommands
	rootCmd := cli.NewRootCommand()

	// Worker lifecycle commands
	rootCmd.AddCommand(workercmd.NewStartCommand())
	rootCmd.AddCommand(workercmd.NewStopCommand())
	rootCmd.AddCommand(workercmd.NewRestartCommand())
	rootCmd.AddCommand(workercmd.NewStatusCommand())

	// Observation commands
	rootCmd.AddCommand(workercmd.NewLogsCommand())
	rootCmd.AddCommand(workercmd.NewHistoryCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
