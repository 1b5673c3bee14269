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

package launcher

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// HelperArg selects the hidden launch-helper mode. main checks for it
// before any command parsing; it is not a registered subcommand and never
// shows up in help output.
const HelperArg = "__launch-helper"

// IsHelperInvocation reports whether argv selects the helper mode.
func IsHelperInvocation(args []string) bool {
	return len(args) > 0 && args[0] == HelperArg
}

// RunHelper performs the spawn half of a wrapper launch: start the worker
// detached, print its pid on stdout, exit. The pid is the only thing ever
// written to stdout; diagnostics go to stderr. The returned code is the
// process exit code.
func RunHelper(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(HelperArg, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	script := fs.String("script", "", "worker entry point")
	interpreter := fs.String("interpreter", "", "program running the script")
	port := fs.Int("port", 0, "worker listening port")
	logPath := fs.String("log", "", "worker log file")
	env := fs.StringArray("env", nil, "extra KEY=VALUE for the worker environment")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if *script == "" || *logPath == "" || *port <= 0 {
		fmt.Fprintln(stderr, "launch helper requires --script, --port and --log")
		return 2
	}

	command := []string{*script}
	if *interpreter != "" {
		command = []string{*interpreter, *script}
	}

	pid, err := spawnDetached(command, buildEnv(*port, *env), *logPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	fmt.Fprintln(stdout, pid)
	return 0
}
