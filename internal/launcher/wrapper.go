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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// helperTimeout bounds the helper round trip. The helper only forks and
// prints a pid; seconds of silence mean something is wrong.
const helperTimeout = 15 * time.Second

// Wrapper launches the worker through a hidden re-invocation of this
// binary. The intermediary performs the actual spawn and reports the real
// worker pid on stdout, so the supervisor never records the middleman.
type Wrapper struct {
	base
	executable func() (string, error)
}

// NewWrapper creates the wrapper-spawn launcher.
func NewWrapper(cfg Config) *Wrapper {
	return &Wrapper{base: newBase(cfg), executable: os.Executable}
}

// WithExecutable overrides which binary hosts the helper mode. Tests point
// it at themselves.
func (w *Wrapper) WithExecutable(fn func() (string, error)) *Wrapper {
	w.executable = fn
	return w
}

// Launch starts the worker via the helper, records it, and waits for
// readiness.
func (w *Wrapper) Launch(spec LaunchSpec) (int, error) {
	if err := w.validate(spec); err != nil {
		return 0, err
	}

	exe, err := w.executable()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve own executable: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), helperTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, exe, helperArgs(spec, w.logPath(spec))...)
	cmd.SysProcAttr = hiddenAttr()
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return 0, fmt.Errorf("launch helper failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("launch helper failed: %w", err)
	}

	pid, err := parseHelperPID(out)
	if err != nil {
		return 0, err
	}
	w.logger.Debug("worker spawned via helper",
		slog.Int("pid", pid),
		slog.String("script", spec.Script))

	if err := w.confirm(pid, spec); err != nil {
		return 0, err
	}
	return pid, nil
}

// helperArgs flattens a launch spec into the hidden helper's argv.
func helperArgs(spec LaunchSpec, logPath string) []string {
	args := []string{
		HelperArg,
		"--script", spec.Script,
		"--port", strconv.Itoa(spec.Port),
		"--log", logPath,
	}
	if spec.Interpreter != "" {
		args = append(args, "--interpreter", spec.Interpreter)
	}
	for _, kv := range spec.Env {
		args = append(args, "--env", kv)
	}
	return args
}

// parseHelperPID extracts the pid from the helper's stdout. The pid is the
// last whitespace-separated token, so stray output earlier in the stream
// cannot corrupt it.
func parseHelperPID(out []byte) (int, error) {
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return 0, errors.New("launch helper reported no pid")
	}
	last := fields[len(fields)-1]
	pid, err := strconv.Atoi(last)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("launch helper reported invalid pid %q", last)
	}
	return pid, nil
}
