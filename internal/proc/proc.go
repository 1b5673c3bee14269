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

// Package proc wraps the OS-specific pieces of process inspection and
// termination: liveness checks, graceful and forced termination, and
// waiting for a pid to disappear.
package proc

import (
	"errors"
	"fmt"
	"time"

	"github.com/tombee/warden/internal/poll"
)

// ErrStillRunning indicates a process outlived the wait deadline.
var ErrStillRunning = errors.New("process still running")

// exitPollInterval is how often WaitForExit re-checks liveness.
const exitPollInterval = 100 * time.Millisecond

// forceExitWait bounds how long Shutdown waits after a forced kill.
const forceExitWait = 5 * time.Second

// WaitForExit blocks until the process is no longer alive or the timeout
// elapses, re-checking every 100ms. A timeout is reported as ErrStillRunning.
func WaitForExit(pid int, timeout time.Duration) error {
	err := poll.UntilTimeout(timeout, exitPollInterval, func() (bool, error) {
		return !Alive(pid), nil
	})
	if err != nil {
		return fmt.Errorf("process %d did not exit within %v: %w", pid, timeout, ErrStillRunning)
	}
	return nil
}

// Shutdown terminates a process gracefully, escalating to a forced kill if
// it does not exit within timeout. The returned flag reports whether the
// forced path was taken. tree extends termination to the whole process tree
// on platforms where orphaned children keep sockets open.
func Shutdown(pid int, timeout time.Duration, tree bool) (forced bool, err error) {
	if err := Terminate(pid, tree); err != nil {
		if !Alive(pid) {
			return false, nil
		}
		return false, fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	if err := WaitForExit(pid, timeout); err == nil {
		return false, nil
	}

	if err := Kill(pid, tree); err != nil {
		if !Alive(pid) {
			return true, nil
		}
		return true, fmt.Errorf("failed to kill process %d: %w", pid, err)
	}

	if err := WaitForExit(pid, forceExitWait); err != nil {
		return true, fmt.Errorf("process %d survived forced kill: %w", pid, err)
	}
	return true, nil
}
