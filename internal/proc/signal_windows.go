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

//go:build windows

package proc

import (
	"os"
	"os/exec"
	"strconv"
)

// Alive reports whether a process with the given pid exists. Signal 0 is
// not supported on Windows, so this relies on FindProcess opening a handle,
// which fails once the process is gone.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}

// Terminate requests termination via taskkill. Without /F Windows delivers a
// close request, giving console handlers a chance to run. With tree set the
// whole process tree is addressed, which is required to free listening
// sockets held by wrapper-spawned descendants.
func Terminate(pid int, tree bool) error {
	return taskkill(pid, tree, false)
}

// Kill forcibly terminates the process (and its tree when requested).
func Kill(pid int, tree bool) error {
	return taskkill(pid, tree, true)
}

func taskkill(pid int, tree, force bool) error {
	args := []string{"/PID", strconv.Itoa(pid)}
	if tree {
		args = append(args, "/T")
	}
	if force {
		args = append(args, "/F")
	}
	return exec.Command("taskkill", args...).Run()
}
