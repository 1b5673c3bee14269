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
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandLine returns the image name of the process. tasklist does not
// expose full argv, so callers matching against it should compare program
// names rather than script paths.
func CommandLine(pid int) (string, error) {
	out, err := exec.Command("tasklist", "/FI", "PID eq "+strconv.Itoa(pid), "/FO", "CSV", "/NH").Output()
	if err != nil {
		return "", fmt.Errorf("failed to read command line for pid %d: %w", pid, err)
	}
	line := strings.TrimSpace(string(out))
	// CSV row: "image.exe","1234","Console",...
	fields := strings.Split(line, ",")
	if len(fields) == 0 || !strings.HasPrefix(fields[0], `"`) {
		return "", fmt.Errorf("no command line for pid %d", pid)
	}
	return strings.Trim(fields[0], `"`), nil
}
