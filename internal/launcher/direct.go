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

import "log/slog"

// Direct spawns the worker as an immediate detached child. This is the
// launch path everywhere a background console child is invisible.
type Direct struct {
	base
}

// NewDirect creates the direct-spawn launcher.
func NewDirect(cfg Config) *Direct {
	return &Direct{base: newBase(cfg)}
}

// Launch starts the worker, records it, and waits for readiness.
func (d *Direct) Launch(spec LaunchSpec) (int, error) {
	if err := d.validate(spec); err != nil {
		return 0, err
	}

	pid, err := spawnDetached(argv(spec), buildEnv(spec.Port, spec.Env), d.logPath(spec))
	if err != nil {
		return 0, err
	}
	d.logger.Debug("worker spawned",
		slog.Int("pid", pid),
		slog.String("script", spec.Script))

	if err := d.confirm(pid, spec); err != nil {
		return 0, err
	}
	return pid, nil
}
