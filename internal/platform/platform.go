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

// Package platform describes the process-management capabilities of the
// host operating system. Launch and shutdown code branches on a capability
// descriptor rather than on runtime.GOOS so that behavior differences stay
// in one place and tests can exercise both shapes on any host.
package platform

import "runtime"

// Descriptor captures the host capabilities that change how workers are
// spawned, probed, and terminated.
type Descriptor struct {
	// OS is the runtime.GOOS value the descriptor was built for.
	OS string

	// WrapperSpawn selects the hidden-window helper launch path. On hosts
	// where a directly spawned console child pops a visible window, the
	// worker is started through an intermediary that reports the real pid
	// on stdout.
	WrapperSpawn bool

	// KillTree indicates that forced termination must address the whole
	// process tree, not just the root pid, or listening sockets held by
	// descendants survive the kill.
	KillTree bool

	// ReadyTimeoutScale multiplies the default readiness deadline. Wrapper
	// spawning adds an extra process hop, so those hosts get more headroom.
	ReadyTimeoutScale int
}

// Current returns the descriptor for the host this binary is running on.
func Current() Descriptor {
	return forOS(runtime.GOOS)
}

func forOS(goos string) Descriptor {
	if goos == "windows" {
		return Descriptor{
			OS:                goos,
			WrapperSpawn:      true,
			KillTree:          true,
			ReadyTimeoutScale: 2,
		}
	}
	return Descriptor{
		OS:                goos,
		ReadyTimeoutScale: 1,
	}
}
