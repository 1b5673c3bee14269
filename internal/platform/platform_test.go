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

package platform

import (
	"runtime"
	"testing"
)

func TestForOS(t *testing.T) {
	t.Run("windows uses wrapper spawn and tree kill", func(t *testing.T) {
		d := forOS("windows")
		if !d.WrapperSpawn {
			t.Error("expected WrapperSpawn on windows")
		}
		if !d.KillTree {
			t.Error("expected KillTree on windows")
		}
		if d.ReadyTimeoutScale != 2 {
			t.Errorf("ReadyTimeoutScale = %d, want 2", d.ReadyTimeoutScale)
		}
	})

	t.Run("unix spawns directly", func(t *testing.T) {
		for _, goos := range []string{"linux", "darwin", "freebsd"} {
			d := forOS(goos)
			if d.WrapperSpawn {
				t.Errorf("%s: unexpected WrapperSpawn", goos)
			}
			if d.KillTree {
				t.Errorf("%s: unexpected KillTree", goos)
			}
			if d.ReadyTimeoutScale != 1 {
				t.Errorf("%s: ReadyTimeoutScale = %d, want 1", goos, d.ReadyTimeoutScale)
			}
		}
	})
}

func TestCurrentMatchesHost(t *testing.T) {
	d := Current()
	if d.OS != runtime.GOOS {
		t.Errorf("OS = %q, want %q", d.OS, runtime.GOOS)
	}
	if d.ReadyTimeoutScale < 1 {
		t.Errorf("ReadyTimeoutScale = %d, want >= 1", d.ReadyTimeoutScale)
	}
}
