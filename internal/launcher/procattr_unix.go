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

//go:build !windows

package launcher

import "syscall"

// detachAttr detaches the child from the controlling terminal by giving it
// its own session. A session leader implicitly leads a fresh process group;
// asking for Setpgid on top of Setsid fails with EPERM.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// hiddenAttr configures the helper invocation. Nothing to hide off Windows.
func hiddenAttr() *syscall.SysProcAttr {
	return nil
}
