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

/*
Package supervisor coordinates the lifecycle of a single background worker
process across many short-lived supervisor invocations.

There is no resident daemon. Every invocation reconstructs the world from
two files in the data directory: the lock file serializing startups and the
state file recording the spawned worker. Any pid read from disk is
re-verified against the process table before anyone acts on it.

# Starting

Start is idempotent and safe to call from concurrent processes. The
startup lock admits one launcher; everyone else waits for the winner's
worker to appear and reports it as already running:

	sup, err := supervisor.New(supervisor.Config{
	    DataDir: dataDir,
	    Script:  "/srv/worker/main.py",
	    Interpreter: "python3",
	})
	if err != nil {
	    // Handle error
	}

	res, err := sup.Start(8080)
	if err != nil {
	    // Handle error
	}
	if res.AlreadyRunning {
	    // A live worker predated this call
	}

# Stopping

Stop asks nicely first and escalates once the grace period runs out. The
state file is removed on every path out, so a worker that ignored SIGKILL
is the only thing left to a human:

	if err := sup.Stop(30 * time.Second); err != nil {
	    // Worker survived forced termination
	}

# Status

Status performs lazy cleanup: reading the record of a dead worker removes
it. A crashed worker therefore costs nothing until somebody looks, and the
first look repairs the books.
*/
package supervisor
