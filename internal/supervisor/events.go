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

package supervisor

// Lifecycle event names recorded through the EventRecorder.
const (
	EventStarted        = "started"
	EventAlreadyRunning = "already_running"
	EventPeerStarted    = "peer_started"
	EventStartFailed    = "start_failed"
	EventStopped        = "stopped"
	EventStopForced     = "stop_forced"
	EventStopFailed     = "stop_failed"
	EventStaleCleaned   = "stale_state_removed"
)

// EventRecorder receives lifecycle transitions for audit purposes.
// Recording failures are logged, never propagated; the audit trail is not
// allowed to break supervision.
type EventRecorder interface {
	Record(event string, pid, port int, detail string) error
}

func (s *Supervisor) record(event string, pid, port int, detail string) {
	if s.rec == nil {
		return
	}
	if err := s.rec.Record(event, pid, port, detail); err != nil {
		s.logger.Warn("failed to record lifecycle event",
			"event", event,
			"error", err)
	}
}
