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

// Package health answers "is the worker up" by combining two signals: the
// pid must exist in the process table and the readiness endpoint must
// answer with a 2xx. Liveness is checked first on every tick so a crashed
// worker fails fast instead of burning the whole readiness deadline.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tombee/warden/internal/poll"
	"github.com/tombee/warden/internal/proc"
)

var (
	// ErrProcessExited is returned when the worker dies during the wait.
	ErrProcessExited = errors.New("worker process exited before becoming ready")

	// ErrReadyTimeout is returned when the readiness deadline passes.
	ErrReadyTimeout = errors.New("worker readiness deadline exceeded")
)

// Probe timing. Readiness is expected within a couple hundred
// milliseconds on a healthy host, so a fixed short interval beats backoff:
// the common case resolves on the first or second tick, and the worst case
// is bounded by the caller's deadline anyway.
const (
	DefaultInterval       = 200 * time.Millisecond
	DefaultAttemptTimeout = 1 * time.Second
	DefaultReadyTimeout   = 10 * time.Second
)

// Prober checks worker readiness over HTTP on the loopback interface.
type Prober struct {
	client   *http.Client
	interval time.Duration
	alive    func(pid int) bool
}

// NewProber creates a prober with default timing.
func NewProber() *Prober {
	return &Prober{
		client:   &http.Client{Timeout: DefaultAttemptTimeout},
		interval: DefaultInterval,
		alive:    proc.Alive,
	}
}

// WithInterval sets the delay between probe attempts.
func (p *Prober) WithInterval(d time.Duration) *Prober {
	p.interval = d
	return p
}

// WithHTTPClient sets a custom HTTP client.
func (p *Prober) WithHTTPClient(client *http.Client) *Prober {
	p.client = client
	return p
}

// WithAliveCheck replaces the process liveness probe. Tests use this to
// simulate worker death without real processes.
func (p *Prober) WithAliveCheck(fn func(pid int) bool) *Prober {
	p.alive = fn
	return p
}

// Endpoint returns the readiness URL for a worker listening on port.
func Endpoint(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/api/readiness", port)
}

// Check performs a single readiness probe. Any 2xx answer counts as ready;
// connection errors, timeouts, and non-2xx statuses are one failed attempt.
func (p *Prober) Check(ctx context.Context, port int) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Endpoint(port), nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// WaitForReady blocks until the worker with the given pid answers ready on
// port, the process dies, or the deadline passes. Worker death surfaces as
// ErrProcessExited, exhaustion as ErrReadyTimeout.
func (p *Prober) WaitForReady(pid, port int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := poll.Until(ctx, p.interval, func() (bool, error) {
		if !p.alive(pid) {
			return false, fmt.Errorf("%w: pid %d", ErrProcessExited, pid)
		}
		return p.Check(ctx, port), nil
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: port %d gave no ready answer within %v", ErrReadyTimeout, port, timeout)
	}
	return err
}
