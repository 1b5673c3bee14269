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

// Package lockfile provides cross-process mutual exclusion through an
// atomically created lock file. The file carries a JSON token naming its
// owner, so contenders can reclaim locks left behind by crashed processes.
// Acquisition relies solely on create-exclusive semantics; the file is
// never opened for rewriting.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/tombee/warden/internal/poll"
	"github.com/tombee/warden/internal/proc"
)

// Defaults for acquisition. Twenty-five attempts at 200ms give contenders
// roughly five seconds to observe a peer's startup before giving up.
const (
	DefaultStaleAfter    = 30 * time.Second
	DefaultRetries       = 25
	DefaultRetryInterval = 200 * time.Millisecond
)

// ErrUnsafeDirectory indicates the lock directory has unsafe permissions.
var ErrUnsafeDirectory = errors.New("lock directory has unsafe permissions")

// Token is the lock file payload. AcquiredAt drives age-based staleness,
// OwnerPID drives liveness-based staleness.
type Token struct {
	OwnerPID   int       `json:"owner_pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Manager owns one lock file path. It is safe for use from multiple
// processes; that is the point.
type Manager struct {
	path       string
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewManager creates a manager for the lock file at path.
func NewManager(path string) *Manager {
	return &Manager{
		path:       path,
		staleAfter: DefaultStaleAfter,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithStaleAfter overrides the age beyond which a held lock is presumed
// abandoned.
func (m *Manager) WithStaleAfter(d time.Duration) *Manager {
	m.staleAfter = d
	return m
}

// WithLogger routes stale-reclaim notices to the given logger.
func (m *Manager) WithLogger(l *slog.Logger) *Manager {
	m.logger = l
	return m
}

// Path returns the lock file path.
func (m *Manager) Path() string {
	return m.path
}

// TryAcquire makes a single acquisition attempt. It reports false with a
// nil error when the lock is validly held by someone else; errors are
// reserved for filesystem failures. A stale lock is reclaimed before the
// attempt, so a crashed former owner does not block acquisition.
func (m *Manager) TryAcquire() (bool, error) {
	if err := m.reclaimStale(); err != nil {
		return false, err
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := verifyDirectorySafety(dir); err != nil {
		return false, err
	}

	tok := Token{OwnerPID: os.Getpid(), AcquiredAt: time.Now().UTC()}
	data, err := json.Marshal(tok)
	if err != nil {
		return false, fmt.Errorf("failed to encode lock token: %w", err)
	}

	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(m.path)
		return false, fmt.Errorf("failed to write lock token: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(m.path)
		return false, fmt.Errorf("failed to sync lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(m.path)
		return false, fmt.Errorf("failed to close lock file: %w", err)
	}
	return true, nil
}

// Acquire retries TryAcquire at a fixed interval until it succeeds or the
// retry budget runs out. Exhaustion reports false with a nil error; the
// lock is simply held by a live peer.
func (m *Manager) Acquire(retries int, interval time.Duration) (bool, error) {
	if retries <= 0 {
		return m.TryAcquire()
	}

	acquired := false
	budget := time.Duration(retries) * interval
	err := poll.UntilTimeout(budget, interval, func() (bool, error) {
		ok, err := m.TryAcquire()
		if err != nil {
			return false, err
		}
		acquired = ok
		return ok, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	return acquired, nil
}

// Release removes the lock file if and only if this process owns it.
// Releasing a lock that is absent or owned by another process is a no-op,
// so callers can release unconditionally on their exit paths.
func (m *Manager) Release() error {
	tok, ok := m.Read()
	if !ok {
		return nil
	}
	if tok.OwnerPID != os.Getpid() {
		m.logger.Warn("declining to release lock owned by another process",
			slog.Int("owner_pid", tok.OwnerPID),
			slog.String("path", m.path))
		return nil
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Read returns the current token. ok is false when the file is absent or
// its contents cannot be parsed.
func (m *Manager) Read() (Token, bool) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Token{}, false
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, false
	}
	return tok, true
}

// reclaimStale removes the lock file when its token is unparsable, older
// than the stale threshold, or names a dead owner. A live in-date token is
// left alone. Concurrent reclaimers may race to remove the same file; a
// vanished file is success.
func (m *Manager) reclaimStale() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil || tok.OwnerPID <= 0 {
		// A contender can observe the file between creation and the token
		// write. Only reclaim unparsable files once they are old enough
		// that no healthy writer can still be mid-write.
		if age, err := m.fileAge(); err == nil && age < writeSettleWindow {
			return nil
		}
		return m.removeStale("unparsable token", tok)
	}
	if age := time.Since(tok.AcquiredAt); age > m.staleAfter {
		return m.removeStale("token expired", tok)
	}
	if !proc.Alive(tok.OwnerPID) {
		return m.removeStale("owner no longer running", tok)
	}
	return nil
}

// writeSettleWindow is how long an unparsable lock file is given before it
// is presumed to be wreckage rather than a write in flight.
const writeSettleWindow = time.Second

func (m *Manager) fileAge() (time.Duration, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}

func (m *Manager) removeStale(reason string, tok Token) error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale lock file: %w", err)
	}
	m.logger.Info("reclaimed stale lock",
		slog.String("reason", reason),
		slog.Int("owner_pid", tok.OwnerPID),
		slog.String("path", m.path))
	return nil
}

func verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat lock directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory", ErrUnsafeDirectory)
	}
	// Mode bits carry no meaning on Windows; ACLs govern access there.
	if runtime.GOOS != "windows" && info.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("%w: directory is world-writable", ErrUnsafeDirectory)
	}
	return nil
}
