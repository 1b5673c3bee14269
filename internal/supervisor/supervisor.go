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

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/tombee/warden/internal/health"
	"github.com/tombee/warden/internal/launcher"
	"github.com/tombee/warden/internal/lockfile"
	"github.com/tombee/warden/internal/platform"
	"github.com/tombee/warden/internal/poll"
	"github.com/tombee/warden/internal/proc"
	"github.com/tombee/warden/internal/state"
)

var (
	// ErrPortOutOfRange is returned for ports outside [1024, 65535].
	// Privileged ports are rejected outright: the worker never runs with
	// the rights to bind one.
	ErrPortOutOfRange = errors.New("port out of range")

	// ErrLockContended is returned when a peer held the startup lock but
	// never produced a running worker.
	ErrLockContended = errors.New("another process held the startup lock")

	// ErrNoDataDir is returned when the supervisor has nowhere to keep
	// its files.
	ErrNoDataDir = errors.New("no data directory configured")
)

// Port bounds accepted by Start.
const (
	MinPort = 1024
	MaxPort = 65535
)

// DefaultStopTimeout is the grace period before a stop escalates.
const DefaultStopTimeout = 30 * time.Second

// restartSettle is the pause between the stop and start halves of a
// restart, giving the OS a beat to tear down the old listener.
const restartSettle = 100 * time.Millisecond

// File names inside the data directory.
const (
	stateFileName = "worker.pid"
	lockFileName  = "worker.lock"
	logDirName    = "logs"
)

// Config describes a supervised worker and where its bookkeeping lives.
type Config struct {
	// DataDir holds the lock file, state file, and log directory.
	DataDir string

	// Script is the worker entry point. Optional for stop and status.
	Script string

	// Interpreter optionally names the program that runs Script.
	Interpreter string

	// Env holds extra KEY=VALUE pairs for the worker environment.
	Env []string

	// Version is stamped into the worker state record.
	Version string

	// StaleAfter overrides how old a startup lock may grow before it is
	// presumed abandoned. Zero keeps the default.
	StaleAfter time.Duration

	// LockRetries and LockInterval shape the wait for a contended
	// startup lock. Zero keeps the defaults.
	LockRetries  int
	LockInterval time.Duration

	// ReadyTimeout bounds the wait for worker readiness. Zero selects
	// the platform default.
	ReadyTimeout time.Duration

	// StopTimeout is the grace period for Stop when the caller passes
	// none. Zero keeps the default.
	StopTimeout time.Duration

	// Logger receives operational logging. Nil discards it.
	Logger *slog.Logger
}

// StartResult reports how a Start call concluded.
type StartResult struct {
	PID            int
	Port           int
	AlreadyRunning bool
}

// Status is a point-in-time view of the supervised worker.
type Status struct {
	Running   bool
	PID       int
	Port      int
	StartedAt time.Time
	Uptime    time.Duration
	Version   string
}

// Supervisor implements the worker lifecycle operations. Instances are
// cheap; every CLI invocation builds a fresh one.
type Supervisor struct {
	cfg      Config
	desc     platform.Descriptor
	lock     *lockfile.Manager
	store    *state.Store
	launcher launcher.Launcher
	rec      EventRecorder
	logger   *slog.Logger
}

// New creates a supervisor rooted at cfg.DataDir.
func New(cfg Config) (*Supervisor, error) {
	if cfg.DataDir == "" {
		return nil, ErrNoDataDir
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.LockRetries <= 0 {
		cfg.LockRetries = lockfile.DefaultRetries
	}
	if cfg.LockInterval <= 0 {
		cfg.LockInterval = lockfile.DefaultRetryInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	desc := platform.Current()
	lock := lockfile.NewManager(filepath.Join(cfg.DataDir, lockFileName)).WithLogger(logger)
	if cfg.StaleAfter > 0 {
		lock.WithStaleAfter(cfg.StaleAfter)
	}
	store := state.NewStore(filepath.Join(cfg.DataDir, stateFileName))

	s := &Supervisor{
		cfg:    cfg,
		desc:   desc,
		lock:   lock,
		store:  store,
		logger: logger,
	}
	s.launcher = launcher.New(launcher.Config{
		Store:    store,
		Prober:   health.NewProber(),
		Version:  cfg.Version,
		Logger:   logger,
		Platform: desc,
	})
	return s, nil
}

// WithLauncher replaces the launcher. Tests use this to observe launches
// without spawning processes.
func (s *Supervisor) WithLauncher(l launcher.Launcher) *Supervisor {
	s.launcher = l
	return s
}

// WithRecorder attaches a lifecycle event recorder.
func (s *Supervisor) WithRecorder(r EventRecorder) *Supervisor {
	s.rec = r
	return s
}

// DataDir returns the supervisor's data directory.
func (s *Supervisor) DataDir() string {
	return s.cfg.DataDir
}

// LogDir returns the directory worker logs are written to.
func (s *Supervisor) LogDir() string {
	return filepath.Join(s.cfg.DataDir, logDirName)
}

// Start brings the worker up on the given port. It is idempotent: a live
// worker short-circuits to success, and racing callers collapse onto one
// launch with everyone else adopting the winner's worker.
func (s *Supervisor) Start(port int) (*StartResult, error) {
	if port < MinPort || port > MaxPort {
		return nil, fmt.Errorf("%w: %d", ErrPortOutOfRange, port)
	}

	if ws, ok := s.runningState(); ok {
		s.logger.Info("worker already running",
			slog.Int("pid", ws.PID),
			slog.Int("port", ws.Port))
		s.record(EventAlreadyRunning, ws.PID, ws.Port, "")
		return &StartResult{PID: ws.PID, Port: ws.Port, AlreadyRunning: true}, nil
	}

	ok, err := s.lock.Acquire(s.cfg.LockRetries, s.cfg.LockInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire startup lock: %w", err)
	}
	if !ok {
		return s.waitForPeer(port)
	}
	defer func() {
		if err := s.lock.Release(); err != nil {
			s.logger.Warn("failed to release startup lock",
				slog.String("error", err.Error()))
		}
	}()

	// The lock may have been queued for; a peer could have finished the
	// job before handing it over.
	if ws, ok := s.runningState(); ok {
		s.record(EventAlreadyRunning, ws.PID, ws.Port, "")
		return &StartResult{PID: ws.PID, Port: ws.Port, AlreadyRunning: true}, nil
	}

	pid, err := s.launcher.Launch(launcher.LaunchSpec{
		Script:       s.cfg.Script,
		Interpreter:  s.cfg.Interpreter,
		Port:         port,
		Env:          s.cfg.Env,
		LogDir:       s.LogDir(),
		ReadyTimeout: s.cfg.ReadyTimeout,
	})
	if err != nil {
		s.record(EventStartFailed, 0, port, err.Error())
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	s.logger.Info("worker started",
		slog.Int("pid", pid),
		slog.Int("port", port))
	s.record(EventStarted, pid, port, "")
	return &StartResult{PID: pid, Port: port}, nil
}

// waitForPeer watches for the lock holder's worker to appear, adopting it
// on success.
func (s *Supervisor) waitForPeer(port int) (*StartResult, error) {
	timeout := s.readyTimeout()
	s.logger.Info("startup lock held by a peer; waiting for its worker",
		slog.Int("port", port),
		slog.Duration("timeout", timeout))

	var ws state.WorkerState
	err := poll.UntilTimeout(timeout, health.DefaultInterval, func() (bool, error) {
		got, ok := s.runningState()
		if ok {
			ws = got
		}
		return ok, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: no running worker appeared within %v", ErrLockContended, timeout)
	}

	s.record(EventPeerStarted, ws.PID, ws.Port, "")
	return &StartResult{PID: ws.PID, Port: ws.Port, AlreadyRunning: true}, nil
}

// Stop takes the worker down, gracefully if it cooperates within timeout.
// A non-positive timeout selects the configured default. Stopping an
// already stopped worker is success.
func (s *Supervisor) Stop(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.StopTimeout
	}

	ws, ok := s.store.Read()
	if !ok {
		s.logger.Info("no worker to stop")
		return nil
	}
	if !proc.Alive(ws.PID) {
		s.logger.Info("worker already dead; removing its record",
			slog.Int("pid", ws.PID))
		s.record(EventStaleCleaned, ws.PID, ws.Port, "found dead during stop")
		return s.store.Remove()
	}
	if !s.matchesWorker(ws.PID) {
		s.logger.Warn("recorded pid belongs to a different program now; not signalling",
			slog.Int("pid", ws.PID))
		s.record(EventStaleCleaned, ws.PID, ws.Port, "pid reused by another program")
		return s.store.Remove()
	}

	// The record goes away no matter how the kill turns out; a worker
	// that survives SIGKILL is beyond bookkeeping.
	defer func() {
		if err := s.store.Remove(); err != nil {
			s.logger.Warn("failed to remove state file",
				slog.String("error", err.Error()))
		}
	}()

	forced, err := proc.Shutdown(ws.PID, timeout, s.desc.KillTree)
	if err != nil {
		s.record(EventStopFailed, ws.PID, ws.Port, err.Error())
		return fmt.Errorf("failed to stop worker %d: %w", ws.PID, err)
	}
	if forced {
		s.logger.Warn("worker ignored graceful shutdown; killed",
			slog.Int("pid", ws.PID))
		s.record(EventStopForced, ws.PID, ws.Port, "")
	} else {
		s.logger.Info("worker stopped",
			slog.Int("pid", ws.PID))
		s.record(EventStopped, ws.PID, ws.Port, "")
	}
	return nil
}

// Restart stops the worker and starts a fresh one on the given port. Stop
// failures are logged, not fatal: the start half still gets its shot.
func (s *Supervisor) Restart(port int) (*StartResult, error) {
	if err := s.Stop(s.cfg.StopTimeout); err != nil {
		s.logger.Warn("stop during restart failed",
			slog.String("error", err.Error()))
	}
	time.Sleep(restartSettle)
	return s.Start(port)
}

// Status reports the worker's current condition. Reading the record of a
// dead worker removes it, so stale state repairs itself on first contact.
func (s *Supervisor) Status() Status {
	ws, ok := s.store.Read()
	if !ok {
		return Status{}
	}
	if !proc.Alive(ws.PID) {
		s.logger.Info("removing record of dead worker",
			slog.Int("pid", ws.PID))
		if err := s.store.Remove(); err != nil {
			s.logger.Warn("failed to remove stale state file",
				slog.String("error", err.Error()))
		}
		s.record(EventStaleCleaned, ws.PID, ws.Port, "found dead during status")
		return Status{}
	}
	return Status{
		Running:   true,
		PID:       ws.PID,
		Port:      ws.Port,
		StartedAt: ws.StartedAt,
		Uptime:    time.Since(ws.StartedAt),
		Version:   ws.Version,
	}
}

// IsRunning reports whether a live worker is currently supervised.
func (s *Supervisor) IsRunning() bool {
	return s.Status().Running
}

// runningState returns the state record only when its pid is alive.
func (s *Supervisor) runningState() (state.WorkerState, bool) {
	ws, ok := s.store.Read()
	if !ok {
		return state.WorkerState{}, false
	}
	if !proc.Alive(ws.PID) {
		return state.WorkerState{}, false
	}
	return ws, true
}

// matchesWorker reports whether the pid still looks like our worker. Pid
// reuse after a crash could otherwise aim a kill at an innocent process.
// When the command line cannot be read the pid is assumed ours: liveness
// already passed, and refusing to stop a real worker is the costlier
// mistake.
func (s *Supervisor) matchesWorker(pid int) bool {
	if s.cfg.Script == "" && s.cfg.Interpreter == "" {
		return true
	}
	cmdline, err := proc.CommandLine(pid)
	if err != nil {
		return true
	}
	if s.cfg.Script != "" && strings.Contains(cmdline, filepath.Base(s.cfg.Script)) {
		return true
	}
	if s.cfg.Interpreter != "" && strings.Contains(cmdline, filepath.Base(s.cfg.Interpreter)) {
		return true
	}
	return false
}

// readyTimeout mirrors the launcher's deadline so peer-waiters give the
// winner as much time as the winner gives its worker.
func (s *Supervisor) readyTimeout() time.Duration {
	if s.cfg.ReadyTimeout > 0 {
		return s.cfg.ReadyTimeout
	}
	return health.DefaultReadyTimeout * time.Duration(s.desc.ReadyTimeoutScale)
}
