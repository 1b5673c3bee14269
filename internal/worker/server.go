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

// Package worker implements the reference worker daemon behind wardend.
// It serves the readiness and status endpoints the supervisor probes,
// plus Prometheus metrics, and drains gracefully on shutdown.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	internallog "github.com/tombee/warden/internal/log"
)

// Config holds the worker daemon settings.
type Config struct {
	// Port to bind on 127.0.0.1. Zero picks an ephemeral port; use Addr
	// to discover it.
	Port int

	// Version reported by /api/status.
	Version string

	// ReadyDelay holds readiness at "starting" for this long after the
	// listener is up, standing in for real startup work.
	ReadyDelay time.Duration

	// Logger for server events. Defaults to the environment-configured
	// logger.
	Logger *slog.Logger
}

// Server manages the lifecycle of the worker HTTP server.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	instanceID string
	startedAt  time.Time
	ready      atomic.Bool
	server     *http.Server

	mu sync.RWMutex
	ln net.Listener
}

// New creates a worker server. It does not listen until Start.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = internallog.WithComponent(internallog.New(internallog.FromEnv()), "worker")
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		instanceID: uuid.New().String(),
		startedAt:  time.Now(),
	}
	s.server = &http.Server{
		Handler:      internallog.HTTPMiddleware(logger, s.routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	setStartTime(s.startedAt)
	return s
}

// Start binds the listener and blocks until the context is cancelled or
// the server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("worker starting",
		slog.String("listen_addr", ln.Addr().String()),
		slog.String("instance_id", s.instanceID),
		slog.String("version", s.cfg.Version))

	if s.cfg.ReadyDelay > 0 {
		time.AfterFunc(s.cfg.ReadyDelay, s.markReady)
	} else {
		s.markReady()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("worker shutting down")

	// Stop accepting new connections while draining.
	s.server.SetKeepAlivesEnabled(false)

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("worker shutdown error", internallog.Error(err))
		return err
	}

	s.logger.Info("worker stopped")
	return nil
}

// Addr returns the listener address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) markReady() {
	if s.ready.CompareAndSwap(false, true) {
		setReady(true)
		s.logger.Info("worker ready")
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/readiness", s.handleReadiness)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleReadiness answers the supervisor's startup probe. Any 2xx means
// ready; 503 means still starting.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		recordRequest("/api/readiness", http.StatusServiceUnavailable)
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	recordRequest("/api/readiness", http.StatusOK)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

type statusResponse struct {
	PID           int       `json:"pid"`
	Version       string    `json:"version"`
	InstanceID    string    `json:"instance_id"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Ready         bool      `json:"ready"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	recordRequest("/api/status", http.StatusOK)
	resp := statusResponse{
		PID:           os.Getpid(),
		Version:       s.cfg.Version,
		InstanceID:    s.instanceID,
		StartedAt:     s.startedAt.UTC(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Ready:         s.ready.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to write status response", internallog.Error(err))
	}
}
