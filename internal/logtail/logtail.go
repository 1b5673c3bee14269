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

// Package logtail reads and follows worker log files.
//
// Workers write to one append-only file per launch day, so following a
// single file covers the whole life of the current worker. Rotation only
// happens across restarts.
package logtail

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	wardenerrors "github.com/tombee/warden/pkg/errors"
	"golang.org/x/time/rate"
)

// DefaultLines is how many trailing lines commands show when the caller
// does not say.
const DefaultLines = 50

const (
	// tailBlockSize is the chunk size for the backward newline scan.
	tailBlockSize = 8192

	// followDrainRate caps drains per second while following. A chatty
	// worker generates far more write notifications than a terminal
	// needs refreshes.
	followDrainRate = rate.Limit(20)

	// followPollInterval is the safety-net drain for data whose
	// notification was rate-limited away.
	followPollInterval = 500 * time.Millisecond
)

const (
	logPrefix = "worker-"
	logSuffix = ".log"
)

// LatestPath returns the newest worker log file in logDir. The daily
// date stamp in the name makes lexicographic order chronological.
func LatestPath(logDir string) (string, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &wardenerrors.NotFoundError{Resource: "worker log", ID: logDir}
		}
		return "", fmt.Errorf("failed to read log directory: %w", err)
	}

	var latest string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}
		if name > latest {
			latest = name
		}
	}
	if latest == "" {
		return "", &wardenerrors.NotFoundError{Resource: "worker log", ID: logDir}
	}
	return filepath.Join(logDir, latest), nil
}

// Tail writes the last n lines of the file at path to w.
func Tail(w io.Writer, path string, n int) error {
	if n <= 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	start, err := tailOffset(f, n)
	if err != nil {
		return err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to copy log file: %w", err)
	}
	return nil
}

// Follow writes the last n lines of the file at path to w, then streams
// appended data until ctx is cancelled. Cancellation is a normal return;
// the file disappearing is an error.
func Follow(ctx context.Context, w io.Writer, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch before the initial read so no append falls between them.
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	start := int64(0)
	if n > 0 {
		if start, err = tailOffset(f, n); err != nil {
			return err
		}
	} else {
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat log file: %w", err)
		}
		start = info.Size()
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}

	// The descriptor position tracks what has been emitted; every drain
	// copies from there to the current end.
	drain := func() error {
		if _, err := io.Copy(w, f); err != nil {
			return fmt.Errorf("failed to copy log data: %w", err)
		}
		return nil
	}
	if err := drain(); err != nil {
		return err
	}

	limiter := rate.NewLimiter(followDrainRate, 1)
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				drain()
				return fmt.Errorf("log file %s is gone", path)
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			if !limiter.Allow() {
				// The next poll tick picks the data up.
				continue
			}
			if err := drain(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		case <-ticker.C:
			if err := drain(); err != nil {
				return err
			}
		}
	}
}

// tailOffset returns the offset where the last n lines of f begin. A
// file with fewer lines yields offset zero.
func tailOffset(f *os.File, n int) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat log file: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	// A trailing newline terminates the last line rather than starting
	// another, so it does not count toward n.
	need := n
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return 0, fmt.Errorf("failed to read log file: %w", err)
	}
	if last[0] == '\n' {
		need = n + 1
	}

	buf := make([]byte, tailBlockSize)
	found := 0
	pos := size
	for pos > 0 {
		readSize := int64(tailBlockSize)
		if pos < readSize {
			readSize = pos
		}
		pos -= readSize
		chunk := buf[:readSize]
		if _, err := f.ReadAt(chunk, pos); err != nil {
			return 0, fmt.Errorf("failed to read log file: %w", err)
		}
		for i := readSize - 1; i >= 0; i-- {
			if chunk[i] == '\n' {
				found++
				if found == need {
					return pos + i + 1, nil
				}
			}
		}
	}
	return 0, nil
}
