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

package lockfile

import (
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func writeTokenFile(t *testing.T, path string, tok Token) {
	t.Helper()
	data, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("Failed to marshal token: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write token file: %v", err)
	}
}

func backdate(t *testing.T, path string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Failed to backdate file: %v", err)
	}
}

func TestTryAcquire(t *testing.T) {
	t.Run("acquires when no lock exists", func(t *testing.T) {
		m := NewManager(filepath.Join(t.TempDir(), "worker.lock"))

		ok, err := m.TryAcquire()
		if err != nil {
			t.Fatalf("TryAcquire() error = %v", err)
		}
		if !ok {
			t.Fatal("TryAcquire() = false, want true")
		}

		tok, found := m.Read()
		if !found {
			t.Fatal("Read() found no token after acquisition")
		}
		if tok.OwnerPID != os.Getpid() {
			t.Errorf("token owner = %d, want %d", tok.OwnerPID, os.Getpid())
		}
		if time.Since(tok.AcquiredAt) > 5*time.Second {
			t.Errorf("token AcquiredAt = %v, want recent", tok.AcquiredAt)
		}
	})

	t.Run("reports contention while a live owner holds the lock", func(t *testing.T) {
		m := NewManager(filepath.Join(t.TempDir(), "worker.lock"))
		if ok, err := m.TryAcquire(); err != nil || !ok {
			t.Fatalf("first TryAcquire() = %v, %v", ok, err)
		}

		ok, err := m.TryAcquire()
		if err != nil {
			t.Fatalf("second TryAcquire() error = %v", err)
		}
		if ok {
			t.Error("second TryAcquire() = true, want contention")
		}
	})

	t.Run("reclaims an expired lock even when the owner is alive", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "worker.lock")
		writeTokenFile(t, path, Token{
			OwnerPID:   os.Getpid(),
			AcquiredAt: time.Now().Add(-time.Minute),
		})

		m := NewManager(path)
		ok, err := m.TryAcquire()
		if err != nil {
			t.Fatalf("TryAcquire() error = %v", err)
		}
		if !ok {
			t.Fatal("TryAcquire() = false, want expired lock reclaimed")
		}

		tok, _ := m.Read()
		if time.Since(tok.AcquiredAt) > 5*time.Second {
			t.Error("token was not rewritten on reclamation")
		}
	})

	t.Run("reclaims a lock whose owner is dead", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "worker.lock")
		writeTokenFile(t, path, Token{OwnerPID: 999999, AcquiredAt: time.Now()})

		m := NewManager(path)
		ok, err := m.TryAcquire()
		if err != nil {
			t.Fatalf("TryAcquire() error = %v", err)
		}
		if !ok {
			t.Error("TryAcquire() = false, want dead owner's lock reclaimed")
		}
	})

	t.Run("reclaims an unparsable lock file after the settle window", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "worker.lock")
		if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
			t.Fatalf("Failed to write garbage: %v", err)
		}
		backdate(t, path, 2*time.Second)

		m := NewManager(path)
		ok, err := m.TryAcquire()
		if err != nil {
			t.Fatalf("TryAcquire() error = %v", err)
		}
		if !ok {
			t.Error("TryAcquire() = false, want unparsable lock reclaimed")
		}
	})

	t.Run("leaves a freshly written unparsable file alone", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "worker.lock")
		if err := os.WriteFile(path, []byte("{"), 0600); err != nil {
			t.Fatalf("Failed to write partial token: %v", err)
		}

		m := NewManager(path)
		ok, err := m.TryAcquire()
		if err != nil {
			t.Fatalf("TryAcquire() error = %v", err)
		}
		if ok {
			t.Error("TryAcquire() = true, want contention while a write may be in flight")
		}
	})

	t.Run("creates the lock directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "worker.lock")
		m := NewManager(path)

		ok, err := m.TryAcquire()
		if err != nil {
			t.Fatalf("TryAcquire() error = %v", err)
		}
		if !ok {
			t.Fatal("TryAcquire() = false, want true")
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("lock file missing after acquisition: %v", err)
		}
	})

	t.Run("rejects a world-writable directory", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("mode bits carry no meaning on Windows")
		}
		dir := t.TempDir()
		if err := os.Chmod(dir, 0707); err != nil {
			t.Fatalf("Failed to chmod: %v", err)
		}

		m := NewManager(filepath.Join(dir, "worker.lock"))
		_, err := m.TryAcquire()
		if !errors.Is(err, ErrUnsafeDirectory) {
			t.Errorf("TryAcquire() error = %v, want ErrUnsafeDirectory", err)
		}
	})
}

func TestAcquire(t *testing.T) {
	t.Run("succeeds immediately when the lock is free", func(t *testing.T) {
		m := NewManager(filepath.Join(t.TempDir(), "worker.lock"))

		start := time.Now()
		ok, err := m.Acquire(DefaultRetries, DefaultRetryInterval)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if !ok {
			t.Fatal("Acquire() = false, want true")
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Acquire() took %v, want immediate", elapsed)
		}
	})

	t.Run("retries until the holder dies", func(t *testing.T) {
		cmd := exec.Command("sleep", "60")
		if err := cmd.Start(); err != nil {
			t.Fatalf("Failed to start sleep process: %v", err)
		}
		defer cmd.Process.Kill()

		path := filepath.Join(t.TempDir(), "worker.lock")
		writeTokenFile(t, path, Token{OwnerPID: cmd.Process.Pid, AcquiredAt: time.Now()})

		go func() {
			time.Sleep(300 * time.Millisecond)
			cmd.Process.Kill()
			cmd.Wait()
		}()

		m := NewManager(path)
		ok, err := m.Acquire(30, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if !ok {
			t.Error("Acquire() = false, want lock reclaimed after holder died")
		}
	})

	t.Run("gives up while the holder stays alive", func(t *testing.T) {
		cmd := exec.Command("sleep", "60")
		if err := cmd.Start(); err != nil {
			t.Fatalf("Failed to start sleep process: %v", err)
		}
		defer func() {
			cmd.Process.Kill()
			cmd.Wait()
		}()

		path := filepath.Join(t.TempDir(), "worker.lock")
		writeTokenFile(t, path, Token{OwnerPID: cmd.Process.Pid, AcquiredAt: time.Now()})

		m := NewManager(path)
		start := time.Now()
		ok, err := m.Acquire(3, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if ok {
			t.Error("Acquire() = true, want exhaustion against a live holder")
		}
		if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
			t.Errorf("Acquire() returned after %v, want it to burn its retry budget", elapsed)
		}
	})

	t.Run("treats non-positive retries as a single attempt", func(t *testing.T) {
		m := NewManager(filepath.Join(t.TempDir(), "worker.lock"))
		ok, err := m.Acquire(0, DefaultRetryInterval)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if !ok {
			t.Error("Acquire() = false, want true")
		}
	})
}

func TestRelease(t *testing.T) {
	t.Run("removes a lock held by this process", func(t *testing.T) {
		m := NewManager(filepath.Join(t.TempDir(), "worker.lock"))
		if ok, err := m.TryAcquire(); err != nil || !ok {
			t.Fatalf("TryAcquire() = %v, %v", ok, err)
		}

		if err := m.Release(); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
			t.Error("lock file still exists after Release()")
		}
	})

	t.Run("is a no-op when no lock exists", func(t *testing.T) {
		m := NewManager(filepath.Join(t.TempDir(), "worker.lock"))
		if err := m.Release(); err != nil {
			t.Errorf("Release() error = %v, want nil", err)
		}
	})

	t.Run("never removes a lock owned by another process", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "worker.lock")
		writeTokenFile(t, path, Token{OwnerPID: 999999, AcquiredAt: time.Now()})

		m := NewManager(path)
		if err := m.Release(); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Error("foreign lock file was removed by Release()")
		}
	})

	t.Run("leaves an unparsable lock for reclamation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "worker.lock")
		if err := os.WriteFile(path, []byte("junk"), 0600); err != nil {
			t.Fatalf("Failed to write garbage: %v", err)
		}

		m := NewManager(path)
		if err := m.Release(); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Error("unparsable lock file was removed by Release()")
		}
	})
}

func TestConcurrentTryAcquire(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "worker.lock"))

	const contenders = 10
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.TryAcquire()
			if err != nil {
				t.Errorf("TryAcquire() error = %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("%d contenders won the lock, want exactly 1", got)
	}
}

func TestRead(t *testing.T) {
	t.Run("reports absence for a missing file", func(t *testing.T) {
		m := NewManager(filepath.Join(t.TempDir(), "worker.lock"))
		if _, ok := m.Read(); ok {
			t.Error("Read() ok = true for missing file")
		}
	})

	t.Run("reports absence for garbage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "worker.lock")
		if err := os.WriteFile(path, []byte("%%"), 0600); err != nil {
			t.Fatalf("Failed to write garbage: %v", err)
		}
		if _, ok := NewManager(path).Read(); ok {
			t.Error("Read() ok = true for garbage")
		}
	})
}
