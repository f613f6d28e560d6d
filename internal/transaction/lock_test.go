package transaction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAcquireLock_CreatesPrefix(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "home", ".pour")

	lock, err := AcquireLock(context.Background(), prefix)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	defer lock.Release()

	if want := filepath.Join(prefix, LockFileName); lock.Path() != want {
		t.Errorf("Path() = %s, want %s", lock.Path(), want)
	}

	data, err := os.ReadFile(lock.Path())
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if !strings.Contains(string(data), "pid=") || !strings.Contains(string(data), "timestamp=") {
		t.Errorf("lock file missing owner metadata: %q", data)
	}
}

func TestAcquireLock_OneWinner(t *testing.T) {
	prefix := t.TempDir()

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*Lock
		losers  int
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := AcquireLock(context.Background(), prefix)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, lock)
			case errors.Is(err, ErrLockExists):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 || losers != racers-1 {
		t.Fatalf("got %d winners and %d losers, want 1 and %d", len(winners), losers, racers-1)
	}
	if err := winners[0].Release(); err != nil {
		t.Fatal(err)
	}
}

func TestAcquireLock_ExistingLock(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{"fresh lock blocks", 0, ErrLockExists},
		{"lock just under threshold blocks", StaleLockThreshold - time.Minute, ErrLockExists},
		{"stale lock is replaced", StaleLockThreshold + time.Minute, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix := t.TempDir()
			lockPath := filepath.Join(prefix, LockFileName)
			if err := os.WriteFile(lockPath, []byte("pid=99999\ntimestamp=2020-01-01T00:00:00Z\n"), 0o600); err != nil {
				t.Fatal(err)
			}
			mtime := time.Now().Add(-tt.age)
			if err := os.Chtimes(lockPath, mtime, mtime); err != nil {
				t.Fatal(err)
			}

			lock, err := AcquireLock(context.Background(), prefix)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AcquireLock() error = %v, want %v", err, tt.wantErr)
			}
			if lock != nil {
				lock.Release()
			}
		})
	}
}

func TestAcquireLock_Context(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()

	for name, ctx := range map[string]context.Context{"cancelled": cancelled, "expired": expired} {
		t.Run(name, func(t *testing.T) {
			prefix := t.TempDir()
			if _, err := AcquireLock(ctx, prefix); err == nil {
				t.Fatal("AcquireLock() should fail once the context is done")
			}
			if _, err := os.Stat(filepath.Join(prefix, LockFileName)); !os.IsNotExist(err) {
				t.Error("no lock file may be left behind")
			}
		})
	}
}

func TestLock_Release(t *testing.T) {
	prefix := t.TempDir()

	first, err := AcquireLock(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}
	path := first.Path()

	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	if first.Path() != "" {
		t.Error("released lock should forget its path")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file should be removed after release")
	}

	second, err := AcquireLock(context.Background(), prefix)
	if err != nil {
		t.Fatalf("prefix should be lockable after release: %v", err)
	}
	second.Release()
}
