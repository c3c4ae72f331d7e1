// Package filelock provides advisory, cross-process file locks built on flock(2).
package filelock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/envy/internal/core/domain"
	"golang.org/x/sys/unix"
)

// pollInterval is how often Lock retries a contended lock.
const pollInterval = 25 * time.Millisecond

// ErrContended is returned by TryLock when another holder owns the lock.
var ErrContended = errors.New("lock is held elsewhere")

// Lock is a held lock.
type Lock struct {
	f *os.File
}

// TryLock takes the exclusive lock on path without waiting, creating the file when missing.
func TryLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, err
	}
	//nolint:gosec // Lock files live below directories owned by envy
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, domain.PrivateFilePerm)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrContended
		}
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Acquire waits for the exclusive lock on path until ctx is done.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	for {
		l, err := TryLock(path)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, ErrContended) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Unlock releases the lock. The lock file stays in place.
func (l *Lock) Unlock() error {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}
