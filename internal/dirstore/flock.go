package dirstore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileLock is an advisory lock on a single file, held for the lifetime
// of the process that acquires it (released on Close or process exit).
// It supplements, but does not replace, the in-process RWMutex already
// guarding a DirStore: the file lock gives cross-process guarantees,
// the mutex gives cross-goroutine guarantees within one process.
type FileLock struct {
	f *os.File
}

// LockShared acquires a shared (read) advisory lock on path, creating
// the file if necessary.
func LockShared(path string) (*FileLock, error) {
	return lock(path, unix.LOCK_SH)
}

// LockExclusive acquires an exclusive (write) advisory lock on path,
// creating the file if necessary.
func LockExclusive(path string) (*FileLock, error) {
	return lock(path, unix.LOCK_EX)
}

func lock(path string, how int) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &FileLock{f: f}, nil
}

// Close releases the lock and closes the underlying file descriptor.
func (l *FileLock) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
