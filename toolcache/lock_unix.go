//go:build unix

package toolcache

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func tryLock(path string) (*installLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, errLockHeld
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &installLock{path: path, file: f}, nil
}

// unlock closes the lock file. The file stays on disk: removing it would
// let a waiter lock an unlinked inode while a newcomer locks a new one.
func unlock(lock *installLock) {
	_ = lock.file.Close()
}
