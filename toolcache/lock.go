package toolcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// LockTimeout bounds how long CacheDir waits for another process that
	// is writing the same installation.
	LockTimeout = 5 * time.Minute

	lockRetryDelay = 100 * time.Millisecond

	// LockSuffix names the lock file next to an install dir.
	LockSuffix = ".lock"
)

// errLockHeld is returned by tryLock while another process holds the lock.
var errLockHeld = errors.New("lock held by another process")

// installLock is an exclusive OS file lock.
type installLock struct {
	path string
	file *os.File
}

// lockInstall takes the exclusive lock for an install path, retrying
// until ctx is done or LockTimeout passes. The returned func releases it.
func lockInstall(ctx context.Context, installPath string) (func(), error) {
	path := installPath + LockSuffix
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	for {
		lock, err := tryLock(path)
		if err == nil {
			return func() { unlock(lock) }, nil
		}
		if !errors.Is(err, errLockHeld) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", path, ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}
}

// WithInstallLock runs fn while holding the lock CacheDir takes for
// name/version/arch. Installers that write the cache themselves use it.
func (ix *Index) WithInstallLock(ctx context.Context, name, v, arch string, fn func() error) error {
	release, err := lockInstall(ctx, ix.installPath(name, v, arch))
	if err != nil {
		return fmt.Errorf("lock %s %s (%s): %w", name, v, arch, err)
	}
	defer release()
	return fn()
}
