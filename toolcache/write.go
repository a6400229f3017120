package toolcache

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CacheDir copies the tree at src into the cache as name/version/arch and
// then writes the completion marker. Any previous install under the same
// key is replaced. Writers of the same key are serialized through an OS
// file lock. It returns the install path.
func (ix *Index) CacheDir(ctx context.Context, src, name, v, arch string) (string, error) {
	if name == "" || v == "" || arch == "" {
		return "", fmt.Errorf("cache %s: name, version and arch are required", src)
	}

	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("cache %s: %w", src, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("cache %s: not a directory", src)
	}

	dest := ix.installPath(name, v, arch)
	marker := dest + CompleteSuffix

	release, err := lockInstall(ctx, dest)
	if err != nil {
		return "", fmt.Errorf("lock %s: %w", dest, err)
	}
	defer release()

	if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove completion marker: %w", err)
	}
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("remove previous install: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create install directory: %w", err)
	}

	ix.logger.Debug("Caching {Source} as {Name} {Version} ({Arch})", src, name, v, arch)
	if err := copyTree(src, dest); err != nil {
		return "", fmt.Errorf("copy %s to %s: %w", src, dest, err)
	}

	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return "", fmt.Errorf("write completion marker: %w", err)
	}
	return dest, nil
}

// copyTree copies regular files, directories and symlinks, keeping modes.
// Interpreter trees rely on symlinks such as bin/python3 -> python3.12.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch mode := info.Mode(); {
		case mode.IsDir():
			return os.MkdirAll(target, mode.Perm()|0o700)
		case mode&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case mode.IsRegular():
			return copyFile(path, target, mode.Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dest string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
