package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// HashLength is the number of SHA-256 bytes used for directory names.
	HashLength = 20

	// FileExtension is appended to every cached body.
	FileExtension = ".json"
)

// DiskCache stores manifest bodies under rootDir, one directory per
// manifest URL. Freshness is the file modification time.
type DiskCache struct {
	rootDir string
}

// NewDiskCache creates rootDir if needed.
func NewDiskCache(rootDir string) (*DiskCache, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &DiskCache{rootDir: rootDir}, nil
}

// ComputeHash returns a hex digest of value. With readable set, the last
// 32 characters of value are appended after a '$'.
func ComputeHash(value string, readable bool) string {
	sum := sha256.Sum256([]byte(value))
	hash := hex.EncodeToString(sum[:HashLength])
	if !readable {
		return hash
	}

	trailing := value
	if len(value) > 32 {
		trailing = value[len(value)-32:]
	}
	return hash + "$" + SanitizeFileName(trailing)
}

// SanitizeFileName replaces characters that are not valid in a file name on
// any supported OS with '_'.
func SanitizeFileName(value string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', 0:
			return '_'
		}
		return r
	}, value)

	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}

// Path returns the file backing sourceURL and key.
func (dc *DiskCache) Path(sourceURL, key string) string {
	return filepath.Join(dc.rootDir, ComputeHash(sourceURL, true), SanitizeFileName(key)+FileExtension)
}

// Get opens the body for sourceURL and key if it is younger than maxAge.
// A missing or stale file is a miss, not an error.
func (dc *DiskCache) Get(sourceURL, key string, maxAge time.Duration) (io.ReadCloser, bool, error) {
	path := dc.Path(sourceURL, key)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if time.Since(info.ModTime()) >= maxAge {
		return nil, false, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return file, true, nil
}

// Set writes data for sourceURL and key. The body is written to a uniquely
// named sibling first and renamed into place, so readers never observe a
// partial file. validate, when non-nil, sees the written body before the
// rename and can reject it.
func (dc *DiskCache) Set(sourceURL, key string, data io.Reader, validate func(io.ReadSeeker) error) error {
	path := dc.Path(sourceURL, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tempPath := path + "-new." + uuid.NewString()
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tempPath) }()

	if err := writeAndValidate(tempFile, data, validate); err != nil {
		_ = tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		// Windows refuses to rename over an existing file.
		_ = os.Remove(path)
		if err := os.Rename(tempPath, path); err != nil {
			return fmt.Errorf("move cache file: %w", err)
		}
	}
	return nil
}

func writeAndValidate(file *os.File, data io.Reader, validate func(io.ReadSeeker) error) error {
	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if validate == nil {
		return nil
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek temp file: %w", err)
	}
	if err := validate(file); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Delete removes the body for sourceURL and key.
func (dc *DiskCache) Delete(sourceURL, key string) error {
	err := os.Remove(dc.Path(sourceURL, key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes every cached body.
func (dc *DiskCache) Clear() error {
	return os.RemoveAll(dc.rootDir)
}
