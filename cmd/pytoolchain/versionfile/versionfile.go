// Package versionfile reads requested Python versions from project files:
// plain .python-version files and pyproject.toml.
package versionfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/version"
)

// DefaultFile is read when neither versions nor a file are given.
const DefaultFile = ".python-version"

// ErrNotExist is returned when the requested version file is missing.
var ErrNotExist = errors.New("version file does not exist")

// pyproject holds the two places a pyproject.toml can pin Python.
type pyproject struct {
	Project *struct {
		RequiresPython *string `toml:"requires-python"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies struct {
				Python *string `toml:"python"`
			} `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// Read returns the versions in path. Files ending in .toml are parsed as
// pyproject.toml; anything else is a plain file with one version per line.
func Read(path string, logger observability.Logger) ([]string, error) {
	logger = observability.OrNull(logger)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("read version file: %w", err)
	}

	if strings.HasSuffix(path, ".toml") {
		return parseTOML(path, data, logger)
	}

	versions := ParsePlain(data)
	logger.Info("Resolved {File} as {Versions}", path, versions)
	return versions, nil
}

// ParsePlain splits a .python-version file into versions. Blank lines and
// # comments are skipped.
func ParsePlain(data []byte) []string {
	var versions []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		versions = append(versions, line)
	}
	return versions
}

// parseTOML reads project.requires-python when a [project] table exists,
// otherwise tool.poetry.dependencies.python. Commas become spaces so PEP
// 440 style lists read as semver ranges; values that still fail to parse
// as a range are dropped.
func parseTOML(path string, data []byte, logger observability.Logger) ([]string, error) {
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var raw *string
	if doc.Project != nil {
		raw = doc.Project.RequiresPython
	} else {
		raw = doc.Tool.Poetry.Dependencies.Python
	}
	if raw == nil {
		logger.Info("No Python version found in {File}", path)
		return nil, nil
	}

	logger.Info("Extracted {Version} from {File}", *raw, path)
	candidate := strings.Join(strings.Split(*raw, ","), " ")
	if !version.ValidRange(candidate) {
		logger.Debug("The version {Version} is not a valid range", candidate)
		return nil, nil
	}
	return []string{candidate}, nil
}
