package versionfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
	}{
		{"plain", ".python-version", "3.7\n", []string{"3.7"}},
		{"plain multi-line", ".python-version", "3.12\n\n# legacy\npypy3.10\n", []string{"3.12", "pypy3.10"}},
		{"plain any name", "python-version.file", "3.13t", []string{"3.13t"}},
		{"pep 621", "pyproject.toml", "[project]\nrequires-python = \">=3.7.0\"\n", []string{">=3.7.0"}},
		{"poetry", "pyproject.toml", "[tool.poetry.dependencies]\npython = \">=3.7.0\"\n", []string{">=3.7.0"}},
		{"commas become spaces", "pyproject.toml", "[project]\nrequires-python = \">=3.8,<3.12\"\n", []string{">=3.8 <3.12"}},
		{"project table wins", "pyproject.toml", "[project]\nname = \"app\"\n\n[tool.poetry.dependencies]\npython = \"^3.9\"\n", nil},
		{"invalid range dropped", "pyproject.toml", "[project]\nrequires-python = \"three\"\n", nil},
		{"empty toml", "pyproject.toml", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(writeFile(t, tt.file, tt.content), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), DefaultFile), nil)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestRead_MalformedTOML(t *testing.T) {
	_, err := Read(writeFile(t, "pyproject.toml", "[project\n"), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotExist)
}
