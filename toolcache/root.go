package toolcache

import (
	"path/filepath"

	"github.com/willibrandon/pytoolchain/platform"
)

// rootEnvVars are consulted in order for the cache root.
var rootEnvVars = []string{"AGENT_TOOLSDIRECTORY", "RUNNER_TOOL_CACHE", "RUNNER_TOOLSDIRECTORY"}

// DefaultRoot returns the tool cache root: the first of
// AGENT_TOOLSDIRECTORY, RUNNER_TOOL_CACHE and RUNNER_TOOLSDIRECTORY that
// is set, else <base>/actions/cache with an OS specific base.
func DefaultRoot(p platform.Platform, getenv func(string) string) string {
	for _, name := range rootEnvVars {
		if dir := getenv(name); dir != "" {
			return dir
		}
	}

	switch p.OS {
	case platform.Windows:
		base := getenv("USERPROFILE")
		if base == "" {
			base = `C:\`
		}
		return filepath.Join(base, "actions", "cache")
	case platform.Darwin:
		return filepath.Join("/Users", "actions", "cache")
	default:
		return filepath.Join("/home", "actions", "cache")
	}
}
