// Package config loads CLI settings from flags, PYTOOLCHAIN_* environment
// variables and an optional pytoolchain.yaml or pytoolchain.toml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/willibrandon/pytoolchain/cache"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/toolcache"
)

// AppName names the config file, env prefix and user directories.
const AppName = "pytoolchain"

// Settings is everything the CLI needs to build a resolver.
type Settings struct {
	ToolCache string `mapstructure:"tool_cache"`
	Arch      string `mapstructure:"arch"`
	Token     string `mapstructure:"token"`

	LogLevel      string `mapstructure:"log_level"`
	TraceExporter string `mapstructure:"trace_exporter"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	MetricsFile   string `mapstructure:"metrics_file"`

	// ManifestCacheDir holds cached manifest bodies. Empty disables the
	// disk tier.
	ManifestCacheDir string        `mapstructure:"manifest_cache_dir"`
	ManifestMaxAge   time.Duration `mapstructure:"manifest_max_age"`
	NoManifestCache  bool          `mapstructure:"no_manifest_cache"`

	// HTTP3 tries QUIC before TCP for https downloads.
	HTTP3 bool `mapstructure:"http3"`

	CPythonManifestURL string `mapstructure:"cpython_manifest_url"`
	PyPyManifestURL    string `mapstructure:"pypy_manifest_url"`
	GraalPyManifestURL string `mapstructure:"graalpy_manifest_url"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// flagKeys maps CLI flag names to setting keys.
var flagKeys = map[string]string{
	"tool-cache":         "tool_cache",
	"arch":               "arch",
	"token":              "token",
	"log-level":          "log_level",
	"trace-exporter":     "trace_exporter",
	"otlp-endpoint":      "otlp_endpoint",
	"metrics-file":       "metrics_file",
	"manifest-cache-dir": "manifest_cache_dir",
	"no-manifest-cache":  "no_manifest_cache",
	"http3":              "http3",
}

// Load merges, lowest precedence first: defaults, the config file, the
// environment and flags that were set. A configFile that does not exist is
// an error; without one, pytoolchain.{yaml,toml} is looked up in the
// working directory and the user config directory.
func Load(flags *pflag.FlagSet, configFile string, getenv func(string) string) (*Settings, error) {
	v := viper.New()

	// Every key needs a default so AutomaticEnv values reach Unmarshal.
	v.SetDefault("tool_cache", toolcache.DefaultRoot(platform.Current(), getenv))
	v.SetDefault("arch", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("no_manifest_cache", false)
	v.SetDefault("http3", false)
	v.SetDefault("cpython_manifest_url", "")
	v.SetDefault("pypy_manifest_url", "")
	v.SetDefault("graalpy_manifest_url", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("trace_exporter", observability.ExporterNone)
	v.SetDefault("otlp_endpoint", observability.DefaultTracerConfig().OTLPEndpoint)
	v.SetDefault("manifest_cache_dir", defaultManifestCacheDir())
	v.SetDefault("manifest_max_age", cache.DefaultMaxAge)

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("token", "PYTOOLCHAIN_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file not found: %s", configFile)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, AppName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	s.ConfigFile = v.ConfigFileUsed()

	return &s, nil
}

func defaultManifestCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, "manifests")
}
