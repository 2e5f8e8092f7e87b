// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/kit-ty-kate/dune-release/internal/issue"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "dune-release"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"

	// DefaultBuildDir is where distribution archives are looked up and
	// extracted when the user does not override it.
	DefaultBuildDir = "_build"
)

// Config holds the user-level configuration. Every key can be overridden
// per-invocation by the corresponding CLI flag.
type Config struct {
	// Delegate is the default external publication tool.
	Delegate string `mapstructure:"delegate" toml:"delegate"`
	// BuildDir is the default build directory for archives and doc builds.
	BuildDir string `mapstructure:"build-dir" toml:"build-dir"`
	// KeepV keeps the "v" prefix when deriving versions from tags.
	KeepV bool `mapstructure:"keep-v" toml:"keep-v"`
	// Token is the default authentication token passed to delegates.
	Token string `mapstructure:"token" toml:"token"`
}

// dirOverride allows tests to redirect the config directory.
//
//nolint:gochecknoglobals // Test seam, mirrors the flag override mechanism.
var dirOverride string

// SetDirOverride redirects the config directory, primarily for tests.
// Pass the empty string to restore the default resolution.
func SetDirOverride(dir string) {
	dirOverride = dir
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		BuildDir: DefaultBuildDir,
	}
}

// Dir returns the dune-release configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
func Dir() (string, error) {
	if dirOverride != "" {
		return dirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Path returns the full path to the config file, whether or not it exists.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// Load reads the config file if present and returns the merged configuration.
// A missing config file is not an error: defaults apply.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("delegate", defaults.Delegate)
	v.SetDefault("build-dir", defaults.BuildDir)
	v.SetDefault("keep-v", defaults.KeepV)
	v.SetDefault("token", defaults.Token)

	if fileExists(path) {
		v.SetConfigFile(path)
		v.SetConfigType(ConfigFileExt)
		if err := v.ReadInConfig(); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid TOML syntax").
				WithSuggestion("Run 'dune-release config init --force' to regenerate it").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Init writes a default config file and returns its path. It refuses to
// overwrite an existing file unless force is set.
func Init(force bool) (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}

	if fileExists(path) && !force {
		return "", issue.NewErrorContext().
			WithOperation("initialize configuration").
			WithResource(path).
			WithSuggestion("Use --force to overwrite the existing file").
			Wrap(fmt.Errorf("config file already exists")).
			BuildError()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("failed to marshal default config: %w", err)
	}

	header := "# dune-release configuration.\n# Every key can be overridden by the matching CLI flag.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
