// Package config loads and validates the optional .rocker YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file.
const FileName = ".rocker"

// DefaultTool is the container CLI invoked when none is configured.
const DefaultTool = "docker"

// Config holds the parsed .rocker configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version       int         `yaml:"version"`
	RawTool       string      `yaml:"tool"`        // binary name or path, e.g. "podman"
	RawTimeout    string      `yaml:"timeout"`     // e.g. "10m"; empty means no watchdog
	RawLogLevel   string      `yaml:"log_level"`   // logrus level name
	RawHistoryDir string      `yaml:"history_dir"` // where run results are kept
	Build         BuildConfig `yaml:"build"`
}

// BuildConfig holds defaults for docker build.
type BuildConfig struct {
	File    string            `yaml:"file"`    // Dockerfile path
	Context string            `yaml:"context"` // build context directory
	Args    map[string]string `yaml:"args"`    // --build-arg values applied to every build
}

// Tool returns the configured container CLI or the default.
func (c *Config) Tool() string {
	if c.RawTool != "" {
		return c.RawTool
	}
	return DefaultTool
}

// Timeout returns the configured watchdog timeout. Zero disables it.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// LogLevel returns the configured log level, falling back to info.
func (c *Config) LogLevel() logrus.Level {
	if c.RawLogLevel != "" {
		if lvl, err := logrus.ParseLevel(c.RawLogLevel); err == nil {
			return lvl
		}
	}
	return logrus.InfoLevel
}

// HistoryDir returns the directory run results are written to. Relative
// paths are resolved against root. The default lives under the XDG state
// directory.
func (c *Config) HistoryDir(root string) string {
	if c.RawHistoryDir != "" {
		if filepath.IsAbs(c.RawHistoryDir) {
			return c.RawHistoryDir
		}
		return filepath.Join(root, c.RawHistoryDir)
	}
	return filepath.Join(xdg.StateHome, "rocker", "runs")
}

// Validate reports fields that are present but unusable.
func (c *Config) Validate() error {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("timeout: must not be negative, got %s", c.RawTimeout)
		}
	}
	if c.RawLogLevel != "" {
		if _, err := logrus.ParseLevel(c.RawLogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// LoadResult holds the parsed config and the directory it was found in.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .rocker; falls back to workspace
}

// Load reads the .rocker file from workspace or the nearest parent
// directory that has one. If none exists, a default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findConfigRoot(workspace)
	if err != nil {
		// No .rocker found; use workspace as root.
		return &LoadResult{Config: &Config{}, Root: workspace}, nil
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Root: root}, nil
}

// findConfigRoot walks upward from dir looking for a directory containing .rocker.
func findConfigRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, FileName)); err == nil && !fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
