// Package config loads .crag.toml and applies defaults. CLI flags
// override file values; the file is optional.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	cragerrors "github.com/standardbeagle/crag/internal/errors"
)

// DefaultConfigFile is the file name looked up in the project root.
const DefaultConfigFile = ".crag.toml"

type Config struct {
	Project Project
	Loader  Loader
	Output  Output
}

type Project struct {
	// Root is the directory scanned for dump files.
	Root string `toml:"root"`
	Name string `toml:"name"`
}

type Loader struct {
	// Include and Exclude are doublestar globs relative to the root.
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
	// Workers caps the parallel parser goroutines; 0 selects NumCPU.
	Workers int `toml:"workers"`
	// WatchDebounceMs batches bursts of file events in watch mode.
	WatchDebounceMs int `toml:"watch_debounce_ms"`
}

type Output struct {
	Files           bool `toml:"files"`
	IncludeExternal bool `toml:"include_external"`
	IncludeRef      bool `toml:"include_ref"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Project: Project{Root: "."},
		Loader: Loader{
			Include:         []string{"**/*.expand"},
			Workers:         0,
			WatchDebounceMs: 200,
		},
	}
}

// Load reads the file at path on top of the defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, cragerrors.NewConfigError("file", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, cragerrors.NewConfigError("file", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the loader cannot work with.
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return cragerrors.NewConfigError("project.root", "", fmt.Errorf("must not be empty"))
	}
	if c.Loader.Workers < 0 {
		return cragerrors.NewConfigError("loader.workers",
			fmt.Sprintf("%d", c.Loader.Workers), fmt.Errorf("must be >= 0"))
	}
	if c.Loader.WatchDebounceMs < 0 {
		return cragerrors.NewConfigError("loader.watch_debounce_ms",
			fmt.Sprintf("%d", c.Loader.WatchDebounceMs), fmt.Errorf("must be >= 0"))
	}
	if len(c.Loader.Include) == 0 {
		c.Loader.Include = Default().Loader.Include
	}
	return nil
}

// EffectiveWorkers resolves the worker count.
func (c *Config) EffectiveWorkers() int {
	if c.Loader.Workers > 0 {
		return c.Loader.Workers
	}
	return runtime.NumCPU()
}
