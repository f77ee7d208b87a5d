package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const configFileName = "jclass.toml"

// Config is a jclass.toml file.
type Config struct {
	ClassPath ClassPathConfig `toml:"classpath"`
	Output    OutputConfig    `toml:"output"`
	Decode    DecodeConfig    `toml:"decode"`

	// Dir is the directory containing the config file (set at load time).
	Dir string `toml:"-"`
}

// ClassPathConfig lists where classes are looked up by name.
type ClassPathConfig struct {
	Entries []string `toml:"entries"`
	Jmod    string   `toml:"jmod"`
}

// OutputConfig sets output defaults.
type OutputConfig struct {
	Format string `toml:"format"`
	Color  string `toml:"color"` // auto, always or never
}

// DecodeConfig sets decoder options.
type DecodeConfig struct {
	UnknownConstantTags bool `toml:"unknown-constant-tags"`
}

// LoadConfig parses a config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if c.Output.Format == "" {
		c.Output.Format = "text"
	}
	if c.Output.Color == "" {
		c.Output.Color = "auto"
	}
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return nil, fmt.Errorf("%s: output.color must be auto, always or never, got %q", path, c.Output.Color)
	}

	return &c, nil
}

// FindConfig walks up from startDir to find a jclass.toml file and loads it.
// It returns nil if there is none.
func FindConfig(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// ClassPathEntries returns the configured entries with relative paths
// resolved against the config directory.
func (c *Config) ClassPathEntries() []string {
	paths := make([]string, 0, len(c.ClassPath.Entries))
	for _, e := range c.ClassPath.Entries {
		if !filepath.IsAbs(e) {
			e = filepath.Join(c.Dir, e)
		}
		paths = append(paths, e)
	}
	return paths
}

// JmodPath returns the configured jmod path, resolved like the entries.
func (c *Config) JmodPath() string {
	if c.ClassPath.Jmod == "" || filepath.IsAbs(c.ClassPath.Jmod) {
		return c.ClassPath.Jmod
	}
	return filepath.Join(c.Dir, c.ClassPath.Jmod)
}
