// Package config holds runtime configuration for a treefs mount: logging
// verbosity and the mount-time options handed to the FUSE host.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/treefs/internal/util"
	"gopkg.in/yaml.v3"
)

// CLI verbosity values, mapped onto internal log levels by NewConfig.
const (
	ErrorVerbose = 1
	WarnVerbose  = 2
	InfoVerbose  = 3
	DebugVerbose = 4
	TraceVerbose = 5
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultFsName         = "treefs"
	DefaultVerbose        = InfoVerbose
	DefaultDefaultOptions = true
)

// MountOptions holds high-level settings for mounting. No cgofuse types are
// exposed here.
type MountOptions struct {
	FsName string // mount's fsname option
	Name   string // human-readable mount name

	// DefaultOptions controls whether Serve expands the argument list with
	// serialized-access and default-permission flags plus the invoking
	// user's uid/gid. Opt out to supply a fully custom argument list.
	DefaultOptions bool

	// ExtraArgs are passed to the FUSE host verbatim, before any default
	// expansion.
	ExtraArgs []string
}

// Config contains runtime configuration values for a treefs mount.
type Config struct {
	MountOptions
	LogLvl util.LogLevel
}

// ConfigOverride uses pointer fields to distinguish between unset and zero
// values when loading partial configuration. LogLvl here is the CLI
// verbosity (1 error .. 5 trace), not the internal level.
type ConfigOverride struct {
	FsName         *string  `yaml:"fsname,omitempty" json:"fsname,omitempty"`
	Name           *string  `yaml:"name,omitempty" json:"name,omitempty"`
	DefaultOptions *bool    `yaml:"default_options,omitempty" json:"default_options,omitempty"`
	ExtraArgs      []string `yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
	LogLvl         *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName:         DefaultFsName,
			DefaultOptions: DefaultDefaultOptions,
		},
		LogLvl: util.InfoLevel,
	}
}

// NewConfig creates a Config from defaults merged with the provided
// override. A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config. This allows
// partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.DefaultOptions != nil {
		c.DefaultOptions = *override.DefaultOptions
	}
	if override.ExtraArgs != nil {
		c.ExtraArgs = override.ExtraArgs
	}
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLevel(*override.LogLvl)
	}
}

// VerboseToLevel clamps a CLI verbosity value to [1,5] and maps it to the
// internal log level.
func VerboseToLevel(verbose int) util.LogLevel {
	if verbose < ErrorVerbose {
		verbose = ErrorVerbose
	}
	if verbose > TraceVerbose {
		verbose = TraceVerbose
	}
	levels := [...]util.LogLevel{
		util.ErrorLevel,
		util.WarnLevel,
		util.InfoLevel,
		util.DebugLevel,
		util.TraceLevel,
	}
	return levels[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without
// merging. Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with
// defaults. Convenience wrapper around NewConfig and LoadConfigOverrideFile.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
