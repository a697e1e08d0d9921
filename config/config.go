// Package config handles intcode.toml configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/krehermann/intcode/intcode"
)

type Config struct {
	Log     Log     `toml:"log"`
	Machine Machine `toml:"machine"`
	Search  Search  `toml:"search"`
	API     API     `toml:"api"`
	Store   Store   `toml:"store"`
}

type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

type Machine struct {
	Memory      int `toml:"memory"`
	MemoryLimit int `toml:"memory_limit"`
}

type Search struct {
	// Parallelism of zero means one permutation per CPU.
	Parallelism int `toml:"parallelism"`
}

type API struct {
	Addr string `toml:"addr"`
}

type Store struct {
	// Backend is bolt, badger or memory.
	Backend string `toml:"backend"`
	// Path of the result cache file or directory; empty keeps results in memory.
	Path string `toml:"path"`
}

func Default() *Config {
	return &Config{
		Log: Log{
			Level:       "info",
			Development: true,
		},
		Machine: Machine{
			Memory:      intcode.DefaultMemorySize,
			MemoryLimit: intcode.DefaultMemoryLimit,
		},
		API: API{
			Addr: ":8080",
		},
		Store: Store{
			Backend: "bolt",
		},
	}
}

// Load overlays the TOML file at path on the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Machine.Memory < 0 {
		return fmt.Errorf("machine.memory must not be negative, got %d", c.Machine.Memory)
	}
	if c.Machine.MemoryLimit < 0 {
		return fmt.Errorf("machine.memory_limit must not be negative, got %d", c.Machine.MemoryLimit)
	}
	switch c.Store.Backend {
	case "bolt", "badger", "memory":
	default:
		return fmt.Errorf("store.backend must be bolt, badger or memory, got %q", c.Store.Backend)
	}
	if c.Search.Parallelism < 0 {
		return fmt.Errorf("search.parallelism must not be negative, got %d", c.Search.Parallelism)
	}
	return nil
}

// MachineOptions translates the machine section into machine options.
func (c *Config) MachineOptions() []intcode.Option {
	var opts []intcode.Option
	if c.Machine.Memory > 0 {
		opts = append(opts, intcode.WithMemorySize(c.Machine.Memory))
	}
	if c.Machine.MemoryLimit > 0 {
		opts = append(opts, intcode.WithMemoryLimit(c.Machine.MemoryLimit))
	}
	return opts
}

// Logger builds the zap logger described by the log section.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
