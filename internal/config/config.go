// Package config loads flowtabs settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as "90m" or "12h" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 || string(text) == "never" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	if d.Duration == 0 {
		return []byte("never"), nil
	}
	return []byte(d.Duration.String()), nil
}

// ProfileConfig declares a profile and the spaces that belong to it.
type ProfileConfig struct {
	ID     string   `toml:"id"`
	Spaces []string `toml:"spaces"`
}

// Config holds the flowtabs configuration.
type Config struct {
	Port   int    `toml:"port"`
	DBPath string `toml:"db_path"`
	LogDir string `toml:"log_dir"`
	// Surface is "headless" or "chrome".
	Surface        string          `toml:"surface"`
	ChromePath     string          `toml:"chrome_path"`
	SleepAfter     Duration        `toml:"sleep_after"`
	ArchiveAfter   Duration        `toml:"archive_after"`
	DefaultProfile string          `toml:"default_profile"`
	DefaultSpace   string          `toml:"default_space"`
	Profiles       []ProfileConfig `toml:"profiles"`
}

const (
	SurfaceHeadless = "headless"
	SurfaceChrome   = "chrome"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           19191,
		LogDir:         DefaultDataDir(),
		Surface:        SurfaceHeadless,
		SleepAfter:     Duration{time.Hour},
		DefaultProfile: "default",
		DefaultSpace:   "home",
	}
}

// DefaultDataDir is ~/.local/share/flowtabs.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".local", "share", "flowtabs")
	}
	return filepath.Join(home, ".local", "share", "flowtabs")
}

// DefaultPath returns ~/.config/flowtabs/config.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "flowtabs", "config.toml")
	}
	return filepath.Join(home, ".config", "flowtabs", "config.toml")
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("FLOWTABS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLOWTABS_PORT: %w", err)
		}
		c.Port = port
	}
	if v := getenv("FLOWTABS_DB"); v != "" {
		c.DBPath = v
	}
	if v := getenv("FLOWTABS_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := getenv("FLOWTABS_SURFACE"); v != "" {
		c.Surface = v
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Surface {
	case SurfaceHeadless, SurfaceChrome:
	default:
		return fmt.Errorf("unknown surface %q", c.Surface)
	}
	seen := make(map[string]bool)
	for _, p := range c.Profiles {
		if p.ID == "" {
			return errors.New("profile without id")
		}
		for _, s := range p.Spaces {
			if seen[s] {
				return fmt.Errorf("space %q declared twice", s)
			}
			seen[s] = true
		}
	}
	return nil
}

// ProfileList returns the declared profiles, or the default profile with
// the default space when none are declared.
func (c *Config) ProfileList() []ProfileConfig {
	if len(c.Profiles) > 0 {
		return c.Profiles
	}
	return []ProfileConfig{{ID: c.DefaultProfile, Spaces: []string{c.DefaultSpace}}}
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}
