package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the global ~/.nexus/config.toml.
type Config struct {
	DefaultSession string         `toml:"default_session"`
	API            APIConfig      `toml:"api"`
	Identity       IdentityConfig `toml:"identity"`
}

// APIConfig holds the backend connection settings.
type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Version string   `toml:"version"`
	Timeout duration `toml:"timeout"`
}

// IdentityConfig holds the identity-provider client settings.
type IdentityConfig struct {
	APIKey string `toml:"api_key"`
}

// duration wraps time.Duration so it can be parsed from TOML strings.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads config from the given path, applies environment overrides
// and fills defaults. A missing file is not an error: environment-only
// configuration is supported for scripted use.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NEXUS_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("NEXUS_API_VERSION"); v != "" {
		c.API.Version = v
	}
	if v := os.Getenv("NEXUS_IDENTITY_API_KEY"); v != "" {
		c.Identity.APIKey = v
	}
	if v := os.Getenv("NEXUS_SESSION"); v != "" {
		c.DefaultSession = v
	}
}

func (c *Config) setDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000"
	}
	if c.API.Version == "" {
		c.API.Version = "v1"
	}
	if c.API.Timeout.Duration == 0 {
		c.API.Timeout.Duration = 30 * time.Second
	}
}
