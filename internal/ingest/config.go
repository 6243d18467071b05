package ingest

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds link ingestion settings.
type Config struct {
	FetchTimeout  string `toml:"fetch_timeout"`
	MirrorURL     string `toml:"mirror_url"`
	MaxFetchBytes int64  `toml:"max_fetch_bytes"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	FetchTimeout  string
	MirrorURL     string
	MaxFetchBytes string
}

// FetchTimeoutDuration returns FetchTimeout as a time.Duration.
func (c *Config) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.FetchTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.FetchTimeout != "" {
		c.FetchTimeout = overlay.FetchTimeout
	}
	if overlay.MirrorURL != "" {
		c.MirrorURL = overlay.MirrorURL
	}
	if overlay.MaxFetchBytes != 0 {
		c.MaxFetchBytes = overlay.MaxFetchBytes
	}
}

func (c *Config) loadDefaults() {
	if c.FetchTimeout == "" {
		c.FetchTimeout = "20s"
	}
	if c.MaxFetchBytes == 0 {
		c.MaxFetchBytes = 4 << 20
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.FetchTimeout != "" {
		if v := os.Getenv(env.FetchTimeout); v != "" {
			c.FetchTimeout = v
		}
	}
	if env.MirrorURL != "" {
		if v := os.Getenv(env.MirrorURL); v != "" {
			c.MirrorURL = v
		}
	}
	if env.MaxFetchBytes != "" {
		if v := os.Getenv(env.MaxFetchBytes); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				c.MaxFetchBytes = n
			}
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.FetchTimeout); err != nil {
		return fmt.Errorf("invalid fetch_timeout: %w", err)
	}
	return nil
}
