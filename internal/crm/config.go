package crm

import (
	"fmt"
	"os"
	"time"
)

// Config holds CRM connection settings.
type Config struct {
	BaseURL     string `toml:"base_url"`
	AccessToken string `toml:"access_token"`
	Timeout     string `toml:"timeout"`
}

// Env defines environment variable names for CRM configuration overrides.
type Env struct {
	BaseURL     string
	AccessToken string
	Timeout     string
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.Timeout == "" {
		c.Timeout = "15s"
	}

	if env != nil {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
		if v := os.Getenv(env.AccessToken); v != "" {
			c.AccessToken = v
		}
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}

	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid crm timeout %q: %w", c.Timeout, err)
	}
	return nil
}

// Merge overlays non-empty values from overlay onto c.
func (c *Config) Merge(overlay *Config) {
	if overlay == nil {
		return
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.AccessToken != "" {
		c.AccessToken = overlay.AccessToken
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d <= 0 {
		d = 15 * time.Second
	}
	return d
}
