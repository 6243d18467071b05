package rubric

import (
	"fmt"
	"os"
	"time"
)

// Config holds rubric source and cache settings.
type Config struct {
	CategoriesSource string `toml:"categories_source"`
	FieldsSource     string `toml:"fields_source"`
	CacheTTL         string `toml:"cache_ttl"`
}

// Env defines environment variable names for rubric configuration overrides.
type Env struct {
	CategoriesSource string
	FieldsSource     string
	CacheTTL         string
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.CacheTTL == "" {
		c.CacheTTL = "10m"
	}

	if env != nil {
		if v := os.Getenv(env.CategoriesSource); v != "" {
			c.CategoriesSource = v
		}
		if v := os.Getenv(env.FieldsSource); v != "" {
			c.FieldsSource = v
		}
		if v := os.Getenv(env.CacheTTL); v != "" {
			c.CacheTTL = v
		}
	}

	if _, err := time.ParseDuration(c.CacheTTL); err != nil {
		return fmt.Errorf("invalid rubric cache ttl %q: %w", c.CacheTTL, err)
	}
	return nil
}

// Merge overlays non-empty values from overlay onto c.
func (c *Config) Merge(overlay *Config) {
	if overlay == nil {
		return
	}
	if overlay.CategoriesSource != "" {
		c.CategoriesSource = overlay.CategoriesSource
	}
	if overlay.FieldsSource != "" {
		c.FieldsSource = overlay.FieldsSource
	}
	if overlay.CacheTTL != "" {
		c.CacheTTL = overlay.CacheTTL
	}
}

// TTLDuration returns CacheTTL as a time.Duration.
func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
	if d <= 0 {
		d = 10 * time.Minute
	}
	return d
}
