package research

import (
	"fmt"
	"os"
	"time"
)

// Config holds research endpoint settings.
type Config struct {
	SearchEndpoint string `toml:"search_endpoint"`
	APIKey         string `toml:"api_key"`
	Timeout        string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d <= 0 {
		d = 15 * time.Second
	}
	return d
}

// Env defines environment variable names for research configuration
// overrides.
type Env struct {
	SearchEndpoint string
	APIKey         string
	Timeout        string
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.Timeout == "" {
		c.Timeout = "15s"
	}

	if env != nil {
		if v := os.Getenv(env.SearchEndpoint); v != "" {
			c.SearchEndpoint = v
		}
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}

	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid research timeout %q: %w", c.Timeout, err)
	}
	return nil
}

// Merge overlays non-empty values from overlay onto c.
func (c *Config) Merge(overlay *Config) {
	if overlay == nil {
		return
	}
	if overlay.SearchEndpoint != "" {
		c.SearchEndpoint = overlay.SearchEndpoint
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}
