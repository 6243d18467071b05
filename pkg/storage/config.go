package storage

import (
	"fmt"
	"os"
)

// Backend identifiers for storage selection.
const (
	BackendAzure      = "azure"
	BackendFilesystem = "filesystem"
)

// Config holds storage backend selection and connection parameters.
// Container and ConnectionString apply to the azure backend; Root applies to
// the filesystem backend.
type Config struct {
	Backend          string `toml:"backend"`
	Container        string `toml:"container"`
	ConnectionString string `toml:"connection_string"`
	Root             string `toml:"root"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend          string
	Container        string
	ConnectionString string
	Root             string
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
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.Container != "" {
		c.Container = overlay.Container
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.Root != "" {
		c.Root = overlay.Root
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFilesystem
	}
	if c.Container == "" {
		c.Container = "dealdesk"
	}
	if c.Root == "" {
		c.Root = "data"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.Container != "" {
		if v := os.Getenv(env.Container); v != "" {
			c.Container = v
		}
	}
	if env.ConnectionString != "" {
		if v := os.Getenv(env.ConnectionString); v != "" {
			c.ConnectionString = v
		}
	}
	if env.Root != "" {
		if v := os.Getenv(env.Root); v != "" {
			c.Root = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendAzure:
		if c.ConnectionString == "" {
			return fmt.Errorf("connection_string required for azure backend")
		}
		if c.Container == "" {
			return fmt.Errorf("container required for azure backend")
		}
	case BackendFilesystem:
		if c.Root == "" {
			return fmt.Errorf("root required for filesystem backend")
		}
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}
	return nil
}
