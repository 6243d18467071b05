package config

import (
	"strings"
	"testing"
)

func TestServerConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg ServerConfig
		if err := cfg.Finalize(); err != nil {
			t.Fatalf("Finalize: %v", err)
		}

		if cfg.Addr() != "0.0.0.0:8080" {
			t.Errorf("addr = %q", cfg.Addr())
		}
		if cfg.WriteTimeout != "15m" || cfg.IdleTimeout != "2m" {
			t.Errorf("timeouts = %q %q", cfg.WriteTimeout, cfg.IdleTimeout)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv(EnvServerPort, "9090")
		t.Setenv(EnvServerIdleTimeout, "30s")

		var cfg ServerConfig
		if err := cfg.Finalize(); err != nil {
			t.Fatalf("Finalize: %v", err)
		}

		if cfg.Port != 9090 || cfg.IdleTimeout != "30s" {
			t.Errorf("port = %d, idle = %q", cfg.Port, cfg.IdleTimeout)
		}
	})

	t.Run("invalid duration rejected", func(t *testing.T) {
		cfg := ServerConfig{IdleTimeout: "soon"}
		err := cfg.Finalize()
		if err == nil || !strings.Contains(err.Error(), "idle_timeout") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("merge keeps base fields the overlay omits", func(t *testing.T) {
		cfg := ServerConfig{Host: "127.0.0.1", Port: 8080, IdleTimeout: "2m"}
		cfg.Merge(&ServerConfig{Port: 9090})

		if cfg.Host != "127.0.0.1" || cfg.Port != 9090 || cfg.IdleTimeout != "2m" {
			t.Errorf("cfg = %+v", cfg)
		}
	})
}
