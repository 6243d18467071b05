package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/strata-vc/dealdesk/internal/crm"
	"github.com/strata-vc/dealdesk/internal/ingest"
	"github.com/strata-vc/dealdesk/internal/research"
	"github.com/strata-vc/dealdesk/internal/rubric"
	"github.com/strata-vc/dealdesk/pkg/database"
	"github.com/strata-vc/dealdesk/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvDealdeskEnv             = "DEALDESK_ENV"
	EnvDealdeskShutdownTimeout = "DEALDESK_SHUTDOWN_TIMEOUT"
	EnvDealdeskVersion         = "DEALDESK_VERSION"
	EnvDealdeskDisableOCR      = "DEALDESK_EVIDENCE_DISABLE_OCR"
)

var databaseEnv = &database.Env{
	Host:            "DEALDESK_DB_HOST",
	Port:            "DEALDESK_DB_PORT",
	Name:            "DEALDESK_DB_NAME",
	User:            "DEALDESK_DB_USER",
	Password:        "DEALDESK_DB_PASSWORD",
	SSLMode:         "DEALDESK_DB_SSL_MODE",
	MaxOpenConns:    "DEALDESK_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "DEALDESK_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "DEALDESK_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "DEALDESK_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Backend:          "DEALDESK_STORAGE_BACKEND",
	Container:        "DEALDESK_STORAGE_CONTAINER",
	ConnectionString: "DEALDESK_STORAGE_CONNECTION_STRING",
	Root:             "DEALDESK_STORAGE_ROOT",
}

var crmEnv = &crm.Env{
	BaseURL:     "DEALDESK_CRM_BASE_URL",
	AccessToken: "DEALDESK_CRM_ACCESS_TOKEN",
	Timeout:     "DEALDESK_CRM_TIMEOUT",
}

var rubricEnv = &rubric.Env{
	CategoriesSource: "DEALDESK_RUBRIC_CATEGORIES_SOURCE",
	FieldsSource:     "DEALDESK_RUBRIC_FIELDS_SOURCE",
	CacheTTL:         "DEALDESK_RUBRIC_CACHE_TTL",
}

var researchEnv = &research.Env{
	SearchEndpoint: "DEALDESK_RESEARCH_SEARCH_ENDPOINT",
	APIKey:         "DEALDESK_RESEARCH_API_KEY",
	Timeout:        "DEALDESK_RESEARCH_TIMEOUT",
}

var ingestEnv = &ingest.Env{
	FetchTimeout:  "DEALDESK_INGEST_FETCH_TIMEOUT",
	MirrorURL:     "DEALDESK_INGEST_MIRROR_URL",
	MaxFetchBytes: "DEALDESK_INGEST_MAX_FETCH_BYTES",
}

// Config is the root configuration for the dealdesk service.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	API             APIConfig            `toml:"api"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	CRM             crm.Config           `toml:"crm"`
	Rubric          rubric.Config        `toml:"rubric"`
	Research        research.Config      `toml:"research"`
	Ingest          ingest.Config        `toml:"ingest"`
	DisableOCR      bool                 `toml:"disable_ocr"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the DEALDESK_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvDealdeskEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.DisableOCR {
		c.DisableOCR = true
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.CRM.Merge(&overlay.CRM)
	c.Rubric.Merge(&overlay.Rubric)
	c.Research.Merge(&overlay.Research)
	c.Ingest.Merge(&overlay.Ingest)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := FinalizeAgent(&c.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.CRM.Finalize(crmEnv); err != nil {
		return fmt.Errorf("crm: %w", err)
	}
	if err := c.Rubric.Finalize(rubricEnv); err != nil {
		return fmt.Errorf("rubric: %w", err)
	}
	if err := c.Research.Finalize(researchEnv); err != nil {
		return fmt.Errorf("research: %w", err)
	}
	if err := c.Ingest.Finalize(ingestEnv); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvDealdeskShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvDealdeskVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvDealdeskDisableOCR); v != "" {
		c.DisableOCR = v == "true" || v == "1"
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvDealdeskEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
