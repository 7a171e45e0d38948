package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// StorageBackend selects the API server's repositories.
type StorageBackend string

const (
	StorageMemory   StorageBackend = "memory"
	StoragePostgres StorageBackend = "postgres"
)

// APIConfig configures the reference catalog API server (cmd/api).
type APIConfig struct {
	Port            string         `envconfig:"PORT"             default:"8080"`
	StorageBackend  StorageBackend `envconfig:"STORAGE_BACKEND"  default:"memory"`
	DatabaseURL     string         `envconfig:"DATABASE_URL"`
	DevOwner        string         `envconfig:"DEV_OWNER"        default:"dev-owner"`
	LogLevel        string         `envconfig:"LOG_LEVEL"        default:"info"`
	LogFormat       string         `envconfig:"LOG_FORMAT"       default:"json"`
	ShutdownTimeout time.Duration  `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// IdempotencyTTL bounds how long a stored response can be replayed. Zero
	// keeps records forever.
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

// ClientConfig configures the inventory client (the optimistic engine and its
// HTTP transport).
type ClientConfig struct {
	APIURL            string        `envconfig:"CATALOG_API_URL"     default:"http://localhost:8080"`
	APITimeout        time.Duration `envconfig:"CATALOG_API_TIMEOUT" default:"10s"`
	Owner             string        `envconfig:"CATALOG_OWNER"`
	NameCheckDebounce time.Duration `envconfig:"NAME_CHECK_DEBOUNCE" default:"500ms"`
	ListPageSize      int           `envconfig:"LIST_PAGE_SIZE"      default:"20"`
}

// LoadDotEnv loads .env from the working directory if it exists. Variables
// already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadAPIConfig() (APIConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return APIConfig{}, err
	}
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return APIConfig{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return APIConfig{}, err
	}
	return cfg, nil
}

func (c APIConfig) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=%s", StoragePostgres)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageMemory, StoragePostgres, c.StorageBackend)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.IdempotencyTTL < 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must not be negative")
	}
	return nil
}

func LoadClientConfig() (ClientConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return ClientConfig{}, err
	}
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func (c ClientConfig) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CATALOG_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("CATALOG_API_TIMEOUT must be positive")
	}
	if c.NameCheckDebounce <= 0 {
		return fmt.Errorf("NAME_CHECK_DEBOUNCE must be positive")
	}
	if c.ListPageSize < 1 || c.ListPageSize > 100 {
		return fmt.Errorf("LIST_PAGE_SIZE must be between 1 and 100")
	}
	return nil
}
