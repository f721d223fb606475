// pkg/config/services.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// SmartyConfig holds credentials and batching limits for the street-address
// verification API.
type SmartyConfig struct {
	AuthID    string
	AuthToken string
	BaseURL   string

	// Batching limits
	BatchSize       int
	MinBatchSize    int
	MaxPayloadBytes int

	// Retry behavior
	MaxRetries     int
	RateLimitDelay time.Duration
	Timeout        time.Duration

	// Batch dispatch concurrency
	MaxConcurrentBatches int
}

// LedgerConfig holds the optional database sink for corrections and errors.
// Driver selects between the sqlite and postgres drivers; an empty driver
// disables persistence.
type LedgerConfig struct {
	Driver string
	DSN    string
}

// LoadSmartyConfig loads verification service configuration from environment
// variables. Missing credentials are not an error here: the pipeline runs
// without the verification stage when Enabled reports false.
func LoadSmartyConfig() *SmartyConfig {
	return &SmartyConfig{
		AuthID:    os.Getenv("SMARTY_AUTH_ID"),
		AuthToken: os.Getenv("SMARTY_AUTH_TOKEN"),
		BaseURL:   getEnv("SMARTY_BASE_URL", "https://us-street.api.smarty.com/street-address"),

		BatchSize:       getEnvAsInt("SMARTY_BATCH_SIZE", 100),
		MinBatchSize:    getEnvAsInt("SMARTY_MIN_BATCH_SIZE", 5),
		MaxPayloadBytes: getEnvAsInt("SMARTY_BATCH_MAX_PAYLOAD_BYTES", 32768),

		MaxRetries:     getEnvAsInt("SMARTY_MAX_RETRIES", 3),
		RateLimitDelay: getEnvAsDuration("SMARTY_RATE_LIMIT_DELAY_MS", 100),
		Timeout:        time.Duration(getEnvAsInt("SMARTY_TIMEOUT_SECONDS", 30)) * time.Second,

		MaxConcurrentBatches: getEnvAsInt("SMARTY_MAX_CONCURRENT_BATCHES", 4),
	}
}

// Enabled reports whether both credential values are present.
func (c *SmartyConfig) Enabled() bool {
	return c.AuthID != "" && c.AuthToken != ""
}

// Validate ensures the batching limits are usable
func (c *SmartyConfig) Validate() error {
	if c.BatchSize <= 0 {
		return errors.New("smarty batch size must be positive")
	}
	if c.MaxPayloadBytes <= 0 {
		return errors.New("smarty max payload bytes must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("smarty max retries cannot be negative")
	}
	if c.MaxConcurrentBatches <= 0 {
		return errors.New("smarty max concurrent batches must be positive")
	}
	return nil
}

// LoadLedgerConfig loads the ledger persistence configuration from environment
// variables. LEDGER_DB_DRIVER selects "sqlite" or "postgres"; for postgres the
// DSN is assembled from the usual POSTGRES_* variables when LEDGER_DB_DSN is
// not set explicitly.
func LoadLedgerConfig() *LedgerConfig {
	cfg := &LedgerConfig{
		Driver: getEnv("LEDGER_DB_DRIVER", ""),
		DSN:    getEnv("LEDGER_DB_DSN", ""),
	}

	if cfg.Driver == "postgres" && cfg.DSN == "" {
		cfg.DSN = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			getEnv("POSTGRES_HOST", "localhost"),
			getEnvAsInt("POSTGRES_PORT", 5432),
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			getEnv("POSTGRES_DB", "subval"),
			getEnv("POSTGRES_SSLMODE", "disable"),
		)
	}

	return cfg
}

// Enabled reports whether a ledger sink is configured.
func (c *LedgerConfig) Enabled() bool {
	return c.Driver != ""
}

// Validate checks the driver name and DSN pairing
func (c *LedgerConfig) Validate() error {
	switch c.Driver {
	case "":
		return nil
	case "sqlite", "postgres":
		if c.DSN == "" {
			return fmt.Errorf("LEDGER_DB_DSN is required for driver %q", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("unsupported ledger driver %q", c.Driver)
	}
}
