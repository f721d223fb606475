// pkg/config/config_test.go
package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChunkSize != 500 {
		t.Errorf("chunk size = %d, want 500", cfg.ChunkSize)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("logging defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Smarty.BatchSize != 100 || cfg.Smarty.MaxPayloadBytes != 32768 {
		t.Errorf("smarty batching defaults = %d/%d", cfg.Smarty.BatchSize, cfg.Smarty.MaxPayloadBytes)
	}
	if cfg.Smarty.RateLimitDelay != 100*time.Millisecond {
		t.Errorf("rate limit delay = %v", cfg.Smarty.RateLimitDelay)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "50")
	t.Setenv("SMARTY_BATCH_SIZE", "25")
	t.Setenv("SMARTY_RATE_LIMIT_DELAY_MS", "250")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChunkSize != 50 {
		t.Errorf("chunk size = %d", cfg.ChunkSize)
	}
	if cfg.Smarty.BatchSize != 25 {
		t.Errorf("smarty batch size = %d", cfg.Smarty.BatchSize)
	}
	if cfg.Smarty.RateLimitDelay != 250*time.Millisecond {
		t.Errorf("rate limit delay = %v", cfg.Smarty.RateLimitDelay)
	}
}

func TestLoadConfigRejectsBadChunkSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "-1")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSmartyEnabled(t *testing.T) {
	cases := []struct {
		id, token string
		want      bool
	}{
		{"", "", false},
		{"id", "", false},
		{"", "token", false},
		{"id", "token", true},
	}
	for _, tc := range cases {
		c := &SmartyConfig{AuthID: tc.id, AuthToken: tc.token}
		if got := c.Enabled(); got != tc.want {
			t.Errorf("Enabled(%q, %q) = %v, want %v", tc.id, tc.token, got, tc.want)
		}
	}
}

func TestLedgerConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     LedgerConfig
		wantErr bool
	}{
		{"disabled", LedgerConfig{}, false},
		{"sqlite with dsn", LedgerConfig{Driver: "sqlite", DSN: "ledger.db"}, false},
		{"postgres missing dsn", LedgerConfig{Driver: "postgres"}, true},
		{"unknown driver", LedgerConfig{Driver: "mysql", DSN: "x"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestPostgresDSNAssembledFromParts(t *testing.T) {
	t.Setenv("LEDGER_DB_DRIVER", "postgres")
	t.Setenv("LEDGER_DB_DSN", "")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_USER", "subval")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg := LoadLedgerConfig()
	want := "host=db.internal port=5432 user=subval password=secret dbname=subval sslmode=disable"
	if cfg.DSN != want {
		t.Errorf("DSN = %q, want %q", cfg.DSN, want)
	}
}
