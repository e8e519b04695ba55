package config

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var allKeys = []string{"DB_URL", "CACHE_PATH", "PORT", "SYNC_TIMEOUT", "SYNC_CONCURRENCY",
	"AUTOSAVE_DELAY", "AUTO_RESYNC", "CORS_ORIGINS", "LOG_LEVEL", "LOG_FORMAT"}

func clearEnv(t *testing.T) {
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "3000" || cfg.SyncTimeout != 10*time.Second || cfg.SyncConcurrency != 4 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AutosaveDelay != 2*time.Second || !cfg.AutoResync || cfg.LogLevel != zerolog.InfoLevel {
		t.Errorf("cfg = %+v", cfg)
	}
	if !slices.Equal(cfg.CORSOrigins, []string{"*"}) || cfg.CachePath != DefaultCachePath() {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_URL", "postgres://localhost/fitai")
	t.Setenv("SYNC_TIMEOUT", "250ms")
	t.Setenv("SYNC_CONCURRENCY", "1")
	t.Setenv("AUTO_RESYNC", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBURL != "postgres://localhost/fitai" || cfg.SyncTimeout != 250*time.Millisecond || cfg.SyncConcurrency != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AutoResync || cfg.LogLevel != zerolog.DebugLevel || cfg.LogFormat != "console" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !slices.Equal(cfg.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("origins = %v", cfg.CORSOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYNC_TIMEOUT", "soon")
	t.Setenv("SYNC_CONCURRENCY", "0")
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range []string{"SYNC_TIMEOUT", "SYNC_CONCURRENCY", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}
