// Package config reads runtime settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lg/fitai-go-api/internal/store/localcache"
)

type Config struct {
	DBURL           string
	CachePath       string
	Port            string
	SyncTimeout     time.Duration
	SyncConcurrency int
	AutosaveDelay   time.Duration
	AutoResync      bool
	CORSOrigins     []string
	LogLevel        zerolog.Level
	LogFormat       string
}

// DefaultCachePath is <UserConfigDir>/fitai/cache.db, or ./fitai-cache.db when
// the config dir is unknown.
func DefaultCachePath() string {
	path, err := localcache.DefaultPath()
	if err != nil {
		return "fitai-cache.db"
	}
	return path
}

// Load reads .env (if present) and then the process environment. A missing
// DB_URL is not an error here; commands that need the database check it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		DBURL:     os.Getenv("DB_URL"),
		CachePath: envOr("CACHE_PATH", DefaultCachePath()),
		Port:      envOr("PORT", "3000"),
		LogFormat: envOr("LOG_FORMAT", "json"),
	}

	var errs []error
	var err error
	if cfg.SyncTimeout, err = time.ParseDuration(envOr("SYNC_TIMEOUT", "10s")); err != nil || cfg.SyncTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_TIMEOUT: invalid duration %q", os.Getenv("SYNC_TIMEOUT")))
	}
	if cfg.SyncConcurrency, err = strconv.Atoi(envOr("SYNC_CONCURRENCY", "4")); err != nil || cfg.SyncConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SYNC_CONCURRENCY: must be a positive integer, got %q", os.Getenv("SYNC_CONCURRENCY")))
	}
	if cfg.AutosaveDelay, err = time.ParseDuration(envOr("AUTOSAVE_DELAY", "2s")); err != nil || cfg.AutosaveDelay <= 0 {
		errs = append(errs, fmt.Errorf("AUTOSAVE_DELAY: invalid duration %q", os.Getenv("AUTOSAVE_DELAY")))
	}
	if cfg.AutoResync, err = strconv.ParseBool(envOr("AUTO_RESYNC", "true")); err != nil {
		errs = append(errs, fmt.Errorf("AUTO_RESYNC: invalid bool %q", os.Getenv("AUTO_RESYNC")))
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(envOr("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: must be json or console, got %q", cfg.LogFormat))
	}

	for _, o := range strings.Split(envOr("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetupLogging configures the global zerolog logger.
func (c Config) SetupLogging() {
	zerolog.SetGlobalLevel(c.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
