// Package config provides configuration management for the crateview
// service.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	Fetch   FetchConfig
	Index   IndexConfig
	Logging LoggingConfig
	GitHub  GitHubConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool
}

// CacheConfig bounds the snapshot cache.
type CacheConfig struct {
	// MaxEntries caps the number of cached crate versions.
	MaxEntries int
	// MaxBytes caps the aggregate decompressed bytes held in memory.
	// Zero disables the byte budget.
	MaxBytes int64
}

// FetchConfig controls tarball downloads.
type FetchConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
	// MaxArchiveBytes caps one archive's decompressed size.
	MaxArchiveBytes int64
	// MaxFileBytes caps one extracted file.
	MaxFileBytes int64
}

// IndexConfig controls structural index builds.
type IndexConfig struct {
	// Concurrency bounds parallel file parsing.
	Concurrency int
}

// LoggingConfig selects the log output format.
type LoggingConfig struct {
	// Format is "json" or "text".
	Format string
}

// GitHubConfig configures the repository explorer.
type GitHubConfig struct {
	// Token enables the repository explorer; when it is empty the service
	// starts with GitHub exploration disabled.
	Token string
}

// Load reads configuration from the environment using Viper, applying
// defaults for anything unset. Malformed values are errors, not silent
// fallbacks.
func Load() (*Config, error) {
	v := viper.New()

	// Load .env using Viper (optional, won't fail if not found).
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	// Set defaults
	v.SetDefault("CRATEVIEW_ADDR", ":8080")
	v.SetDefault("CRATEVIEW_METRICS_ENABLED", "true")
	v.SetDefault("CRATEVIEW_CACHE_ENTRIES", "64")
	v.SetDefault("CRATEVIEW_CACHE_BYTES", strconv.FormatInt(1<<30, 10))
	v.SetDefault("CRATEVIEW_HTTP_TIMEOUT", "60s")
	v.SetDefault("CRATEVIEW_MAX_ARCHIVE_BYTES", strconv.FormatInt(256<<20, 10))
	v.SetDefault("CRATEVIEW_MAX_FILE_BYTES", strconv.FormatInt(64<<20, 10))
	v.SetDefault("CRATEVIEW_INDEX_CONCURRENCY", strconv.Itoa(defaultIndexConcurrency()))
	v.SetDefault("CRATEVIEW_LOG_FORMAT", "json")

	// Enable automatic environment variable reading
	v.AutomaticEnv()

	var errs []error
	cfg := &Config{
		Server: ServerConfig{
			Addr:           v.GetString("CRATEVIEW_ADDR"),
			MetricsEnabled: boolSetting(v, "CRATEVIEW_METRICS_ENABLED", &errs),
		},
		Cache: CacheConfig{
			MaxEntries: intSetting(v, "CRATEVIEW_CACHE_ENTRIES", &errs),
			MaxBytes:   int64Setting(v, "CRATEVIEW_CACHE_BYTES", &errs),
		},
		Fetch: FetchConfig{
			Timeout:         durationSetting(v, "CRATEVIEW_HTTP_TIMEOUT", &errs),
			MaxArchiveBytes: int64Setting(v, "CRATEVIEW_MAX_ARCHIVE_BYTES", &errs),
			MaxFileBytes:    int64Setting(v, "CRATEVIEW_MAX_FILE_BYTES", &errs),
		},
		Index: IndexConfig{
			Concurrency: intSetting(v, "CRATEVIEW_INDEX_CONCURRENCY", &errs),
		},
		Logging: LoggingConfig{
			Format: v.GetString("CRATEVIEW_LOG_FORMAT"),
		},
		GitHub: GitHubConfig{
			Token: v.GetString("CRATEVIEW_GITHUB_TOKEN"),
		},
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.Cache.MaxEntries < 1 {
		return nil, fmt.Errorf("CRATEVIEW_CACHE_ENTRIES must be positive")
	}
	if cfg.Fetch.Timeout <= 0 {
		return nil, fmt.Errorf("CRATEVIEW_HTTP_TIMEOUT must be positive")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return nil, fmt.Errorf("CRATEVIEW_LOG_FORMAT must be json or text, got %q", cfg.Logging.Format)
	}
	return cfg, nil
}

func defaultIndexConcurrency() int {
	n := runtime.GOMAXPROCS(0)
	if n > 8 {
		n = 8
	}
	return n
}

// The typed helpers go through GetString so a malformed value surfaces as an
// error instead of Viper's zero value.

func intSetting(v *viper.Viper, key string, errs *[]error) int {
	raw := v.GetString(key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return 0
	}
	return n
}

func int64Setting(v *viper.Viper, key string, errs *[]error) int64 {
	raw := v.GetString(key)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer byte count", key, raw))
		return 0
	}
	return n
}

func boolSetting(v *viper.Viper, key string, errs *[]error) bool {
	raw := v.GetString(key)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
		return false
	}
	return b
}

func durationSetting(v *viper.Viper, key string, errs *[]error) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration (try \"60s\")", key, raw))
		return 0
	}
	return d
}
