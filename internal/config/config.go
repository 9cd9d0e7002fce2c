// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/motion-classifier/internal/analysis"
)

// Config holds the server configuration
type Config struct {
	Port               string
	DataDir            string
	ModelDir           string
	ModelVersion       string
	WindowSize         int
	LogLevel           string
	GinMode            string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RateLimitPerMin    int
	CacheTTL           time.Duration
	MaxBodyBytes       int64
	AllowedOrigins     []string
	PersistPredictions bool
	ShutdownTimeout    time.Duration
	EnableHSTS         bool
}

// Default returns the configuration used when no variables are set
func Default() Config {
	return Config{
		Port:               "5001",
		DataDir:            "./data",
		ModelDir:           "./artifacts",
		WindowSize:         analysis.DefaultWindowSize,
		LogLevel:           "info",
		RateLimitPerMin:    60,
		CacheTTL:           15 * time.Minute,
		MaxBodyBytes:       1 << 20,
		PersistPredictions: true,
		ShutdownTimeout:    30 * time.Second,
	}
}

// Load reads the configuration from the environment and validates it
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	def := Default()
	env := func(key, defaultValue string) string {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
		return defaultValue
	}

	var err error
	cfg := Config{
		Port:          env("PORT", def.Port),
		DataDir:       env("DATA_DIR", def.DataDir),
		ModelDir:      env("MODEL_DIR", def.ModelDir),
		ModelVersion:  env("MODEL_VERSION", def.ModelVersion),
		LogLevel:      env("LOG_LEVEL", def.LogLevel),
		GinMode:       env("GIN_MODE", def.GinMode),
		RedisAddr:     env("REDIS_ADDR", def.RedisAddr),
		RedisPassword: getenv("REDIS_PASSWORD"),
	}

	if origins := env("ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if cfg.WindowSize, err = parseInt("WINDOW_SIZE", env("WINDOW_SIZE", ""), def.WindowSize); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = parseInt("REDIS_DB", env("REDIS_DB", ""), def.RedisDB); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMin, err = parseInt("RATE_LIMIT_PER_MIN", env("RATE_LIMIT_PER_MIN", ""), def.RateLimitPerMin); err != nil {
		return Config{}, err
	}
	maxBody, err := parseInt("MAX_BODY_BYTES", env("MAX_BODY_BYTES", ""), int(def.MaxBodyBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)
	if cfg.CacheTTL, err = parseDuration("CACHE_TTL", env("CACHE_TTL", ""), def.CacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", env("SHUTDOWN_TIMEOUT", ""), def.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PersistPredictions, err = parseBool("PERSIST_PREDICTIONS", env("PERSIST_PREDICTIONS", ""), def.PersistPredictions); err != nil {
		return Config{}, err
	}
	if cfg.EnableHSTS, err = parseBool("ENABLE_HSTS", env("ENABLE_HSTS", ""), def.EnableHSTS); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be 1-65535, got %q", c.Port)
	}
	if c.WindowSize < 2 {
		return fmt.Errorf("WINDOW_SIZE must be at least 2, got %d", c.WindowSize)
	}
	if c.RateLimitPerMin < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive, got %d", c.RateLimitPerMin)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must be non-negative, got %d", c.RedisDB)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must be non-negative, got %s", c.CacheTTL)
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024, got %d", c.MaxBodyBytes)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	if strings.Contains(c.ModelVersion, "..") || strings.ContainsAny(c.ModelVersion, `/\`) {
		return fmt.Errorf("MODEL_VERSION must be a plain directory name, got %q", c.ModelVersion)
	}
	switch c.GinMode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.GinMode)
	}
	return nil
}

// CacheEnabled reports whether the response cache should be installed
func (c Config) CacheEnabled() bool {
	return c.CacheTTL > 0
}

func parseInt(key, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return v, nil
}

// parseDuration accepts Go durations; a bare integer is read as seconds
func parseDuration(key, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

func parseBool(key, raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, raw, err)
	}
	return v, nil
}
