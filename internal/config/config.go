// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        // e.g. "8080"
	Env          string        // "development" | "production"
	ReadTimeout  time.Duration // default 10s
	WriteTimeout time.Duration // default 10s
	AllowedOrigins string      // comma-separated CORS origins; "" = allow all
}

// RedisConfig holds the persistence backend's connection settings.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration // default 5s
	PoolSize     int           // default 10
}

// ProviderConfig holds the upstream price-provider's connection and
// circuit-breaker settings. provider.NewBreaker does not read
// ConsecutiveFailures or BreakerCooldown: the breaker always trips after
// 5 consecutive failures and stays open for 30s.
type ProviderConfig struct {
	Name              string        // designated discovery provider
	BaseURL           string
	APIKey            string
	RequestTimeout    time.Duration // default 10s
	ConsecutiveFailures int         // breaker trip threshold, default 5
	BreakerCooldown   time.Duration // default 30s
}

// MDSConfig holds the Market Data Service's worker intervals.
// NegativeCacheTTL is loaded but not passed to the mds package, whose
// negative cache uses a fixed 5-minute TTL.
type MDSConfig struct {
	DiscoveryInterval time.Duration // default 60s
	UpdaterInterval   time.Duration // default 5m
	NegativeCacheTTL  time.Duration // default 5m
}

// RebalancerConfig holds numeric tolerances for the Portfolio
// Rebalancer. They are loaded and validated but not passed to the
// rebalancer package, which uses its own fixed 1e-4 weight-sum
// tolerance.
type RebalancerConfig struct {
	WeightSumTolerance float64 // default 1e-4
	InvariantTolerance float64 // default 1e-4
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Provider   ProviderConfig
	MDS        MDSConfig
	Rebalancer RebalancerConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Accumulates every violation so a caller sees the whole picture in one report.
func (c *Config) Validate() error {
	var errs []error

	if c.IsProd() && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR must be set in production"))
	}
	if c.Provider.Name == "" {
		errs = append(errs, errors.New("PROVIDER_NAME must be set — exactly one discovery provider must be designated"))
	}
	if c.Provider.RequestTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_REQUEST_TIMEOUT must be positive"))
	}
	if c.MDS.DiscoveryInterval <= 0 {
		errs = append(errs, errors.New("MDS_DISCOVERY_INTERVAL must be positive"))
	}
	if c.MDS.UpdaterInterval <= 0 {
		errs = append(errs, errors.New("MDS_UPDATER_INTERVAL must be positive"))
	}
	if c.Rebalancer.WeightSumTolerance <= 0 || c.Rebalancer.WeightSumTolerance >= 1 {
		errs = append(errs, fmt.Errorf("REBALANCER_WEIGHT_SUM_TOLERANCE must be in (0,1), got %.6f", c.Rebalancer.WeightSumTolerance))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins: getEnv("SERVER_ALLOWED_ORIGINS", ""),
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	redisPool, err := getInt("REDIS_POOL_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("REDIS_POOL_SIZE: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
		Password:    getEnv("REDIS_PASSWORD", ""),
		DB:          redisDB,
		DialTimeout: getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		PoolSize:    redisPool,
	}

	// ── Provider ──────────────────────────────────────────────────────────────
	consecutiveFailures, err := getInt("PROVIDER_BREAKER_CONSECUTIVE_FAILURES", 5)
	if err != nil {
		return nil, fmt.Errorf("PROVIDER_BREAKER_CONSECUTIVE_FAILURES: %w", err)
	}
	cfg.Provider = ProviderConfig{
		Name:                getEnv("PROVIDER_NAME", "kraken"),
		BaseURL:             getEnv("PROVIDER_BASE_URL", ""),
		APIKey:              getEnv("PROVIDER_API_KEY", ""),
		RequestTimeout:      getDuration("PROVIDER_REQUEST_TIMEOUT", 10*time.Second),
		ConsecutiveFailures: consecutiveFailures,
		BreakerCooldown:     getDuration("PROVIDER_BREAKER_COOLDOWN", 30*time.Second),
	}

	// ── MDS ───────────────────────────────────────────────────────────────────
	cfg.MDS = MDSConfig{
		DiscoveryInterval: getDuration("MDS_DISCOVERY_INTERVAL", 60*time.Second),
		UpdaterInterval:   getDuration("MDS_UPDATER_INTERVAL", 5*time.Minute),
		NegativeCacheTTL:  getDuration("MDS_NEGATIVE_CACHE_TTL", 5*time.Minute),
	}

	// ── Rebalancer ────────────────────────────────────────────────────────────
	weightTol, err := getFloat("REBALANCER_WEIGHT_SUM_TOLERANCE", 1e-4)
	if err != nil {
		return nil, fmt.Errorf("REBALANCER_WEIGHT_SUM_TOLERANCE: %w", err)
	}
	invTol, err := getFloat("REBALANCER_INVARIANT_TOLERANCE", 1e-4)
	if err != nil {
		return nil, fmt.Errorf("REBALANCER_INVARIANT_TOLERANCE: %w", err)
	}
	cfg.Rebalancer = RebalancerConfig{
		WeightSumTolerance: weightTol,
		InvariantTolerance: invTol,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
