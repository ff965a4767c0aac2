package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// StoreBackend selects how signals/snapshots are read: "postgres" or "rest"
	StoreBackend string

	// Database (direct Postgres access to the signals/snapshots tables)
	Database DatabaseConfig

	// Supabase (PostgREST access to the same tables)
	Supabase SupabaseConfig

	// Redis (live board + fetch cache)
	Redis RedisConfig

	// Market derivation parameters
	Market MarketConfig

	// Cache
	CacheTTL         time.Duration
	SignalStaleAfter time.Duration

	// Refresh schedules (cron with seconds)
	RefreshSchedule   string
	StructureSchedule string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	BoardKey string // key holding the live board of tradable contracts
	Prefix   string // namespace for cache and rate limit keys
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// SupabaseConfig holds PostgREST configuration
type SupabaseConfig struct {
	URL    string
	APIKey string
	RPS    int // client-side requests per second
}

// MarketConfig holds the constants used by the signal/market-state derivations.
// The upstream signal producer owns these values, so they are configuration rather than code.
type MarketConfig struct {
	Timezone        string
	TargetVolume    float64       // trailing volume budget for the recent VWAP
	SignalThreshold float64       // |timeSignal| decision threshold
	MatchTolerance  time.Duration // max distance for signal → price tick alignment

	// Market structure index
	MaxDates   int
	BatchSize  int
	MaxBatches int

	// Fetch limits
	HistoryLimit     int
	TimelineLimit    int
	FetchConcurrency int
}

// Location resolves the market timezone. validate() guarantees it loads.
func (m MarketConfig) Location() *time.Location {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		StoreBackend: getEnv("STORE_BACKEND", BackendPostgres),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Supabase: SupabaseConfig{
			URL:    getEnv("SUPABASE_URL", ""),
			APIKey: getEnv("SUPABASE_API_KEY", ""),
			RPS:    getEnvAsInt("SUPABASE_RPS", 10),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			BoardKey: getEnv("REDIS_BOARD_KEY", "board"),
			Prefix:   getEnv("REDIS_PREFIX", "phwatch"),
		},

		Market: MarketConfig{
			Timezone:         getEnv("MARKET_TIMEZONE", "Europe/Istanbul"),
			TargetVolume:     getEnvAsFloat("VWAP_TARGET_VOLUME", 50),
			SignalThreshold:  getEnvAsFloat("SIGNAL_THRESHOLD", 0.30),
			MatchTolerance:   getEnvAsDuration("MATCH_TOLERANCE", "5m"),
			MaxDates:         getEnvAsInt("STRUCTURE_MAX_DATES", 3),
			BatchSize:        getEnvAsInt("STRUCTURE_BATCH_SIZE", 1000),
			MaxBatches:       getEnvAsInt("STRUCTURE_MAX_BATCHES", 30),
			HistoryLimit:     getEnvAsInt("HISTORY_LIMIT", 1000),
			TimelineLimit:    getEnvAsInt("TIMELINE_LIMIT", 2000),
			FetchConcurrency: getEnvAsInt("FETCH_CONCURRENCY", 8),
		},

		CacheTTL:         getEnvAsDuration("CACHE_TTL", "60s"),
		SignalStaleAfter: getEnvAsDuration("SIGNAL_STALE_AFTER", "10m"),

		RefreshSchedule:   getEnv("REFRESH_SCHEDULE", "0 * * * * *"),
		StructureSchedule: getEnv("STRUCTURE_SCHEDULE", "30 */5 * * * *"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.StoreBackend {
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendREST:
		if c.Supabase.URL == "" || c.Supabase.APIKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_API_KEY are required for the rest backend")
		}
		if c.Supabase.RPS <= 0 {
			return fmt.Errorf("SUPABASE_RPS must be positive")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: %s, %s", BackendPostgres, BackendREST)
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE %q: %w", c.Market.Timezone, err)
	}
	if c.Market.TargetVolume < 0 {
		return fmt.Errorf("VWAP_TARGET_VOLUME must not be negative")
	}
	if c.Market.SignalThreshold <= 0 || c.Market.SignalThreshold >= 1 {
		return fmt.Errorf("SIGNAL_THRESHOLD must be in (0, 1)")
	}
	if c.Market.MaxDates <= 0 || c.Market.BatchSize <= 0 || c.Market.MaxBatches <= 0 {
		return fmt.Errorf("STRUCTURE_MAX_DATES, STRUCTURE_BATCH_SIZE and STRUCTURE_MAX_BATCHES must be positive")
	}
	if c.Market.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
