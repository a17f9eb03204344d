package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Correlation store
	Store StoreConfig

	// Risk engine defaults
	Risk RiskConfig

	// Scheduler
	RetrainSchedule string

	// API
	APIRateLimit float64 // simulate requests per second (0 = unlimited)

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

// StoreConfig selects where trained correlation matrices are persisted
type StoreConfig struct {
	Backend    string // memory, badger, postgres, redis
	BadgerPath string
	KeyPrefix  string
}

// RiskConfig holds defaults for training and simulation runs
type RiskConfig struct {
	MinObservations int
	DefaultTrials   int
	DefaultHorizon  float64 // months
	Workers         int     // 0 = GOMAXPROCS
	TopN            int
	AssumptionsFile string
	TrainStart      time.Time
	FactorSource    string // csv, postgres
	FactorCSV       string
	BoundOptions    bool // 매수 옵션 손익을 [-명목, 10x명목] 으로 제한
}

// Store backends
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Store: StoreConfig{
			Backend:    getEnv("STORE_BACKEND", BackendBadger),
			BadgerPath: getEnv("STORE_BADGER_PATH", "data/correlations"),
			KeyPrefix:  getEnv("STORE_KEY_PREFIX", "regimerisk"),
		},

		Risk: RiskConfig{
			MinObservations: getEnvAsInt("RISK_MIN_OBSERVATIONS", 60),
			DefaultTrials:   getEnvAsInt("RISK_DEFAULT_TRIALS", 10000),
			DefaultHorizon:  getEnvAsFloat("RISK_DEFAULT_HORIZON_MONTHS", 3),
			Workers:         getEnvAsInt("RISK_WORKERS", 0),
			TopN:            getEnvAsInt("RISK_TOP_N", 3),
			AssumptionsFile: getEnv("RISK_ASSUMPTIONS_FILE", ""),
			TrainStart:      getEnvAsDate("RISK_TRAIN_START", "2010-01-01"),
			FactorSource:    getEnv("RISK_FACTOR_SOURCE", "csv"),
			FactorCSV:       getEnv("RISK_FACTOR_CSV", "data/factors.csv"),
			BoundOptions:    getEnvAsBool("RISK_BOUND_LONG_OPTIONS", false),
		},

		RetrainSchedule: getEnv("RETRAIN_SCHEDULE", "0 30 6 * * 1-5"),
		APIRateLimit:    getEnvAsFloat("API_RATE_LIMIT", 2),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads path as an env file first, then behaves like Load
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	return Load()
}

// NeedsDatabase reports whether any configured component reads from PostgreSQL
func (c *Config) NeedsDatabase() bool {
	return c.Store.Backend == BackendPostgres || c.Risk.FactorSource == "postgres"
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Store.Backend {
	case BackendMemory, BackendBadger, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: memory, badger, postgres, redis")
	}

	if c.Risk.FactorSource != "csv" && c.Risk.FactorSource != "postgres" {
		return fmt.Errorf("RISK_FACTOR_SOURCE must be one of: csv, postgres")
	}

	if c.NeedsDatabase() && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}

	if c.Store.Backend == BackendRedis && !c.Redis.Enabled {
		return fmt.Errorf("REDIS_ENABLED must be true for the redis backend")
	}

	if c.Risk.MinObservations < 2 {
		return fmt.Errorf("RISK_MIN_OBSERVATIONS must be >= 2")
	}

	if c.Risk.DefaultTrials <= 0 {
		return fmt.Errorf("RISK_DEFAULT_TRIALS must be > 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsDate(key string, defaultValue string) time.Time {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	date, err := time.Parse("2006-01-02", valueStr)
	if err != nil {
		date, _ = time.Parse("2006-01-02", defaultValue)
	}

	return date
}
