package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DBEngineSQLite   = "sqlite"
	DBEnginePostgres = "postgres"

	CounterStoreMemory   = "memory"
	CounterStoreRedis    = "redis"
	CounterStorePostgres = "postgres"

	FailurePolicyClosed = "closed"
	FailurePolicyOpen   = "open"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Login     LoginConfig
	Counter   CounterConfig
	Bootstrap BootstrapConfig
}

type DatabaseConfig struct {
	Engine            string
	Path              string
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// LoginConfig holds the throttling knobs for the login flow
type LoginConfig struct {
	AttemptLimit       int
	LockoutDuration    time.Duration
	StoreFailurePolicy string
	TimingBaseDelay    time.Duration
	TimingRandomDelay  time.Duration
	HTTPRequestsPerMin int
	BcryptCost         int
}

type CounterConfig struct {
	Store           string
	RedisURL        string
	RedisPassword   string
	KeyPrefix       string
	MemoryCapacity  int
	CleanupInterval time.Duration
}

// BootstrapConfig describes an optional first staff principal created at startup
type BootstrapConfig struct {
	Username string
	Password string
	QQ       string
}

func (b BootstrapConfig) Enabled() bool {
	return b.Username != "" && b.Password != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisURL := getEnv("REDIS_URL", "")
	defaultStore := CounterStoreMemory
	if redisURL != "" {
		defaultStore = CounterStoreRedis
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Engine:            strings.ToLower(getEnv("DB_ENGINE", DBEngineSQLite)),
			Path:              getEnv("DB_PATH", "gatehouse.db"),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "gatehouse"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Login: LoginConfig{
			AttemptLimit:       getEnvAsInt("LOGIN_ATTEMPT_LIMIT", 5),
			LockoutDuration:    time.Duration(getEnvAsInt("LOGIN_LOCKOUT_MINUTES", 15)) * time.Minute,
			StoreFailurePolicy: strings.ToLower(getEnv("LOGIN_STORE_FAILURE_POLICY", FailurePolicyClosed)),
			TimingBaseDelay:    time.Duration(getEnvAsInt("LOGIN_TIMING_BASE_MS", 300)) * time.Millisecond,
			TimingRandomDelay:  time.Duration(getEnvAsInt("LOGIN_TIMING_RANDOM_MS", 50)) * time.Millisecond,
			HTTPRequestsPerMin: getEnvAsInt("LOGIN_HTTP_RATE_PER_MINUTE", 60),
			BcryptCost:         getEnvAsInt("BCRYPT_COST", 12),
		},
		Counter: CounterConfig{
			Store:           strings.ToLower(getEnv("COUNTER_STORE", defaultStore)),
			RedisURL:        redisURL,
			RedisPassword:   getEnv("REDIS_PASSWORD", ""),
			KeyPrefix:       getEnv("CACHE_KEY_PREFIX", "mctp"),
			MemoryCapacity:  getEnvAsInt("COUNTER_MEMORY_CAPACITY", 10000),
			CleanupInterval: getEnvAsDuration("COUNTER_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Bootstrap: BootstrapConfig{
			Username: getEnv("BOOTSTRAP_USERNAME", ""),
			Password: getEnv("BOOTSTRAP_PASSWORD", ""),
			QQ:       getEnv("BOOTSTRAP_QQ", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Engine {
	case DBEngineSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required when DB_ENGINE=sqlite")
		}
	case DBEnginePostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required when DB_ENGINE=postgres")
		}
	default:
		return fmt.Errorf("DB_ENGINE must be %q or %q (got %q)", DBEngineSQLite, DBEnginePostgres, c.Database.Engine)
	}

	switch c.Counter.Store {
	case CounterStoreMemory:
		if c.Counter.MemoryCapacity <= 0 {
			return fmt.Errorf("COUNTER_MEMORY_CAPACITY must be positive")
		}
	case CounterStoreRedis:
		if c.Counter.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when COUNTER_STORE=redis")
		}
	case CounterStorePostgres:
		if c.Database.Engine != DBEnginePostgres {
			return fmt.Errorf("COUNTER_STORE=postgres requires DB_ENGINE=postgres")
		}
	default:
		return fmt.Errorf("COUNTER_STORE must be memory, redis or postgres (got %q)", c.Counter.Store)
	}

	if c.Counter.CleanupInterval <= 0 {
		return fmt.Errorf("COUNTER_CLEANUP_INTERVAL must be positive")
	}

	if c.Login.AttemptLimit < 1 {
		return fmt.Errorf("LOGIN_ATTEMPT_LIMIT must be at least 1")
	}
	if c.Login.LockoutDuration <= 0 {
		return fmt.Errorf("LOGIN_LOCKOUT_MINUTES must be positive")
	}
	if c.Login.StoreFailurePolicy != FailurePolicyClosed && c.Login.StoreFailurePolicy != FailurePolicyOpen {
		return fmt.Errorf("LOGIN_STORE_FAILURE_POLICY must be %q or %q", FailurePolicyClosed, FailurePolicyOpen)
	}
	if c.Login.HTTPRequestsPerMin < 1 {
		return fmt.Errorf("LOGIN_HTTP_RATE_PER_MINUTE must be at least 1")
	}

	// Weak bootstrap passwords are rejected later by the password policy
	if (c.Bootstrap.Username == "") != (c.Bootstrap.Password == "") {
		return fmt.Errorf("BOOTSTRAP_USERNAME and BOOTSTRAP_PASSWORD must be set together")
	}

	return nil
}

// FailOpen reports whether counter store faults should let logins through
func (c *LoginConfig) FailOpen() bool {
	return c.StoreFailurePolicy == FailurePolicyOpen
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}
