package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinSigningKeyLength is the shortest accepted HS256 secret.
const MinSigningKeyLength = 32

// Credential store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Store    StoreConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	AuditQueueSize        int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. More than one address selects
// a cluster client.
type RedisConfig struct {
	Addrs       []string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format string
	// Development enables DPanic panics and stack traces on warnings.
	Development bool
}

// AuthConfig defines token and gate parameters.
type AuthConfig struct {
	SigningKey      []byte
	TokenTTL        time.Duration
	ClockSkew       time.Duration
	Issuer          string
	ExemptPaths     []string
	PolicyFile      string
	BcryptCost      int
	SeedCredentials []string
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Backend string
}

// Load reads configuration from environment variables, applying defaults where possible.
// A missing or short signing key is an error: the process cannot serve without one.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ttl, err := getEnvAsDuration("AUTH_TOKEN_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	skew, err := getEnvAsDuration("AUTH_CLOCK_SKEW", time.Second)
	if err != nil {
		return nil, err
	}
	redisDial, err := getEnvAsDuration("REDIS_DIAL_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}

	appEnv := strings.ToLower(getEnv("APP_ENV", "development"))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "token-gate"),
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			AuditQueueSize:        getEnvAsInt("AUDIT_QUEUE_SIZE", 1024),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addrs:       getEnvAsList("REDIS_ADDR", []string{"127.0.0.1:6379"}),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			KeyPrefix:   getEnv("REDIS_KEY_PREFIX", "cred"),
			DialTimeout: redisDial,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
			Development: getEnvAsBool("LOG_DEVELOPMENT", appEnv == "development" || appEnv == "local"),
		},
		Auth: AuthConfig{
			SigningKey:      []byte(os.Getenv("AUTH_JWT_SECRET")),
			TokenTTL:        ttl,
			ClockSkew:       skew,
			Issuer:          os.Getenv("AUTH_ISSUER"),
			ExemptPaths:     getEnvAsList("AUTH_EXEMPT_PATHS", []string{"/auth/login", "/health/*"}),
			PolicyFile:      os.Getenv("AUTH_POLICY_FILE"),
			BcryptCost:      getEnvAsInt("AUTH_BCRYPT_COST", 12),
			SeedCredentials: getEnvAsList("AUTH_SEED_CREDENTIALS", nil),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("CREDENTIAL_STORE", StorePostgres)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the auth core depends on.
func (c *Config) Validate() error {
	if len(c.Auth.SigningKey) == 0 {
		return errors.New("AUTH_JWT_SECRET is not set")
	}
	if len(c.Auth.SigningKey) < MinSigningKeyLength {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", MinSigningKeyLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("AUTH_TOKEN_TTL must be positive")
	}
	if c.Auth.ClockSkew < 0 {
		return errors.New("AUTH_CLOCK_SKEW must not be negative")
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("unknown LOG_FORMAT %q", c.Logger.Format)
	}
	switch c.Store.Backend {
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres credential store")
		}
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unknown CREDENTIAL_STORE %q", c.Store.Backend)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
