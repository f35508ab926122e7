package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Logger         LoggerConfig
	Reconciliation ReconciliationConfig
	Secrets        SecretsConfig
	Redis          RedisConfig
}

// ServerConfig holds the job HTTP server configuration
type ServerConfig struct {
	Host            string
	JobSecret       string // shared secret expected in X-Job-Secret
	Port            int
	MetricsPort     int
	RateLimitPerSec float64
	RateLimitBurst  int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host               string
	User               string
	Password           string
	Database           string
	SSLMode            string
	PasswordSecretPath string // resolved through the secret manager when set
	PasswordVersion    string // pins the secret version; latest when empty
	Port               int
	MaxConns           int32
	MinConns           int32
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// ReconciliationConfig holds the money and matching knobs
type ReconciliationConfig struct {
	Tolerance         decimal.Decimal
	MatchThreshold    decimal.Decimal
	DefaultCommission decimal.Decimal
	TiePolicy         string // flag or first
	RoleCommission    map[domain.UserRole]decimal.Decimal
	JobLockTTL        time.Duration
}

// SecretsConfig selects and configures the secret backend
type SecretsConfig struct {
	Backend        string // env, aws, vault
	BasePath       string
	AWSRegion      string
	AWSProfile     string
	AWSEndpoint    string
	VaultAddress   string
	VaultToken     string
	VaultAuth      string
	VaultRoleID    string
	VaultSecretID  string
	VaultRole      string
	VaultMountPath string
	VaultNamespace string
	CacheTTL       time.Duration
}

// RedisConfig holds the optional job lock backend. An empty address keeps
// locks in process.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// LoadFromEnv loads configuration from environment variables, after reading
// an optional .env file in the working directory.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	tolerance, err := getEnvAsDecimal("RECONCILE_TOLERANCE", domain.DefaultTolerance)
	if err != nil {
		return nil, err
	}
	threshold, err := getEnvAsDecimal("MATCH_THRESHOLD", decimal.RequireFromString("0.85"))
	if err != nil {
		return nil, err
	}
	commission, err := getEnvAsDecimal("DEFAULT_COMMISSION_RATE", decimal.RequireFromString("0.20"))
	if err != nil {
		return nil, err
	}
	roleCommission, err := parseRoleCommission(getEnv("ROLE_COMMISSION_RATES", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			JobSecret:       getEnv("JOB_SECRET", ""),
			RateLimitPerSec: getEnvAsFloat("JOB_RATE_LIMIT", 2),
			RateLimitBurst:  getEnvAsInt("JOB_RATE_BURST", 5),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvAsInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", ""),
			PasswordSecretPath: getEnv("DB_PASSWORD_SECRET_PATH", ""),
			PasswordVersion:    getEnv("DB_PASSWORD_SECRET_VERSION", ""),
			Database:           getEnv("DB_NAME", "royalty_service"),
			SSLMode:            getEnv("DB_SSL_MODE", "disable"),
			MaxConns:           int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:           int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Reconciliation: ReconciliationConfig{
			Tolerance:         tolerance,
			MatchThreshold:    threshold,
			DefaultCommission: commission,
			TiePolicy:         strings.ToLower(getEnv("MATCH_TIE_POLICY", "flag")),
			RoleCommission:    roleCommission,
			JobLockTTL:        getEnvAsDuration("JOB_LOCK_TTL", 15*time.Minute),
		},
		Secrets: SecretsConfig{
			Backend:        strings.ToLower(getEnv("SECRET_MANAGER", "env")),
			BasePath:       getEnv("SECRETS_BASE_PATH", "./secrets"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:     getEnv("AWS_PROFILE", ""),
			AWSEndpoint:    getEnv("AWS_ENDPOINT_URL", ""),
			VaultAddress:   getEnv("VAULT_ADDR", ""),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultAuth:      getEnv("VAULT_AUTH_METHOD", "token"),
			VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
			VaultRole:      getEnv("VAULT_ROLE", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultNamespace: getEnv("VAULT_NAMESPACE", ""),
			CacheTTL:       getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations LoadFromEnv cannot default
func (c *Config) Validate() error {
	if c.Database.Password == "" && c.Database.PasswordSecretPath == "" {
		return fmt.Errorf("DB_PASSWORD or DB_PASSWORD_SECRET_PATH is required")
	}
	switch c.Secrets.Backend {
	case "env", "aws", "vault":
	default:
		return fmt.Errorf("SECRET_MANAGER must be env, aws or vault, got %q", c.Secrets.Backend)
	}
	if c.Secrets.Backend == "vault" && c.Secrets.VaultAddress == "" {
		return fmt.Errorf("VAULT_ADDR is required when SECRET_MANAGER=vault")
	}
	switch c.Reconciliation.TiePolicy {
	case "flag", "first":
	default:
		return fmt.Errorf("MATCH_TIE_POLICY must be flag or first, got %q", c.Reconciliation.TiePolicy)
	}
	if !c.Reconciliation.Tolerance.IsPositive() {
		return fmt.Errorf("RECONCILE_TOLERANCE must be positive")
	}
	one := decimal.NewFromInt(1)
	if !c.Reconciliation.MatchThreshold.IsPositive() || c.Reconciliation.MatchThreshold.GreaterThan(one) {
		return fmt.Errorf("MATCH_THRESHOLD must be in (0, 1]")
	}
	if c.Reconciliation.DefaultCommission.IsNegative() || c.Reconciliation.DefaultCommission.GreaterThan(one) {
		return fmt.Errorf("DEFAULT_COMMISSION_RATE must be in [0, 1]")
	}
	return nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// parseRoleCommission reads "WRITER=0.15,PRODUCER=0.25"
func parseRoleCommission(raw string) (map[domain.UserRole]decimal.Decimal, error) {
	rates := make(map[domain.UserRole]decimal.Decimal)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		role, rate, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("ROLE_COMMISSION_RATES entry %q is not ROLE=rate", pair)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil {
			return nil, fmt.Errorf("ROLE_COMMISSION_RATES rate for %s: %w", role, err)
		}
		rates[domain.UserRole(strings.ToUpper(strings.TrimSpace(role)))] = d
	}
	return rates, nil
}

// Helper functions

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDecimal fails on malformed input: a silently defaulted money knob
// would change payouts.
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(valueStr))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}
