package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/anomaly"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Compliance ComplianceConfig
	Jobs       JobsConfig
	Policy     anomaly.Policy
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    slog.Level
	Timezone    *time.Location
	CORSOrigins []string
}

type ComplianceConfig struct {
	Workers int // concurrent recomputations
}

type JobsConfig struct {
	VerifyInterval time.Duration
	SweepInterval  time.Duration
}

// Load reads .env when present, then the environment, then the optional
// policy file named by POLICY_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{}
	var errs []error
	num := func(key, fallback string) int {
		n, err := strconv.Atoi(getEnv(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return n
	}
	duration := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return d
	}

	// Database configuration
	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     num("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance_ledger"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}
	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid APP_TIMEZONE: %w", err))
	}
	config.App = AppConfig{
		Port:        num("APP_PORT", "8080"),
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    level,
		Timezone:    loc,
		CORSOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: duration("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	config.Compliance = ComplianceConfig{
		Workers: num("COMPLIANCE_WORKERS", "4"),
	}
	config.Jobs = JobsConfig{
		VerifyInterval: duration("VERIFY_INTERVAL", "24h"),
		SweepInterval:  duration("SWEEP_INTERVAL", "6h"),
	}

	// Real-time policy: defaults, then the policy file, then env overrides
	config.Policy = anomaly.DefaultPolicy()
	if path := getEnv("POLICY_FILE", ""); path != "" {
		if err := loadPolicyFile(path, &config.Policy); err != nil {
			errs = append(errs, err)
		}
	}
	if _, ok := os.LookupEnv("OVERTIME_GRACE_MINUTES"); ok {
		config.Policy.OvertimeGraceMinutes = num("OVERTIME_GRACE_MINUTES", "")
	}
	if _, ok := os.LookupEnv("NO_BREAK_THRESHOLD_MINUTES"); ok {
		config.Policy.NoBreakThresholdMinutes = num("NO_BREAK_THRESHOLD_MINUTES", "")
	}
	if _, ok := os.LookupEnv("DEFAULT_SHIFT_MINUTES"); ok {
		config.Policy.DefaultShiftMinutes = num("DEFAULT_SHIFT_MINUTES", "")
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadPolicyFile(path string, policy *anomaly.Policy) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, policy); err != nil {
		return fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Compliance.Workers < 1 {
		return fmt.Errorf("COMPLIANCE_WORKERS must be at least 1")
	}
	if c.Jobs.VerifyInterval <= 0 || c.Jobs.SweepInterval <= 0 {
		return fmt.Errorf("VERIFY_INTERVAL and SWEEP_INTERVAL must be positive")
	}
	if c.Policy.OvertimeGraceMinutes < 0 || c.Policy.NoBreakThresholdMinutes < 0 || c.Policy.DefaultShiftMinutes <= 0 {
		return fmt.Errorf("policy thresholds must be non-negative and the default shift positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
