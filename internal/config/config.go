// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// JWT Authentication. The previous secret is only set while a key
	// rotation is in progress.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Backups
	BackupDatabaseName string `koanf:"backup_database_name"`
	BackupDir          string `koanf:"backup_dir"`
	PgDumpBinary       string `koanf:"pg_dump_binary"`

	// Document storage (S3-compatible)
	S3BucketName      string `koanf:"s3_bucket_name"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3Region          string `koanf:"s3_region"`

	// Upload limits
	UploadMaxSizeMB int `koanf:"upload_max_size_mb"`

	// Redis (rate limiting). Empty means the in-memory store is used.
	RedisAddr string `koanf:"redis_addr"`

	// Tracing
	TracingEnabled  bool    `koanf:"tracing_enabled"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	TracingExporter string  `koanf:"tracing_exporter"`
	TracingSampling float64 `koanf:"tracing_sampling"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL     = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret       = errors.New("JWT_SECRET is required")
	ErrMissingS3BucketName    = errors.New("S3_BUCKET_NAME is required")
	ErrMissingS3AccessKeyID   = errors.New("S3_ACCESS_KEY_ID is required")
	ErrMissingS3SecretKey     = errors.New("S3_SECRET_ACCESS_KEY is required")
	ErrInvalidPort            = errors.New("PORT must be a valid integer")
	ErrInvalidTracingSampling = errors.New("TRACING_SAMPLING must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultBackupDir       = "/var/backups/legajos"
	DefaultPgDumpBinary    = "pg_dump"
	DefaultUploadMaxSizeMB = 16
	DefaultTracingSampling = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try LEGAJOS_PORT first, then PORT
	port, portErr := getEnvIntOrDefaultMulti([]string{"LEGAJOS_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("UPLOAD_MAX_SIZE_MB", k.Int("upload_max_size_mb"), DefaultUploadMaxSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	tracingSampling, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING", k.Float64("tracing_sampling"), DefaultTracingSampling)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		// Env var takes precedence over file config
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			tracingEnabled = true
		case "false", "0", "no", "off":
			tracingEnabled = false
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefaultMulti([]string{"LEGAJOS_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:        getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		JWTSecret:          getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:  getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		BackupDatabaseName: getEnvOrKoanf("BACKUP_DATABASE_NAME", k, "backup_database_name"),
		BackupDir:          getEnvOrDefault("BACKUP_DIR", k.String("backup_dir"), DefaultBackupDir),
		PgDumpBinary:       getEnvOrDefault("PG_DUMP_BINARY", k.String("pg_dump_binary"), DefaultPgDumpBinary),
		S3BucketName:       getEnvOrKoanf("S3_BUCKET_NAME", k, "s3_bucket_name"),
		S3AccessKeyID:      getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey:  getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		S3Endpoint:         getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		S3Region:           getEnvOrKoanf("S3_REGION", k, "s3_region"),
		UploadMaxSizeMB:    maxUploadSize,
		RedisAddr:          getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		TracingEnabled:     tracingEnabled,
		OTLPEndpoint:       getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingExporter:    getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), "otlp-http"),
		TracingSampling:    tracingSampling,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.TracingSampling < 0 || c.TracingSampling > 1 {
		errs = append(errs, ErrInvalidTracingSampling)
	}

	// S3 configuration is optional. Only validate fields if any S3 value is set.
	// The endpoint and region stay optional: AWS proper needs no endpoint and
	// S3-compatible stores default the region.
	if c.S3BucketName != "" || c.S3AccessKeyID != "" || c.S3SecretAccessKey != "" || c.S3Endpoint != "" {
		if c.S3BucketName == "" {
			errs = append(errs, ErrMissingS3BucketName)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretKey)
		}
	}

	return errs
}

// S3Enabled reports whether document blob storage is configured.
func (c *Config) S3Enabled() bool {
	return c.S3BucketName != ""
}

// RedisEnabled reports whether the Redis-backed rate limit store is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                 fmt.Sprintf("%d", c.Port),
		"env":                  c.Env,
		"database_url":         maskDatabaseURL(c.DatabaseURL),
		"jwt_secret":           maskSecret(c.JWTSecret),
		"jwt_previous_secret":  maskSecret(c.JWTPreviousSecret),
		"backup_database_name": c.BackupDatabaseName,
		"backup_dir":           c.BackupDir,
		"pg_dump_binary":       c.PgDumpBinary,
		"s3_bucket_name":       c.S3BucketName,
		"s3_access_key_id":     maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key": maskSecret(c.S3SecretAccessKey),
		"s3_endpoint":          c.S3Endpoint,
		"s3_region":            c.S3Region,
		"upload_max_size_mb":   fmt.Sprintf("%d", c.UploadMaxSizeMB),
		"redis_addr":           c.RedisAddr,
		"tracing_enabled":      fmt.Sprintf("%t", c.TracingEnabled),
		"otlp_endpoint":        c.OTLPEndpoint,
		"tracing_exporter":     c.TracingExporter,
		"tracing_sampling":     fmt.Sprintf("%g", c.TracingSampling),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
