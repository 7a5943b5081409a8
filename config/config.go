// Package config provides configuration management for accountd.
// Values come from environment variables (optionally preloaded from a .env
// file by main) and an optional YAML file; environment variables win.
// After loading, Validate collects every problem into a single error so a
// misconfigured deployment reports all issues at once.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Avatar storage backends.
const (
	AvatarStorageDisk = "disk"
	AvatarStorageS3   = "s3"
)

// minSecretLength is the minimum HS256 signing secret length in bytes.
const minSecretLength = 16

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	JWTSecret           string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenDuration time.Duration `yaml:"jwt_expires_in" env:"JWT_EXPIRES_IN" env-default:"15m"`
	// RememberMeDuration is used instead of AccessTokenDuration when the
	// caller asks to be remembered.
	RememberMeDuration time.Duration `yaml:"jwt_remember_expires_in" env:"JWT_REMEMBER_EXPIRES_IN" env-default:"720h"`
	Issuer             string        `yaml:"jwt_issuer" env:"JWT_ISSUER" env-default:"accountd"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port               string        `yaml:"port" env:"PORT" env-default:"3000"`
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

// AvatarConfig selects and configures the avatar object store.
type AvatarConfig struct {
	Storage  string `yaml:"storage" env:"AVATAR_STORAGE" env-default:"disk"`
	MaxBytes int64  `yaml:"max_bytes" env:"AVATAR_MAX_BYTES" env-default:"2097152"`
	// UploadDir is the root for the disk backend; it is served at /uploads.
	UploadDir string `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"uploads"`
	// PublicBaseURL prefixes object keys for the s3 backend.
	PublicBaseURL string `yaml:"public_base_url" env:"AVATAR_PUBLIC_BASE_URL"`

	S3Bucket    string `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Region    string `yaml:"s3_region" env:"S3_REGION" env-default:"us-east-1"`
	S3Endpoint  string `yaml:"s3_endpoint" env:"S3_ENDPOINT"`
	S3AccessKey string `yaml:"s3_access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey string `yaml:"s3_secret_key" env:"S3_SECRET_KEY"`
}

// AccessLogConfig controls access history reads and retention.
type AccessLogConfig struct {
	HistoryDefaultLimit int `yaml:"history_default_limit" env:"ACCESS_HISTORY_DEFAULT_LIMIT" env-default:"5"`
	HistoryMaxLimit     int `yaml:"history_max_limit" env:"ACCESS_HISTORY_MAX_LIMIT" env-default:"50"`
	// Retention of zero disables pruning.
	Retention     time.Duration `yaml:"retention" env:"ACCESS_LOG_RETENTION" env-default:"0s"`
	PruneSchedule string        `yaml:"prune_schedule" env:"ACCESS_LOG_PRUNE_SCHEDULE" env-default:"@daily"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Env       string          `yaml:"env" env:"APP_ENV" env-default:"local"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Server    ServerConfig    `yaml:"server"`
	Avatar    AvatarConfig    `yaml:"avatar"`
	AccessLog AccessLogConfig `yaml:"access_log"`
	Log       LogConfig       `yaml:"log"`
}

// LoadConfig reads configuration from path (if non-empty) and the environment,
// then validates it.
func LoadConfig(path string) (*AppConfig, error) {
	var cfg AppConfig

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *AppConfig) Validate() error {
	var errors []string

	if len(c.Auth.JWTSecret) < minSecretLength {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.Auth.AccessTokenDuration <= 0 {
		errors = append(errors, "JWT_EXPIRES_IN must be positive")
	}
	if c.Auth.RememberMeDuration <= c.Auth.AccessTokenDuration {
		errors = append(errors, fmt.Sprintf("JWT_REMEMBER_EXPIRES_IN (%s) must be longer than JWT_EXPIRES_IN (%s)",
			c.Auth.RememberMeDuration, c.Auth.AccessTokenDuration))
	}
	if c.Database.MaxConns < 1 {
		errors = append(errors, "DB_MAX_CONNS must be at least 1")
	}

	if c.Avatar.MaxBytes <= 0 {
		errors = append(errors, "AVATAR_MAX_BYTES must be positive")
	}
	switch c.Avatar.Storage {
	case AvatarStorageDisk:
		if c.Avatar.UploadDir == "" {
			errors = append(errors, "UPLOAD_DIR is required for disk avatar storage")
		}
	case AvatarStorageS3:
		if c.Avatar.S3Bucket == "" {
			errors = append(errors, "S3_BUCKET is required for s3 avatar storage")
		}
		if c.Avatar.PublicBaseURL == "" {
			errors = append(errors, "AVATAR_PUBLIC_BASE_URL is required for s3 avatar storage")
		}
	default:
		errors = append(errors, fmt.Sprintf("AVATAR_STORAGE must be %q or %q, got %q", AvatarStorageDisk, AvatarStorageS3, c.Avatar.Storage))
	}

	if c.AccessLog.HistoryMaxLimit < 1 {
		errors = append(errors, "ACCESS_HISTORY_MAX_LIMIT must be at least 1")
	}
	if c.AccessLog.HistoryDefaultLimit < 1 || c.AccessLog.HistoryDefaultLimit > c.AccessLog.HistoryMaxLimit {
		errors = append(errors, "ACCESS_HISTORY_DEFAULT_LIMIT must be between 1 and ACCESS_HISTORY_MAX_LIMIT")
	}
	if c.AccessLog.Retention < 0 {
		errors = append(errors, "ACCESS_LOG_RETENTION must not be negative")
	}
	if c.AccessLog.Retention > 0 && c.AccessLog.PruneSchedule == "" {
		errors = append(errors, "ACCESS_LOG_PRUNE_SCHEDULE is required when ACCESS_LOG_RETENTION is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// MigrateConfig is the subset of AppConfig the migrate commands need. It
// lets schema changes run without auth or storage settings.
type MigrateConfig struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// LoadMigrateConfig reads MigrateConfig the same way LoadConfig reads AppConfig.
func LoadMigrateConfig(path string) (*MigrateConfig, error) {
	var cfg MigrateConfig

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return &cfg, nil
}
