package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Storage    StorageConfig
	Renewal    RenewalConfig
	Invite     InviteConfig
	SMTP       SMTPConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
	CronSecret     string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// EncryptionConfig holds the workspace keyring. Keys is a comma separated
// list of id=AGE-SECRET-KEY-... pairs.
type EncryptionConfig struct {
	Keys         string
	PrimaryKeyID string
}

type StorageConfig struct {
	Backend            string // s3, gcs, memory
	Bucket             string
	Region             string
	Endpoint           string
	AccessKey          string
	SecretKey          string
	GCSCredentialsFile string
}

type RenewalConfig struct {
	Cron        string
	HorizonDays int
	Timezone    string
}

type InviteConfig struct {
	ExpiryHours int
	BaseURL     string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (i *InviteConfig) Expiry() time.Duration {
	return time.Duration(i.ExpiryHours) * time.Hour
}

// Location resolves the renewal timezone, falling back to UTC.
func (r *RenewalConfig) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s *SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "nerlude")
	v.SetDefault("DATABASE_PASSWORD", "nerlude_secret")
	v.SetDefault("DATABASE_NAME", "nerlude")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("STORAGE_BACKEND", "memory")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("RENEWAL_SCAN_CRON", "0 8 * * *")
	v.SetDefault("RENEWAL_HORIZON_DAYS", 30)
	v.SetDefault("RENEWAL_TIMEZONE", "UTC")
	v.SetDefault("INVITE_EXPIRY_HOURS", 24)
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			CronSecret:     v.GetString("CRON_SECRET"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Keys:         v.GetString("ENCRYPTION_KEYS"),
			PrimaryKeyID: v.GetString("ENCRYPTION_PRIMARY_KEY_ID"),
		},
		Storage: StorageConfig{
			Backend:            v.GetString("STORAGE_BACKEND"),
			Bucket:             v.GetString("STORAGE_BUCKET"),
			Region:             v.GetString("STORAGE_REGION"),
			Endpoint:           v.GetString("STORAGE_ENDPOINT"),
			AccessKey:          v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:          v.GetString("STORAGE_SECRET_KEY"),
			GCSCredentialsFile: v.GetString("STORAGE_GCS_CREDENTIALS_FILE"),
		},
		Renewal: RenewalConfig{
			Cron:        v.GetString("RENEWAL_SCAN_CRON"),
			HorizonDays: v.GetInt("RENEWAL_HORIZON_DAYS"),
			Timezone:    v.GetString("RENEWAL_TIMEZONE"),
		},
		Invite: InviteConfig{
			ExpiryHours: v.GetInt("INVITE_EXPIRY_HOURS"),
			BaseURL:     v.GetString("APP_BASE_URL"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
