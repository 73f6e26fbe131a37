package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Verification VerificationConfig
	Webhook      WebhookConfig
	Admin        AdminConfig
	Email        EmailConfig
	Log          LogConfig
	StorageType  string
}

type ServerConfig struct {
	Port           string
	Environment    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	APIKeyTTL time.Duration
}

type JWTConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	Issuer         string
}

type VerificationConfig struct {
	BaseURL           string
	LivenessThreshold float64
	DefaultTokenTTL   time.Duration
	MinTokenTTL       time.Duration
	MaxTokenTTL       time.Duration
	UploadDir         string
	MaxUploadSize     int64
}

type WebhookConfig struct {
	Secret  string
	Timeout time.Duration
}

type AdminConfig struct {
	Token string
}

type EmailConfig struct {
	Enabled   bool
	APIKey    string
	FromEmail string
	FromName  string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

func Load() (*Config, error) {
	// .env is optional outside development
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "verification"),
			Password: getEnv("DB_PASSWORD", "verification"),
			DBName:   getEnv("DB_NAME", "verificationdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			APIKeyTTL: getDurationEnv("REDIS_APIKEY_TTL", 5*time.Minute),
		},
		JWT: JWTConfig{
			PrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./keys/private.pem"),
			PublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public.pem"),
			Issuer:         getEnv("JWT_ISSUER", "verification-service"),
		},
		Verification: VerificationConfig{
			BaseURL:           strings.TrimRight(getEnv("BASE_URL", "http://localhost:3000"), "/"),
			LivenessThreshold: getFloatEnv("LIVENESS_THRESHOLD", 0.7),
			DefaultTokenTTL:   getDurationEnv("SESSION_TOKEN_TTL", time.Hour),
			MinTokenTTL:       getDurationEnv("SESSION_TOKEN_MIN_TTL", time.Minute),
			MaxTokenTTL:       getDurationEnv("SESSION_TOKEN_MAX_TTL", 24*time.Hour),
			UploadDir:         getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadSize:     int64(getIntEnv("MAX_UPLOAD_SIZE_MB", 10)) << 20,
		},
		Webhook: WebhookConfig{
			Secret:  getEnv("WEBHOOK_SECRET", ""),
			Timeout: getDurationEnv("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Admin: AdminConfig{
			Token: getEnv("ADMIN_TOKEN", ""),
		},
		Email: EmailConfig{
			Enabled:   getBoolEnv("EMAIL_ENABLED", false),
			APIKey:    getEnv("RESEND_API_KEY", ""),
			FromEmail: getEnv("EMAIL_FROM", ""),
			FromName:  getEnv("EMAIL_FROM_NAME", "NotaryPro Identity"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBoolEnv("LOG_PRETTY", false),
		},
		StorageType: getEnv("STORAGE_TYPE", StoragePostgres),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	v := c.Verification
	if v.LivenessThreshold < 0 || v.LivenessThreshold > 1 {
		return errors.Errorf("LIVENESS_THRESHOLD must be within [0,1], got %v", v.LivenessThreshold)
	}
	if v.MinTokenTTL <= 0 || v.MinTokenTTL > v.MaxTokenTTL {
		return errors.New("SESSION_TOKEN_MIN_TTL must be positive and not above SESSION_TOKEN_MAX_TTL")
	}
	if v.DefaultTokenTTL < v.MinTokenTTL || v.DefaultTokenTTL > v.MaxTokenTTL {
		return errors.New("SESSION_TOKEN_TTL must be within the min/max bounds")
	}
	if c.StorageType != StoragePostgres && c.StorageType != StorageMemory {
		return errors.Errorf("STORAGE_TYPE must be %q or %q", StoragePostgres, StorageMemory)
	}
	if c.IsProduction() {
		if c.Webhook.Secret == "" {
			return errors.New("WEBHOOK_SECRET is required in production")
		}
		if c.Admin.Token == "" {
			return errors.New("ADMIN_TOKEN is required in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
