package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("STORAGE_TYPE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Verification.LivenessThreshold)
	assert.Equal(t, time.Hour, cfg.Verification.DefaultTokenTTL)
	assert.Equal(t, time.Minute, cfg.Verification.MinTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.Verification.MaxTokenTTL)
	assert.Equal(t, int64(10<<20), cfg.Verification.MaxUploadSize)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Redis.APIKeyTTL)
	assert.Equal(t, StoragePostgres, cfg.StorageType)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("BASE_URL", "https://verify.example.com/")
	t.Setenv("LIVENESS_THRESHOLD", "0.85")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://verify.example.com", cfg.Verification.BaseURL)
	assert.Equal(t, 0.85, cfg.Verification.LivenessThreshold)
	assert.Equal(t, 3*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.True(t, cfg.Log.Pretty)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Environment: "development"},
			Verification: VerificationConfig{
				LivenessThreshold: 0.7,
				DefaultTokenTTL:   time.Hour,
				MinTokenTTL:       time.Minute,
				MaxTokenTTL:       24 * time.Hour,
			},
			StorageType: StorageMemory,
		}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Verification.LivenessThreshold = 1.5
	assert.Error(t, c.Validate())

	c = base()
	c.Verification.DefaultTokenTTL = 48 * time.Hour
	assert.Error(t, c.Validate())

	c = base()
	c.StorageType = "sqlite"
	assert.Error(t, c.Validate())

	c = base()
	c.Server.Environment = "production"
	assert.Error(t, c.Validate())
	c.Webhook.Secret = "s"
	c.Admin.Token = "t"
	assert.NoError(t, c.Validate())
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}
