package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_TTL_HOURS", "")
	t.Setenv("ADMIN_SIGNUP_CODE", "")
	t.Setenv("STORAGE_ENDPOINT", "")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("TRUSTED_PROXIES", "")

	cfg := Load()
	assert.Equal(t, 168*time.Hour, cfg.TokenTTL)
	assert.Empty(t, cfg.AdminSignupCode)
	assert.Empty(t, cfg.StorageEndpoint)
	assert.Empty(t, cfg.SMTPHost)
	assert.Equal(t, "587", cfg.SMTPPort)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, DefaultJWTSecret, cfg.JWTSecret)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOKEN_TTL_HOURS", "2")
	t.Setenv("ADMIN_SIGNUP_CODE", "  letmein ")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("AUTH_RATE_PER_MIN", "not-a-number")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.0.2.7 ")

	cfg := Load()
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "letmein", cfg.AdminSignupCode)
	assert.True(t, cfg.StorageUseSSL)
	assert.Equal(t, 30, cfg.AuthRatePerMin)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.7"}, cfg.TrustedProxies)
}
