package main

import (
	"bytes"
	"testing"

	"cleanstreet/api/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger = newLogger(" DEBUG ", &buf)
	logger.Debug("details")
	assert.Contains(t, buf.String(), "details")

	buf.Reset()
	logger = newLogger("nonsense", &buf)
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWarnDevSecret(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("info", &buf)

	assert.True(t, warnDevSecret(logger, config.Config{JWTSecret: config.DefaultJWTSecret}))
	assert.Contains(t, buf.String(), "JWT_SECRET not set")

	buf.Reset()
	assert.False(t, warnDevSecret(logger, config.Config{JWTSecret: "a-real-secret"}))
	assert.Empty(t, buf.String())
}
