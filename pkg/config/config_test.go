package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROZETKAPAY_LOGIN", "")
	t.Setenv("ROZETKAPAY_PASSWORD", "")

	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 8081, cfg.GRPCPort)
	assert.Equal(t, "UAH", cfg.Payment.Currency)
	assert.Equal(t, "skip", cfg.Checkout.MissingProductPolicy)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.True(t, cfg.StrictOrderTransitions)
	assert.False(t, cfg.Payment.Configured())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("ORDER_STRICT_TRANSITIONS", "false")
	t.Setenv("ROZETKAPAY_LOGIN", "merchant")
	t.Setenv("ROZETKAPAY_PASSWORD", "secret")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example/")

	cfg := Load()

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.False(t, cfg.StrictOrderTransitions)
	assert.True(t, cfg.Payment.Configured())
	assert.Equal(t, "https://shop.example", cfg.Payment.PublicBaseURL)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("GRPC_PORT", "not-a-number")
	t.Setenv("CHECKOUT_LOCK_TTL", "-5s")
	t.Setenv("MIGRATE_ON_START", "maybe")

	cfg := Load()

	assert.Equal(t, 8081, cfg.GRPCPort)
	assert.Equal(t, 15*time.Second, cfg.Checkout.LockTTL)
	assert.True(t, cfg.Postgres.MigrateOnStart)
}
