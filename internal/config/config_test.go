package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, 8, cfg.Pricing.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Pricing.ItemTimeout)
	assert.Equal(t, time.Hour, cfg.Pricing.ResultTTL)
	assert.Equal(t, 2*time.Hour, cfg.Pricing.MaterialsTTL)
	assert.Equal(t, 30*time.Minute, cfg.Pricing.MachinesTTL)
	assert.Equal(t, "0.16", cfg.Business.TaxRate.String())
	assert.Equal(t, 14, cfg.Business.ValidityDays)
	assert.Equal(t, "*/15 * * * *", cfg.Jobs.ExpirySpec)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_HOST", "")
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("PRICING_CONCURRENCY", "2")
	t.Setenv("PRICING_ITEM_TIMEOUT", "not-a-duration")
	t.Setenv("BUSINESS_TAX_RATE", "0.08")
	t.Setenv("RATELIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, 2, cfg.Pricing.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Pricing.ItemTimeout)
	assert.Equal(t, "0.08", cfg.Business.TaxRate.String())
	assert.InDelta(t, 2.5, cfg.RateLimit.RequestsPerSecond, 1e-9)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DB_PASSWORD", "secret")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AUTH_JWT_SECRET="+testSecret+"\nREDIS_ADDR=cache:6379\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("AUTH_JWT_SECRET")
		os.Unsetenv("REDIS_ADDR")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("DB_PASSWORD", "")
	_, err := Load()
	assert.ErrorContains(t, err, "DB_PASSWORD")

	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("AUTH_JWT_SECRET", "short")
	_, err = Load()
	assert.ErrorContains(t, err, "AUTH_JWT_SECRET")

	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("BUSINESS_TAX_RATE", "16")
	_, err = Load()
	assert.ErrorContains(t, err, "BUSINESS_TAX_RATE")
}
