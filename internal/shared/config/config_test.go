package config

import (
	"testing"
	"time"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-service")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8084", cfg.HTTPPort)
	assert.Equal(t, "9100", cfg.MetricsPort)
	assert.Equal(t, "v1", cfg.Rake.Version())
	assert.Equal(t, "0.03", cfg.Rake.Fraction().String())
	assert.Equal(t, 30*time.Second, cfg.SettlementLockTTL)
	assert.Equal(t, "market_settled", cfg.TopicMarketSettled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "bet-service")
	t.Setenv("HOUSE_TAKE", "0.1")
	t.Setenv("HOUSE_TAKE_VERSION", "2026-q3")
	t.Setenv("LEDGER_DRIVER", "sqlite")
	t.Setenv("BET_RATE_LIMIT", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.HTTPPort)
	assert.Equal(t, "2026-q3", cfg.Rake.Version())
	assert.Equal(t, "sqlite", cfg.LedgerDriver)
	assert.Zero(t, cfg.BetRateLimit)
}

func TestLoad_InvalidRakeIsFatal(t *testing.T) {
	for _, v := range []string{"1", "-0.2", "lots"} {
		t.Setenv("HOUSE_TAKE", v)
		_, err := Load()
		assert.ErrorIs(t, err, parimutuel.ErrInvalidRake, v)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SETTLEMENT_LOCK_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}
