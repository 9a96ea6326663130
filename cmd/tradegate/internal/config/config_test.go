package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyEnvDefaultsFlagBeatsEnv(t *testing.T) {
	t.Setenv("TRADEGATE_HTTP_LISTEN", ":9999")
	t.Setenv("TRADEGATE_DEPOSIT_WORKERS", "12")

	cfg := DefaultConfig()
	fs := NewConfigFlagSet(&cfg)
	require.NoError(t, fs.Parse([]string{"--http-listen", ":7777"}))
	require.NoError(t, ApplyEnvDefaults(fs, &cfg))

	require.Equal(t, ":7777", cfg.HTTPListen)
	require.Equal(t, 12, cfg.DepositWorkers)
}

func TestApplyEnvDefaultsFallsBackToDefaults(t *testing.T) {
	cfg := DefaultConfig()
	fs := NewConfigFlagSet(&cfg)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, ApplyEnvDefaults(fs, &cfg))

	require.Equal(t, "tradegate.sqlite3", cfg.StoragePath)
	require.Equal(t, ":8080", cfg.HTTPListen)
	require.Equal(t, 5, cfg.DepositWorkers)
}

func TestApplyEnvDefaultsLogComponents(t *testing.T) {
	t.Setenv("TRADEGATE_LOG_COMPONENTS", "ostium,trading")

	cfg := DefaultConfig()
	fs := NewConfigFlagSet(&cfg)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, ApplyEnvDefaults(fs, &cfg))

	require.Equal(t, []string{"ostium", "trading"}, cfg.LogComponents)
}

func TestValidateConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(cfg))

	cfg.StoragePath = ""
	require.Error(t, ValidateConfig(cfg))

	cfg = DefaultConfig()
	cfg.DepositWorkers = 0
	require.Error(t, ValidateConfig(cfg))

	cfg = DefaultConfig()
	cfg.DepositRetryMax = cfg.DepositRetryBase - time.Millisecond
	require.Error(t, ValidateConfig(cfg))
}
