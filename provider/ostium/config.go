// Package ostium integrates the Ostium perpetuals venue: an EVM-backed
// trading/price/settlement provider plus the admin service managing its
// versioned settings snapshots.
package ostium

import (
	"encoding/json"

	"github.com/marqetfi/tradegate/settings"
)

// Config is the decrypted, ready-to-use configuration for the Ostium
// provider. PrivateKey is plaintext here: this value object crosses the
// admin boundary exactly once, into the provider constructor, and must never
// be logged.
type Config struct {
	Enabled              bool    `json:"enabled"`
	PrivateKey           string  `json:"private_key"`
	RPCURL               string  `json:"rpc_url"`
	Network              string  `json:"network"`
	Verbose              bool    `json:"verbose"`
	SlippagePercentage   float64 `json:"slippage_percentage"`
	DefaultFeePercentage float64 `json:"default_fee_percentage"`
	MinFee               float64 `json:"min_fee"`
	MaxFee               float64 `json:"max_fee"`
	Timeout              int     `json:"timeout"`
	RetryAttempts        int     `json:"retry_attempts"`
	RetryDelay           float64 `json:"retry_delay"`
}

// ConfigFromSettings builds a Config from the process settings bag with the
// documented per-field defaults already applied by settings.Defaults.
func ConfigFromSettings(s *settings.Settings) Config {
	return Config{
		Enabled:            s.OstiumEnabled,
		PrivateKey:         s.OstiumPrivateKey,
		RPCURL:             s.OstiumRPCURL,
		Network:            s.OstiumNetwork,
		Verbose:            s.OstiumVerbose,
		SlippagePercentage: s.OstiumSlippagePercentage,
		Timeout:            s.OstiumTimeout,
		RetryAttempts:      s.OstiumRetryAttempts,
		RetryDelay:         s.OstiumRetryDelay,
	}
}

// ConfigFromJSON parses a provider configuration payload. Unknown fields are
// ignored; missing numeric fields keep the zero value, so callers layer this
// over a settings-derived base when defaults matter.
func ConfigFromJSON(raw json.RawMessage, base Config) (Config, error) {
	cfg := base
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
