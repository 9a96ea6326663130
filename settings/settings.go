// Package settings holds the process-wide, environment-derived configuration
// bag. It is the last fallback tier behind the database-backed configuration
// store: resolution always runs DB first, then this bag, then the caller's
// default.
package settings

import (
	"os"
	"strconv"
)

// Settings is a read-only snapshot of environment-derived defaults. Build it
// once in the composition root with FromEnv and pass it down; nothing in here
// mutates after construction.
type Settings struct {
	// SecretKey is the process secret used to derive the at-rest
	// encryption key. Required for any encrypted configuration value.
	SecretKey string

	// Default provider names per capability.
	TradingProvider    string
	PriceProvider      string
	SettlementProvider string
	SwapProvider       string
	WalletProvider     string

	// Ostium
	OstiumEnabled            bool
	OstiumPrivateKey         string
	OstiumRPCURL             string
	OstiumNetwork            string
	OstiumVerbose            bool
	OstiumSlippagePercentage float64
	OstiumTimeout            int
	OstiumRetryAttempts      int
	OstiumRetryDelay         float64

	// Lighter
	LighterEnabled       bool
	LighterAPIURL        string
	LighterAPIKey        string
	LighterPrivateKey    string
	LighterNetwork       string
	LighterTimeout       int
	LighterRetryAttempts int
	LighterRetryDelay    float64

	// Hyperliquid
	HyperliquidEnabled    bool
	HyperliquidWallet     string
	HyperliquidPrivateKey string
	HyperliquidAPIURL     string
	HyperliquidTimeout    int

	// LI.FI
	LifiEnabled       bool
	LifiAPIURL        string
	LifiAPIKey        string
	LifiTimeout       int
	LifiRetryAttempts int
	LifiRetryDelay    float64

	// Auth0
	Auth0Domain                 string
	Auth0ClientID               string
	Auth0ClientSecret           string
	Auth0Audience               string
	Auth0ManagementClientID     string
	Auth0ManagementClientSecret string
	Auth0Algorithm              string

	// Privy
	PrivyEnabled            bool
	PrivyAppID              string
	PrivyAppSecret          string
	PrivyEnvironment        string
	PrivyUseEmbeddedWallets bool
	PrivyTimeout            int
	PrivyRetryAttempts      int
	PrivyRetryDelay         float64

	// Dynamic
	DynamicEnabled       bool
	DynamicAPIKey        string
	DynamicAPISecret     string
	DynamicAPIURL        string
	DynamicEnvironment   string
	DynamicTimeout       int
	DynamicRetryAttempts int
	DynamicRetryDelay    float64
}

// Defaults returns the hardcoded per-field defaults applied before the
// environment is consulted.
func Defaults() Settings {
	return Settings{
		TradingProvider:    "ostium",
		PriceProvider:      "ostium",
		SettlementProvider: "ostium",
		SwapProvider:       "lifi",
		WalletProvider:     "privy",

		OstiumEnabled:            true,
		OstiumNetwork:            "testnet",
		OstiumSlippagePercentage: 1.0,
		OstiumTimeout:            30,
		OstiumRetryAttempts:      3,
		OstiumRetryDelay:         1.0,

		LighterEnabled:       true,
		LighterAPIURL:        "https://api.lighter.xyz",
		LighterNetwork:       "mainnet",
		LighterTimeout:       30,
		LighterRetryAttempts: 3,
		LighterRetryDelay:    1.0,

		HyperliquidEnabled: true,
		HyperliquidTimeout: 30,

		LifiEnabled:       true,
		LifiAPIURL:        "https://li.quest/v1",
		LifiTimeout:       30,
		LifiRetryAttempts: 3,
		LifiRetryDelay:    1.0,

		Auth0Algorithm: "HS256",

		PrivyEnabled:            true,
		PrivyEnvironment:        "production",
		PrivyUseEmbeddedWallets: true,
		PrivyTimeout:            30,
		PrivyRetryAttempts:      3,
		PrivyRetryDelay:         1.0,

		DynamicEnabled:       true,
		DynamicAPIURL:        "https://api.dynamic.xyz",
		DynamicEnvironment:   "production",
		DynamicTimeout:       30,
		DynamicRetryAttempts: 3,
		DynamicRetryDelay:    1.0,
	}
}

// FromEnv builds a Settings from the process environment, starting from
// Defaults and overriding any field whose variable is set.
func FromEnv() Settings {
	s := Defaults()

	setString(&s.SecretKey, "SECRET_KEY")

	setString(&s.TradingProvider, "TRADING_PROVIDER")
	setString(&s.PriceProvider, "PRICE_PROVIDER")
	setString(&s.SettlementProvider, "SETTLEMENT_PROVIDER")
	setString(&s.SwapProvider, "SWAP_PROVIDER")
	setString(&s.WalletProvider, "WALLET_PROVIDER")

	setBool(&s.OstiumEnabled, "OSTIUM_ENABLED")
	setString(&s.OstiumPrivateKey, "OSTIUM_PRIVATE_KEY")
	setString(&s.OstiumRPCURL, "OSTIUM_RPC_URL")
	setString(&s.OstiumNetwork, "OSTIUM_NETWORK")
	setBool(&s.OstiumVerbose, "OSTIUM_VERBOSE")
	setFloat(&s.OstiumSlippagePercentage, "OSTIUM_SLIPPAGE_PERCENTAGE")
	setInt(&s.OstiumTimeout, "OSTIUM_TIMEOUT")
	setInt(&s.OstiumRetryAttempts, "OSTIUM_RETRY_ATTEMPTS")
	setFloat(&s.OstiumRetryDelay, "OSTIUM_RETRY_DELAY")

	setBool(&s.LighterEnabled, "LIGHTER_ENABLED")
	setString(&s.LighterAPIURL, "LIGHTER_API_URL")
	setString(&s.LighterAPIKey, "LIGHTER_API_KEY")
	setString(&s.LighterPrivateKey, "LIGHTER_PRIVATE_KEY")
	setString(&s.LighterNetwork, "LIGHTER_NETWORK")
	setInt(&s.LighterTimeout, "LIGHTER_TIMEOUT")
	setInt(&s.LighterRetryAttempts, "LIGHTER_RETRY_ATTEMPTS")
	setFloat(&s.LighterRetryDelay, "LIGHTER_RETRY_DELAY")

	setBool(&s.HyperliquidEnabled, "HYPERLIQUID_ENABLED")
	setString(&s.HyperliquidWallet, "HYPERLIQUID_WALLET")
	setString(&s.HyperliquidPrivateKey, "HYPERLIQUID_PRIVATE_KEY")
	setString(&s.HyperliquidAPIURL, "HYPERLIQUID_API_URL")
	setInt(&s.HyperliquidTimeout, "HYPERLIQUID_TIMEOUT")

	setBool(&s.LifiEnabled, "LIFI_ENABLED")
	setString(&s.LifiAPIURL, "LIFI_API_URL")
	setString(&s.LifiAPIKey, "LIFI_API_KEY")
	setInt(&s.LifiTimeout, "LIFI_TIMEOUT")
	setInt(&s.LifiRetryAttempts, "LIFI_RETRY_ATTEMPTS")
	setFloat(&s.LifiRetryDelay, "LIFI_RETRY_DELAY")

	setString(&s.Auth0Domain, "AUTH0_DOMAIN")
	setString(&s.Auth0ClientID, "AUTH0_CLIENT_ID")
	setString(&s.Auth0ClientSecret, "AUTH0_CLIENT_SECRET")
	setString(&s.Auth0Audience, "AUTH0_AUDIENCE")
	setString(&s.Auth0ManagementClientID, "AUTH0_MANAGEMENT_CLIENT_ID")
	setString(&s.Auth0ManagementClientSecret, "AUTH0_MANAGEMENT_CLIENT_SECRET")
	setString(&s.Auth0Algorithm, "AUTH0_ALGORITHM")

	setBool(&s.PrivyEnabled, "PRIVY_ENABLED")
	setString(&s.PrivyAppID, "PRIVY_APP_ID")
	setString(&s.PrivyAppSecret, "PRIVY_APP_SECRET")
	setString(&s.PrivyEnvironment, "PRIVY_ENVIRONMENT")
	setBool(&s.PrivyUseEmbeddedWallets, "PRIVY_USE_EMBEDDED_WALLETS")
	setInt(&s.PrivyTimeout, "PRIVY_TIMEOUT")
	setInt(&s.PrivyRetryAttempts, "PRIVY_RETRY_ATTEMPTS")
	setFloat(&s.PrivyRetryDelay, "PRIVY_RETRY_DELAY")

	setBool(&s.DynamicEnabled, "DYNAMIC_ENABLED")
	setString(&s.DynamicAPIKey, "DYNAMIC_API_KEY")
	setString(&s.DynamicAPISecret, "DYNAMIC_API_SECRET")
	setString(&s.DynamicAPIURL, "DYNAMIC_API_URL")
	setString(&s.DynamicEnvironment, "DYNAMIC_ENVIRONMENT")
	setInt(&s.DynamicTimeout, "DYNAMIC_TIMEOUT")
	setInt(&s.DynamicRetryAttempts, "DYNAMIC_RETRY_ATTEMPTS")
	setFloat(&s.DynamicRetryDelay, "DYNAMIC_RETRY_DELAY")

	return s
}

// lookupTable maps every canonical configuration key to its field, one entry
// per Settings field so the environment tier can reach any of them.
var lookupTable = map[string]func(Settings) any{
	"SECRET_KEY": func(s Settings) any { return s.SecretKey },

	"TRADING_PROVIDER":    func(s Settings) any { return s.TradingProvider },
	"PRICE_PROVIDER":      func(s Settings) any { return s.PriceProvider },
	"SETTLEMENT_PROVIDER": func(s Settings) any { return s.SettlementProvider },
	"SWAP_PROVIDER":       func(s Settings) any { return s.SwapProvider },
	"WALLET_PROVIDER":     func(s Settings) any { return s.WalletProvider },

	"OSTIUM_ENABLED":             func(s Settings) any { return s.OstiumEnabled },
	"OSTIUM_PRIVATE_KEY":         func(s Settings) any { return s.OstiumPrivateKey },
	"OSTIUM_RPC_URL":             func(s Settings) any { return s.OstiumRPCURL },
	"OSTIUM_NETWORK":             func(s Settings) any { return s.OstiumNetwork },
	"OSTIUM_VERBOSE":             func(s Settings) any { return s.OstiumVerbose },
	"OSTIUM_SLIPPAGE_PERCENTAGE": func(s Settings) any { return s.OstiumSlippagePercentage },
	"OSTIUM_TIMEOUT":             func(s Settings) any { return s.OstiumTimeout },
	"OSTIUM_RETRY_ATTEMPTS":      func(s Settings) any { return s.OstiumRetryAttempts },
	"OSTIUM_RETRY_DELAY":         func(s Settings) any { return s.OstiumRetryDelay },

	"LIGHTER_ENABLED":        func(s Settings) any { return s.LighterEnabled },
	"LIGHTER_API_URL":        func(s Settings) any { return s.LighterAPIURL },
	"LIGHTER_API_KEY":        func(s Settings) any { return s.LighterAPIKey },
	"LIGHTER_PRIVATE_KEY":    func(s Settings) any { return s.LighterPrivateKey },
	"LIGHTER_NETWORK":        func(s Settings) any { return s.LighterNetwork },
	"LIGHTER_TIMEOUT":        func(s Settings) any { return s.LighterTimeout },
	"LIGHTER_RETRY_ATTEMPTS": func(s Settings) any { return s.LighterRetryAttempts },
	"LIGHTER_RETRY_DELAY":    func(s Settings) any { return s.LighterRetryDelay },

	"HYPERLIQUID_ENABLED":     func(s Settings) any { return s.HyperliquidEnabled },
	"HYPERLIQUID_WALLET":      func(s Settings) any { return s.HyperliquidWallet },
	"HYPERLIQUID_PRIVATE_KEY": func(s Settings) any { return s.HyperliquidPrivateKey },
	"HYPERLIQUID_API_URL":     func(s Settings) any { return s.HyperliquidAPIURL },
	"HYPERLIQUID_TIMEOUT":     func(s Settings) any { return s.HyperliquidTimeout },

	"LIFI_ENABLED":        func(s Settings) any { return s.LifiEnabled },
	"LIFI_API_URL":        func(s Settings) any { return s.LifiAPIURL },
	"LIFI_API_KEY":        func(s Settings) any { return s.LifiAPIKey },
	"LIFI_TIMEOUT":        func(s Settings) any { return s.LifiTimeout },
	"LIFI_RETRY_ATTEMPTS": func(s Settings) any { return s.LifiRetryAttempts },
	"LIFI_RETRY_DELAY":    func(s Settings) any { return s.LifiRetryDelay },

	"AUTH0_DOMAIN":                   func(s Settings) any { return s.Auth0Domain },
	"AUTH0_CLIENT_ID":                func(s Settings) any { return s.Auth0ClientID },
	"AUTH0_CLIENT_SECRET":            func(s Settings) any { return s.Auth0ClientSecret },
	"AUTH0_AUDIENCE":                 func(s Settings) any { return s.Auth0Audience },
	"AUTH0_MANAGEMENT_CLIENT_ID":     func(s Settings) any { return s.Auth0ManagementClientID },
	"AUTH0_MANAGEMENT_CLIENT_SECRET": func(s Settings) any { return s.Auth0ManagementClientSecret },
	"AUTH0_ALGORITHM":                func(s Settings) any { return s.Auth0Algorithm },

	"PRIVY_ENABLED":              func(s Settings) any { return s.PrivyEnabled },
	"PRIVY_APP_ID":               func(s Settings) any { return s.PrivyAppID },
	"PRIVY_APP_SECRET":           func(s Settings) any { return s.PrivyAppSecret },
	"PRIVY_ENVIRONMENT":          func(s Settings) any { return s.PrivyEnvironment },
	"PRIVY_USE_EMBEDDED_WALLETS": func(s Settings) any { return s.PrivyUseEmbeddedWallets },
	"PRIVY_TIMEOUT":              func(s Settings) any { return s.PrivyTimeout },
	"PRIVY_RETRY_ATTEMPTS":       func(s Settings) any { return s.PrivyRetryAttempts },
	"PRIVY_RETRY_DELAY":          func(s Settings) any { return s.PrivyRetryDelay },

	"DYNAMIC_ENABLED":        func(s Settings) any { return s.DynamicEnabled },
	"DYNAMIC_API_KEY":        func(s Settings) any { return s.DynamicAPIKey },
	"DYNAMIC_API_SECRET":     func(s Settings) any { return s.DynamicAPISecret },
	"DYNAMIC_API_URL":        func(s Settings) any { return s.DynamicAPIURL },
	"DYNAMIC_ENVIRONMENT":    func(s Settings) any { return s.DynamicEnvironment },
	"DYNAMIC_TIMEOUT":        func(s Settings) any { return s.DynamicTimeout },
	"DYNAMIC_RETRY_ATTEMPTS": func(s Settings) any { return s.DynamicRetryAttempts },
	"DYNAMIC_RETRY_DELAY":    func(s Settings) any { return s.DynamicRetryDelay },
}

// Lookup returns the value behind a canonical configuration key, for the
// environment tier of DB-first resolution. The boolean reports whether the
// key names a known setting; an empty string value with ok=true means the
// setting exists but is unset.
func (s Settings) Lookup(key string) (any, bool) {
	get, ok := lookupTable[key]
	if !ok {
		return nil, false
	}
	return get(s), true
}

func setString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func setInt(target *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*target = parsed
		}
	}
}

func setFloat(target *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*target = parsed
		}
	}
}

func setBool(target *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*target = parsed
		}
	}
}
