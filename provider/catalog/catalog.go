// Package catalog assembles the provider registries. Registration is
// explicit and happens in the composition root; nothing registers itself at
// import time.
package catalog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/provider/auth0"
	"github.com/marqetfi/tradegate/provider/dynamic"
	"github.com/marqetfi/tradegate/provider/hl"
	"github.com/marqetfi/tradegate/provider/lifi"
	"github.com/marqetfi/tradegate/provider/lighter"
	"github.com/marqetfi/tradegate/provider/ostium"
	"github.com/marqetfi/tradegate/provider/privy"
	"github.com/marqetfi/tradegate/settings"
)

// Deps carries what the constructors close over. OstiumSettings may be nil;
// the Ostium providers then build from the settings bag alone.
type Deps struct {
	Settings       *settings.Settings
	OstiumSettings *ostium.SettingsService
	Logger         *slog.Logger
}

// DefaultRegistries builds the full registration table: every vendor this
// build ships, bound to the capabilities it implements.
func DefaultRegistries(deps Deps) *provider.Registries {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	reg := provider.NewRegistries()

	reg.Trading.Register("ostium", func(ctx context.Context, raw json.RawMessage) (provider.TradingProvider, error) {
		return newOstium(ctx, deps, raw)
	})
	reg.Price.Register("ostium", func(ctx context.Context, raw json.RawMessage) (provider.PriceProvider, error) {
		return newOstium(ctx, deps, raw)
	})
	reg.Settlement.Register("ostium", func(ctx context.Context, raw json.RawMessage) (provider.SettlementProvider, error) {
		return newOstium(ctx, deps, raw)
	})

	reg.Trading.Register("lighter", func(_ context.Context, raw json.RawMessage) (provider.TradingProvider, error) {
		return newLighter(deps, raw)
	})
	reg.Price.Register("lighter", func(_ context.Context, raw json.RawMessage) (provider.PriceProvider, error) {
		return newLighter(deps, raw)
	})

	reg.Trading.Register("hyperliquid", func(_ context.Context, raw json.RawMessage) (provider.TradingProvider, error) {
		return newHyperliquid(deps, raw)
	})
	reg.Price.Register("hyperliquid", func(_ context.Context, raw json.RawMessage) (provider.PriceProvider, error) {
		return newHyperliquid(deps, raw)
	})

	reg.Swap.Register("lifi", func(_ context.Context, raw json.RawMessage) (provider.SwapProvider, error) {
		cfg := lifi.ConfigFromSettings(deps.Settings)
		if err := overlay(raw, &cfg); err != nil {
			return nil, err
		}
		return lifi.New(cfg, lifi.WithLogger(deps.Logger)), nil
	})

	reg.Auth.Register("auth0", func(_ context.Context, raw json.RawMessage) (provider.AuthProvider, error) {
		cfg := auth0.ConfigFromSettings(deps.Settings)
		if err := overlay(raw, &cfg); err != nil {
			return nil, err
		}
		return auth0.New(cfg, auth0.WithLogger(deps.Logger)), nil
	})

	reg.Auth.Register("privy", func(_ context.Context, raw json.RawMessage) (provider.AuthProvider, error) {
		return newPrivy(deps, raw)
	})
	reg.Wallet.Register("privy", func(_ context.Context, raw json.RawMessage) (provider.WalletProvider, error) {
		return newPrivy(deps, raw)
	})

	reg.Wallet.Register("dynamic", func(_ context.Context, raw json.RawMessage) (provider.WalletProvider, error) {
		cfg := dynamic.ConfigFromSettings(deps.Settings)
		if err := overlay(raw, &cfg); err != nil {
			return nil, err
		}
		return dynamic.New(cfg, dynamic.WithLogger(deps.Logger)), nil
	})

	return reg
}

// newOstium resolves the typed settings snapshot rather than the generic
// JSON payload: the Ostium admin service is the source of truth for this
// venue, with the settings bag as the fallback.
func newOstium(ctx context.Context, deps Deps, raw json.RawMessage) (*ostium.Provider, error) {
	cfg := ostium.ConfigFromSettings(deps.Settings)

	if deps.OstiumSettings != nil {
		active, err := deps.OstiumSettings.ActiveConfig(ctx)
		switch {
		case err != nil:
			deps.Logger.Warn("ostium settings lookup failed, using environment",
				slog.Any("error", err))
		case active != nil:
			return ostium.New(*active, ostium.WithLogger(deps.Logger)), nil
		}
	}

	cfg, err := ostium.ConfigFromJSON(raw, cfg)
	if err != nil {
		return nil, err
	}
	return ostium.New(cfg, ostium.WithLogger(deps.Logger)), nil
}

func newLighter(deps Deps, raw json.RawMessage) (*lighter.Provider, error) {
	cfg := lighter.ConfigFromSettings(deps.Settings)
	if err := overlay(raw, &cfg); err != nil {
		return nil, err
	}
	return lighter.New(cfg, lighter.WithLogger(deps.Logger)), nil
}

func newHyperliquid(deps Deps, raw json.RawMessage) (*hl.Provider, error) {
	cfg := hl.ConfigFromSettings(deps.Settings)
	if err := overlay(raw, &cfg); err != nil {
		return nil, err
	}
	return hl.New(cfg, hl.WithLogger(deps.Logger)), nil
}

func newPrivy(deps Deps, raw json.RawMessage) (*privy.Provider, error) {
	cfg := privy.ConfigFromSettings(deps.Settings)
	if err := overlay(raw, &cfg); err != nil {
		return nil, err
	}
	return privy.New(cfg, privy.WithLogger(deps.Logger)), nil
}

// overlay applies a database payload over the settings-derived base. A nil
// payload leaves the base untouched.
func overlay(raw json.RawMessage, cfg any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, cfg)
}
