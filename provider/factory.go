package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/marqetfi/tradegate/configstore"
	"github.com/marqetfi/tradegate/settings"
)

// ErrNoAuthProvider is returned when neither Privy nor Auth0 has enough
// configuration to act as the default authentication provider.
var ErrNoAuthProvider = errors.New("provider: no authentication provider configured")

// Factory resolves capability requests to initialized provider instances.
// Instances are cached per (capability, name) for the life of the process;
// a configuration change applies only to instances created afterwards, so a
// database update does not reach an already-cached provider until restart.
type Factory struct {
	registries *Registries
	resolver   *configstore.Service
	settings   *settings.Settings
	logger     *slog.Logger

	mu         sync.Mutex
	trading    map[string]TradingProvider
	price      map[string]PriceProvider
	settlement map[string]SettlementProvider
	swap       map[string]SwapProvider
	auth       map[string]AuthProvider
	wallet     map[string]WalletProvider
}

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithFactoryLogger sets the factory's logger.
func WithFactoryLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// NewFactory builds a factory over the registry set. resolver supplies
// database-backed provider configuration and may be nil, in which case every
// provider is built from settings alone.
func NewFactory(registries *Registries, resolver *configstore.Service, cfg *settings.Settings, opts ...FactoryOption) *Factory {
	f := &Factory{
		registries: registries,
		resolver:   resolver,
		settings:   cfg,
		logger:     slog.Default(),
		trading:    make(map[string]TradingProvider),
		price:      make(map[string]PriceProvider),
		settlement: make(map[string]SettlementProvider),
		swap:       make(map[string]SwapProvider),
		auth:       make(map[string]AuthProvider),
		wallet:     make(map[string]WalletProvider),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Trading returns the trading provider for name, or the configured default
// when name is empty.
func (f *Factory) Trading(ctx context.Context, name string) (TradingProvider, error) {
	if name == "" {
		name = f.settings.TradingProvider
	}
	return getProvider(ctx, f, f.registries.Trading, f.trading, name)
}

// Price returns the price provider for name or the configured default.
func (f *Factory) Price(ctx context.Context, name string) (PriceProvider, error) {
	if name == "" {
		name = f.settings.PriceProvider
	}
	return getProvider(ctx, f, f.registries.Price, f.price, name)
}

// Settlement returns the settlement provider for name or the configured
// default.
func (f *Factory) Settlement(ctx context.Context, name string) (SettlementProvider, error) {
	if name == "" {
		name = f.settings.SettlementProvider
	}
	return getProvider(ctx, f, f.registries.Settlement, f.settlement, name)
}

// Swap returns the swap provider for name or the configured default.
func (f *Factory) Swap(ctx context.Context, name string) (SwapProvider, error) {
	if name == "" {
		name = f.settings.SwapProvider
	}
	return getProvider(ctx, f, f.registries.Swap, f.swap, name)
}

// Auth returns the auth provider for name. With an empty name the default is
// chosen from what is configured: Privy when its app id is set, then Auth0
// when its domain is set, otherwise ErrNoAuthProvider.
func (f *Factory) Auth(ctx context.Context, name string) (AuthProvider, error) {
	if name == "" {
		switch {
		case f.settings.PrivyAppID != "":
			name = "privy"
		case f.settings.Auth0Domain != "":
			name = "auth0"
		default:
			return nil, ErrNoAuthProvider
		}
	}
	return getProvider(ctx, f, f.registries.Auth, f.auth, name)
}

// Wallet returns the wallet provider for name or the configured default.
func (f *Factory) Wallet(ctx context.Context, name string) (WalletProvider, error) {
	if name == "" {
		name = f.settings.WalletProvider
	}
	return getProvider(ctx, f, f.registries.Wallet, f.wallet, name)
}

// getProvider is the shared lookup path: cache hit, else construct with the
// resolved configuration, initialize, and cache. The mutex spans construct
// and Initialize so concurrent first requests for one name run the vendor
// handshake exactly once.
func getProvider[T Base](ctx context.Context, f *Factory, reg *Registry[T], cache map[string]T, name string) (T, error) {
	var zero T

	f.mu.Lock()
	defer f.mu.Unlock()

	if instance, ok := cache[name]; ok {
		return instance, nil
	}

	ctor, ok := reg.Get(name)
	if !ok {
		return zero, &UnavailableError{
			Capability: reg.capability,
			Name:       name,
			Registered: reg.Names(),
		}
	}

	raw := f.resolveConfig(ctx, name, reg.capability)
	instance, err := ctor(ctx, raw)
	if err != nil {
		return zero, &InitError{Capability: reg.capability, Name: name, Err: err}
	}
	if err := instance.Initialize(ctx); err != nil {
		return zero, &InitError{Capability: reg.capability, Name: name, Err: err}
	}

	cache[name] = instance
	f.logger.Info("provider initialized",
		slog.String("capability", string(reg.capability)),
		slog.String("provider", name))
	return instance, nil
}

// resolveConfig fetches the active database configuration for the pair. Any
// failure degrades to nil so the constructor falls back to settings.
func (f *Factory) resolveConfig(ctx context.Context, name string, capability Capability) json.RawMessage {
	if f.resolver == nil {
		return nil
	}
	raw, err := f.resolver.GetProviderConfig(ctx, name, string(capability))
	if err != nil {
		f.logger.Warn("provider config lookup failed, using settings",
			slog.String("capability", string(capability)),
			slog.String("provider", name),
			slog.Any("error", err))
		return nil
	}
	return raw
}
