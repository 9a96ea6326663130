package provider

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/settings"
)

type fakePriceProvider struct {
	name      string
	initCalls *atomic.Int64
	initErr   error
}

func (p *fakePriceProvider) Name() string { return p.name }

func (p *fakePriceProvider) Initialize(context.Context) error {
	if p.initCalls != nil {
		p.initCalls.Add(1)
	}
	return p.initErr
}

func (p *fakePriceProvider) GetPrice(context.Context, string) (*Quote, error) {
	return &Quote{Pair: "BTC-USD", Price: 50000}, nil
}

func newTestFactory(t *testing.T, reg *Registries, cfg settings.Settings) *Factory {
	t.Helper()
	return NewFactory(reg, nil, &cfg)
}

func TestFactoryCachesInstances(t *testing.T) {
	reg := NewRegistries()
	var inits atomic.Int64
	reg.Price.Register("fake", func(context.Context, json.RawMessage) (PriceProvider, error) {
		return &fakePriceProvider{name: "fake", initCalls: &inits}, nil
	})

	cfg := settings.Defaults()
	cfg.PriceProvider = "fake"
	f := newTestFactory(t, reg, cfg)
	ctx := context.Background()

	first, err := f.Price(ctx, "fake")
	require.NoError(t, err)
	second, err := f.Price(ctx, "")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.EqualValues(t, 1, inits.Load())
}

func TestFactoryInitializesOncePerNameUnderConcurrency(t *testing.T) {
	reg := NewRegistries()
	var inits atomic.Int64
	reg.Price.Register("fake", func(context.Context, json.RawMessage) (PriceProvider, error) {
		return &fakePriceProvider{name: "fake", initCalls: &inits}, nil
	})
	f := newTestFactory(t, reg, settings.Defaults())

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Price(context.Background(), "fake")
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, inits.Load())
}

func TestFactoryUnknownNameListsRegistered(t *testing.T) {
	reg := NewRegistries()
	reg.Price.Register("ostium", func(context.Context, json.RawMessage) (PriceProvider, error) {
		return &fakePriceProvider{name: "ostium"}, nil
	})
	reg.Price.Register("lighter", func(context.Context, json.RawMessage) (PriceProvider, error) {
		return &fakePriceProvider{name: "lighter"}, nil
	})
	f := newTestFactory(t, reg, settings.Defaults())

	_, err := f.Price(context.Background(), "bogus")
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Equal(t, "bogus", unavailable.Name)
	require.Equal(t, []string{"lighter", "ostium"}, unavailable.Registered)
	require.Contains(t, err.Error(), "lighter")
	require.Contains(t, err.Error(), "ostium")
}

func TestFactoryInitFailureNotCached(t *testing.T) {
	reg := NewRegistries()
	boom := errors.New("handshake failed")
	var attempts atomic.Int64
	reg.Price.Register("flaky", func(context.Context, json.RawMessage) (PriceProvider, error) {
		attempts.Add(1)
		return &fakePriceProvider{name: "flaky", initErr: boom}, nil
	})
	f := newTestFactory(t, reg, settings.Defaults())
	ctx := context.Background()

	_, err := f.Price(ctx, "flaky")
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	require.ErrorIs(t, err, boom)

	// Failure was not cached: the next request constructs again.
	_, err = f.Price(ctx, "flaky")
	require.Error(t, err)
	require.EqualValues(t, 2, attempts.Load())
}

func TestFactoryAuthDefaultPreference(t *testing.T) {
	newAuthRegistries := func() *Registries {
		reg := NewRegistries()
		for _, name := range []string{"privy", "auth0"} {
			reg.Auth.Register(name, func(name string) Constructor[AuthProvider] {
				return func(context.Context, json.RawMessage) (AuthProvider, error) {
					return &fakeAuthProvider{name: name}, nil
				}
			}(name))
		}
		return reg
	}

	cfg := settings.Defaults()
	cfg.PrivyAppID = "app_123"
	cfg.Auth0Domain = "tenant.auth0.com"
	f := newTestFactory(t, newAuthRegistries(), cfg)
	p, err := f.Auth(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "privy", p.Name())

	cfg = settings.Defaults()
	cfg.Auth0Domain = "tenant.auth0.com"
	f = newTestFactory(t, newAuthRegistries(), cfg)
	p, err = f.Auth(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "auth0", p.Name())

	f = newTestFactory(t, newAuthRegistries(), settings.Defaults())
	_, err = f.Auth(context.Background(), "")
	require.ErrorIs(t, err, ErrNoAuthProvider)
}

type fakeAuthProvider struct {
	name string
}

func (p *fakeAuthProvider) Name() string                   { return p.name }
func (p *fakeAuthProvider) Initialize(context.Context) error { return nil }

func (p *fakeAuthProvider) VerifyToken(context.Context, string) (*Identity, error) {
	return &Identity{Subject: "user"}, nil
}

func TestRegistryLastWriteWins(t *testing.T) {
	reg := NewRegistry[PriceProvider](CapabilityPrice)
	reg.Register("dup", func(context.Context, json.RawMessage) (PriceProvider, error) {
		return &fakePriceProvider{name: "first"}, nil
	})
	reg.Register("dup", func(context.Context, json.RawMessage) (PriceProvider, error) {
		return &fakePriceProvider{name: "second"}, nil
	})

	ctor, ok := reg.Get("dup")
	require.True(t, ok)
	p, err := ctor(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "second", p.Name())
	require.Equal(t, []string{"dup"}, reg.Names())
}
