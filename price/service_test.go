package price

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/provider"
)

type fakePriceVenue struct {
	provider.PriceProvider

	calls  atomic.Int64
	prices map[string]float64
}

func (v *fakePriceVenue) Name() string { return "fake" }

func (v *fakePriceVenue) GetPrice(_ context.Context, pair string) (*provider.Quote, error) {
	v.calls.Add(1)
	price, ok := v.prices[pair]
	if !ok {
		return nil, errors.New("unknown pair " + pair)
	}
	return &provider.Quote{Pair: pair, Price: price}, nil
}

type fakeProviders struct {
	venue *fakePriceVenue
}

func (f *fakeProviders) Price(context.Context, string) (provider.PriceProvider, error) {
	return f.venue, nil
}

func TestGetPrice(t *testing.T) {
	venue := &fakePriceVenue{prices: map[string]float64{"BTC-USD": 50000}}
	svc := NewService(&fakeProviders{venue: venue})

	quote, err := svc.GetPrice(context.Background(), "", "BTC-USD")
	require.NoError(t, err)
	require.Equal(t, 50000.0, quote.Price)
}

func TestGetPricesFanOut(t *testing.T) {
	venue := &fakePriceVenue{prices: map[string]float64{
		"BTC-USD": 50000,
		"ETH-USD": 3000,
		"SOL-USD": 100,
	}}
	svc := NewService(&fakeProviders{venue: venue}, WithFanout(2))

	quotes, err := svc.GetPrices(context.Background(), "", []string{"BTC-USD", "ETH-USD", "SOL-USD"})
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	require.Equal(t, 3000.0, quotes["ETH-USD"].Price)
	require.EqualValues(t, 3, venue.calls.Load())
}

func TestGetPricesFailsWhole(t *testing.T) {
	venue := &fakePriceVenue{prices: map[string]float64{"BTC-USD": 50000}}
	svc := NewService(&fakeProviders{venue: venue})

	_, err := svc.GetPrices(context.Background(), "", []string{"BTC-USD", "NOPE-USD"})
	require.Error(t, err)
}
