package trading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/provider"
)

type fakeVenue struct {
	provider.TradingProvider

	opened    []provider.OrderRequest
	closed    []string
	cancelled []string
	tpsl      map[string][2]float64
}

func (v *fakeVenue) Name() string { return "fake" }

func (v *fakeVenue) OpenTrade(_ context.Context, req provider.OrderRequest) (*provider.OrderResult, error) {
	v.opened = append(v.opened, req)
	return &provider.OrderResult{OrderID: "ord-1", Pair: req.Pair, Side: req.Side, Status: "submitted"}, nil
}

func (v *fakeVenue) CloseTrade(_ context.Context, positionID string) (*provider.OrderResult, error) {
	v.closed = append(v.closed, positionID)
	return &provider.OrderResult{OrderID: "ord-2", Status: "closed"}, nil
}

func (v *fakeVenue) UpdateTPSL(_ context.Context, positionID string, tp, sl float64) error {
	if v.tpsl == nil {
		v.tpsl = make(map[string][2]float64)
	}
	v.tpsl[positionID] = [2]float64{tp, sl}
	return nil
}

func (v *fakeVenue) CancelOrder(_ context.Context, orderID string) error {
	v.cancelled = append(v.cancelled, orderID)
	return nil
}

type fakeProviders struct {
	venue *fakeVenue
}

func (f *fakeProviders) Trading(context.Context, string) (provider.TradingProvider, error) {
	return f.venue, nil
}

func validRequest() provider.OrderRequest {
	return provider.OrderRequest{
		Pair:       "BTC-USD",
		Side:       provider.SideLong,
		Type:       provider.OrderMarket,
		Collateral: 100,
		Leverage:   5,
	}
}

func TestOpenTradeDelegates(t *testing.T) {
	venue := &fakeVenue{}
	svc := NewService(&fakeProviders{venue: venue})

	result, err := svc.OpenTrade(context.Background(), "", validRequest())
	require.NoError(t, err)
	require.Equal(t, "ord-1", result.OrderID)
	require.Len(t, venue.opened, 1)
}

func TestOpenTradeValidation(t *testing.T) {
	venue := &fakeVenue{}
	svc := NewService(&fakeProviders{venue: venue})
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*provider.OrderRequest)
	}{
		{"zero collateral", func(r *provider.OrderRequest) { r.Collateral = 0 }},
		{"negative collateral", func(r *provider.OrderRequest) { r.Collateral = -5 }},
		{"leverage below one", func(r *provider.OrderRequest) { r.Leverage = 0.5 }},
		{"unknown order type", func(r *provider.OrderRequest) { r.Type = "TWAP" }},
		{"unknown side", func(r *provider.OrderRequest) { r.Side = "SIDEWAYS" }},
		{"missing pair", func(r *provider.OrderRequest) { r.Pair = "" }},
		{"limit without price", func(r *provider.OrderRequest) { r.Type = provider.OrderLimit }},
		{"stop without price", func(r *provider.OrderRequest) { r.Type = provider.OrderStop }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := svc.OpenTrade(ctx, "", req)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	// The venue never saw any of the rejected orders.
	require.Empty(t, venue.opened)

	// Limit order with a price passes.
	req := validRequest()
	req.Type = provider.OrderLimit
	req.LimitPrice = 50000
	_, err := svc.OpenTrade(ctx, "", req)
	require.NoError(t, err)
}

func TestUpdateTPSLValidation(t *testing.T) {
	venue := &fakeVenue{}
	svc := NewService(&fakeProviders{venue: venue})
	ctx := context.Background()

	require.ErrorIs(t, svc.UpdateTPSL(ctx, "", "pos-1", 0, 100), ErrValidation)
	require.ErrorIs(t, svc.UpdateTPSL(ctx, "", "pos-1", 100, -1), ErrValidation)
	require.ErrorIs(t, svc.UpdateTPSL(ctx, "", "", 100, 50), ErrValidation)

	require.NoError(t, svc.UpdateTPSL(ctx, "", "pos-1", 110, 90))
	require.Equal(t, [2]float64{110, 90}, venue.tpsl["pos-1"])
}

func TestCloseAndCancel(t *testing.T) {
	venue := &fakeVenue{}
	svc := NewService(&fakeProviders{venue: venue})
	ctx := context.Background()

	_, err := svc.CloseTrade(ctx, "", "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CloseTrade(ctx, "", "pos-9")
	require.NoError(t, err)
	require.Equal(t, []string{"pos-9"}, venue.closed)

	require.ErrorIs(t, svc.CancelOrder(ctx, "", ""), ErrValidation)
	require.NoError(t, svc.CancelOrder(ctx, "", "ord-7"))
	require.Equal(t, []string{"ord-7"}, venue.cancelled)
}
