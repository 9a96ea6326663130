package lighter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"network":"testnet"}`))
	})
	mux.Handle("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := New(Config{APIURL: srv.URL, APIKey: "test-key", Timeout: 5})
	require.NoError(t, p.Initialize(context.Background()))
	return p
}

func TestInitializeRequiresCredentials(t *testing.T) {
	err := New(Config{APIKey: "k"}).Initialize(context.Background())
	require.ErrorContains(t, err, "api_url")

	err = New(Config{APIURL: "http://localhost:1"}).Initialize(context.Background())
	require.ErrorContains(t, err, "api_key")
}

func TestInitializeProbesStatus(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/status", r.URL.Path)
		sawAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"network":"mainnet"}`))
	}))
	defer srv.Close()

	p := New(Config{APIURL: srv.URL, APIKey: "secret-key"})
	require.NoError(t, p.Initialize(context.Background()))
	require.Equal(t, "Bearer secret-key", sawAuth)
}

func TestOpenTrade(t *testing.T) {
	placedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ETH-USD", body["pair"])
		require.Equal(t, "LONG", body["side"])
		require.Equal(t, "MARKET", body["order_type"])

		json.NewEncoder(w).Encode(map[string]any{
			"order_id":    "ord-42",
			"status":      "FILLED",
			"entry_price": 2501.5,
			"placed_at":   placedAt.UnixMilli(),
		})
	}))

	res, err := p.OpenTrade(context.Background(), provider.OrderRequest{
		Pair:       "ETH-USD",
		Side:       provider.SideLong,
		Type:       provider.OrderMarket,
		Collateral: 100,
		Leverage:   5,
	})
	require.NoError(t, err)
	require.Equal(t, "ord-42", res.OrderID)
	require.Equal(t, "FILLED", res.Status)
	require.Equal(t, 2501.5, res.EntryPrice)
	require.Equal(t, placedAt, res.PlacedAt)
	require.Equal(t, provider.SideLong, res.Side)
}

func TestCloseTradeHitsPositionPath(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/positions/pos-7/close", r.URL.Path)
		w.Write([]byte(`{"order_id":"ord-close","status":"CLOSED","placed_at":1}`))
	}))

	res, err := p.CloseTrade(context.Background(), "pos-7")
	require.NoError(t, err)
	require.Equal(t, "CLOSED", res.Status)
}

func TestUpdateTPSL(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/positions/pos-7/tpsl", r.URL.Path)
		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 3000.0, body["take_profit"])
		require.Equal(t, 2000.0, body["stop_loss"])
		w.Write([]byte(`{}`))
	}))

	require.NoError(t, p.UpdateTPSL(context.Background(), "pos-7", 3000, 2000))
}

func TestPositionsAndPairs(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/positions":
			w.Write([]byte(`{"positions":[{"id":"pos-1","pair":"BTC-USD","side":"SHORT","collateral":50,"leverage":10,"entry_price":64000,"opened_at":1700000000000}]}`))
		case "/v1/markets":
			w.Write([]byte(`{"markets":[{"symbol":"BTC-USD","base":"BTC","quote":"USD","max_leverage":50}]}`))
		default:
			http.NotFound(w, r)
		}
	}))

	positions, err := p.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, provider.SideShort, positions[0].Side)
	require.Equal(t, time.UnixMilli(1700000000000).UTC(), positions[0].OpenedAt)

	pairs, err := p.Pairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	require.Equal(t, 50.0, pairs[0].MaxLeverage)
}

func TestGetPrice(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/prices/BTC-USD", r.URL.Path)
		w.Write([]byte(`{"pair":"BTC-USD","price":64321.5,"timestamp":1700000000000}`))
	}))

	q, err := p.GetPrice(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.Equal(t, "BTC-USD", q.Pair)
	require.Equal(t, 64321.5, q.Price)
	require.Equal(t, time.UnixMilli(1700000000000).UTC(), q.Timestamp)
}

func TestOpenTradeSurfacesVendorError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"insufficient margin"}`, http.StatusBadRequest)
	}))

	_, err := p.OpenTrade(context.Background(), provider.OrderRequest{Pair: "ETH-USD"})
	require.ErrorContains(t, err, "lighter open trade")

	var vendorErr *provider.VendorError
	require.ErrorAs(t, err, &vendorErr)
	require.Equal(t, "lighter", vendorErr.Vendor)
	require.Equal(t, "open trade", vendorErr.Op)
}
