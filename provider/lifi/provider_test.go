package lifi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := New(Config{APIURL: srv.URL, Timeout: 5})
	require.NoError(t, p.Initialize(context.Background()))
	return p
}

func TestInitializeRequiresURL(t *testing.T) {
	err := New(Config{}).Initialize(context.Background())
	require.ErrorContains(t, err, "api_url")
}

func TestInitializeSendsKeyHeaderWhenSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k-123", r.Header.Get("x-lifi-api-key"))
		w.Write([]byte(`{"chains":[]}`))
	}))
	defer srv.Close()

	p := New(Config{APIURL: srv.URL, APIKey: "k-123"})
	require.NoError(t, p.Initialize(context.Background()))

	_, err := p.Chains(context.Background())
	require.NoError(t, err)
}

func TestQuote(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "ethereum", q.Get("fromChain"))
		require.Equal(t, "arbitrum", q.Get("toChain"))
		require.Equal(t, "USDT", q.Get("fromToken"))
		require.Equal(t, "USDC", q.Get("toToken"))
		require.Equal(t, "1000000", q.Get("fromAmount"))
		require.Equal(t, "0xabc", q.Get("fromAddress"))

		w.Write([]byte(`{
			"id": "quote-9",
			"estimate": {"fromAmount": "1000000", "toAmount": "998500"},
			"transactionRequest": {"data": "0xdeadbeef"}
		}`))
	})

	quote, err := p.Quote(context.Background(), provider.SwapRequest{
		FromToken:   "USDT",
		ToToken:     "USDC",
		FromChain:   "ethereum",
		ToChain:     "arbitrum",
		Amount:      "1000000",
		FromAddress: "0xabc",
	})
	require.NoError(t, err)
	require.Equal(t, "quote-9", quote.QuoteID)
	require.Equal(t, "998500", quote.ToAmount)
	require.Equal(t, "0xdeadbeef", quote.TxData)
	require.Equal(t, "USDC", quote.ToToken)
}

func TestStatus(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/status", r.URL.Path)
		require.Equal(t, "quote-9", r.URL.Query().Get("txHash"))
		w.Write([]byte(`{"status":"DONE","sending":{"txHash":"0xfeed"}}`))
	})

	st, err := p.Status(context.Background(), "quote-9")
	require.NoError(t, err)
	require.Equal(t, "DONE", st.State)
	require.Equal(t, "0xfeed", st.TxHash)
	require.Equal(t, "quote-9", st.QuoteID)
}

func TestChains(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chains", r.URL.Path)
		w.Write([]byte(`{"chains":[{"key":"eth"},{"key":"arb"},{"key":"pol"}]}`))
	})

	chains, err := p.Chains(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"eth", "arb", "pol"}, chains)
}

func TestQuoteSurfacesAPIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"no route found"}`, http.StatusNotFound)
	})

	_, err := p.Quote(context.Background(), provider.SwapRequest{
		FromToken: "USDT",
		ToToken:   "USDC",
	})
	require.ErrorContains(t, err, "lifi quote")
}
