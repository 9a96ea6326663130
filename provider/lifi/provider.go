// Package lifi adapts the LI.FI aggregation API to the swap capability,
// used for converting deposited tokens into venue collateral.
package lifi

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/marqetfi/tradegate/internal/httpx"
	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/settings"
)

var _ provider.SwapProvider = (*Provider)(nil)

// Config carries the LI.FI connection parameters. The API key is optional;
// without it requests run against the public rate limits.
type Config struct {
	APIURL        string  `json:"api_url"`
	APIKey        string  `json:"api_key"`
	Timeout       int     `json:"timeout"`
	RetryAttempts int     `json:"retry_attempts"`
	RetryDelay    float64 `json:"retry_delay"`
}

// ConfigFromSettings builds a Config from the process settings bag.
func ConfigFromSettings(s *settings.Settings) Config {
	return Config{
		APIURL:        s.LifiAPIURL,
		APIKey:        s.LifiAPIKey,
		Timeout:       s.LifiTimeout,
		RetryAttempts: s.LifiRetryAttempts,
		RetryDelay:    s.LifiRetryDelay,
	}
}

// Provider quotes and tracks swaps through LI.FI.
type Provider struct {
	cfg    Config
	logger *slog.Logger
	api    *httpx.Client
}

// Option customizes a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New builds an uninitialized provider.
func New(cfg Config, opts ...Option) *Provider {
	p := &Provider{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements provider.Base.
func (p *Provider) Name() string { return "lifi" }

// Initialize builds the API client. No handshake: LI.FI is stateless and
// keyless operation is allowed.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.cfg.APIURL == "" {
		return errors.New("lifi api_url is required")
	}

	opts := []httpx.Option{
		httpx.WithTimeout(time.Duration(p.cfg.Timeout) * time.Second),
		httpx.WithRetries(p.cfg.RetryAttempts, time.Duration(p.cfg.RetryDelay*float64(time.Second))),
		httpx.WithLogger(p.logger),
	}
	if p.cfg.APIKey != "" {
		opts = append(opts, httpx.WithHeader("x-lifi-api-key", p.cfg.APIKey))
	}
	p.api = httpx.New(p.cfg.APIURL, opts...)

	p.logger.Info("lifi provider ready", slog.String("url", p.cfg.APIURL))
	return nil
}

// Quote fetches a conversion quote.
func (p *Provider) Quote(ctx context.Context, req provider.SwapRequest) (*provider.SwapQuote, error) {
	q := url.Values{}
	q.Set("fromChain", req.FromChain)
	q.Set("toChain", req.ToChain)
	q.Set("fromToken", req.FromToken)
	q.Set("toToken", req.ToToken)
	q.Set("fromAmount", req.Amount)
	q.Set("fromAddress", req.FromAddress)

	var resp struct {
		ID       string `json:"id"`
		Estimate struct {
			FromAmount string `json:"fromAmount"`
			ToAmount   string `json:"toAmount"`
		} `json:"estimate"`
		TransactionRequest struct {
			Data string `json:"data"`
		} `json:"transactionRequest"`
	}
	if err := p.api.GetJSON(ctx, "/quote?"+q.Encode(), &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "lifi", Op: "quote", Err: err}
	}

	return &provider.SwapQuote{
		FromToken:  req.FromToken,
		ToToken:    req.ToToken,
		FromChain:  req.FromChain,
		ToChain:    req.ToChain,
		FromAmount: resp.Estimate.FromAmount,
		ToAmount:   resp.Estimate.ToAmount,
		QuoteID:    resp.ID,
		TxData:     resp.TransactionRequest.Data,
	}, nil
}

// Status reports the state of an executed swap.
func (p *Provider) Status(ctx context.Context, quoteID string) (*provider.SwapStatus, error) {
	var resp struct {
		Status  string `json:"status"`
		Sending struct {
			TxHash string `json:"txHash"`
		} `json:"sending"`
	}
	if err := p.api.GetJSON(ctx, "/status?txHash="+url.QueryEscape(quoteID), &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "lifi", Op: "status", Err: err}
	}
	return &provider.SwapStatus{
		QuoteID: quoteID,
		State:   resp.Status,
		TxHash:  resp.Sending.TxHash,
	}, nil
}

// Chains lists chains LI.FI can route through.
func (p *Provider) Chains(ctx context.Context) ([]string, error) {
	var resp struct {
		Chains []struct {
			Key string `json:"key"`
		} `json:"chains"`
	}
	if err := p.api.GetJSON(ctx, "/chains", &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "lifi", Op: "chains", Err: err}
	}

	out := make([]string, 0, len(resp.Chains))
	for _, c := range resp.Chains {
		out = append(out, c.Key)
	}
	return out, nil
}
