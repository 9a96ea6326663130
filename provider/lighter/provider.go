// Package lighter adapts the Lighter exchange REST API to the trading and
// price capabilities.
package lighter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marqetfi/tradegate/internal/httpx"
	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/settings"
)

var (
	_ provider.TradingProvider = (*Provider)(nil)
	_ provider.PriceProvider   = (*Provider)(nil)
)

// Config carries the Lighter connection parameters.
type Config struct {
	APIURL        string  `json:"api_url"`
	APIKey        string  `json:"api_key"`
	Network       string  `json:"network"`
	Timeout       int     `json:"timeout"`
	RetryAttempts int     `json:"retry_attempts"`
	RetryDelay    float64 `json:"retry_delay"`
}

// ConfigFromSettings builds a Config from the process settings bag.
func ConfigFromSettings(s *settings.Settings) Config {
	return Config{
		APIURL:        s.LighterAPIURL,
		APIKey:        s.LighterAPIKey,
		Network:       s.LighterNetwork,
		Timeout:       s.LighterTimeout,
		RetryAttempts: s.LighterRetryAttempts,
		RetryDelay:    s.LighterRetryDelay,
	}
}

// Provider trades on Lighter through its authenticated REST API.
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
func (p *Provider) Name() string { return "lighter" }

// Initialize validates credentials and probes the API with a status call.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.cfg.APIURL == "" {
		return errors.New("lighter api_url is required")
	}
	if p.cfg.APIKey == "" {
		return errors.New("lighter api_key is required")
	}

	p.api = httpx.New(p.cfg.APIURL,
		httpx.WithTimeout(time.Duration(p.cfg.Timeout)*time.Second),
		httpx.WithRetries(p.cfg.RetryAttempts, time.Duration(p.cfg.RetryDelay*float64(time.Second))),
		httpx.WithHeader("Authorization", "Bearer "+p.cfg.APIKey),
		httpx.WithLogger(p.logger))

	var status struct {
		Network string `json:"network"`
	}
	if err := p.api.GetJSON(ctx, "/v1/status", &status); err != nil {
		return fmt.Errorf("lighter status: %w", err)
	}

	p.logger.Info("lighter provider ready",
		slog.String("network", status.Network))
	return nil
}

type orderResponse struct {
	OrderID    string  `json:"order_id"`
	Status     string  `json:"status"`
	EntryPrice float64 `json:"entry_price"`
	PlacedAt   int64   `json:"placed_at"`
}

// OpenTrade submits an order.
func (p *Provider) OpenTrade(ctx context.Context, req provider.OrderRequest) (*provider.OrderResult, error) {
	var resp orderResponse
	err := p.api.PostJSON(ctx, "/v1/orders", map[string]any{
		"pair":        req.Pair,
		"side":        string(req.Side),
		"order_type":  string(req.Type),
		"collateral":  req.Collateral,
		"leverage":    req.Leverage,
		"limit_price": req.LimitPrice,
		"take_profit": req.TakeProfit,
		"stop_loss":   req.StopLoss,
	}, &resp)
	if err != nil {
		return nil, &provider.VendorError{Vendor: "lighter", Op: "open trade", Err: err}
	}
	return &provider.OrderResult{
		OrderID:    resp.OrderID,
		Pair:       req.Pair,
		Side:       req.Side,
		Status:     resp.Status,
		EntryPrice: resp.EntryPrice,
		Collateral: req.Collateral,
		Leverage:   req.Leverage,
		PlacedAt:   time.UnixMilli(resp.PlacedAt).UTC(),
	}, nil
}

// CloseTrade closes a position at market.
func (p *Provider) CloseTrade(ctx context.Context, positionID string) (*provider.OrderResult, error) {
	var resp orderResponse
	if err := p.api.PostJSON(ctx, "/v1/positions/"+positionID+"/close", nil, &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "lighter", Op: "close trade", Err: err}
	}
	return &provider.OrderResult{
		OrderID:  resp.OrderID,
		Status:   resp.Status,
		PlacedAt: time.UnixMilli(resp.PlacedAt).UTC(),
	}, nil
}

// UpdateTPSL rewrites take-profit and stop-loss on an open position.
func (p *Provider) UpdateTPSL(ctx context.Context, positionID string, takeProfit, stopLoss float64) error {
	err := p.api.PostJSON(ctx, "/v1/positions/"+positionID+"/tpsl", map[string]float64{
		"take_profit": takeProfit,
		"stop_loss":   stopLoss,
	}, nil)
	if err != nil {
		return &provider.VendorError{Vendor: "lighter", Op: "update tp/sl", Err: err}
	}
	return nil
}

// CancelOrder cancels a pending order.
func (p *Provider) CancelOrder(ctx context.Context, orderID string) error {
	if err := p.api.PostJSON(ctx, "/v1/orders/"+orderID+"/cancel", nil, nil); err != nil {
		return &provider.VendorError{Vendor: "lighter", Op: "cancel order", Err: err}
	}
	return nil
}

// Positions lists open positions.
func (p *Provider) Positions(ctx context.Context) ([]provider.Position, error) {
	var resp struct {
		Positions []struct {
			ID         string  `json:"id"`
			Pair       string  `json:"pair"`
			Side       string  `json:"side"`
			Collateral float64 `json:"collateral"`
			Leverage   float64 `json:"leverage"`
			EntryPrice float64 `json:"entry_price"`
			TakeProfit float64 `json:"take_profit"`
			StopLoss   float64 `json:"stop_loss"`
			OpenedAt   int64   `json:"opened_at"`
		} `json:"positions"`
	}
	if err := p.api.GetJSON(ctx, "/v1/positions", &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "lighter", Op: "positions", Err: err}
	}

	out := make([]provider.Position, 0, len(resp.Positions))
	for _, pos := range resp.Positions {
		out = append(out, provider.Position{
			ID:         pos.ID,
			Pair:       pos.Pair,
			Side:       provider.OrderSide(pos.Side),
			Collateral: pos.Collateral,
			Leverage:   pos.Leverage,
			EntryPrice: pos.EntryPrice,
			TakeProfit: pos.TakeProfit,
			StopLoss:   pos.StopLoss,
			OpenedAt:   time.UnixMilli(pos.OpenedAt).UTC(),
		})
	}
	return out, nil
}

// Pairs lists tradable markets.
func (p *Provider) Pairs(ctx context.Context) ([]provider.Pair, error) {
	var resp struct {
		Markets []struct {
			Symbol      string  `json:"symbol"`
			Base        string  `json:"base"`
			Quote       string  `json:"quote"`
			MaxLeverage float64 `json:"max_leverage"`
		} `json:"markets"`
	}
	if err := p.api.GetJSON(ctx, "/v1/markets", &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "lighter", Op: "markets", Err: err}
	}

	out := make([]provider.Pair, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		out = append(out, provider.Pair{
			Symbol:      m.Symbol,
			Base:        m.Base,
			Quote:       m.Quote,
			MaxLeverage: m.MaxLeverage,
		})
	}
	return out, nil
}

// GetPrice returns the venue's last price for a pair.
func (p *Provider) GetPrice(ctx context.Context, pair string) (*provider.Quote, error) {
	var resp struct {
		Pair      string  `json:"pair"`
		Price     float64 `json:"price"`
		Timestamp int64   `json:"timestamp"`
	}
	if err := p.api.GetJSON(ctx, "/v1/prices/"+pair, &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "lighter", Op: "price " + pair, Err: err}
	}
	return &provider.Quote{
		Pair:      resp.Pair,
		Price:     resp.Price,
		Timestamp: time.UnixMilli(resp.Timestamp).UTC(),
	}, nil
}
