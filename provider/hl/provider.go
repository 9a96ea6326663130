// Package hl adapts Hyperliquid to the trading and price capabilities. It
// wraps the exchange and info clients from the go-hyperliquid SDK.
package hl

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sonirico/go-hyperliquid"

	"github.com/marqetfi/tradegate/orderid"
	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/settings"
)

var (
	_ provider.TradingProvider = (*Provider)(nil)
	_ provider.PriceProvider   = (*Provider)(nil)
)

// Config is all the provider needs to trade on Hyperliquid.
type Config struct {
	APIURL     string `json:"api_url"`
	Wallet     string `json:"wallet"`
	PrivateKey string `json:"private_key"`
	Timeout    int    `json:"timeout"`
}

// ConfigFromSettings builds a Config from the process settings bag.
func ConfigFromSettings(s *settings.Settings) Config {
	return Config{
		APIURL:     s.HyperliquidAPIURL,
		Wallet:     s.HyperliquidWallet,
		PrivateKey: s.HyperliquidPrivateKey,
		Timeout:    s.HyperliquidTimeout,
	}
}

// Provider trades perpetuals on Hyperliquid. Positions and client order ids
// are tracked per instance: only orders placed through this provider can be
// closed or cancelled through it.
type Provider struct {
	cfg      Config
	logger   *slog.Logger
	exchange *hyperliquid.Exchange
	info     *hyperliquid.Info
	address  string

	mu        sync.Mutex
	seq       uint32
	positions map[string]provider.Position // keyed by position id (cloid)
	coins     map[string]string            // cloid -> coin, for cancels
}

// Option customizes a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New builds an uninitialized provider.
func New(cfg Config, opts ...Option) *Provider {
	p := &Provider{
		cfg:       cfg,
		logger:    slog.Default(),
		positions: make(map[string]provider.Position),
		coins:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements provider.Base.
func (p *Provider) Name() string { return "hyperliquid" }

// Initialize loads the signing key and builds the SDK clients. Exchange
// construction fetches venue metadata, so this is a live handshake.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.cfg.PrivateKey == "" {
		return errors.New("hyperliquid private_key is required")
	}

	url := hyperliquid.TestnetAPIURL
	if p.cfg.APIURL != "" {
		url = p.cfg.APIURL
	}

	key := strings.TrimPrefix(strings.TrimSpace(p.cfg.PrivateKey), "0x")
	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return fmt.Errorf("parse hyperliquid private key: %w", err)
	}

	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return errors.New("hyperliquid key is not an ECDSA key")
	}
	p.address = crypto.PubkeyToAddress(*pub).Hex()
	if p.cfg.Wallet != "" {
		p.address = p.cfg.Wallet
	}

	p.exchange = hyperliquid.NewExchange(
		ctx,
		privateKey,
		url,
		nil, // Meta is fetched automatically
		"",
		p.address,
		nil, // SpotMeta is fetched automatically
	)
	p.info = hyperliquid.NewInfo(ctx, url, false, nil, nil)

	p.logger.Info("hyperliquid provider ready",
		slog.String("url", url),
		slog.String("wallet", p.address))
	return nil
}

// OpenTrade sizes the order in coin units from the mark price and submits
// it: GTC for limit and stop orders, IOC at a padded mark price for market.
func (p *Provider) OpenTrade(ctx context.Context, req provider.OrderRequest) (*provider.OrderResult, error) {
	mark, szDecimals, err := p.markPrice(ctx, req.Pair)
	if err != nil {
		return nil, err
	}

	price := req.LimitPrice
	tif := hyperliquid.TifGtc
	if req.Type == provider.OrderMarket {
		tif = hyperliquid.TifIoc
		// Pad past the mark so the IOC order crosses the book.
		if req.Side == provider.SideLong {
			price = mark * 1.005
		} else {
			price = mark * 0.995
		}
	}
	if price <= 0 {
		return nil, fmt.Errorf("hyperliquid: no price for %s order on %s", req.Type, req.Pair)
	}

	size := roundToDecimals(req.Collateral*req.Leverage/mark, szDecimals)
	if size <= 0 {
		return nil, fmt.Errorf("hyperliquid: order size rounds to zero for %s", req.Pair)
	}

	cloid := p.nextOrderID()
	_, err = p.exchange.Order(ctx, hyperliquid.CreateOrderRequest{
		Coin:          req.Pair,
		IsBuy:         req.Side == provider.SideLong,
		Size:          size,
		Price:         price,
		OrderType:     hyperliquid.OrderType{Limit: &hyperliquid.LimitOrderType{Tif: tif}},
		ClientOrderID: &cloid,
	}, nil)
	if err != nil {
		return nil, &provider.VendorError{Vendor: "hyperliquid", Op: "order", Err: err}
	}

	result := &provider.OrderResult{
		OrderID:    cloid,
		Pair:       req.Pair,
		Side:       req.Side,
		Status:     "submitted",
		EntryPrice: price,
		Collateral: req.Collateral,
		Leverage:   req.Leverage,
		PlacedAt:   time.Now().UTC(),
	}

	p.mu.Lock()
	p.coins[cloid] = req.Pair
	p.positions[cloid] = provider.Position{
		ID:         cloid,
		Pair:       req.Pair,
		Side:       req.Side,
		Collateral: req.Collateral,
		Leverage:   req.Leverage,
		EntryPrice: price,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		OpenedAt:   result.PlacedAt,
	}
	p.mu.Unlock()
	return result, nil
}

// CloseTrade submits a reduce-only IOC order opposite to the tracked
// position.
func (p *Provider) CloseTrade(ctx context.Context, positionID string) (*provider.OrderResult, error) {
	p.mu.Lock()
	pos, ok := p.positions[positionID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("hyperliquid: unknown position %q", positionID)
	}

	mark, szDecimals, err := p.markPrice(ctx, pos.Pair)
	if err != nil {
		return nil, err
	}

	price := mark * 0.995
	if pos.Side == provider.SideShort {
		price = mark * 1.005
	}
	size := roundToDecimals(pos.Collateral*pos.Leverage/pos.EntryPrice, szDecimals)

	cloid := p.nextOrderID()
	_, err = p.exchange.Order(ctx, hyperliquid.CreateOrderRequest{
		Coin:          pos.Pair,
		IsBuy:         pos.Side == provider.SideShort,
		Size:          size,
		Price:         price,
		ReduceOnly:    true,
		OrderType:     hyperliquid.OrderType{Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifIoc}},
		ClientOrderID: &cloid,
	}, nil)
	if err != nil {
		return nil, &provider.VendorError{Vendor: "hyperliquid", Op: "close", Err: err}
	}

	p.mu.Lock()
	delete(p.positions, positionID)
	p.mu.Unlock()

	return &provider.OrderResult{
		OrderID:  cloid,
		Pair:     pos.Pair,
		Side:     pos.Side,
		Status:   "closed",
		PlacedAt: time.Now().UTC(),
	}, nil
}

// UpdateTPSL is not supported on this venue integration.
func (p *Provider) UpdateTPSL(ctx context.Context, positionID string, takeProfit, stopLoss float64) error {
	return errors.New("hyperliquid: tp/sl updates are not supported")
}

// CancelOrder cancels by client order id.
func (p *Provider) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	coin, ok := p.coins[orderID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("hyperliquid: unknown order %q", orderID)
	}

	if _, err := p.exchange.CancelByCloid(ctx, coin, orderID); err != nil {
		return &provider.VendorError{Vendor: "hyperliquid", Op: "cancel", Err: err}
	}
	p.mu.Lock()
	delete(p.positions, orderID)
	delete(p.coins, orderID)
	p.mu.Unlock()
	return nil
}

// Positions lists the positions opened through this instance.
func (p *Provider) Positions(ctx context.Context) ([]provider.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]provider.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out, nil
}

// Pairs lists the venue's perpetual universe.
func (p *Provider) Pairs(ctx context.Context) ([]provider.Pair, error) {
	meta, err := p.info.MetaAndAssetCtxs(ctx)
	if err != nil {
		return nil, &provider.VendorError{Vendor: "hyperliquid", Op: "meta", Err: err}
	}

	out := make([]provider.Pair, 0, len(meta.Meta.Universe))
	for _, asset := range meta.Meta.Universe {
		out = append(out, provider.Pair{
			Symbol: asset.Name,
			Base:   asset.Name,
			Quote:  "USD",
		})
	}
	return out, nil
}

// GetPrice returns the venue mark price.
func (p *Provider) GetPrice(ctx context.Context, pair string) (*provider.Quote, error) {
	mark, _, err := p.markPrice(ctx, pair)
	if err != nil {
		return nil, err
	}
	return &provider.Quote{
		Pair:      pair,
		Price:     mark,
		Timestamp: time.Now().UTC(),
	}, nil
}

// markPrice resolves the mark price and size decimals for a coin from the
// venue metadata.
func (p *Provider) markPrice(ctx context.Context, coin string) (float64, int, error) {
	meta, err := p.info.MetaAndAssetCtxs(ctx)
	if err != nil {
		return 0, 0, &provider.VendorError{Vendor: "hyperliquid", Op: "meta", Err: err}
	}

	for i, asset := range meta.Meta.Universe {
		if asset.Name != coin {
			continue
		}
		if i >= len(meta.Ctxs) {
			break
		}
		mark, err := strconv.ParseFloat(meta.Ctxs[i].MarkPx, 64)
		if err != nil {
			return 0, 0, &provider.VendorError{Vendor: "hyperliquid", Op: "mark price " + coin, Err: err}
		}
		return mark, asset.SzDecimals, nil
	}
	return 0, 0, fmt.Errorf("hyperliquid: unknown coin %q", coin)
}

// nextOrderID mints a fresh client order id.
func (p *Provider) nextOrderID() string {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	id := orderid.OrderID{CreatedAt: time.Now().UTC(), Sequence: seq}
	return id.Hex()
}

func roundToDecimals(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Floor(v*scale) / scale
}
