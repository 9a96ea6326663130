package ostium

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/marqetfi/tradegate/internal/httpx"
	"github.com/marqetfi/tradegate/provider"
)

// API endpoints per network. The REST relay accepts signed order payloads;
// the RPC endpoint comes from configuration.
const (
	testnetAPIURL = "https://api.testnet.ostium.io"
	mainnetAPIURL = "https://api.ostium.io"
)

var (
	_ provider.TradingProvider    = (*Provider)(nil)
	_ provider.PriceProvider      = (*Provider)(nil)
	_ provider.SettlementProvider = (*Provider)(nil)
)

// Provider trades perpetuals on Ostium. One instance covers the trading,
// price, and settlement capabilities.
type Provider struct {
	cfg     Config
	logger  *slog.Logger
	api     *httpx.Client
	key     *ecdsa.PrivateKey
	address common.Address
	eth     *ethclient.Client
	chainID string
}

// Option customizes a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New builds an uninitialized provider from a decrypted configuration.
func New(cfg Config, opts ...Option) *Provider {
	apiURL := testnetAPIURL
	if cfg.Network == "mainnet" {
		apiURL = mainnetAPIURL
	}

	p := &Provider{
		cfg:    cfg,
		logger: slog.Default(),
		api: httpx.New(apiURL,
			httpx.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
			httpx.WithRetries(cfg.RetryAttempts, time.Duration(cfg.RetryDelay*float64(time.Second)))),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements provider.Base.
func (p *Provider) Name() string { return "ostium" }

// Initialize validates credentials and dials the RPC endpoint. A key the
// admin service accepted can still fail here: the admin check is a loose
// hex-shape test, this one requires a full secp256k1 key.
func (p *Provider) Initialize(ctx context.Context) error {
	if !p.cfg.Enabled {
		return errors.New("ostium provider is disabled")
	}
	if p.cfg.RPCURL == "" {
		return errors.New("ostium rpc_url is required")
	}
	if p.cfg.PrivateKey == "" {
		return errors.New("ostium private_key is required")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(p.cfg.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("parse ostium private key: %w", err)
	}
	p.key = key
	p.address = crypto.PubkeyToAddress(key.PublicKey)

	eth, err := ethclient.DialContext(ctx, p.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial ostium rpc: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return fmt.Errorf("fetch chain id: %w", err)
	}
	p.eth = eth
	p.chainID = chainID.String()

	p.logger.Info("ostium provider ready",
		slog.String("network", p.cfg.Network),
		slog.String("chain_id", p.chainID),
		slog.String("address", p.address.Hex()))
	return nil
}

// Close releases the RPC connection.
func (p *Provider) Close() {
	if p.eth != nil {
		p.eth.Close()
	}
}

type orderPayload struct {
	Trader     string  `json:"trader"`
	Pair       string  `json:"pair"`
	Side       string  `json:"side"`
	OrderType  string  `json:"order_type"`
	Collateral float64 `json:"collateral"`
	Leverage   float64 `json:"leverage"`
	LimitPrice float64 `json:"limit_price,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	Slippage   float64 `json:"slippage_percentage"`
	ChainID    string  `json:"chain_id"`
	Signature  string  `json:"signature"`
}

type orderResponse struct {
	OrderID    string  `json:"order_id"`
	Status     string  `json:"status"`
	EntryPrice float64 `json:"entry_price"`
	PlacedAt   int64   `json:"placed_at"`
}

// OpenTrade submits a signed order to the relay.
func (p *Provider) OpenTrade(ctx context.Context, req provider.OrderRequest) (*provider.OrderResult, error) {
	payload := orderPayload{
		Trader:     p.address.Hex(),
		Pair:       req.Pair,
		Side:       string(req.Side),
		OrderType:  string(req.Type),
		Collateral: req.Collateral,
		Leverage:   req.Leverage,
		LimitPrice: req.LimitPrice,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		Slippage:   p.cfg.SlippagePercentage,
		ChainID:    p.chainID,
	}
	sig, err := p.sign(fmt.Sprintf("%s|%s|%s|%v|%v|%s",
		payload.Pair, payload.Side, payload.OrderType, payload.Collateral, payload.Leverage, payload.ChainID))
	if err != nil {
		return nil, err
	}
	payload.Signature = sig

	var resp orderResponse
	if err := p.api.PostJSON(ctx, "/v1/orders", payload, &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "ostium", Op: "open trade", Err: err}
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

// CloseTrade closes an open position at market.
func (p *Provider) CloseTrade(ctx context.Context, positionID string) (*provider.OrderResult, error) {
	sig, err := p.sign("close|" + positionID + "|" + p.chainID)
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	err = p.api.PostJSON(ctx, "/v1/positions/"+positionID+"/close", map[string]string{
		"trader":    p.address.Hex(),
		"signature": sig,
	}, &resp)
	if err != nil {
		return nil, &provider.VendorError{Vendor: "ostium", Op: "close trade", Err: err}
	}
	return &provider.OrderResult{
		OrderID:  resp.OrderID,
		Status:   resp.Status,
		PlacedAt: time.UnixMilli(resp.PlacedAt).UTC(),
	}, nil
}

// UpdateTPSL rewrites the take-profit and stop-loss levels of a position.
func (p *Provider) UpdateTPSL(ctx context.Context, positionID string, takeProfit, stopLoss float64) error {
	sig, err := p.sign(fmt.Sprintf("tpsl|%s|%v|%v|%s", positionID, takeProfit, stopLoss, p.chainID))
	if err != nil {
		return err
	}
	err = p.api.PostJSON(ctx, "/v1/positions/"+positionID+"/tpsl", map[string]any{
		"trader":      p.address.Hex(),
		"take_profit": takeProfit,
		"stop_loss":   stopLoss,
		"signature":   sig,
	}, nil)
	if err != nil {
		return &provider.VendorError{Vendor: "ostium", Op: "update tp/sl", Err: err}
	}
	return nil
}

// CancelOrder cancels a pending limit or stop order.
func (p *Provider) CancelOrder(ctx context.Context, orderID string) error {
	sig, err := p.sign("cancel|" + orderID + "|" + p.chainID)
	if err != nil {
		return err
	}
	err = p.api.PostJSON(ctx, "/v1/orders/"+orderID+"/cancel", map[string]string{
		"trader":    p.address.Hex(),
		"signature": sig,
	}, nil)
	if err != nil {
		return &provider.VendorError{Vendor: "ostium", Op: "cancel order", Err: err}
	}
	return nil
}

type positionResponse struct {
	ID         string  `json:"id"`
	Pair       string  `json:"pair"`
	Side       string  `json:"side"`
	Collateral float64 `json:"collateral"`
	Leverage   float64 `json:"leverage"`
	EntryPrice float64 `json:"entry_price"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
	OpenedAt   int64   `json:"opened_at"`
}

// Positions lists the trader's open positions.
func (p *Provider) Positions(ctx context.Context) ([]provider.Position, error) {
	var resp struct {
		Positions []positionResponse `json:"positions"`
	}
	if err := p.api.GetJSON(ctx, "/v1/positions?trader="+p.address.Hex(), &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "ostium", Op: "positions", Err: err}
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

// Pairs lists the venue's tradable markets.
func (p *Provider) Pairs(ctx context.Context) ([]provider.Pair, error) {
	var resp struct {
		Pairs []struct {
			Symbol      string  `json:"symbol"`
			Base        string  `json:"base"`
			Quote       string  `json:"quote"`
			MaxLeverage float64 `json:"max_leverage"`
		} `json:"pairs"`
	}
	if err := p.api.GetJSON(ctx, "/v1/pairs", &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "ostium", Op: "pairs", Err: err}
	}

	out := make([]provider.Pair, 0, len(resp.Pairs))
	for _, pair := range resp.Pairs {
		out = append(out, provider.Pair{
			Symbol:      pair.Symbol,
			Base:        pair.Base,
			Quote:       pair.Quote,
			MaxLeverage: pair.MaxLeverage,
		})
	}
	return out, nil
}

// GetPrice returns the venue's mid price for a pair.
func (p *Provider) GetPrice(ctx context.Context, pair string) (*provider.Quote, error) {
	var resp struct {
		Pair      string  `json:"pair"`
		Price     float64 `json:"price"`
		Timestamp int64   `json:"timestamp"`
	}
	if err := p.api.GetJSON(ctx, "/v1/prices/"+pair, &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "ostium", Op: "price " + pair, Err: err}
	}
	return &provider.Quote{
		Pair:      resp.Pair,
		Price:     resp.Price,
		Timestamp: time.UnixMilli(resp.Timestamp).UTC(),
	}, nil
}

type settlementResponse struct {
	PositionID string  `json:"position_id"`
	Pair       string  `json:"pair"`
	PnL        float64 `json:"pnl"`
	Fee        float64 `json:"fee"`
	TxHash     string  `json:"tx_hash"`
	SettledAt  int64   `json:"settled_at"`
}

// SettlePosition finalizes a closed position on-chain through the relay.
// The venue fee is clamped to the configured [MinFee, MaxFee] band.
func (p *Provider) SettlePosition(ctx context.Context, positionID string) (*provider.Settlement, error) {
	sig, err := p.sign("settle|" + positionID + "|" + p.chainID)
	if err != nil {
		return nil, err
	}

	var resp settlementResponse
	err = p.api.PostJSON(ctx, "/v1/settlements", map[string]any{
		"trader":      p.address.Hex(),
		"position_id": positionID,
		"fee_pct":     p.cfg.DefaultFeePercentage,
		"min_fee":     p.cfg.MinFee,
		"max_fee":     p.cfg.MaxFee,
		"signature":   sig,
	}, &resp)
	if err != nil {
		return nil, &provider.VendorError{Vendor: "ostium", Op: "settle " + positionID, Err: err}
	}
	return &provider.Settlement{
		PositionID: resp.PositionID,
		Pair:       resp.Pair,
		PnL:        resp.PnL,
		Fee:        resp.Fee,
		TxHash:     resp.TxHash,
		SettledAt:  time.UnixMilli(resp.SettledAt).UTC(),
	}, nil
}

// PendingSettlements lists positions closed but not yet settled on-chain.
func (p *Provider) PendingSettlements(ctx context.Context) ([]provider.Settlement, error) {
	var resp struct {
		Settlements []settlementResponse `json:"settlements"`
	}
	if err := p.api.GetJSON(ctx, "/v1/settlements/pending?trader="+p.address.Hex(), &resp); err != nil {
		return nil, &provider.VendorError{Vendor: "ostium", Op: "pending settlements", Err: err}
	}

	out := make([]provider.Settlement, 0, len(resp.Settlements))
	for _, s := range resp.Settlements {
		out = append(out, provider.Settlement{
			PositionID: s.PositionID,
			Pair:       s.Pair,
			PnL:        s.PnL,
			Fee:        s.Fee,
			TxHash:     s.TxHash,
			SettledAt:  time.UnixMilli(s.SettledAt).UTC(),
		})
	}
	return out, nil
}

// sign produces a hex-encoded secp256k1 signature over the keccak hash of
// the canonical message the relay verifies.
func (p *Provider) sign(message string) (string, error) {
	if p.key == nil {
		return "", errors.New("ostium provider not initialized")
	}
	sig, err := crypto.Sign(crypto.Keccak256([]byte(message)), p.key)
	if err != nil {
		return "", fmt.Errorf("sign ostium payload: %w", err)
	}
	return "0x" + hex.EncodeToString(sig), nil
}
