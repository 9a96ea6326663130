// Package provider defines the capability contracts vendor integrations
// implement, the per-capability registries, and the factory that resolves a
// name to an initialized, cached provider instance.
package provider

import (
	"context"
	"time"
)

// Capability names one of the six provider roles.
type Capability string

const (
	CapabilityTrading    Capability = "trading"
	CapabilityPrice      Capability = "price"
	CapabilitySettlement Capability = "settlement"
	CapabilitySwap       Capability = "swap"
	CapabilityAuth       Capability = "auth"
	CapabilityWallet     Capability = "wallet"
)

// Base is implemented by every provider. Initialize runs once, before the
// instance is cached; it may perform a live handshake with the vendor and
// must fail when required credentials are missing.
type Base interface {
	Name() string
	Initialize(ctx context.Context) error
}

// OrderType is the order kind accepted by trading providers.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
	OrderStop   OrderType = "STOP"
)

// OrderSide is the trade direction.
type OrderSide string

const (
	SideLong  OrderSide = "LONG"
	SideShort OrderSide = "SHORT"
)

// OrderRequest opens a perpetual position.
type OrderRequest struct {
	Pair       string
	Side       OrderSide
	Type       OrderType
	Collateral float64
	Leverage   float64
	// LimitPrice is required for LIMIT and STOP orders.
	LimitPrice float64
	TakeProfit float64
	StopLoss   float64
}

// OrderResult reports the vendor's acknowledgement of an order.
type OrderResult struct {
	OrderID    string
	Pair       string
	Side       OrderSide
	Status     string
	EntryPrice float64
	Collateral float64
	Leverage   float64
	PlacedAt   time.Time
}

// Position is an open perpetual position as reported by the vendor.
type Position struct {
	ID         string
	Pair       string
	Side       OrderSide
	Collateral float64
	Leverage   float64
	EntryPrice float64
	TakeProfit float64
	StopLoss   float64
	OpenedAt   time.Time
}

// Pair describes a tradable market.
type Pair struct {
	Symbol      string
	Base        string
	Quote       string
	MaxLeverage float64
}

// TradingProvider executes perpetual trades on one venue.
type TradingProvider interface {
	Base
	OpenTrade(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CloseTrade(ctx context.Context, positionID string) (*OrderResult, error)
	UpdateTPSL(ctx context.Context, positionID string, takeProfit, stopLoss float64) error
	CancelOrder(ctx context.Context, orderID string) error
	Positions(ctx context.Context) ([]Position, error)
	Pairs(ctx context.Context) ([]Pair, error)
}

// Quote is a point-in-time price for one pair.
type Quote struct {
	Pair      string
	Price     float64
	Timestamp time.Time
}

// PriceProvider serves market prices.
type PriceProvider interface {
	Base
	GetPrice(ctx context.Context, pair string) (*Quote, error)
}

// Settlement reports the outcome of settling a closed position.
type Settlement struct {
	PositionID string
	Pair       string
	PnL        float64
	Fee        float64
	TxHash     string
	SettledAt  time.Time
}

// SettlementProvider finalizes closed positions on-chain.
type SettlementProvider interface {
	Base
	SettlePosition(ctx context.Context, positionID string) (*Settlement, error)
	PendingSettlements(ctx context.Context) ([]Settlement, error)
}

// SwapQuote is a vendor quote for converting one token into another.
type SwapQuote struct {
	FromToken  string
	ToToken    string
	FromChain  string
	ToChain    string
	FromAmount string
	ToAmount   string
	// QuoteID identifies the quote when executing; TxData carries the
	// calldata the wallet signs.
	QuoteID string
	TxData  string
}

// SwapStatus tracks an in-flight conversion.
type SwapStatus struct {
	QuoteID string
	State   string
	TxHash  string
}

// SwapRequest asks for a token conversion quote.
type SwapRequest struct {
	FromToken   string
	ToToken     string
	FromChain   string
	ToChain     string
	Amount      string
	FromAddress string
}

// SwapProvider quotes and tracks cross-token conversions.
type SwapProvider interface {
	Base
	Quote(ctx context.Context, req SwapRequest) (*SwapQuote, error)
	Status(ctx context.Context, quoteID string) (*SwapStatus, error)
	Chains(ctx context.Context) ([]string, error)
}

// Identity is the verified subject of an access token.
type Identity struct {
	Subject string
	Email   string
	Claims  map[string]any
}

// AuthProvider verifies end-user access tokens.
type AuthProvider interface {
	Base
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// WalletInfo describes a vendor-managed wallet.
type WalletInfo struct {
	ProviderWalletID string
	Address          string
	Network          string
}

// WalletProvider creates and operates vendor-managed wallets.
type WalletProvider interface {
	Base
	CreateWallet(ctx context.Context, network string) (*WalletInfo, error)
	SignTransaction(ctx context.Context, providerWalletID string, txData string) (string, error)
}
