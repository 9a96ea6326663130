// Package trading is the provider-agnostic order path: request validation
// up front, then delegation to whichever trading provider the factory
// resolves.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marqetfi/tradegate/provider"
)

// ErrValidation marks an order rejected before reaching any venue.
var ErrValidation = errors.New("trading: invalid order")

// Providers is the subset of the provider factory this service consumes.
type Providers interface {
	Trading(ctx context.Context, name string) (provider.TradingProvider, error)
}

// Service validates and routes trading operations.
type Service struct {
	providers Providers
	logger    *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds the trading service.
func NewService(providers Providers, opts ...Option) *Service {
	s := &Service{providers: providers, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateOrder(req provider.OrderRequest) error {
	if req.Pair == "" {
		return fmt.Errorf("%w: pair is required", ErrValidation)
	}
	if req.Collateral <= 0 {
		return fmt.Errorf("%w: collateral must be positive, got %v", ErrValidation, req.Collateral)
	}
	if req.Leverage < 1 {
		return fmt.Errorf("%w: leverage must be at least 1, got %v", ErrValidation, req.Leverage)
	}
	switch req.Type {
	case provider.OrderMarket:
	case provider.OrderLimit, provider.OrderStop:
		if req.LimitPrice <= 0 {
			return fmt.Errorf("%w: %s orders require a positive limit price", ErrValidation, req.Type)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrValidation, req.Type)
	}
	switch req.Side {
	case provider.SideLong, provider.SideShort:
	default:
		return fmt.Errorf("%w: unknown side %q", ErrValidation, req.Side)
	}
	if req.TakeProfit < 0 {
		return fmt.Errorf("%w: take profit must be positive", ErrValidation)
	}
	if req.StopLoss < 0 {
		return fmt.Errorf("%w: stop loss must be positive", ErrValidation)
	}
	return nil
}

// OpenTrade validates and submits an order. providerName may be empty to use
// the configured default venue.
func (s *Service) OpenTrade(ctx context.Context, providerName string, req provider.OrderRequest) (*provider.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return nil, err
	}

	venue, err := s.providers.Trading(ctx, providerName)
	if err != nil {
		return nil, err
	}

	result, err := venue.OpenTrade(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("trade opened",
		slog.String("provider", venue.Name()),
		slog.String("pair", req.Pair),
		slog.String("side", string(req.Side)),
		slog.String("order_id", result.OrderID))
	return result, nil
}

// CloseTrade closes an open position.
func (s *Service) CloseTrade(ctx context.Context, providerName, positionID string) (*provider.OrderResult, error) {
	if positionID == "" {
		return nil, fmt.Errorf("%w: position id is required", ErrValidation)
	}

	venue, err := s.providers.Trading(ctx, providerName)
	if err != nil {
		return nil, err
	}

	result, err := venue.CloseTrade(ctx, positionID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("trade closed",
		slog.String("provider", venue.Name()),
		slog.String("position_id", positionID))
	return result, nil
}

// UpdateTPSL rewrites the take-profit and stop-loss of an open position.
// Both levels must be positive; a zero level clears nothing here.
func (s *Service) UpdateTPSL(ctx context.Context, providerName, positionID string, takeProfit, stopLoss float64) error {
	if positionID == "" {
		return fmt.Errorf("%w: position id is required", ErrValidation)
	}
	if takeProfit <= 0 {
		return fmt.Errorf("%w: take profit must be positive, got %v", ErrValidation, takeProfit)
	}
	if stopLoss <= 0 {
		return fmt.Errorf("%w: stop loss must be positive, got %v", ErrValidation, stopLoss)
	}

	venue, err := s.providers.Trading(ctx, providerName)
	if err != nil {
		return err
	}
	return venue.UpdateTPSL(ctx, positionID, takeProfit, stopLoss)
}

// CancelOrder cancels a pending order.
func (s *Service) CancelOrder(ctx context.Context, providerName, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrValidation)
	}

	venue, err := s.providers.Trading(ctx, providerName)
	if err != nil {
		return err
	}
	return venue.CancelOrder(ctx, orderID)
}

// Positions lists open positions on a venue.
func (s *Service) Positions(ctx context.Context, providerName string) ([]provider.Position, error) {
	venue, err := s.providers.Trading(ctx, providerName)
	if err != nil {
		return nil, err
	}
	return venue.Positions(ctx)
}

// Pairs lists a venue's tradable markets.
func (s *Service) Pairs(ctx context.Context, providerName string) ([]provider.Pair, error) {
	venue, err := s.providers.Trading(ctx, providerName)
	if err != nil {
		return nil, err
	}
	return venue.Pairs(ctx)
}
