// Package price serves market prices through the configured price provider,
// with concurrent fan-out for multi-pair requests.
package price

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/marqetfi/tradegate/provider"
)

// Providers is the subset of the provider factory this service consumes.
type Providers interface {
	Price(ctx context.Context, name string) (provider.PriceProvider, error)
}

// Service resolves prices.
type Service struct {
	providers Providers
	logger    *slog.Logger
	// fanout bounds concurrent venue requests in GetPrices.
	fanout int
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithFanout bounds concurrent pair lookups.
func WithFanout(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fanout = n
		}
	}
}

// NewService builds the price service.
func NewService(providers Providers, opts ...Option) *Service {
	s := &Service{providers: providers, logger: slog.Default(), fanout: 8}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetPrice resolves one pair through the named (or default) provider.
func (s *Service) GetPrice(ctx context.Context, providerName, pair string) (*provider.Quote, error) {
	venue, err := s.providers.Price(ctx, providerName)
	if err != nil {
		return nil, err
	}
	return venue.GetPrice(ctx, pair)
}

// GetPrices fans out over the pairs concurrently. One failing pair fails the
// whole call; partial price maps invite silent staleness downstream.
func (s *Service) GetPrices(ctx context.Context, providerName string, pairs []string) (map[string]*provider.Quote, error) {
	venue, err := s.providers.Price(ctx, providerName)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string]*provider.Quote, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for _, pair := range pairs {
		g.Go(func() error {
			quote, err := venue.GetPrice(gctx, pair)
			if err != nil {
				return err
			}
			mu.Lock()
			out[pair] = quote
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
