// Package deposit converts deposited tokens into the collateral token a
// venue trades with: quote the swap, sign the calldata with the custodial
// wallet, then poll the vendor until the conversion lands. Execution runs
// through a retrying work queue so transient vendor failures don't drop
// conversions.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/client-go/util/workqueue"

	"github.com/marqetfi/tradegate/provider"
)

// ErrValidation marks a conversion rejected before reaching any vendor.
var ErrValidation = errors.New("deposit: invalid request")

// ErrNotFound marks an unknown conversion id.
var ErrNotFound = errors.New("deposit: conversion not found")

// errPending signals the vendor has not finished the conversion yet; the
// worker requeues it with backoff instead of counting it as a failure.
var errPending = errors.New("deposit: conversion pending")

// Conversion states.
const (
	StatePending   = "PENDING"
	StateSubmitted = "SUBMITTED"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
)

// Conversion is one deposit→collateral swap tracked to completion.
type Conversion struct {
	ID       string
	WalletID int64
	Provider string
	Request  provider.SwapRequest
	Quote    provider.SwapQuote
	State    string
	TxHash   string
	Attempts int
	LastErr  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Providers is the subset of the provider factory this service consumes.
type Providers interface {
	Swap(ctx context.Context, name string) (provider.SwapProvider, error)
}

// Signer signs vendor calldata with a custodial wallet. wallet.Service
// satisfies this.
type Signer interface {
	SignTransaction(ctx context.Context, walletID int64, txData string) (string, error)
}

// Service quotes swaps and drives conversions through the work queue.
type Service struct {
	providers Providers
	signer    Signer
	queue     workqueue.TypedRateLimitingInterface[string]
	logger    *slog.Logger

	mu          sync.Mutex
	conversions map[string]*Conversion
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewQueue builds the conversion work queue with exponential per-item
// backoff between base and max.
func NewQueue(base, max time.Duration) workqueue.TypedRateLimitingInterface[string] {
	rl := workqueue.NewTypedMaxOfRateLimiter(
		workqueue.NewTypedItemExponentialFailureRateLimiter[string](base, max),
	)
	cfg := workqueue.TypedRateLimitingQueueConfig[string]{Name: "conversions"}
	return workqueue.NewTypedRateLimitingQueueWithConfig(rl, cfg)
}

// NewService builds the deposit service around an existing queue; workers
// draining the same queue execute what StartConversion enqueues.
func NewService(providers Providers, signer Signer, q workqueue.TypedRateLimitingInterface[string], opts ...Option) *Service {
	s := &Service{
		providers:   providers,
		signer:      signer,
		queue:       q,
		logger:      slog.Default(),
		conversions: make(map[string]*Conversion),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateRequest(req provider.SwapRequest) error {
	if req.FromToken == "" || req.ToToken == "" {
		return fmt.Errorf("%w: from and to tokens are required", ErrValidation)
	}
	if req.Amount == "" {
		return fmt.Errorf("%w: amount is required", ErrValidation)
	}
	if req.FromAddress == "" {
		return fmt.Errorf("%w: from address is required", ErrValidation)
	}
	return nil
}

// Quote returns a vendor quote without starting a conversion. providerName
// may be empty to use the configured default vendor.
func (s *Service) Quote(ctx context.Context, providerName string, req provider.SwapRequest) (*provider.SwapQuote, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	p, err := s.providers.Swap(ctx, providerName)
	if err != nil {
		return nil, err
	}
	return p.Quote(ctx, req)
}

// StartConversion quotes the swap, records the conversion, and enqueues it
// for execution. The returned Conversion is a snapshot; poll Get for
// progress.
func (s *Service) StartConversion(ctx context.Context, providerName string, walletID int64, req provider.SwapRequest) (Conversion, error) {
	if err := validateRequest(req); err != nil {
		return Conversion{}, err
	}
	if walletID <= 0 {
		return Conversion{}, fmt.Errorf("%w: wallet id is required", ErrValidation)
	}

	p, err := s.providers.Swap(ctx, providerName)
	if err != nil {
		return Conversion{}, err
	}
	quote, err := p.Quote(ctx, req)
	if err != nil {
		return Conversion{}, fmt.Errorf("quote via %s: %w", p.Name(), err)
	}

	now := time.Now().UTC()
	c := &Conversion{
		ID:        uuid.NewString(),
		WalletID:  walletID,
		Provider:  p.Name(),
		Request:   req,
		Quote:     *quote,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversions[c.ID] = c
	snapshot := *c
	s.mu.Unlock()

	s.queue.Add(c.ID)
	s.logger.Info("conversion enqueued",
		slog.String("conversion_id", c.ID),
		slog.String("provider", c.Provider),
		slog.String("from", req.FromToken),
		slog.String("to", req.ToToken),
		slog.String("amount", req.Amount))
	return snapshot, nil
}

// Get returns a snapshot of one conversion.
func (s *Service) Get(id string) (Conversion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversions[id]
	if !ok {
		return Conversion{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *c, nil
}

// List returns snapshots of all tracked conversions.
func (s *Service) List() []Conversion {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conversion, 0, len(s.conversions))
	for _, c := range s.conversions {
		out = append(out, *c)
	}
	return out
}

// process advances one conversion a single step. It returns errPending when
// the vendor is still working, a plain error for retryable failures, and nil
// once the conversion reaches a terminal state.
func (s *Service) process(ctx context.Context, id string) error {
	s.mu.Lock()
	c, ok := s.conversions[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	state := c.State
	walletID := c.WalletID
	providerName := c.Provider
	quote := c.Quote
	c.Attempts++
	s.mu.Unlock()

	switch state {
	case StateCompleted, StateFailed:
		return nil
	}

	p, err := s.providers.Swap(ctx, providerName)
	if err != nil {
		return err
	}

	if state == StatePending {
		if _, err := s.signer.SignTransaction(ctx, walletID, quote.TxData); err != nil {
			s.recordError(id, err)
			return fmt.Errorf("sign conversion %s: %w", id, err)
		}
		s.setState(id, StateSubmitted, "")
	}

	status, err := p.Status(ctx, quote.QuoteID)
	if err != nil {
		s.recordError(id, err)
		return fmt.Errorf("conversion %s status: %w", id, err)
	}

	switch strings.ToUpper(status.State) {
	case "DONE", "COMPLETED", "SUCCESS":
		s.setState(id, StateCompleted, status.TxHash)
		s.logger.Info("conversion completed",
			slog.String("conversion_id", id),
			slog.String("tx_hash", status.TxHash))
		return nil
	case "FAILED", "INVALID":
		s.setState(id, StateFailed, status.TxHash)
		s.logger.Warn("conversion failed at vendor",
			slog.String("conversion_id", id),
			slog.String("vendor_state", status.State))
		return nil
	default:
		return errPending
	}
}

// markFailed is the worker's terminal path when retries are exhausted.
func (s *Service) markFailed(id string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversions[id]
	if !ok {
		return
	}
	c.State = StateFailed
	c.LastErr = reason
	c.UpdatedAt = time.Now().UTC()
}

func (s *Service) setState(id, state, txHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversions[id]
	if !ok {
		return
	}
	c.State = state
	if txHash != "" {
		c.TxHash = txHash
	}
	c.LastErr = ""
	c.UpdatedAt = time.Now().UTC()
}

func (s *Service) recordError(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversions[id]
	if !ok {
		return
	}
	c.LastErr = err.Error()
	c.UpdatedAt = time.Now().UTC()
}
