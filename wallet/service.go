// Package wallet creates vendor-custodied wallets, keeps a local record of
// each one, and proxies transaction signing to the owning vendor.
package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/storage"
)

// ErrValidation marks a request rejected before reaching any vendor.
var ErrValidation = errors.New("wallet: invalid request")

// ErrNotFound marks a wallet id with no record.
var ErrNotFound = errors.New("wallet: not found")

// Providers is the subset of the provider factory this service consumes.
type Providers interface {
	Wallet(ctx context.Context, name string) (provider.WalletProvider, error)
}

// Store is the wallet persistence surface backed by storage.Storage.
type Store interface {
	InsertWallet(ctx context.Context, input storage.WalletInput) (storage.Wallet, error)
	GetWallet(ctx context.Context, id int64) (storage.Wallet, error)
	GetWalletByProviderID(ctx context.Context, providerWalletID string) (*storage.Wallet, error)
	ListWallets(ctx context.Context, providerType string) ([]storage.Wallet, error)
	SetWalletActive(ctx context.Context, id int64, active bool) error
}

// Service pairs a wallet vendor with the local wallet records.
type Service struct {
	providers Providers
	store     Store
	logger    *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds the wallet service.
func NewService(providers Providers, store Store, opts ...Option) *Service {
	s := &Service{providers: providers, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// walletMetadata is the record blob stored alongside each wallet. Reference
// is an internal id handed to callers that must never leak the vendor's id.
type walletMetadata struct {
	Reference string `json:"reference"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

// CreateWallet asks the vendor for a new wallet on the given network and
// persists the record. providerName may be empty to use the configured
// default vendor.
func (s *Service) CreateWallet(ctx context.Context, providerName, network, createdBy string) (storage.Wallet, error) {
	if network == "" {
		return storage.Wallet{}, fmt.Errorf("%w: network is required", ErrValidation)
	}

	p, err := s.providers.Wallet(ctx, providerName)
	if err != nil {
		return storage.Wallet{}, err
	}

	info, err := p.CreateWallet(ctx, network)
	if err != nil {
		return storage.Wallet{}, fmt.Errorf("create wallet via %s: %w", p.Name(), err)
	}

	meta, err := json.Marshal(walletMetadata{
		Reference: uuid.NewString(),
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return storage.Wallet{}, err
	}

	w, err := s.store.InsertWallet(ctx, storage.WalletInput{
		ProviderType:     p.Name(),
		ProviderWalletID: info.ProviderWalletID,
		Address:          info.Address,
		Network:          info.Network,
		Metadata:         meta,
	})
	if err != nil {
		return storage.Wallet{}, err
	}

	s.logger.Info("wallet created",
		slog.String("provider", p.Name()),
		slog.Int64("wallet_id", w.ID),
		slog.String("address", w.Address),
		slog.String("network", w.Network))
	return w, nil
}

// SignTransaction signs raw transaction data with the wallet's vendor key.
// The wallet must exist locally and be active.
func (s *Service) SignTransaction(ctx context.Context, walletID int64, txData string) (string, error) {
	if txData == "" {
		return "", fmt.Errorf("%w: transaction data is required", ErrValidation)
	}

	w, err := s.store.GetWallet(ctx, walletID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: wallet %d", ErrNotFound, walletID)
	}
	if err != nil {
		return "", err
	}
	if !w.IsActive {
		return "", fmt.Errorf("%w: wallet %d is deactivated", ErrValidation, walletID)
	}

	p, err := s.providers.Wallet(ctx, w.ProviderType)
	if err != nil {
		return "", err
	}

	signed, err := p.SignTransaction(ctx, w.ProviderWalletID, txData)
	if err != nil {
		return "", fmt.Errorf("sign via %s: %w", p.Name(), err)
	}

	s.logger.Info("transaction signed",
		slog.String("provider", p.Name()),
		slog.Int64("wallet_id", w.ID))
	return signed, nil
}

// Get returns one wallet record by local id.
func (s *Service) Get(ctx context.Context, walletID int64) (storage.Wallet, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Wallet{}, fmt.Errorf("%w: wallet %d", ErrNotFound, walletID)
	}
	if err != nil {
		return storage.Wallet{}, err
	}
	return w, nil
}

// List returns active wallets, optionally filtered by vendor.
func (s *Service) List(ctx context.Context, providerType string) ([]storage.Wallet, error) {
	return s.store.ListWallets(ctx, providerType)
}

// Deactivate marks a wallet unusable for signing. The vendor record is left
// untouched.
func (s *Service) Deactivate(ctx context.Context, walletID int64) error {
	err := s.store.SetWalletActive(ctx, walletID, false)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: wallet %d", ErrNotFound, walletID)
	}
	if err != nil {
		return err
	}
	s.logger.Info("wallet deactivated", slog.Int64("wallet_id", walletID))
	return nil
}
