package ostium

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marqetfi/tradegate/internal/crypt"
	"github.com/marqetfi/tradegate/storage"
)

// ErrValidation marks a settings write rejected before touching storage.
var ErrValidation = errors.New("ostium: invalid settings")

// ErrSettingsNotFound marks an update or activation targeting a missing id.
var ErrSettingsNotFound = errors.New("ostium: settings not found")

// SettingsParams is the admin-facing shape of one settings snapshot.
// PrivateKey arrives in plaintext and is encrypted before storage.
type SettingsParams struct {
	Enabled              bool
	PrivateKey           string
	RPCURL               string
	Network              string
	Verbose              bool
	SlippagePercentage   float64
	DefaultFeePercentage float64
	MinFee               float64
	MaxFee               float64
	Timeout              int64
	RetryAttempts        int64
	RetryDelay           float64
}

// SettingsService manages versioned Ostium settings snapshots: validated
// writes, activation, and the one read path that hands a decrypted Config to
// the provider.
type SettingsService struct {
	store  *storage.Storage
	cipher *crypt.Cipher
	logger *slog.Logger
}

// SettingsOption customizes a SettingsService.
type SettingsOption func(*SettingsService)

// WithSettingsLogger sets the service logger.
func WithSettingsLogger(l *slog.Logger) SettingsOption {
	return func(s *SettingsService) { s.logger = l }
}

// NewSettingsService builds the admin service.
func NewSettingsService(store *storage.Storage, cipher *crypt.Cipher, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{
		store:  store,
		cipher: cipher,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validate enforces every bound before any write. The private key check is
// deliberately loose: optional 0x prefix, any length of hex.
func validate(p SettingsParams) error {
	if p.SlippagePercentage < 0 || p.SlippagePercentage > 100 {
		return fmt.Errorf("%w: slippage_percentage must be within [0, 100], got %v", ErrValidation, p.SlippagePercentage)
	}
	if p.DefaultFeePercentage < 0 || p.DefaultFeePercentage > 100 {
		return fmt.Errorf("%w: default_fee_percentage must be within [0, 100], got %v", ErrValidation, p.DefaultFeePercentage)
	}
	if p.MinFee < 0 {
		return fmt.Errorf("%w: min_fee must be non-negative, got %v", ErrValidation, p.MinFee)
	}
	if p.MaxFee < 0 {
		return fmt.Errorf("%w: max_fee must be non-negative, got %v", ErrValidation, p.MaxFee)
	}
	if p.MinFee >= p.MaxFee {
		return fmt.Errorf("%w: min_fee (%v) must be strictly less than max_fee (%v)", ErrValidation, p.MinFee, p.MaxFee)
	}
	network := strings.ToLower(p.Network)
	if network != "testnet" && network != "mainnet" {
		return fmt.Errorf("%w: network must be testnet or mainnet, got %q", ErrValidation, p.Network)
	}
	if p.Timeout <= 0 || p.Timeout > 300 {
		return fmt.Errorf("%w: timeout must be within (0, 300], got %d", ErrValidation, p.Timeout)
	}
	if p.RetryAttempts < 0 || p.RetryAttempts > 10 {
		return fmt.Errorf("%w: retry_attempts must be within [0, 10], got %d", ErrValidation, p.RetryAttempts)
	}
	if p.RetryDelay < 0 {
		return fmt.Errorf("%w: retry_delay must be non-negative, got %v", ErrValidation, p.RetryDelay)
	}
	if !strings.HasPrefix(p.RPCURL, "http://") && !strings.HasPrefix(p.RPCURL, "https://") {
		return fmt.Errorf("%w: rpc_url must start with http:// or https://", ErrValidation)
	}
	if p.PrivateKey != "" {
		// Shape check only: any run of hex digits passes, regardless of
		// length. Whether the key is a usable secp256k1 key is decided by
		// the provider's Initialize.
		key := strings.TrimPrefix(p.PrivateKey, "0x")
		if !isHex(key) {
			return fmt.Errorf("%w: private_key must be a hex string", ErrValidation)
		}
	}
	return nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// CreateSettings validates, encrypts the private key, and inserts a new
// snapshot with the next global version. With activate set the snapshot
// becomes the single active row.
func (s *SettingsService) CreateSettings(ctx context.Context, params SettingsParams, createdBy int64, activate bool) (storage.OstiumSettingsRecord, error) {
	if err := validate(params); err != nil {
		return storage.OstiumSettingsRecord{}, err
	}

	encryptedKey, err := s.cipher.Encrypt(params.PrivateKey)
	if err != nil {
		return storage.OstiumSettingsRecord{}, fmt.Errorf("encrypt private key: %w", err)
	}

	version, err := s.store.NextOstiumSettingsVersion(ctx)
	if err != nil {
		return storage.OstiumSettingsRecord{}, err
	}

	created, err := s.store.InsertOstiumSettings(ctx, storage.OstiumSettingsInput{
		Enabled:              params.Enabled,
		PrivateKeyEncrypted:  encryptedKey,
		RPCURL:               params.RPCURL,
		Network:              strings.ToLower(params.Network),
		Verbose:              params.Verbose,
		SlippagePercentage:   params.SlippagePercentage,
		DefaultFeePercentage: params.DefaultFeePercentage,
		MinFee:               params.MinFee,
		MaxFee:               params.MaxFee,
		Timeout:              params.Timeout,
		RetryAttempts:        params.RetryAttempts,
		RetryDelay:           params.RetryDelay,
		Version:              version,
		CreatedBy:            createdBy,
	})
	if err != nil {
		return storage.OstiumSettingsRecord{}, err
	}

	if activate {
		created, err = s.store.ActivateOstiumSettings(ctx, created.ID)
		if err != nil {
			return storage.OstiumSettingsRecord{}, err
		}
	}

	s.logger.Info("ostium settings created",
		slog.Int64("version", created.Version),
		slog.String("network", created.Network),
		slog.Bool("active", created.IsActive))
	return created, nil
}

// UpdateSettings validates the merged snapshot and persists it. The private
// key, when supplied, is re-encrypted.
func (s *SettingsService) UpdateSettings(ctx context.Context, id int64, update storage.OstiumSettingsUpdate, privateKey *string) (storage.OstiumSettingsRecord, error) {
	current, err := s.store.GetOstiumSettingsByID(ctx, id)
	if err != nil {
		return storage.OstiumSettingsRecord{}, err
	}
	if current == nil {
		return storage.OstiumSettingsRecord{}, fmt.Errorf("%w: id %d", ErrSettingsNotFound, id)
	}

	merged := mergedParams(*current, update)
	if privateKey != nil {
		merged.PrivateKey = *privateKey
	}
	if err := validate(merged); err != nil {
		return storage.OstiumSettingsRecord{}, err
	}

	if privateKey != nil {
		encrypted, err := s.cipher.Encrypt(*privateKey)
		if err != nil {
			return storage.OstiumSettingsRecord{}, fmt.Errorf("encrypt private key: %w", err)
		}
		update.PrivateKeyEncrypted = &encrypted
	}
	if update.Network != nil {
		lowered := strings.ToLower(*update.Network)
		update.Network = &lowered
	}

	updated, err := s.store.UpdateOstiumSettings(ctx, id, update)
	if err != nil {
		return storage.OstiumSettingsRecord{}, err
	}
	s.logger.Info("ostium settings updated", slog.Int64("id", id), slog.Int64("version", updated.Version))
	return updated, nil
}

// ActivateSettings makes the snapshot the single active row.
func (s *SettingsService) ActivateSettings(ctx context.Context, id int64) (storage.OstiumSettingsRecord, error) {
	record, err := s.store.ActivateOstiumSettings(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OstiumSettingsRecord{}, fmt.Errorf("%w: id %d", ErrSettingsNotFound, id)
		}
		return storage.OstiumSettingsRecord{}, err
	}
	s.logger.Info("ostium settings activated", slog.Int64("id", id), slog.Int64("version", record.Version))
	return record, nil
}

// History lists snapshots newest-first.
func (s *SettingsService) History(ctx context.Context, offset, limit int) ([]storage.OstiumSettingsRecord, error) {
	return s.store.ListOstiumSettingsHistory(ctx, offset, limit)
}

// ActiveConfig fetches the active snapshot and returns it with the private
// key decrypted, or nil when no snapshot is active. The returned value must
// not be logged.
func (s *SettingsService) ActiveConfig(ctx context.Context) (*Config, error) {
	record, err := s.store.GetActiveOstiumSettings(ctx)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	privateKey, err := s.cipher.Decrypt(record.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt ostium private key: %w", err)
	}

	return &Config{
		Enabled:              record.Enabled,
		PrivateKey:           privateKey,
		RPCURL:               record.RPCURL,
		Network:              record.Network,
		Verbose:              record.Verbose,
		SlippagePercentage:   record.SlippagePercentage,
		DefaultFeePercentage: record.DefaultFeePercentage,
		MinFee:               record.MinFee,
		MaxFee:               record.MaxFee,
		Timeout:              int(record.Timeout),
		RetryAttempts:        int(record.RetryAttempts),
		RetryDelay:           record.RetryDelay,
	}, nil
}

// mergedParams applies the update over the stored record so validation sees
// the post-merge snapshot.
func mergedParams(current storage.OstiumSettingsRecord, update storage.OstiumSettingsUpdate) SettingsParams {
	p := SettingsParams{
		Enabled:              current.Enabled,
		RPCURL:               current.RPCURL,
		Network:              current.Network,
		Verbose:              current.Verbose,
		SlippagePercentage:   current.SlippagePercentage,
		DefaultFeePercentage: current.DefaultFeePercentage,
		MinFee:               current.MinFee,
		MaxFee:               current.MaxFee,
		Timeout:              current.Timeout,
		RetryAttempts:        current.RetryAttempts,
		RetryDelay:           current.RetryDelay,
	}
	if update.Enabled != nil {
		p.Enabled = *update.Enabled
	}
	if update.RPCURL != nil {
		p.RPCURL = *update.RPCURL
	}
	if update.Network != nil {
		p.Network = *update.Network
	}
	if update.Verbose != nil {
		p.Verbose = *update.Verbose
	}
	if update.SlippagePercentage != nil {
		p.SlippagePercentage = *update.SlippagePercentage
	}
	if update.DefaultFeePercentage != nil {
		p.DefaultFeePercentage = *update.DefaultFeePercentage
	}
	if update.MinFee != nil {
		p.MinFee = *update.MinFee
	}
	if update.MaxFee != nil {
		p.MaxFee = *update.MaxFee
	}
	if update.Timeout != nil {
		p.Timeout = *update.Timeout
	}
	if update.RetryAttempts != nil {
		p.RetryAttempts = *update.RetryAttempts
	}
	if update.RetryDelay != nil {
		p.RetryDelay = *update.RetryDelay
	}
	return p
}
