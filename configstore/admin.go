package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marqetfi/tradegate/internal/crypt"
	"github.com/marqetfi/tradegate/storage"
)

// ErrNotFound marks admin operations targeting an id that does not exist.
var ErrNotFound = errors.New("configstore: configuration not found")

// EncryptedPlaceholder replaces ciphertext in views unless the caller
// explicitly asks for decryption.
const EncryptedPlaceholder = "***ENCRYPTED***"

// AdminService is the mutation path for app configuration entries and
// versioned provider configuration snapshots.
type AdminService struct {
	store  *storage.Storage
	cipher *crypt.Cipher
	logger *slog.Logger
}

// AdminOption customizes an AdminService.
type AdminOption func(*AdminService)

// WithAdminLogger sets the logger for mutation audit lines.
func WithAdminLogger(l *slog.Logger) AdminOption {
	return func(a *AdminService) { a.logger = l }
}

// NewAdminService builds the admin service over a required store.
func NewAdminService(store *storage.Storage, cipher *crypt.Cipher, opts ...AdminOption) *AdminService {
	a := &AdminService{
		store:  store,
		cipher: cipher,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateAppConfig inserts a new entry, encrypting the value first when the
// entry is flagged encrypted.
func (a *AdminService) CreateAppConfig(ctx context.Context, input storage.AppConfigInput) (storage.AppConfig, error) {
	if input.IsEncrypted {
		enc, err := a.cipher.Encrypt(input.Value)
		if err != nil {
			return storage.AppConfig{}, fmt.Errorf("encrypt config %q: %w", input.Key, err)
		}
		input.Value = enc
	}

	created, err := a.store.InsertAppConfig(ctx, input)
	if err != nil {
		return storage.AppConfig{}, err
	}
	a.logger.Info("app config created",
		slog.String("key", created.Key),
		slog.Bool("encrypted", created.IsEncrypted))
	return created, nil
}

// UpdateAppConfig merges the update over the existing row. When the merged
// encrypted flag is true and a new value was supplied, the value is
// re-encrypted before storage.
func (a *AdminService) UpdateAppConfig(ctx context.Context, id int64, update storage.AppConfigUpdate) (storage.AppConfig, error) {
	current, err := a.store.GetAppConfigByID(ctx, id)
	if err != nil {
		return storage.AppConfig{}, err
	}
	if current == nil {
		return storage.AppConfig{}, fmt.Errorf("%w: app config id %d", ErrNotFound, id)
	}

	encrypted := current.IsEncrypted
	if update.IsEncrypted != nil {
		encrypted = *update.IsEncrypted
	}
	if encrypted && update.Value != nil {
		enc, err := a.cipher.Encrypt(*update.Value)
		if err != nil {
			return storage.AppConfig{}, fmt.Errorf("encrypt config %q: %w", current.Key, err)
		}
		update.Value = &enc
	}

	updated, err := a.store.UpdateAppConfig(ctx, id, update)
	if err != nil {
		return storage.AppConfig{}, err
	}
	a.logger.Info("app config updated", slog.String("key", updated.Key))
	return updated, nil
}

// CreateProviderConfig stores a new snapshot with version = latest + 1.
// When activate is set, the currently active sibling (if any) is deactivated
// before the insert so at most one row per (name, type) stays active.
func (a *AdminService) CreateProviderConfig(ctx context.Context, input storage.ProviderConfigInput, activate bool) (storage.ProviderConfig, error) {
	latest, err := a.store.LatestProviderConfigVersion(ctx, input.ProviderName, input.ProviderType)
	if err != nil {
		return storage.ProviderConfig{}, err
	}
	input.Version = latest + 1
	input.IsActive = activate

	if activate {
		if err := a.deactivateCurrent(ctx, input.ProviderName, input.ProviderType, 0); err != nil {
			return storage.ProviderConfig{}, err
		}
	}

	created, err := a.store.InsertProviderConfig(ctx, input)
	if err != nil {
		return storage.ProviderConfig{}, err
	}
	a.logger.Info("provider config created",
		slog.String("provider", created.ProviderName),
		slog.String("type", created.ProviderType),
		slog.Int64("version", created.Version),
		slog.Bool("active", created.IsActive))
	return created, nil
}

// ActivateProviderConfig marks the snapshot active, deactivating whichever
// sibling currently holds the flag. Calling it on the already-active row is
// a no-op beyond the flag write.
func (a *AdminService) ActivateProviderConfig(ctx context.Context, id int64) (storage.ProviderConfig, error) {
	target, err := a.store.GetProviderConfigByID(ctx, id)
	if err != nil {
		return storage.ProviderConfig{}, err
	}
	if target == nil {
		return storage.ProviderConfig{}, fmt.Errorf("%w: provider config id %d", ErrNotFound, id)
	}

	if err := a.deactivateCurrent(ctx, target.ProviderName, target.ProviderType, id); err != nil {
		return storage.ProviderConfig{}, err
	}
	if err := a.store.SetProviderConfigActive(ctx, id, true); err != nil {
		return storage.ProviderConfig{}, err
	}

	activated, err := a.store.GetProviderConfigByID(ctx, id)
	if err != nil {
		return storage.ProviderConfig{}, err
	}
	a.logger.Info("provider config activated",
		slog.String("provider", activated.ProviderName),
		slog.String("type", activated.ProviderType),
		slog.Int64("version", activated.Version))
	return *activated, nil
}

// deactivateCurrent clears the active flag on the (name, type) pair's active
// row unless it is the row identified by keepID.
func (a *AdminService) deactivateCurrent(ctx context.Context, providerName, providerType string, keepID int64) error {
	active, err := a.store.GetActiveProviderConfig(ctx, providerName, providerType)
	if err != nil {
		return err
	}
	if active == nil || active.ID == keepID {
		return nil
	}
	return a.store.SetProviderConfigActive(ctx, active.ID, false)
}

// ConfigView renders an entry for display. Encrypted values are masked
// unless includeEncrypted is set, in which case the plaintext is returned.
func (a *AdminService) ConfigView(cfg storage.AppConfig, includeEncrypted bool) (map[string]any, error) {
	value := cfg.Value
	if cfg.IsEncrypted {
		if includeEncrypted {
			plain, err := a.cipher.Decrypt(cfg.Value)
			if err != nil {
				return nil, fmt.Errorf("decrypt config %q: %w", cfg.Key, err)
			}
			value = plain
		} else {
			value = EncryptedPlaceholder
		}
	}

	return map[string]any{
		"id":           cfg.ID,
		"key":          cfg.Key,
		"value":        value,
		"type":         cfg.Type,
		"category":     cfg.Category,
		"description":  cfg.Description,
		"is_encrypted": cfg.IsEncrypted,
		"is_active":    cfg.IsActive,
		"created_by":   cfg.CreatedBy,
		"created_at":   cfg.CreatedAt,
		"updated_at":   cfg.UpdatedAt,
	}, nil
}

// ProviderConfigView renders a provider snapshot for display.
func (a *AdminService) ProviderConfigView(cfg storage.ProviderConfig) map[string]any {
	var payload any
	if err := json.Unmarshal(cfg.ConfigData, &payload); err != nil {
		payload = map[string]any{}
	}
	return map[string]any{
		"id":            cfg.ID,
		"provider_name": cfg.ProviderName,
		"provider_type": cfg.ProviderType,
		"config_data":   payload,
		"is_active":     cfg.IsActive,
		"version":       cfg.Version,
		"created_by":    cfg.CreatedBy,
		"created_at":    cfg.CreatedAt,
		"updated_at":    cfg.UpdatedAt,
	}
}
