// Package configstore resolves application and provider configuration with a
// strict database -> environment settings -> caller default precedence, and
// exposes the admin mutation path for versioned provider snapshots.
package configstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/marqetfi/tradegate/internal/crypt"
	"github.com/marqetfi/tradegate/settings"
	"github.com/marqetfi/tradegate/storage"
)

// Service is the read path. A nil store is valid: every lookup then resolves
// to the settings tier or the caller default.
type Service struct {
	store    *storage.Storage
	cipher   *crypt.Cipher
	settings *settings.Settings
	logger   *slog.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used for fallback warnings.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService builds the resolution service. store may be nil.
func NewService(store *storage.Storage, cipher *crypt.Cipher, cfg *settings.Settings, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		cipher:   cipher,
		settings: cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAppConfig returns the coerced value of the active row for key, or def
// when the row is absent or no store is bound. Encrypted values are decrypted
// before coercion. Database errors are returned to the caller; fallback
// across tiers is GetConfigWithFallback's job.
func (s *Service) GetAppConfig(ctx context.Context, key string, def any) (any, error) {
	if s.store == nil {
		return def, nil
	}

	row, err := s.store.GetAppConfigByKey(ctx, key)
	if err != nil {
		return def, err
	}
	if row == nil {
		return def, nil
	}

	value, err := s.rawValue(*row)
	if err != nil {
		return def, err
	}
	return s.convertValue(key, value, row.Type), nil
}

// GetProviderConfig returns the active snapshot's JSON payload for the
// (name, type) pair, or nil when none is active.
func (s *Service) GetProviderConfig(ctx context.Context, providerName, providerType string) (json.RawMessage, error) {
	if s.store == nil {
		return nil, nil
	}
	row, err := s.store.GetActiveProviderConfig(ctx, providerName, providerType)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return row.ConfigData, nil
}

// GetAllAppConfigs applies the decrypt+coerce pipeline to every active row,
// optionally filtered by category, keyed by config key.
func (s *Service) GetAllAppConfigs(ctx context.Context, category string) (map[string]any, error) {
	out := make(map[string]any)
	if s.store == nil {
		return out, nil
	}

	rows, err := s.store.ListActiveAppConfigs(ctx, category)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		value, err := s.rawValue(row)
		if err != nil {
			return nil, err
		}
		out[row.Key] = s.convertValue(row.Key, value, row.Type)
	}
	return out, nil
}

// GetConfigWithFallback resolves key through the tiers in strict order:
// database, then the process settings bag, then def. A database failure
// degrades to the next tier instead of surfacing.
func (s *Service) GetConfigWithFallback(ctx context.Context, key string, def any, useDB bool) any {
	if useDB && s.store != nil {
		// Probe for presence separately so a row whose stored value coerces
		// to a zero value still wins over the settings tier.
		row, err := s.store.GetAppConfigByKey(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("config lookup failed, falling back to settings",
				slog.String("key", key), slog.Any("error", err))
		case row != nil:
			value, err := s.rawValue(*row)
			if err != nil {
				s.logger.Warn("config decrypt failed, falling back to settings",
					slog.String("key", key), slog.Any("error", err))
				break
			}
			return s.convertValue(key, value, row.Type)
		}
	}

	if s.settings != nil {
		if v, ok := s.settings.Lookup(key); ok {
			return v
		}
	}
	return def
}

func (s *Service) rawValue(row storage.AppConfig) (string, error) {
	if !row.IsEncrypted {
		return row.Value, nil
	}
	return s.cipher.Decrypt(row.Value)
}

// convertValue coerces a stored string per its declared type tag. Parse
// failures fall back to the type's zero value rather than erroring, so a
// corrupted row degrades instead of breaking every caller.
func (s *Service) convertValue(key, value, typ string) any {
	switch typ {
	case "int":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			s.logger.Warn("config value is not an integer",
				slog.String("key", key), slog.String("value", value))
			return 0
		}
		return n
	case "float":
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			s.logger.Warn("config value is not a float",
				slog.String("key", key), slog.String("value", value))
			return 0.0
		}
		return f
	case "bool":
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		default:
			return false
		}
	case "json":
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			s.logger.Warn("config value is not valid JSON",
				slog.String("key", key))
			return map[string]any{}
		}
		return parsed
	default:
		return value
	}
}
