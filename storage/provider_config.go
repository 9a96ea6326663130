package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ProviderConfig is one versioned configuration snapshot for a
// (provider_name, provider_type) pair. At most one row per pair is active at
// a time; activation flows deactivate the sibling before flipping the flag.
type ProviderConfig struct {
	ID           int64
	ProviderName string
	ProviderType string
	ConfigData   json.RawMessage
	IsActive     bool
	Version      int64
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProviderConfigInput carries the fields for a new snapshot. Version is
// assigned by the caller (admin service computes max+1).
type ProviderConfigInput struct {
	ProviderName string
	ProviderType string
	ConfigData   json.RawMessage
	IsActive     bool
	Version      int64
	CreatedBy    int64
}

const providerConfigColumns = `id, provider_name, provider_type, config_data,
	is_active, version, created_by, created_at_utc, updated_at_utc`

func scanProviderConfig(row interface{ Scan(...any) error }) (ProviderConfig, error) {
	var (
		cfg     ProviderConfig
		data    string
		active  int64
		created int64
		updated int64
	)
	err := row.Scan(&cfg.ID, &cfg.ProviderName, &cfg.ProviderType, &data,
		&active, &cfg.Version, &cfg.CreatedBy, &created, &updated)
	if err != nil {
		return ProviderConfig{}, err
	}
	cfg.ConfigData = json.RawMessage(data)
	cfg.IsActive = active != 0
	cfg.CreatedAt = fromMilli(created)
	cfg.UpdatedAt = fromMilli(updated)
	return cfg, nil
}

// InsertProviderConfig stores a new snapshot and returns it.
func (s *Storage) InsertProviderConfig(ctx context.Context, input ProviderConfigInput) (ProviderConfig, error) {
	ctx = contextOrBackground(ctx)

	if len(input.ConfigData) == 0 {
		input.ConfigData = json.RawMessage(`{}`)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_configurations
			(provider_name, provider_type, config_data, is_active, version,
			 created_by, created_at_utc, updated_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		input.ProviderName, input.ProviderType, string(input.ConfigData),
		boolToInt(input.IsActive), input.Version, input.CreatedBy, now, now)
	if err != nil {
		return ProviderConfig{}, fmt.Errorf("insert provider config %s/%s: %w",
			input.ProviderName, input.ProviderType, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return ProviderConfig{}, err
	}
	return s.getProviderConfigByIDLocked(ctx, id)
}

// GetActiveProviderConfig returns the active snapshot for the pair, or nil.
func (s *Storage) GetActiveProviderConfig(ctx context.Context, providerName, providerType string) (*ProviderConfig, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+providerConfigColumns+`
		FROM provider_configurations
		WHERE provider_name = ? AND provider_type = ? AND is_active = 1
		LIMIT 1`, providerName, providerType)

	cfg, err := scanProviderConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active provider config %s/%s: %w", providerName, providerType, err)
	}
	return &cfg, nil
}

// GetProviderConfigByID returns the snapshot with the given id, or nil.
func (s *Storage) GetProviderConfigByID(ctx context.Context, id int64) (*ProviderConfig, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.getProviderConfigByIDLocked(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Storage) getProviderConfigByIDLocked(ctx context.Context, id int64) (ProviderConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+providerConfigColumns+`
		FROM provider_configurations
		WHERE id = ?`, id)
	return scanProviderConfig(row)
}

// LatestProviderConfigVersion returns the highest version assigned to the
// pair so far, or 0 when no snapshot exists.
func (s *Storage) LatestProviderConfigVersion(ctx context.Context, providerName, providerType string) (int64, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(version)
		FROM provider_configurations
		WHERE provider_name = ? AND provider_type = ?`,
		providerName, providerType).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("latest provider config version %s/%s: %w", providerName, providerType, err)
	}
	if !version.Valid {
		return 0, nil
	}
	return version.Int64, nil
}

// ListProviderConfigs returns every snapshot for the provider name across
// all types, newest version first.
func (s *Storage) ListProviderConfigs(ctx context.Context, providerName string) ([]ProviderConfig, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+providerConfigColumns+`
		FROM provider_configurations
		WHERE provider_name = ?
		ORDER BY provider_type, version DESC`, providerName)
	if err != nil {
		return nil, fmt.Errorf("list provider configs %s: %w", providerName, err)
	}
	defer rows.Close()

	var out []ProviderConfig
	for rows.Next() {
		cfg, err := scanProviderConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// SetProviderConfigActive flips the active flag on one snapshot. The caller
// owns the deactivate-sibling-first sequencing.
func (s *Storage) SetProviderConfigActive(ctx context.Context, id int64, active bool) error {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE provider_configurations
		SET is_active = ?, updated_at_utc = ?
		WHERE id = ?`,
		boolToInt(active), s.nowMilli(), id)
	if err != nil {
		return fmt.Errorf("set provider config %d active=%t: %w", id, active, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
