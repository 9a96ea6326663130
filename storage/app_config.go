package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppConfig is a generic key/value configuration row. When IsEncrypted is
// set, Value holds ciphertext produced by the crypt package.
type AppConfig struct {
	ID          int64
	Key         string
	Value       string
	Type        string // string, int, float, bool, json
	Category    string
	Description string
	IsEncrypted bool
	IsActive    bool
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AppConfigInput carries the fields required to insert a new row.
type AppConfigInput struct {
	Key         string
	Value       string
	Type        string
	Category    string
	Description string
	IsEncrypted bool
	IsActive    bool
	CreatedBy   int64
}

// AppConfigUpdate merges non-nil fields over an existing row.
type AppConfigUpdate struct {
	Value       *string
	Type        *string
	Category    *string
	Description *string
	IsEncrypted *bool
	IsActive    *bool
}

const appConfigColumns = `id, config_key, config_value, config_type, category, description,
	is_encrypted, is_active, created_by, created_at_utc, updated_at_utc`

func scanAppConfig(row interface{ Scan(...any) error }) (AppConfig, error) {
	var (
		cfg        AppConfig
		created    int64
		updated    int64
		encrypted  int64
		activeFlag int64
	)
	err := row.Scan(&cfg.ID, &cfg.Key, &cfg.Value, &cfg.Type, &cfg.Category, &cfg.Description,
		&encrypted, &activeFlag, &cfg.CreatedBy, &created, &updated)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.IsEncrypted = encrypted != 0
	cfg.IsActive = activeFlag != 0
	cfg.CreatedAt = fromMilli(created)
	cfg.UpdatedAt = fromMilli(updated)
	return cfg, nil
}

// InsertAppConfig creates a new configuration row and returns it.
func (s *Storage) InsertAppConfig(ctx context.Context, input AppConfigInput) (AppConfig, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMilli()
	cfgType := input.Type
	if cfgType == "" {
		cfgType = "string"
	}
	category := input.Category
	if category == "" {
		category = "app"
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO app_configurations
			(config_key, config_value, config_type, category, description,
			 is_encrypted, is_active, created_by, created_at_utc, updated_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		input.Key, input.Value, cfgType, category, input.Description,
		boolToInt(input.IsEncrypted), boolToInt(input.IsActive), input.CreatedBy, now, now)
	if err != nil {
		return AppConfig{}, fmt.Errorf("insert app config %q: %w", input.Key, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return AppConfig{}, err
	}
	return s.getAppConfigByIDLocked(ctx, id)
}

// GetAppConfigByKey returns the active row for key, or nil when absent.
// Inactive rows are invisible to this lookup.
func (s *Storage) GetAppConfigByKey(ctx context.Context, key string) (*AppConfig, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+appConfigColumns+`
		FROM app_configurations
		WHERE config_key = ? AND is_active = 1
		LIMIT 1`, key)

	cfg, err := scanAppConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get app config %q: %w", key, err)
	}
	return &cfg, nil
}

// GetAppConfigByID returns the row with the given id, active or not, or nil.
func (s *Storage) GetAppConfigByID(ctx context.Context, id int64) (*AppConfig, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.getAppConfigByIDLocked(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Storage) getAppConfigByIDLocked(ctx context.Context, id int64) (AppConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+appConfigColumns+`
		FROM app_configurations
		WHERE id = ?`, id)
	return scanAppConfig(row)
}

// ListActiveAppConfigs returns all active rows, optionally filtered by
// category when category is non-empty.
func (s *Storage) ListActiveAppConfigs(ctx context.Context, category string) ([]AppConfig, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + appConfigColumns + ` FROM app_configurations WHERE is_active = 1`
	args := []any{}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY config_key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list app configs: %w", err)
	}
	defer rows.Close()

	var out []AppConfig
	for rows.Next() {
		cfg, err := scanAppConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// UpdateAppConfig merges the provided fields over the row and returns the
// updated record. sql.ErrNoRows is returned when the id does not exist.
func (s *Storage) UpdateAppConfig(ctx context.Context, id int64, update AppConfigUpdate) (AppConfig, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getAppConfigByIDLocked(ctx, id)
	if err != nil {
		return AppConfig{}, err
	}

	if update.Value != nil {
		current.Value = *update.Value
	}
	if update.Type != nil {
		current.Type = *update.Type
	}
	if update.Category != nil {
		current.Category = *update.Category
	}
	if update.Description != nil {
		current.Description = *update.Description
	}
	if update.IsEncrypted != nil {
		current.IsEncrypted = *update.IsEncrypted
	}
	if update.IsActive != nil {
		current.IsActive = *update.IsActive
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE app_configurations
		SET config_value = ?, config_type = ?, category = ?, description = ?,
		    is_encrypted = ?, is_active = ?, updated_at_utc = ?
		WHERE id = ?`,
		current.Value, current.Type, current.Category, current.Description,
		boolToInt(current.IsEncrypted), boolToInt(current.IsActive), s.nowMilli(), id)
	if err != nil {
		return AppConfig{}, fmt.Errorf("update app config %d: %w", id, err)
	}

	return s.getAppConfigByIDLocked(ctx, id)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
