package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// OstiumSettingsRecord is the typed twin of ProviderConfig for the Ostium
// venue: one row per configuration snapshot, a single global version
// sequence, and at most one active row overall.
type OstiumSettingsRecord struct {
	ID                   int64
	Enabled              bool
	PrivateKeyEncrypted  string
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
	IsActive             bool
	Version              int64
	CreatedBy            int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OstiumSettingsInput carries the fields for a new snapshot.
type OstiumSettingsInput struct {
	Enabled              bool
	PrivateKeyEncrypted  string
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
	Version              int64
	CreatedBy            int64
}

// OstiumSettingsUpdate merges non-nil fields over an existing snapshot.
type OstiumSettingsUpdate struct {
	Enabled              *bool
	PrivateKeyEncrypted  *string
	RPCURL               *string
	Network              *string
	Verbose              *bool
	SlippagePercentage   *float64
	DefaultFeePercentage *float64
	MinFee               *float64
	MaxFee               *float64
	Timeout              *int64
	RetryAttempts        *int64
	RetryDelay           *float64
}

const ostiumSettingsColumns = `id, enabled, private_key_encrypted, rpc_url, network, verbose,
	slippage_percentage, default_fee_percentage, min_fee, max_fee,
	timeout, retry_attempts, retry_delay, is_active, version, created_by,
	created_at_utc, updated_at_utc`

func scanOstiumSettings(row interface{ Scan(...any) error }) (OstiumSettingsRecord, error) {
	var (
		rec     OstiumSettingsRecord
		enabled int64
		verbose int64
		active  int64
		created int64
		updated int64
	)
	err := row.Scan(&rec.ID, &enabled, &rec.PrivateKeyEncrypted, &rec.RPCURL, &rec.Network, &verbose,
		&rec.SlippagePercentage, &rec.DefaultFeePercentage, &rec.MinFee, &rec.MaxFee,
		&rec.Timeout, &rec.RetryAttempts, &rec.RetryDelay, &active, &rec.Version, &rec.CreatedBy,
		&created, &updated)
	if err != nil {
		return OstiumSettingsRecord{}, err
	}
	rec.Enabled = enabled != 0
	rec.Verbose = verbose != 0
	rec.IsActive = active != 0
	rec.CreatedAt = fromMilli(created)
	rec.UpdatedAt = fromMilli(updated)
	return rec, nil
}

// InsertOstiumSettings stores a new snapshot (always inactive; activation is
// a separate step) and returns it.
func (s *Storage) InsertOstiumSettings(ctx context.Context, input OstiumSettingsInput) (OstiumSettingsRecord, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ostium_settings
			(enabled, private_key_encrypted, rpc_url, network, verbose,
			 slippage_percentage, default_fee_percentage, min_fee, max_fee,
			 timeout, retry_attempts, retry_delay, is_active, version, created_by,
			 created_at_utc, updated_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		boolToInt(input.Enabled), input.PrivateKeyEncrypted, input.RPCURL, input.Network,
		boolToInt(input.Verbose), input.SlippagePercentage, input.DefaultFeePercentage,
		input.MinFee, input.MaxFee, input.Timeout, input.RetryAttempts, input.RetryDelay,
		input.Version, input.CreatedBy, now, now)
	if err != nil {
		return OstiumSettingsRecord{}, fmt.Errorf("insert ostium settings v%d: %w", input.Version, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return OstiumSettingsRecord{}, err
	}
	return s.getOstiumSettingsByIDLocked(ctx, id)
}

// GetOstiumSettingsByID returns the snapshot with the given id, or nil.
func (s *Storage) GetOstiumSettingsByID(ctx context.Context, id int64) (*OstiumSettingsRecord, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getOstiumSettingsByIDLocked(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Storage) getOstiumSettingsByIDLocked(ctx context.Context, id int64) (OstiumSettingsRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ostiumSettingsColumns+`
		FROM ostium_settings
		WHERE id = ?`, id)
	return scanOstiumSettings(row)
}

// GetActiveOstiumSettings returns the active snapshot, or nil when none is
// active.
func (s *Storage) GetActiveOstiumSettings(ctx context.Context) (*OstiumSettingsRecord, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+ostiumSettingsColumns+`
		FROM ostium_settings
		WHERE is_active = 1
		ORDER BY created_at_utc DESC
		LIMIT 1`)

	rec, err := scanOstiumSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active ostium settings: %w", err)
	}
	return &rec, nil
}

// NextOstiumSettingsVersion returns max(version)+1 across every snapshot,
// or 1 when none exist. The sequence is global, not per any other key.
func (s *Storage) NextOstiumSettingsVersion(ctx context.Context) (int64, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM ostium_settings`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("next ostium settings version: %w", err)
	}
	if !version.Valid {
		return 1, nil
	}
	return version.Int64 + 1, nil
}

// ActivateOstiumSettings deactivates every other snapshot and activates the
// one with the given id, returning the updated record. sql.ErrNoRows is
// returned when the id does not exist.
func (s *Storage) ActivateOstiumSettings(ctx context.Context, id int64) (OstiumSettingsRecord, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getOstiumSettingsByIDLocked(ctx, id); err != nil {
		return OstiumSettingsRecord{}, err
	}

	now := s.nowMilli()
	if _, err := s.db.ExecContext(ctx, `
		UPDATE ostium_settings SET is_active = 0, updated_at_utc = ?
		WHERE is_active = 1 AND id != ?`, now, id); err != nil {
		return OstiumSettingsRecord{}, fmt.Errorf("deactivate ostium settings: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE ostium_settings SET is_active = 1, updated_at_utc = ?
		WHERE id = ?`, now, id); err != nil {
		return OstiumSettingsRecord{}, fmt.Errorf("activate ostium settings %d: %w", id, err)
	}

	return s.getOstiumSettingsByIDLocked(ctx, id)
}

// ListOstiumSettingsHistory returns snapshots newest-first with pagination.
func (s *Storage) ListOstiumSettingsHistory(ctx context.Context, offset, limit int) ([]OstiumSettingsRecord, error) {
	ctx = contextOrBackground(ctx)

	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ostiumSettingsColumns+`
		FROM ostium_settings
		ORDER BY created_at_utc DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ostium settings: %w", err)
	}
	defer rows.Close()

	var out []OstiumSettingsRecord
	for rows.Next() {
		rec, err := scanOstiumSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateOstiumSettings merges the provided fields over the snapshot and
// returns the updated record. sql.ErrNoRows when the id does not exist.
func (s *Storage) UpdateOstiumSettings(ctx context.Context, id int64, update OstiumSettingsUpdate) (OstiumSettingsRecord, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getOstiumSettingsByIDLocked(ctx, id)
	if err != nil {
		return OstiumSettingsRecord{}, err
	}

	if update.Enabled != nil {
		current.Enabled = *update.Enabled
	}
	if update.PrivateKeyEncrypted != nil {
		current.PrivateKeyEncrypted = *update.PrivateKeyEncrypted
	}
	if update.RPCURL != nil {
		current.RPCURL = *update.RPCURL
	}
	if update.Network != nil {
		current.Network = *update.Network
	}
	if update.Verbose != nil {
		current.Verbose = *update.Verbose
	}
	if update.SlippagePercentage != nil {
		current.SlippagePercentage = *update.SlippagePercentage
	}
	if update.DefaultFeePercentage != nil {
		current.DefaultFeePercentage = *update.DefaultFeePercentage
	}
	if update.MinFee != nil {
		current.MinFee = *update.MinFee
	}
	if update.MaxFee != nil {
		current.MaxFee = *update.MaxFee
	}
	if update.Timeout != nil {
		current.Timeout = *update.Timeout
	}
	if update.RetryAttempts != nil {
		current.RetryAttempts = *update.RetryAttempts
	}
	if update.RetryDelay != nil {
		current.RetryDelay = *update.RetryDelay
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE ostium_settings
		SET enabled = ?, private_key_encrypted = ?, rpc_url = ?, network = ?, verbose = ?,
		    slippage_percentage = ?, default_fee_percentage = ?, min_fee = ?, max_fee = ?,
		    timeout = ?, retry_attempts = ?, retry_delay = ?, updated_at_utc = ?
		WHERE id = ?`,
		boolToInt(current.Enabled), current.PrivateKeyEncrypted, current.RPCURL, current.Network,
		boolToInt(current.Verbose), current.SlippagePercentage, current.DefaultFeePercentage,
		current.MinFee, current.MaxFee, current.Timeout, current.RetryAttempts, current.RetryDelay,
		s.nowMilli(), id)
	if err != nil {
		return OstiumSettingsRecord{}, fmt.Errorf("update ostium settings %d: %w", id, err)
	}

	return s.getOstiumSettingsByIDLocked(ctx, id)
}
