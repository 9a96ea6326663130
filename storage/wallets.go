package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Wallet is one vendor-custodied wallet record. ProviderWalletID is the
// vendor's identifier and is globally unique.
type Wallet struct {
	ID               int64
	ProviderType     string
	ProviderWalletID string
	Address          string
	Network          string
	IsActive         bool
	Metadata         json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WalletInput carries the fields for a new wallet record.
type WalletInput struct {
	ProviderType     string
	ProviderWalletID string
	Address          string
	Network          string
	Metadata         json.RawMessage
}

const walletColumns = `id, provider_type, provider_wallet_id, wallet_address, network,
	is_active, metadata, created_at_utc, updated_at_utc`

func scanWallet(row interface{ Scan(...any) error }) (Wallet, error) {
	var (
		w        Wallet
		active   int64
		metadata string
		created  int64
		updated  int64
	)
	err := row.Scan(&w.ID, &w.ProviderType, &w.ProviderWalletID, &w.Address, &w.Network,
		&active, &metadata, &created, &updated)
	if err != nil {
		return Wallet{}, err
	}
	w.IsActive = active != 0
	w.Metadata = json.RawMessage(metadata)
	w.CreatedAt = fromMilli(created)
	w.UpdatedAt = fromMilli(updated)
	return w, nil
}

// InsertWallet stores a new wallet record and returns it.
func (s *Storage) InsertWallet(ctx context.Context, input WalletInput) (Wallet, error) {
	ctx = contextOrBackground(ctx)

	if len(input.Metadata) == 0 {
		input.Metadata = json.RawMessage(`{}`)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets
			(provider_type, provider_wallet_id, wallet_address, network,
			 is_active, metadata, created_at_utc, updated_at_utc)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
		input.ProviderType, input.ProviderWalletID, input.Address, input.Network,
		string(input.Metadata), now, now)
	if err != nil {
		return Wallet{}, fmt.Errorf("insert wallet %q: %w", input.ProviderWalletID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Wallet{}, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = ?`, id)
	return scanWallet(row)
}

// GetWallet returns the wallet record with the given local id.
func (s *Storage) GetWallet(ctx context.Context, id int64) (Wallet, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = ?`, id)
	w, err := scanWallet(row)
	if err != nil {
		return Wallet{}, fmt.Errorf("get wallet %d: %w", id, err)
	}
	return w, nil
}

// GetWalletByProviderID returns the record for the vendor wallet id, or nil.
func (s *Storage) GetWalletByProviderID(ctx context.Context, providerWalletID string) (*Wallet, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE provider_wallet_id = ?`, providerWalletID)

	w, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet %q: %w", providerWalletID, err)
	}
	return &w, nil
}

// ListWallets returns active wallets, optionally filtered by vendor.
func (s *Storage) ListWallets(ctx context.Context, providerType string) ([]Wallet, error) {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE is_active = 1`
	args := []any{}
	if providerType != "" {
		query += ` AND provider_type = ?`
		args = append(args, providerType)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SetWalletActive flips the active flag on one wallet record.
func (s *Storage) SetWalletActive(ctx context.Context, id int64, active bool) error {
	ctx = contextOrBackground(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE wallets SET is_active = ?, updated_at_utc = ? WHERE id = ?`,
		boolToInt(active), s.nowMilli(), id)
	if err != nil {
		return fmt.Errorf("set wallet %d active=%t: %w", id, active, err)
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
