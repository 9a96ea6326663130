package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/storage"
)

type fakeVendor struct {
	name     string
	created  int
	signed   []string
	createFn func(network string) (*provider.WalletInfo, error)
}

func (f *fakeVendor) Name() string                     { return f.name }
func (f *fakeVendor) Initialize(context.Context) error { return nil }

func (f *fakeVendor) CreateWallet(_ context.Context, network string) (*provider.WalletInfo, error) {
	f.created++
	if f.createFn != nil {
		return f.createFn(network)
	}
	return &provider.WalletInfo{
		ProviderWalletID: fmt.Sprintf("vw-%d", f.created),
		Address:          fmt.Sprintf("0xabc%d", f.created),
		Network:          network,
	}, nil
}

func (f *fakeVendor) SignTransaction(_ context.Context, providerWalletID, txData string) (string, error) {
	f.signed = append(f.signed, providerWalletID)
	return "signed:" + txData, nil
}

type fakeProviders struct {
	vendor *fakeVendor
}

func (f *fakeProviders) Wallet(context.Context, string) (provider.WalletProvider, error) {
	return f.vendor, nil
}

func newTestService(t *testing.T) (*Service, *fakeVendor, *storage.Storage) {
	t.Helper()

	st, err := storage.New(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	vendor := &fakeVendor{name: "privy"}
	svc := NewService(&fakeProviders{vendor: vendor}, st)
	return svc, vendor, st
}

func TestCreateWalletPersistsRecord(t *testing.T) {
	svc, vendor, st := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "", "base", "admin")
	require.NoError(t, err)
	require.Equal(t, 1, vendor.created)
	require.Equal(t, "privy", w.ProviderType)
	require.Equal(t, "vw-1", w.ProviderWalletID)
	require.Equal(t, "base", w.Network)
	require.True(t, w.IsActive)

	var meta walletMetadata
	require.NoError(t, json.Unmarshal(w.Metadata, &meta))
	require.NotEmpty(t, meta.Reference)
	require.Equal(t, "admin", meta.CreatedBy)

	stored, err := st.GetWalletByProviderID(ctx, "vw-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, w.ID, stored.ID)
}

func TestCreateWalletRequiresNetwork(t *testing.T) {
	svc, vendor, _ := newTestService(t)

	_, err := svc.CreateWallet(context.Background(), "", "", "")
	require.ErrorIs(t, err, ErrValidation)
	require.Zero(t, vendor.created)
}

func TestCreateWalletVendorError(t *testing.T) {
	svc, vendor, _ := newTestService(t)
	vendor.createFn = func(string) (*provider.WalletInfo, error) {
		return nil, errors.New("upstream down")
	}

	_, err := svc.CreateWallet(context.Background(), "", "base", "")
	require.ErrorContains(t, err, "upstream down")

	wallets, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, wallets)
}

func TestSignTransaction(t *testing.T) {
	svc, vendor, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "", "base", "")
	require.NoError(t, err)

	signed, err := svc.SignTransaction(ctx, w.ID, "0xdeadbeef")
	require.NoError(t, err)
	require.Equal(t, "signed:0xdeadbeef", signed)
	require.Equal(t, []string{w.ProviderWalletID}, vendor.signed)
}

func TestSignTransactionUnknownWallet(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.SignTransaction(context.Background(), 9999, "0x01")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSignTransactionDeactivatedWallet(t *testing.T) {
	svc, vendor, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "", "base", "")
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, w.ID))

	_, err = svc.SignTransaction(ctx, w.ID, "0x01")
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, vendor.signed)
}

func TestDeactivateHidesFromList(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	w1, err := svc.CreateWallet(ctx, "", "base", "")
	require.NoError(t, err)
	w2, err := svc.CreateWallet(ctx, "", "arbitrum", "")
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, w1.ID))

	wallets, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	require.Equal(t, w2.ID, wallets[0].ID)

	// Deactivated wallets stay retrievable by id.
	got, err := svc.Get(ctx, w1.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestDeactivateUnknownWallet(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Deactivate(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}
