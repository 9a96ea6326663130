package configstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/storage"
)

func TestCreateAppConfigEncryptsValue(t *testing.T) {
	st, cipher := newTestDeps(t)
	admin := NewAdminService(st, cipher)
	ctx := context.Background()

	created, err := admin.CreateAppConfig(ctx, storage.AppConfigInput{
		Key:         "vendor_api_key",
		Value:       "plaintext-secret",
		Type:        "string",
		IsEncrypted: true,
		IsActive:    true,
	})
	require.NoError(t, err)
	require.NotEqual(t, "plaintext-secret", created.Value)

	plain, err := cipher.Decrypt(created.Value)
	require.NoError(t, err)
	require.Equal(t, "plaintext-secret", plain)
}

func TestUpdateAppConfigReencrypts(t *testing.T) {
	st, cipher := newTestDeps(t)
	admin := NewAdminService(st, cipher)
	ctx := context.Background()

	created, err := admin.CreateAppConfig(ctx, storage.AppConfigInput{
		Key: "vendor_api_key", Value: "v1", Type: "string", IsEncrypted: true, IsActive: true,
	})
	require.NoError(t, err)

	newValue := "v2"
	updated, err := admin.UpdateAppConfig(ctx, created.ID, storage.AppConfigUpdate{Value: &newValue})
	require.NoError(t, err)
	require.NotEqual(t, "v2", updated.Value)

	plain, err := cipher.Decrypt(updated.Value)
	require.NoError(t, err)
	require.Equal(t, "v2", plain)
}

func TestUpdateAppConfigNotFound(t *testing.T) {
	st, cipher := newTestDeps(t)
	admin := NewAdminService(st, cipher)

	v := "x"
	_, err := admin.UpdateAppConfig(context.Background(), 999, storage.AppConfigUpdate{Value: &v})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProviderConfigVersionsAndActivation(t *testing.T) {
	st, cipher := newTestDeps(t)
	admin := NewAdminService(st, cipher)
	ctx := context.Background()

	first, err := admin.CreateProviderConfig(ctx, storage.ProviderConfigInput{
		ProviderName: "ostium",
		ProviderType: "trading",
		ConfigData:   []byte(`{"a":1}`),
	}, true)
	require.NoError(t, err)
	require.EqualValues(t, 1, first.Version)
	require.True(t, first.IsActive)

	second, err := admin.CreateProviderConfig(ctx, storage.ProviderConfigInput{
		ProviderName: "ostium",
		ProviderType: "trading",
		ConfigData:   []byte(`{"a":2}`),
	}, true)
	require.NoError(t, err)
	require.EqualValues(t, 2, second.Version)
	require.True(t, second.IsActive)

	// The first snapshot flipped inactive: single-active invariant.
	old, err := st.GetProviderConfigByID(ctx, first.ID)
	require.NoError(t, err)
	require.False(t, old.IsActive)

	active, err := st.GetActiveProviderConfig(ctx, "ostium", "trading")
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)
}

func TestCreateProviderConfigWithoutActivation(t *testing.T) {
	st, cipher := newTestDeps(t)
	admin := NewAdminService(st, cipher)
	ctx := context.Background()

	first, err := admin.CreateProviderConfig(ctx, storage.ProviderConfigInput{
		ProviderName: "lifi", ProviderType: "swap", ConfigData: []byte(`{}`),
	}, true)
	require.NoError(t, err)

	draft, err := admin.CreateProviderConfig(ctx, storage.ProviderConfigInput{
		ProviderName: "lifi", ProviderType: "swap", ConfigData: []byte(`{"v":2}`),
	}, false)
	require.NoError(t, err)
	require.EqualValues(t, 2, draft.Version)
	require.False(t, draft.IsActive)

	// The previously active snapshot stays active.
	active, err := st.GetActiveProviderConfig(ctx, "lifi", "swap")
	require.NoError(t, err)
	require.Equal(t, first.ID, active.ID)
}

func TestActivateProviderConfig(t *testing.T) {
	st, cipher := newTestDeps(t)
	admin := NewAdminService(st, cipher)
	ctx := context.Background()

	first, err := admin.CreateProviderConfig(ctx, storage.ProviderConfigInput{
		ProviderName: "lighter", ProviderType: "trading", ConfigData: []byte(`{}`),
	}, true)
	require.NoError(t, err)
	second, err := admin.CreateProviderConfig(ctx, storage.ProviderConfigInput{
		ProviderName: "lighter", ProviderType: "trading", ConfigData: []byte(`{}`),
	}, false)
	require.NoError(t, err)

	activated, err := admin.ActivateProviderConfig(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, activated.IsActive)

	old, err := st.GetProviderConfigByID(ctx, first.ID)
	require.NoError(t, err)
	require.False(t, old.IsActive)

	// Activating the active row again is a no-op.
	again, err := admin.ActivateProviderConfig(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, again.IsActive)

	_, err = admin.ActivateProviderConfig(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfigViewMasksEncrypted(t *testing.T) {
	st, cipher := newTestDeps(t)
	admin := NewAdminService(st, cipher)
	ctx := context.Background()

	created, err := admin.CreateAppConfig(ctx, storage.AppConfigInput{
		Key: "token", Value: "hunter2", Type: "string", IsEncrypted: true, IsActive: true,
	})
	require.NoError(t, err)

	masked, err := admin.ConfigView(created, false)
	require.NoError(t, err)
	require.Equal(t, EncryptedPlaceholder, masked["value"])

	revealed, err := admin.ConfigView(created, true)
	require.NoError(t, err)
	require.Equal(t, "hunter2", revealed["value"])
}
