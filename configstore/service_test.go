package configstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/internal/crypt"
	"github.com/marqetfi/tradegate/settings"
	"github.com/marqetfi/tradegate/storage"
)

func newTestDeps(t *testing.T) (*storage.Storage, *crypt.Cipher) {
	t.Helper()

	st, err := storage.New(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cipher, err := crypt.New("test-secret-key")
	require.NoError(t, err)
	return st, cipher
}

func TestGetAppConfigCoercion(t *testing.T) {
	st, cipher := newTestDeps(t)
	cfg := settings.Defaults()
	svc := NewService(st, cipher, &cfg)
	ctx := context.Background()

	cases := []struct {
		key, value, typ string
		want            any
	}{
		{"max_positions", "25", "int", 25},
		{"bad_int", "not-a-number", "int", 0},
		{"slippage", "1.5", "float", 1.5},
		{"bad_float", "oops", "float", 0.0},
		{"flag_on", "YES", "bool", true},
		{"flag_off", "nope", "bool", false},
		{"plain", "hello", "string", "hello"},
		{"bad_json", "{broken", "json", map[string]any{}},
	}
	for _, tc := range cases {
		_, err := st.InsertAppConfig(ctx, storage.AppConfigInput{
			Key: tc.key, Value: tc.value, Type: tc.typ, IsActive: true,
		})
		require.NoError(t, err)
	}

	for _, tc := range cases {
		got, err := svc.GetAppConfig(ctx, tc.key, "default")
		require.NoError(t, err, tc.key)
		require.Equal(t, tc.want, got, tc.key)
	}

	got, err := svc.GetAppConfig(ctx, "absent", "fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", got)
}

func TestGetAppConfigJSON(t *testing.T) {
	st, cipher := newTestDeps(t)
	svc := NewService(st, cipher, nil)
	ctx := context.Background()

	_, err := st.InsertAppConfig(ctx, storage.AppConfigInput{
		Key: "limits", Value: `{"max":5,"tags":["a"]}`, Type: "json", IsActive: true,
	})
	require.NoError(t, err)

	got, err := svc.GetAppConfig(ctx, "limits", nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"max": 5.0, "tags": []any{"a"}}, got)
}

func TestGetAppConfigDecrypts(t *testing.T) {
	st, cipher := newTestDeps(t)
	svc := NewService(st, cipher, nil)
	ctx := context.Background()

	enc, err := cipher.Encrypt("s3cret")
	require.NoError(t, err)

	_, err = st.InsertAppConfig(ctx, storage.AppConfigInput{
		Key: "api_key", Value: enc, Type: "string", IsEncrypted: true, IsActive: true,
	})
	require.NoError(t, err)

	got, err := svc.GetAppConfig(ctx, "api_key", "")
	require.NoError(t, err)
	require.Equal(t, "s3cret", got)
}

func TestNilStoreReturnsDefault(t *testing.T) {
	cipher, err := crypt.New("test-secret-key")
	require.NoError(t, err)
	svc := NewService(nil, cipher, nil)

	got, err := svc.GetAppConfig(context.Background(), "anything", 42)
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestGetAllAppConfigs(t *testing.T) {
	st, cipher := newTestDeps(t)
	svc := NewService(st, cipher, nil)
	ctx := context.Background()

	for _, in := range []storage.AppConfigInput{
		{Key: "a", Value: "1", Type: "int", Category: "trading", IsActive: true},
		{Key: "b", Value: "true", Type: "bool", Category: "security", IsActive: true},
		{Key: "c", Value: "off", Type: "string", Category: "trading", IsActive: false},
	} {
		_, err := st.InsertAppConfig(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.GetAllAppConfigs(ctx, "")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1, "b": true}, all)

	trading, err := svc.GetAllAppConfigs(ctx, "trading")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1}, trading)
}

func TestFallbackOrderIsStrict(t *testing.T) {
	st, cipher := newTestDeps(t)
	cfg := settings.Defaults()
	cfg.OstiumTimeout = 99
	svc := NewService(st, cipher, &cfg)
	ctx := context.Background()

	// No DB row: settings tier wins over the default.
	got := svc.GetConfigWithFallback(ctx, "OSTIUM_TIMEOUT", 7, true)
	require.Equal(t, 99, got)

	// DB row wins over settings.
	_, err := st.InsertAppConfig(ctx, storage.AppConfigInput{
		Key: "OSTIUM_TIMEOUT", Value: "15", Type: "int", IsActive: true,
	})
	require.NoError(t, err)
	got = svc.GetConfigWithFallback(ctx, "OSTIUM_TIMEOUT", 7, true)
	require.Equal(t, 15, got)

	// useDB=false skips the database tier entirely.
	got = svc.GetConfigWithFallback(ctx, "OSTIUM_TIMEOUT", 7, false)
	require.Equal(t, 99, got)

	// Key unknown everywhere: caller default.
	got = svc.GetConfigWithFallback(ctx, "NO_SUCH_KEY", "dflt", true)
	require.Equal(t, "dflt", got)
}

func TestGetProviderConfig(t *testing.T) {
	st, cipher := newTestDeps(t)
	svc := NewService(st, cipher, nil)
	ctx := context.Background()

	payload, err := svc.GetProviderConfig(ctx, "ostium", "trading")
	require.NoError(t, err)
	require.Nil(t, payload)

	_, err = st.InsertProviderConfig(ctx, storage.ProviderConfigInput{
		ProviderName: "ostium",
		ProviderType: "trading",
		ConfigData:   []byte(`{"rpc_url":"https://rpc.example"}`),
		IsActive:     true,
		Version:      1,
	})
	require.NoError(t, err)

	payload, err = svc.GetProviderConfig(ctx, "ostium", "trading")
	require.NoError(t, err)
	require.JSONEq(t, `{"rpc_url":"https://rpc.example"}`, string(payload))
}
