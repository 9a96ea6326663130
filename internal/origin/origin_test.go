package origin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublicOriginWins(t *testing.T) {
	got := AllowedOrigins(":8080", "https://app.example.com")
	require.Equal(t, []string{"https://app.example.com"}, got)
}

func TestPublicOriginListNormalized(t *testing.T) {
	got := AllowedOrigins(":8080", "HTTPS://App.Example.com, https://admin.example.com;  ")
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, got)
}

func TestFallsBackToLocalOrigins(t *testing.T) {
	got := AllowedOrigins(":9090", "")
	require.Contains(t, got, DefaultOrigin)
	require.Contains(t, got, "http://localhost:9090")
	require.Contains(t, got, "http://127.0.0.1:9090")
}

func TestExplicitHostInListenAddr(t *testing.T) {
	got := AllowedOrigins("10.0.0.5:9090", "")
	require.Contains(t, got, "http://10.0.0.5:9090")
}

func TestInvalidPublicOriginIgnored(t *testing.T) {
	got := AllowedOrigins(":8080", "not-a-url")
	require.Contains(t, got, DefaultOrigin)
}

func TestWildcardBindSkipsHost(t *testing.T) {
	got := AllowedOrigins("0.0.0.0:8080", "")
	require.NotContains(t, got, "http://0.0.0.0:8080")
	require.Contains(t, got, "http://localhost:8080")
}
