package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/settings"
)

func TestDefaultRegistriesTable(t *testing.T) {
	cfg := settings.Defaults()
	reg := DefaultRegistries(Deps{Settings: &cfg})

	require.Equal(t, []string{"hyperliquid", "lighter", "ostium"}, reg.Trading.Names())
	require.Equal(t, []string{"hyperliquid", "lighter", "ostium"}, reg.Price.Names())
	require.Equal(t, []string{"ostium"}, reg.Settlement.Names())
	require.Equal(t, []string{"lifi"}, reg.Swap.Names())
	require.Equal(t, []string{"auth0", "privy"}, reg.Auth.Names())
	require.Equal(t, []string{"dynamic", "privy"}, reg.Wallet.Names())
}
