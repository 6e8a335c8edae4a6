package venue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbolRules(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"btc/usdt", "BTC-USD"},
		{"btc-usdt", "BTC-USD"},
		{"BTC", "BTC-USD"},
		{"eth-usd", "ETH-USD"},
		{"eth/usd", "ETH-USD"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, NormalizeSymbol(c.in, "USD"), "input %q", c.in)
	}
}

func TestNormalizeSymbolIdempotent(t *testing.T) {
	inputs := []string{"btc/usdt", "ETH-USD", "sol", "AVAX/USDT"}
	for _, in := range inputs {
		once := NormalizeSymbol(in, "USD")
		twice := NormalizeSymbol(once, "USD")
		require.Equal(t, once, twice, "normalize not idempotent for %q", in)
	}
}

func TestNormalizeSymbolDefaultQuoteFallback(t *testing.T) {
	require.Equal(t, "BTC-USD", NormalizeSymbol("btc", ""))
}
