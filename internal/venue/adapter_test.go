package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridbot/pkg/types"
)

func testAdapterServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ticker":
			json.NewEncoder(w).Encode(tickerWire{BestBid: "49990", BestAsk: "50010", LastPrice: "50000"})
		case "/depth":
			json.NewEncoder(w).Encode(depthWire{Bids: [][2]string{{"49990", "1"}}, Asks: [][2]string{{"50010", "1"}}})
		case "/balance":
			json.NewEncoder(w).Encode(map[string]string{"currency": "USD", "available": "1000", "total": "1000"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	srv := testAdapterServer(t)
	cfg := Config{RESTBaseURL: srv.URL, WSBookURL: "ws://127.0.0.1:0"}
	account := types.Account{AccountKey: "acct-1", APIKey: "key", SecretKey: "c2VjcmV0"}

	a, err := NewAdapter(context.Background(), cfg, account, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewAdapterRejectsEmptyBaseURL(t *testing.T) {
	_, err := NewAdapter(context.Background(), Config{}, types.Account{}, discardLogger())
	require.Error(t, err)
}

func TestAdapterGetTickerRoutesThroughAPIExecutor(t *testing.T) {
	a := newTestAdapter(t)

	ticker, err := a.GetTicker(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.Equal(t, "BTC-USD", ticker.Symbol)
	require.False(t, ticker.BestBid.IsZero()) // non-zero from REST fallback
}

func TestAdapterGetBalance(t *testing.T) {
	a := newTestAdapter(t)

	balance, err := a.GetBalance(context.Background(), "USD")
	require.NoError(t, err)
	require.Equal(t, "USD", balance.Currency)
}

func TestAdapterNormalizesSymbolBeforeDispatch(t *testing.T) {
	a := newTestAdapter(t)

	depth, err := a.GetDepth(context.Background(), "btc/usdt")
	require.NoError(t, err)
	require.Equal(t, "BTC-USD", depth.Symbol)
}

func TestAdapterSubmitAPITimesOutWhenDeadlineExceeded(t *testing.T) {
	a := newTestAdapter(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := a.submitAPI(ctx, "slow_op", time.Millisecond, func(ctx context.Context) (any, error) {
		select {
		case <-time.After(time.Second):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	require.Error(t, err)
}

func TestAdapterCloseIsIdempotentSafe(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.Close())
}
