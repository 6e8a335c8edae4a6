package managers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gridbot/internal/venueerr"
	"gridbot/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPositionManagerCachesSuccess(t *testing.T) {
	client := newFakeClient()
	client.positions["BTC-USD"] = types.Position{Symbol: "BTC-USD", Quantity: decimal.NewFromInt(5), Side: types.PositionLong}
	m := NewPositionManager(client, discardLogger())

	pos, err := m.GetPosition(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(5).Equal(pos.Quantity))
}

func TestPositionManagerDegradesToLastKnownOnError(t *testing.T) {
	client := newFakeClient()
	client.positions["BTC-USD"] = types.Position{Symbol: "BTC-USD", Quantity: decimal.NewFromInt(3), Side: types.PositionLong}
	m := NewPositionManager(client, discardLogger())

	_, err := m.GetPosition(context.Background(), "BTC-USD")
	require.NoError(t, err)

	client.getPositionErr = venueerr.Connectivity("get_position", errBoom)
	pos, err := m.GetPosition(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(3).Equal(pos.Quantity))
}

func TestPositionManagerDegradesToEmptyWithNoCache(t *testing.T) {
	client := newFakeClient()
	client.getPositionErr = venueerr.Connectivity("get_position", errBoom)
	m := NewPositionManager(client, discardLogger())

	pos, err := m.GetPosition(context.Background(), "ETH-USD")
	require.NoError(t, err)
	require.True(t, pos.Quantity.IsZero())
	require.Equal(t, types.PositionNone, pos.Side)
}
