package managers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gridbot/pkg/types"
)

func TestPlaceOrderDefaultsPostOnlyForLimit(t *testing.T) {
	client := newFakeClient()
	m := NewOrderManager(client)

	order, err := m.PlaceOrder(context.Background(), types.Order{
		Symbol:   "BTC-USD",
		Side:     types.Buy,
		Type:     types.OrderTypeLimit,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(60000),
	}, nil)

	require.NoError(t, err)
	require.True(t, order.PostOnly)
}

func TestPlaceOrderRespectsExplicitOverride(t *testing.T) {
	client := newFakeClient()
	m := NewOrderManager(client)

	override := false
	order, err := m.PlaceOrder(context.Background(), types.Order{
		Symbol:   "BTC-USD",
		Side:     types.Buy,
		Type:     types.OrderTypeLimit,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(60000),
	}, &override)

	require.NoError(t, err)
	require.False(t, order.PostOnly)
}

func TestCancelAllOrdersContinuesPastIndividualFailures(t *testing.T) {
	client := newFakeClient()
	m := NewOrderManager(client)

	ctx := context.Background()
	_, err := m.PlaceOrder(ctx, types.Order{Symbol: "BTC-USD", Type: types.OrderTypeLimit, Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1)}, nil)
	require.NoError(t, err)
	_, err = m.PlaceOrder(ctx, types.Order{Symbol: "BTC-USD", Type: types.OrderTypeLimit, Price: decimal.NewFromInt(2), Quantity: decimal.NewFromInt(1)}, nil)
	require.NoError(t, err)

	client.cancelErr["order-1"] = errBoom

	results := m.CancelAllOrders(ctx, "BTC-USD")
	require.Len(t, results, 2)

	var failures, successes int
	for _, r := range results {
		if r.Err != nil {
			failures++
		} else {
			successes++
		}
	}
	require.Equal(t, 1, failures)
	require.Equal(t, 1, successes)
}

var errBoom = testErr("boom")

type testErr string

func (e testErr) Error() string { return string(e) }
