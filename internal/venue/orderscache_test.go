package venue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridbot/pkg/types"
)

func TestOrdersCachePutAndRemove(t *testing.T) {
	c := newOrdersCache(nil)

	c.put(types.Order{OrderID: "1", Symbol: "BTC-USD", Status: types.OrderNew})
	c.put(types.Order{OrderID: "2", Symbol: "ETH-USD", Status: types.OrderNew})

	open := c.snapshot("")
	require.Len(t, open, 2)

	c.remove("1")
	open = c.snapshot("")
	require.Len(t, open, 1)
	require.Equal(t, "2", open[0].OrderID)
}

func TestOrdersCacheFreshness(t *testing.T) {
	c := newOrdersCache(nil)
	require.False(t, c.fresh())

	c.put(types.Order{OrderID: "1", Status: types.OrderNew})
	require.True(t, c.fresh())

	c.fetchedAt = time.Now().Add(-ordersCacheTTL - time.Second)
	require.False(t, c.fresh())
}

func TestOrdersCachePutExtendsTTL(t *testing.T) {
	c := newOrdersCache(nil)
	c.put(types.Order{OrderID: "1", Status: types.OrderNew})
	c.fetchedAt = time.Now().Add(-ordersCacheTTL - time.Second)
	require.False(t, c.fresh())

	c.put(types.Order{OrderID: "2", Status: types.OrderNew})
	require.True(t, c.fresh(), "a mutating put should refresh the TTL window")
}

func TestOrdersCacheRemoveExtendsTTL(t *testing.T) {
	c := newOrdersCache(nil)
	c.put(types.Order{OrderID: "1", Status: types.OrderNew})
	c.fetchedAt = time.Now().Add(-ordersCacheTTL - time.Second)
	require.False(t, c.fresh())

	c.remove("1")
	require.True(t, c.fresh(), "a mutating remove should refresh the TTL window")
}

func TestOrdersCacheFiltersFilledOrders(t *testing.T) {
	c := newOrdersCache(nil)
	c.put(types.Order{OrderID: "1", Symbol: "BTC-USD", Status: types.OrderFilled})
	c.put(types.Order{OrderID: "2", Symbol: "BTC-USD", Status: types.OrderNew})

	open := c.snapshot("BTC-USD")
	require.Len(t, open, 1)
	require.Equal(t, "2", open[0].OrderID)
}
