// orderscache.go implements the open-orders cache (spec.md §4.1): a 5s TTL
// cache that place/cancel mutate inline, so the common case of "did my own
// action land" never waits on a refresh round-trip.
package venue

import (
	"context"
	"sync"
	"time"

	"gridbot/pkg/types"
)

const ordersCacheTTL = 5 * time.Second

// ordersCache holds the most recently known open orders of the whole
// account, keyed by order ID. Get replaces the whole set on a refresh;
// put/remove update it inline on place/cancel.
type ordersCache struct {
	mu        sync.Mutex
	rest      *restClient
	orders    map[string]types.Order // by order ID
	fetchedAt time.Time
}

func newOrdersCache(rest *restClient) *ordersCache {
	return &ordersCache{rest: rest, orders: make(map[string]types.Order)}
}

func (c *ordersCache) fresh() bool {
	return !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < ordersCacheTTL
}

// Get returns open orders, optionally filtered by symbol. It refreshes
// from the venue if the cache is stale, unless useCache is false in which
// case it always refreshes. On a failed refresh it returns the (possibly
// stale) cache instead of propagating the error, unless the cache has
// never been populated at all.
func (c *ordersCache) Get(ctx context.Context, symbol string, useCache bool) ([]types.Order, error) {
	c.mu.Lock()
	needsRefresh := !useCache || !c.fresh()
	hadData := len(c.orders) > 0 || !c.fetchedAt.IsZero()
	c.mu.Unlock()

	if needsRefresh {
		fresh, err := c.rest.GetOpenOrders(ctx, "")
		if err != nil {
			if hadData {
				return c.snapshot(symbol), nil
			}
			return nil, err
		}
		c.replace(fresh)
	}
	return c.snapshot(symbol), nil
}

func (c *ordersCache) snapshot(symbol string) []types.Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.Order, 0, len(c.orders))
	for _, o := range c.orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if !o.Status.IsOpen() {
			continue
		}
		out = append(out, o)
	}
	return out
}

func (c *ordersCache) replace(orders []types.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orders = make(map[string]types.Order, len(orders))
	for _, o := range orders {
		c.orders[o.OrderID] = o
	}
	c.fetchedAt = time.Now()
}

// put inserts or updates a single order, used by place/cancel to keep the
// cache coherent without waiting for the next refresh.
func (c *ordersCache) put(o types.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.orders == nil {
		c.orders = make(map[string]types.Order)
	}
	c.orders[o.OrderID] = o
	c.fetchedAt = time.Now()
}

// remove drops an order from the cache, used after a confirmed cancel.
func (c *ordersCache) remove(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, orderID)
	c.fetchedAt = time.Now()
}
