// Package managers implements the Manager Triplet (spec.md §4.3): three
// thin stateful wrappers per account sitting between the Strategy Core
// and a single internal/venue.Adapter.
//
// Grounded on original_source/core/order_manager.py,
// account_manager.py, and position_manager.py for the caching and
// degrade-on-error semantics; the sync-wrapper shape itself follows the
// teacher's internal/strategy/maker.go order bookkeeping.
package managers

import (
	"context"
	"sync"

	"gridbot/internal/venue"
	"gridbot/internal/venueerr"
	"gridbot/pkg/types"
)

// OrderManager forwards to the adapter, defaulting limit orders to
// post-only and maintaining a local cache of orders it has submitted.
type OrderManager struct {
	adapter venue.Client

	mu    sync.Mutex
	cache map[string]types.Order // order_id -> order, orders this manager placed
}

func NewOrderManager(adapter venue.Client) *OrderManager {
	return &OrderManager{adapter: adapter, cache: make(map[string]types.Order)}
}

// PlaceOrder defaults post_only=true for limit orders unless the caller
// explicitly set PostOnlyOverride.
func (m *OrderManager) PlaceOrder(ctx context.Context, req types.Order, postOnlyOverride *bool) (types.Order, error) {
	if req.Type == types.OrderTypeLimit {
		if postOnlyOverride != nil {
			req.PostOnly = *postOnlyOverride
		} else {
			req.PostOnly = true
		}
	}

	order, err := m.adapter.PlaceOrder(ctx, req)
	if err != nil {
		return types.Order{}, err
	}

	m.mu.Lock()
	m.cache[order.OrderID] = order
	m.mu.Unlock()
	return order, nil
}

// CancelOrder cancels a single order and drops it from the local cache.
func (m *OrderManager) CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error) {
	order, err := m.adapter.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		return types.Order{}, err
	}

	m.mu.Lock()
	delete(m.cache, orderID)
	m.mu.Unlock()
	return order, nil
}

// GetOrder returns a cached order if this manager has seen it, falling
// back to the venue's current open-orders view.
func (m *OrderManager) GetOrder(ctx context.Context, symbol, orderID string) (types.Order, error) {
	m.mu.Lock()
	cached, ok := m.cache[orderID]
	m.mu.Unlock()
	if ok {
		return cached, nil
	}

	open, err := m.adapter.GetOpenOrders(ctx, symbol, true)
	if err != nil {
		return types.Order{}, err
	}
	for _, o := range open {
		if o.OrderID == orderID {
			return o, nil
		}
	}
	return types.Order{}, venueerr.NotFound("get_order", "order not found: "+orderID)
}

// GetOpenOrders lists open orders, optionally filtered by symbol.
func (m *OrderManager) GetOpenOrders(ctx context.Context, symbol string, useCache bool) ([]types.Order, error) {
	return m.adapter.GetOpenOrders(ctx, symbol, useCache)
}

// CancelResult is the per-order outcome of a CancelAllOrders batch.
type CancelResult struct {
	OrderID string
	Err     error
}

// CancelAllOrders enumerates venue-open orders (optionally filtered by
// symbol) and cancels each, collecting per-order success/failure. A
// failure on one order never aborts the batch (spec.md §4.3).
func (m *OrderManager) CancelAllOrders(ctx context.Context, symbol string) []CancelResult {
	open, err := m.adapter.GetOpenOrders(ctx, symbol, false)
	if err != nil {
		return []CancelResult{{Err: err}}
	}

	results := make([]CancelResult, 0, len(open))
	for _, o := range open {
		_, cancelErr := m.CancelOrder(ctx, o.Symbol, o.OrderID)
		results = append(results, CancelResult{OrderID: o.OrderID, Err: cancelErr})
	}
	return results
}
