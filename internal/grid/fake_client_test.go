package grid

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"gridbot/internal/venue"
	"gridbot/pkg/types"
)

// fakeClient is an in-memory venue.Client stub for strategy/registry tests.
// It is deliberately simple: orders are keyed by id, positions/tickers are
// set directly by the test, and market orders fill at once instead of resting.
type fakeClient struct {
	mu sync.Mutex

	ticker      types.Ticker
	position    types.Position
	openOrders  map[string]types.Order
	nextOrderID int
	placeErr    error
	cancelErr   error
}

var _ venue.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{openOrders: make(map[string]types.Order)}
}

func (f *fakeClient) GetTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticker, nil
}

func (f *fakeClient) GetDepth(ctx context.Context, symbol string) (types.Depth, error) {
	return types.Depth{Symbol: symbol}, nil
}

func (f *fakeClient) GetBalance(ctx context.Context, currency string) (types.Balance, error) {
	return types.Balance{Currency: currency}, nil
}

func (f *fakeClient) GetPosition(ctx context.Context, symbol string) (types.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func (f *fakeClient) PlaceOrder(ctx context.Context, req types.Order) (types.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return types.Order{}, f.placeErr
	}
	f.nextOrderID++
	req.OrderID = fmt.Sprintf("fake-%d", f.nextOrderID)
	if req.Type == types.OrderTypeMarket {
		req.Status = types.OrderFilled
		return req, nil
	}
	req.Status = types.OrderNew
	f.openOrders[req.OrderID] = req
	return req, nil
}

func (f *fakeClient) CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return types.Order{}, f.cancelErr
	}
	o, ok := f.openOrders[orderID]
	if !ok {
		return types.Order{}, fmt.Errorf("order not found: %s", orderID)
	}
	o.Status = types.OrderCanceled
	delete(f.openOrders, orderID)
	return o, nil
}

func (f *fakeClient) GetOpenOrders(ctx context.Context, symbol string, useCache bool) ([]types.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Order, 0, len(f.openOrders))
	for _, o := range f.openOrders {
		if symbol == "" || o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) setQuote(bid, ask decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticker = types.Ticker{BestBid: bid, BestAsk: ask}
}

func (f *fakeClient) setPosition(p types.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = p
}
