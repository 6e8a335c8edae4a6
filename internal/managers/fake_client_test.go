package managers

import (
	"context"
	"fmt"

	"gridbot/internal/venue"
	"gridbot/pkg/types"
)

// fakeClient is an in-memory venue.Client stub for manager unit tests.
type fakeClient struct {
	balances   map[string]types.Balance
	positions  map[string]types.Position
	openOrders []types.Order
	placed     []types.Order

	getPositionErr error
	nextOrderID    int
	cancelErr      map[string]error
}

var _ venue.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		balances:  make(map[string]types.Balance),
		positions: make(map[string]types.Position),
		cancelErr: make(map[string]error),
	}
}

func (f *fakeClient) GetTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	return types.Ticker{Symbol: symbol}, nil
}

func (f *fakeClient) GetDepth(ctx context.Context, symbol string) (types.Depth, error) {
	return types.Depth{Symbol: symbol}, nil
}

func (f *fakeClient) GetBalance(ctx context.Context, currency string) (types.Balance, error) {
	return f.balances[currency], nil
}

func (f *fakeClient) GetPosition(ctx context.Context, symbol string) (types.Position, error) {
	if f.getPositionErr != nil {
		return types.Position{}, f.getPositionErr
	}
	return f.positions[symbol], nil
}

func (f *fakeClient) PlaceOrder(ctx context.Context, req types.Order) (types.Order, error) {
	f.nextOrderID++
	req.OrderID = fmt.Sprintf("order-%d", f.nextOrderID)
	req.Status = types.OrderNew
	f.placed = append(f.placed, req)
	f.openOrders = append(f.openOrders, req)
	return req, nil
}

func (f *fakeClient) CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error) {
	if err, ok := f.cancelErr[orderID]; ok && err != nil {
		return types.Order{}, err
	}
	for i, o := range f.openOrders {
		if o.OrderID == orderID {
			o.Status = types.OrderCanceled
			f.openOrders = append(f.openOrders[:i], f.openOrders[i+1:]...)
			return o, nil
		}
	}
	return types.Order{}, fmt.Errorf("order not found: %s", orderID)
}

func (f *fakeClient) GetOpenOrders(ctx context.Context, symbol string, useCache bool) ([]types.Order, error) {
	if symbol == "" {
		return append([]types.Order(nil), f.openOrders...), nil
	}
	out := make([]types.Order, 0)
	for _, o := range f.openOrders {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeClient) Close() error { return nil }
