package venue

import (
	"context"

	"gridbot/pkg/types"
)

// Client is the capability interface the Manager Triplet and Strategy
// Core depend on, satisfied by *Adapter. A single venue kind
// ("starknet-perp") implements it today; the interface exists so a second
// venue can be added without touching any caller (spec.md §9 "dynamic
// dispatch over venues").
type Client interface {
	GetTicker(ctx context.Context, symbol string) (types.Ticker, error)
	GetDepth(ctx context.Context, symbol string) (types.Depth, error)
	GetBalance(ctx context.Context, currency string) (types.Balance, error)
	GetPosition(ctx context.Context, symbol string) (types.Position, error)
	PlaceOrder(ctx context.Context, req types.Order) (types.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error)
	GetOpenOrders(ctx context.Context, symbol string, useCache bool) ([]types.Order, error)
	Close() error
}

var _ Client = (*Adapter)(nil)
