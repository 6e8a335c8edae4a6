// registry.go implements the Strategy Registry (spec.md §4.5): an
// in-memory map of opaque strategy_id to live Strategy instances.
// Grounded on the teacher's internal/engine/engine.go `slots` registry
// pattern, generalized from market-slot bookkeeping to grid-strategy
// lifecycle management, and on original_source's StrategyRegistry for
// the exact operation set (create-and-start, stop, restart, tick,
// status, delete).
package grid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"gridbot/internal/managers"
	"gridbot/internal/venue"
	"gridbot/pkg/types"
)

// Status is the external snapshot returned by the status endpoint and the
// websocket feed (spec.md §6 "Status snapshot").
type Status struct {
	StrategyID      string         `json:"strategy_id"`
	Running         bool           `json:"running"`
	Symbol          string         `json:"symbol"`
	OrderSize       string         `json:"order_size"`
	CurrentPrice    string         `json:"current_price"`
	Bid             string         `json:"bid"`
	Ask             string         `json:"ask"`
	SellOrdersCount int            `json:"sell_orders_count"`
	BuyOrdersCount  int            `json:"buy_orders_count"`
	ActiveOrders    int            `json:"active_orders"`
	SellOrders      []OrderSummary `json:"sell_orders"`
	BuyOrders       []OrderSummary `json:"buy_orders"`
	Position        PositionView   `json:"position"`
}

// OrderSummary is one row of the sell_orders/buy_orders status arrays.
type OrderSummary struct {
	ID    string `json:"id"`
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

// PositionView is the status snapshot's position sub-object.
type PositionView struct {
	Qty      string `json:"qty"`
	AvgPrice string `json:"avg_price"`
	UPnL     string `json:"upnl"`
	Side     string `json:"side"`
}

// Registry maps strategy_id to live Strategy instances (spec.md §4.5).
// A single mutex guards the map itself; per-instance lifecycle and
// reconciliation work happens outside the lock.
type Registry struct {
	logger *slog.Logger

	mu        sync.Mutex
	instances map[string]*Strategy
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("component", "strategy_registry"),
		instances: make(map[string]*Strategy),
	}
}

// CreateAndStart builds a new grid strategy, registers it, runs its first
// tick synchronously, and returns its opaque strategy_id (spec.md §6
// "POST /strategy/sliding-window-grid/start").
func (r *Registry) CreateAndStart(ctx context.Context, symbol string, cfg Config, mgrs *managers.Triplet, client venue.Client) (string, error) {
	id, err := newStrategyID()
	if err != nil {
		return "", fmt.Errorf("generate strategy_id: %w", err)
	}

	s := New(symbol, cfg, mgrs, client, r.logger)

	r.mu.Lock()
	r.instances[id] = s
	r.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		r.mu.Lock()
		delete(r.instances, id)
		r.mu.Unlock()
		return "", err
	}

	return id, nil
}

// Stop stops the named instance (spec.md §6 ".../{id}/stop").
func (r *Registry) Stop(ctx context.Context, id string) (StopResult, error) {
	s, err := r.get(id)
	if err != nil {
		return StopResult{}, err
	}
	return s.Stop(ctx), nil
}

// Restart restarts the named instance (spec.md §6 ".../{id}/start").
func (r *Registry) Restart(ctx context.Context, id string) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	return s.Restart(ctx)
}

// Tick forces one reconciliation cycle on the named instance (spec.md
// §6 ".../{id}/update", §4.5 "tick").
func (r *Registry) Tick(ctx context.Context, id string) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	s.Tick(ctx)
	return nil
}

// Status returns the status snapshot of the named instance (spec.md §6
// "Status snapshot").
func (r *Registry) Status(ctx context.Context, id string) (Status, error) {
	s, err := r.get(id)
	if err != nil {
		return Status{}, err
	}
	return s.snapshotStatus(ctx, id), nil
}

// List returns the strategy_ids of every registered instance (spec.md §6
// "GET /strategy/list").
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Delete stops the instance if running, then removes it from the
// registry (spec.md §4.5 "Deletion must invoke stop first if the
// instance is running").
func (r *Registry) Delete(ctx context.Context, id string) (StopResult, error) {
	s, err := r.get(id)
	if err != nil {
		return StopResult{}, err
	}

	result := s.Terminate(ctx)

	r.mu.Lock()
	delete(r.instances, id)
	r.mu.Unlock()

	return result, nil
}

func (r *Registry) get(id string) (*Strategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.instances[id]
	if !ok {
		return nil, errUnknownStrategy(id)
	}
	return s, nil
}

func newStrategyID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "grid_" + hex.EncodeToString(buf), nil
}

type unknownStrategyError struct{ id string }

func (e unknownStrategyError) Error() string { return "unknown strategy_id: " + e.id }

func errUnknownStrategy(id string) error { return unknownStrategyError{id: id} }

// snapshotStatus builds the status snapshot for s, reading current
// ticker/position/open-order state. Best-effort: a failed read leaves
// the corresponding fields zero-valued rather than failing the whole
// snapshot, matching the market-data degrade policy (spec.md §7).
func (s *Strategy) snapshotStatus(ctx context.Context, id string) Status {
	s.mu.Lock()
	symbol := s.symbol
	state := s.state
	orderSize := s.cfg.OrderSize
	s.mu.Unlock()

	status := Status{
		StrategyID: id,
		Running:    state == StateRunning,
		Symbol:     symbol,
		OrderSize:  orderSize.String(),
	}

	if ticker, err := s.tickerFor(ctx, symbol); err == nil {
		status.Bid = ticker.BestBid.String()
		status.Ask = ticker.BestAsk.String()
		if !ticker.Zero() {
			status.CurrentPrice = ticker.Mid().String()
		}
	}

	if orders, err := s.mgrs.Orders.GetOpenOrders(ctx, symbol, true); err == nil {
		status.SellOrders, status.BuyOrders = summarizeOrders(orders)
		status.SellOrdersCount = len(status.SellOrders)
		status.BuyOrdersCount = len(status.BuyOrders)
		status.ActiveOrders = len(orders)
	}

	if position, err := s.mgrs.Positions.GetPosition(ctx, symbol); err == nil {
		status.Position = PositionView{
			Qty:      position.Quantity.String(),
			AvgPrice: position.EntryPrice.String(),
			UPnL:     position.UnrealizedPnL.String(),
			Side:     string(position.Side),
		}
	}

	return status
}

// summarizeOrders splits open orders into sell/buy summaries, sells
// ascending by price and buys descending (spec.md §6 "Status snapshot").
func summarizeOrders(orders []types.Order) (sells, buys []OrderSummary) {
	for _, o := range orders {
		summary := OrderSummary{ID: o.OrderID, Price: o.Price.String(), Qty: o.Quantity.String()}
		if o.Side == types.Sell {
			sells = append(sells, summary)
		} else {
			buys = append(buys, summary)
		}
	}
	sort.Slice(sells, func(i, j int) bool {
		return lessDecimalString(sells[i].Price, sells[j].Price)
	})
	sort.Slice(buys, func(i, j int) bool {
		return lessDecimalString(buys[j].Price, buys[i].Price)
	})
	return sells, buys
}

func lessDecimalString(a, b string) bool {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return da.LessThan(db)
}
