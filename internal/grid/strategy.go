// strategy.go implements the stateful cadence loop around the pure ladder
// algorithm (spec.md §4.4 "Runtime cadence", "Stop semantics", "State
// machine"). Grounded on the teacher's internal/strategy/maker.go Run/
// quoteUpdate shape, generalized from Avellaneda-Stoikov quoting to the
// sliding-window grid rule.
package grid

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gridbot/internal/managers"
	"gridbot/internal/venue"
	"gridbot/pkg/types"
)

// State is one of the strategy's lifecycle states (spec.md §4.4 "State
// machine").
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateTerminal State = "terminal"
)

const cancelPause = 500 * time.Millisecond

// StopResult reports the outcome of a stop (spec.md §4.4 "Stop semantics").
type StopResult struct {
	OrdersCancelled int
	CancelErrors    []error
	ClosedPosition  bool
	CloseError      error
}

// Strategy drives one (account, symbol) grid instance. It owns no I/O of
// its own; order and position traffic goes through the Manager Triplet,
// and ticker reads go through client.
type Strategy struct {
	symbol string
	cfg    Config
	mgrs   *managers.Triplet
	client venue.Client // ticker/depth source; the Manager Triplet has no ticker manager
	logger *slog.Logger

	tickMu sync.Mutex // held for the whole of one Tick

	mu           sync.Mutex
	state        State
	lastOrderAt  time.Time
	workerCancel context.CancelFunc
	workerDone   chan struct{}
}

// New constructs a strategy instance in the stopped state. client
// supplies ticker/depth reads; mgrs supplies order/position state.
func New(symbol string, cfg Config, mgrs *managers.Triplet, client venue.Client, logger *slog.Logger) *Strategy {
	return &Strategy{
		symbol: symbol,
		cfg:    cfg,
		mgrs:   mgrs,
		client: client,
		state:  StateStopped,
		logger: logger.With("component", "grid_strategy", "symbol", symbol),
	}
}

// State returns the current lifecycle state.
func (s *Strategy) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start runs one reconciliation tick synchronously, then spawns the
// background cadence worker. Only valid from stopped.
func (s *Strategy) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return errNotStopped(s.state)
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.Tick(ctx)

	workerCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.workerCancel = cancel
	s.workerDone = make(chan struct{})
	s.mu.Unlock()

	go s.cadenceLoop(workerCtx)
	return nil
}

func (s *Strategy) cadenceLoop(ctx context.Context) {
	defer close(s.workerDone)

	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("tick panicked", "recover", r)
					}
				}()
				s.Tick(context.Background())
			}()
		}
	}
}

// Tick runs one reconciliation cycle (spec.md §4.4 "Per-tick algorithm").
// Safe to call directly (e.g. a forced tick from the Strategy Registry);
// not re-entrant against itself for this instance: concurrent calls run
// one after another.
func (s *Strategy) Tick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	symbol := s.symbol
	cfg := s.cfg
	s.mu.Unlock()

	snapshot, err := s.snapshotMarket(ctx, symbol)
	if err != nil {
		s.logger.Warn("snapshot failed, skipping tick", "error", err)
		return
	}

	position, err := s.mgrs.Positions.GetPosition(ctx, symbol)
	if err != nil {
		s.logger.Warn("position fetch failed, skipping tick", "error", err)
		return
	}

	plan := s.plan(cfg, snapshot, position.Quantity, snapshot.openOrders)

	s.applyCancels(ctx, symbol, plan.ToCancel)

	snapshot, err = s.snapshotMarket(ctx, symbol)
	if err != nil {
		s.logger.Warn("post-cancel snapshot failed, skipping placement", "error", err)
		return
	}
	finalPlan := s.plan(cfg, snapshot, position.Quantity, snapshot.openOrders)

	s.applyPlacements(ctx, symbol, finalPlan.ToPlaceBuys, types.Buy)
	s.applyPlacements(ctx, symbol, finalPlan.ToPlaceSells, types.Sell)
}

type marketSnapshot struct {
	mid, bid, ask decimal.Decimal
	halfWindow    decimal.Decimal
	openOrders    []types.Order
}

func (s *Strategy) snapshotMarket(ctx context.Context, symbol string) (marketSnapshot, error) {
	orders, err := s.mgrs.Orders.GetOpenOrders(ctx, symbol, true)
	if err != nil {
		return marketSnapshot{}, err
	}

	ticker, err := s.tickerFor(ctx, symbol)
	if err != nil {
		return marketSnapshot{}, err
	}

	mid := ticker.BestBid.Add(ticker.BestAsk).Div(two)
	halfWindow := mid.Mul(s.cfg.WindowPercent).Div(two)

	return marketSnapshot{
		mid:        mid,
		bid:        ticker.BestBid,
		ask:        ticker.BestAsk,
		halfWindow: halfWindow,
		openOrders: orders,
	}, nil
}

func (s *Strategy) tickerFor(ctx context.Context, symbol string) (types.Ticker, error) {
	return s.client.GetTicker(ctx, symbol)
}

func (s *Strategy) plan(cfg Config, snap marketSnapshot, positionQty decimal.Decimal, existing []types.Order) diffPlan {
	r := adjustRatios(cfg, positionQty)
	sellCount, buyCount := splitCounts(cfg.TotalOrders, r)
	sells, buys := buildLadder(ladderInputs{
		cfg: cfg, mid: snap.mid, bid: snap.bid, ask: snap.ask, halfWindow: snap.halfWindow,
		sellCount: sellCount, buyCount: buyCount,
	})
	return buildDiff(cfg, snap.mid, sells, buys, existing)
}

func (s *Strategy) applyCancels(ctx context.Context, symbol string, targets []cancelTarget) {
	for i, t := range targets {
		if i > 0 {
			time.Sleep(cancelPause)
		}
		orderID := t.OrderID
		if orderID == "" {
			orderID = s.findLiveOrder(ctx, symbol, t.Side, t.Price)
			if orderID == "" {
				continue
			}
		}
		if _, err := s.mgrs.Orders.CancelOrder(ctx, symbol, orderID); err != nil {
			s.logger.Warn("cancel failed", "order_id", orderID, "error", err)
		}
	}
}

func (s *Strategy) findLiveOrder(ctx context.Context, symbol string, side types.Side, price decimal.Decimal) string {
	open, err := s.mgrs.Orders.GetOpenOrders(ctx, symbol, true)
	if err != nil {
		return ""
	}
	for _, o := range open {
		if o.Side == side && o.Price.Equal(price) {
			return o.OrderID
		}
	}
	return ""
}

func (s *Strategy) applyPlacements(ctx context.Context, symbol string, prices []decimal.Decimal, side types.Side) {
	for _, price := range prices {
		s.waitCooldown()

		req := types.Order{
			Symbol:   symbol,
			Side:     side,
			Type:     types.OrderTypeLimit,
			Quantity: s.cfg.OrderSize,
			Price:    price,
			PostOnly: true,
		}
		if _, err := s.mgrs.Orders.PlaceOrder(ctx, req, nil); err != nil {
			s.logger.Warn("place order failed", "side", side, "price", price, "error", err)
			continue
		}

		s.mu.Lock()
		s.lastOrderAt = time.Now()
		s.mu.Unlock()
	}
}

func (s *Strategy) waitCooldown() {
	s.mu.Lock()
	last := s.lastOrderAt
	cooldown := s.cfg.OrderCooldown
	s.mu.Unlock()

	if last.IsZero() {
		return
	}
	elapsed := time.Since(last)
	if elapsed < cooldown {
		time.Sleep(cooldown - elapsed)
	}
}

// Stop signals the background worker, cancels every open order, and
// closes any residual position with a reduce-only market order (spec.md
// §4.4 "Stop semantics").
func (s *Strategy) Stop(ctx context.Context) StopResult {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return StopResult{}
	}
	s.state = StateStopping
	cancel := s.workerCancel
	done := s.workerDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.logger.Warn("cadence worker did not stop within deadline")
		}
	}

	result := StopResult{}
	cancelResults := s.mgrs.Orders.CancelAllOrders(ctx, s.symbol)
	for _, r := range cancelResults {
		if r.Err != nil {
			result.CancelErrors = append(result.CancelErrors, r.Err)
			continue
		}
		result.OrdersCancelled++
	}

	position, err := s.mgrs.Positions.GetPosition(ctx, s.symbol)
	if err != nil {
		result.CloseError = err
	} else if !position.Quantity.IsZero() {
		closeSide := types.Sell
		if position.Quantity.IsNegative() {
			closeSide = types.Buy
		}
		_, err := s.mgrs.Orders.PlaceOrder(ctx, types.Order{
			Symbol:     s.symbol,
			Side:       closeSide,
			Type:       types.OrderTypeMarket,
			Quantity:   position.Quantity.Abs(),
			ReduceOnly: true,
		}, nil)
		if err != nil {
			result.CloseError = err
		} else {
			result.ClosedPosition = true
		}
	}

	s.mu.Lock()
	s.state = StateStopped
	s.workerCancel = nil
	s.workerDone = nil
	s.mu.Unlock()

	return result
}

// Restart is only valid from a fully stopped state.
func (s *Strategy) Restart(ctx context.Context) error {
	if s.State() != StateStopped {
		return errNotStopped(s.State())
	}
	return s.Start(ctx)
}

// Terminate transitions to terminal, stopping first if running.
func (s *Strategy) Terminate(ctx context.Context) StopResult {
	var result StopResult
	if s.State() == StateRunning {
		result = s.Stop(ctx)
	}
	s.mu.Lock()
	s.state = StateTerminal
	s.mu.Unlock()
	return result
}

type stateError struct{ state State }

func (e stateError) Error() string { return "strategy is not stopped: " + string(e.state) }

func errNotStopped(state State) error { return stateError{state: state} }
