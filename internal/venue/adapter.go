// Package venue implements the Venue Adapter (spec.md §4.1): a uniform
// operation set (ticker, depth, balance, position, place/cancel/list
// orders) over one perpetual venue, with two persistent background
// executors isolating the venue SDK's request/response and streaming
// sessions from synchronous callers.
package venue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gridbot/internal/venueerr"
	"gridbot/pkg/types"
)

const (
	initDeadline   = 60 * time.Second
	opDeadline     = 60 * time.Second
	cancelDeadline = 60 * time.Second
	mailboxSize    = 64
)

// job is a unit of work submitted to one of the adapter's two executors.
// The executor runs fn and sends its result to reply, a single-slot
// mailbox the caller waits on with a deadline.
type job struct {
	fn    func(ctx context.Context) (any, error)
	reply chan result
}

type result struct {
	val any
	err error
}

// Adapter is the venue-facing client for one account. Exactly one exists
// per "hot" account (spec.md §3 Venue Client invariant), constructed and
// owned by the Instance Pool.
type Adapter struct {
	account       types.Account
	defaultQuote  string
	rest          *restClient
	stream        *bookStream
	book          *bookSource
	orders        *ordersCache
	logger        *slog.Logger

	apiJobs   chan job // API executor mailbox: all SDK-driven request/response ops
	bookJobs  chan job // order-book executor mailbox: streaming subscription lifecycle

	cancel context.CancelFunc
	done   chan struct{}
}

// Config bundles the endpoints an Adapter needs to dial.
type Config struct {
	RESTBaseURL string
	WSBookURL   string
}

// NewAdapter constructs an Adapter and starts its two persistent
// executors. The executors run for the adapter's lifetime; Close stops
// them.
func NewAdapter(ctx context.Context, cfg Config, account types.Account, logger *slog.Logger) (*Adapter, error) {
	if cfg.RESTBaseURL == "" {
		return nil, venueerr.Configuration("new_adapter", "rest_base_url", "must not be empty")
	}

	auth := newStarkAuth(account.APIKey, account.SecretKey)
	rest := newRESTClient(cfg.RESTBaseURL, auth)
	stream := newBookStream(cfg.WSBookURL, logger)
	book := newBookSource(stream, rest)
	orders := newOrdersCache(rest)

	runCtx, cancel := context.WithCancel(context.Background())

	a := &Adapter{
		account:      account,
		defaultQuote: defaultQuoteFor(account),
		rest:         rest,
		stream:       stream,
		book:         book,
		orders:       orders,
		logger:       logger.With("account_key", account.AccountKey),
		apiJobs:      make(chan job, mailboxSize),
		bookJobs:     make(chan job, mailboxSize),
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	go a.runAPIExecutor(runCtx)
	go a.runBookExecutor(runCtx)

	return a, nil
}

func defaultQuoteFor(account types.Account) string {
	if account.DefaultMarket != "" {
		return account.DefaultMarket
	}
	return DefaultQuote
}

// runAPIExecutor serves all SDK-driven request/response operations on a
// single goroutine for the adapter's lifetime (spec.md §4.1 "API
// executor").
func (a *Adapter) runAPIExecutor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-a.apiJobs:
			val, err := j.fn(ctx)
			j.reply <- result{val: val, err: err}
		}
	}
}

// runBookExecutor hosts the long-lived streaming subscription. Unhandled
// connection timeouts are reported but never tear the loop down (spec.md
// §4.1 "order-book executor").
func (a *Adapter) runBookExecutor(ctx context.Context) {
	go func() {
		if err := a.stream.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("book stream exited", "error", err)
		}
	}()
	a.book.consumeQuotes(ctx)
	close(a.done)
}

// submitAPI runs fn on the API executor and waits up to deadline for a
// result. A missed deadline returns a timeout error; the job may still
// complete later, its effect absorbed by the adapter's caches.
func (a *Adapter) submitAPI(ctx context.Context, op string, deadline time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	j := job{fn: fn, reply: make(chan result, 1)}

	select {
	case a.apiJobs <- j:
	default:
		return nil, venueerr.Fatal(op, fmt.Errorf("api executor mailbox full"))
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case r := <-j.reply:
		return r.val, r.err
	case <-timer.C:
		return nil, venueerr.Connectivity(op, fmt.Errorf("deadline exceeded after %s", deadline))
	case <-ctx.Done():
		return nil, venueerr.Connectivity(op, ctx.Err())
	}
}

func (a *Adapter) normalize(symbol string) string {
	return NormalizeSymbol(symbol, a.defaultQuote)
}

// GetTicker returns the latest ticker for symbol.
func (a *Adapter) GetTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	symbol = a.normalize(symbol)
	v, err := a.submitAPI(ctx, "get_ticker", opDeadline, func(ctx context.Context) (any, error) {
		return a.book.Ticker(ctx, symbol)
	})
	if err != nil {
		return types.Ticker{}, err
	}
	return v.(types.Ticker), nil
}

// GetDepth returns the latest depth snapshot for symbol.
func (a *Adapter) GetDepth(ctx context.Context, symbol string) (types.Depth, error) {
	symbol = a.normalize(symbol)
	v, err := a.submitAPI(ctx, "get_depth", opDeadline, func(ctx context.Context) (any, error) {
		return a.book.Depth(ctx, symbol)
	})
	if err != nil {
		return types.Depth{}, err
	}
	return v.(types.Depth), nil
}

// GetBalance returns the balance for currency.
func (a *Adapter) GetBalance(ctx context.Context, currency string) (types.Balance, error) {
	v, err := a.submitAPI(ctx, "get_balance", opDeadline, func(ctx context.Context) (any, error) {
		return a.rest.GetBalance(ctx, currency)
	})
	if err != nil {
		return types.Balance{}, err
	}
	return v.(types.Balance), nil
}

// GetPosition returns the position snapshot for symbol.
func (a *Adapter) GetPosition(ctx context.Context, symbol string) (types.Position, error) {
	symbol = a.normalize(symbol)
	v, err := a.submitAPI(ctx, "get_position", opDeadline, func(ctx context.Context) (any, error) {
		return a.rest.GetPosition(ctx, symbol)
	})
	if err != nil {
		return types.Position{}, err
	}
	return v.(types.Position), nil
}

// PlaceOrder submits a new order and mutates the open-orders cache inline
// on success.
func (a *Adapter) PlaceOrder(ctx context.Context, req types.Order) (types.Order, error) {
	req.Symbol = a.normalize(req.Symbol)
	v, err := a.submitAPI(ctx, "place_order", opDeadline, func(ctx context.Context) (any, error) {
		return a.rest.PlaceOrder(ctx, req)
	})
	if err != nil {
		return types.Order{}, err
	}
	order := v.(types.Order)
	a.orders.put(order)
	return order, nil
}

// CancelOrder cancels an order and mutates the open-orders cache inline
// on success.
func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error) {
	symbol = a.normalize(symbol)
	v, err := a.submitAPI(ctx, "cancel_order", cancelDeadline, func(ctx context.Context) (any, error) {
		return a.rest.CancelOrder(ctx, symbol, orderID)
	})
	if err != nil {
		return types.Order{}, err
	}
	order := v.(types.Order)
	a.orders.remove(orderID)
	return order, nil
}

// GetOpenOrders returns open orders, optionally filtered by symbol.
// Returns a stale cache if refresh fails; propagates only if there is no
// cache and the refresh also fails (spec.md §4.1).
func (a *Adapter) GetOpenOrders(ctx context.Context, symbol string, useCache bool) ([]types.Order, error) {
	if symbol != "" {
		symbol = a.normalize(symbol)
	}
	v, err := a.submitAPI(ctx, "get_open_orders", opDeadline, func(ctx context.Context) (any, error) {
		return a.orders.Get(ctx, symbol, useCache)
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Order), nil
}

// Close stops the executors and closes the streaming connection; jobs
// still waiting in a mailbox are not run. Errors during close are logged,
// never returned, and every step still runs (spec.md §4.2 "failures in
// close are logged, not raised").
func (a *Adapter) Close() error {
	a.cancel()
	if err := a.stream.Close(); err != nil {
		a.logger.Warn("close book stream", "error", err)
	}
	select {
	case <-a.done:
	case <-time.After(5 * time.Second):
		a.logger.Warn("book executor did not shut down within grace period")
	}
	return nil
}
