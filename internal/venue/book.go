// book.go implements the hybrid depth source per symbol (spec.md §4.1).
//
// State machine per symbol:
//
//	uninitialized  -- first query creates a streaming subscription
//	streaming-fresh -- quotes are changing within the last 30s
//	streaming-stale -- quotes haven't changed in 30s; this query and the
//	                    next fall back to a REST snapshot, and the next one
//	                    resets the symbol to uninitialized so the query after
//	                    it re-sends the subscribe message. The existing
//	                    subscription is not closed or unsubscribed.
//	disabled       -- 20 consecutive empty reads forced a recreate; the
//	                    symbol returns to uninitialized on the next query
package venue

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gridbot/pkg/types"
)

type bookState int

const (
	bookUninitialized bookState = iota
	bookStreamingFresh
	bookStreamingStale
	bookDisabled
)

const (
	staleThreshold     = 30 * time.Second
	emptyCountToDisable = 20
)

// symbolBook tracks one symbol's streaming state.
type symbolBook struct {
	state        bookState
	lastBid      decimal.Decimal
	lastAsk      decimal.Decimal
	lastChangeAt time.Time
	emptyCount   int
}

// bookSource owns the streaming subscription and per-symbol state used to
// answer depth queries, falling back to REST when the stream looks stalled.
type bookSource struct {
	stream *bookStream
	rest   *restClient

	mu     sync.Mutex
	books  map[string]*symbolBook
}

func newBookSource(stream *bookStream, rest *restClient) *bookSource {
	return &bookSource{
		stream: stream,
		rest:   rest,
		books:  make(map[string]*symbolBook),
	}
}

// consumeQuotes drains the stream's quote channel and updates per-symbol
// state. Intended to run for the lifetime of the order-book executor
// alongside bookStream.Run.
func (b *bookSource) consumeQuotes(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-b.stream.Quotes():
			if !ok {
				return
			}
			b.applyQuote(q)
		}
	}
}

func (b *bookSource) applyQuote(q quoteUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sb, ok := b.books[q.symbol]
	if !ok {
		sb = &symbolBook{state: bookUninitialized}
		b.books[q.symbol] = sb
	}

	if q.bid.IsZero() && q.ask.IsZero() {
		sb.emptyCount++
		if sb.emptyCount >= emptyCountToDisable {
			sb.state = bookDisabled
		}
		return
	}
	sb.emptyCount = 0

	if !sb.lastBid.Equal(q.bid) || !sb.lastAsk.Equal(q.ask) {
		sb.lastChangeAt = time.Now()
	}
	sb.lastBid = q.bid
	sb.lastAsk = q.ask
	sb.state = bookStreamingFresh
}

// Depth answers a depth query for symbol, using the streaming best-bid/ask
// when fresh and otherwise falling back to a REST snapshot (spec.md §4.1).
func (b *bookSource) Depth(ctx context.Context, symbol string) (types.Depth, error) {
	b.mu.Lock()
	sb, ok := b.books[symbol]
	if !ok {
		sb = &symbolBook{state: bookUninitialized}
		b.books[symbol] = sb
	}

	switch sb.state {
	case bookUninitialized, bookDisabled:
		b.mu.Unlock()
		if err := b.stream.Subscribe(symbol); err != nil {
			return b.rest.GetDepthSnapshot(ctx, symbol)
		}
		b.mu.Lock()
		sb.state = bookStreamingFresh
		sb.emptyCount = 0
		b.mu.Unlock()
		return b.rest.GetDepthSnapshot(ctx, symbol)

	case bookStreamingFresh:
		stale := !sb.lastChangeAt.IsZero() && time.Since(sb.lastChangeAt) > staleThreshold
		if stale {
			sb.state = bookStreamingStale
			b.mu.Unlock()
			return b.rest.GetDepthSnapshot(ctx, symbol)
		}
		depth := types.Depth{
			Symbol:    symbol,
			Bids:      []types.PriceLevel{{Price: sb.lastBid, Size: decimal.Zero}},
			Asks:      []types.PriceLevel{{Price: sb.lastAsk, Size: decimal.Zero}},
			Timestamp: sb.lastChangeAt,
		}
		b.mu.Unlock()
		return depth, nil

	case bookStreamingStale:
		b.mu.Unlock()
		depth, err := b.rest.GetDepthSnapshot(ctx, symbol)
		b.mu.Lock()
		sb.state = bookUninitialized // subscription is considered torn down; recreate next query
		b.mu.Unlock()
		if err != nil {
			return types.Depth{}, err
		}
		return depth, nil

	default:
		b.mu.Unlock()
		return b.rest.GetDepthSnapshot(ctx, symbol)
	}
}

// Ticker answers a ticker query, preferring fresh streaming quotes and
// falling back to a REST ticker fetch.
func (b *bookSource) Ticker(ctx context.Context, symbol string) (types.Ticker, error) {
	b.mu.Lock()
	sb, ok := b.books[symbol]
	fresh := ok && sb.state == bookStreamingFresh && !sb.lastBid.IsZero() && !sb.lastAsk.IsZero()
	var bid, ask decimal.Decimal
	if fresh {
		bid, ask = sb.lastBid, sb.lastAsk
	}
	b.mu.Unlock()

	if fresh {
		return types.Ticker{
			Symbol:    symbol,
			BestBid:   bid,
			BestAsk:   ask,
			Timestamp: time.Now(),
		}, nil
	}
	return b.rest.GetTicker(ctx, symbol)
}
