// stream.go implements the streaming leg of the hybrid depth source
// (spec.md §4.1): a per-symbol best-bid/best-ask subscription that
// auto-reconnects with exponential backoff, grounded on the teacher's
// internal/exchange/ws.go WSFeed.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	quoteBufferSize  = 64
)

// quoteUpdate is a single best-bid/best-ask tick for one symbol.
type quoteUpdate struct {
	symbol string
	bid    decimal.Decimal
	ask    decimal.Decimal
}

// bookStream manages a single WebSocket connection subscribed to every
// symbol the adapter has been asked to track. It handles connection
// lifecycle, subscription tracking, and automatic reconnection.
type bookStream struct {
	url string

	connMu sync.Mutex
	conn   *websocket.Conn

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	quoteCh chan quoteUpdate

	logger *slog.Logger
}

func newBookStream(wsURL string, logger *slog.Logger) *bookStream {
	return &bookStream{
		url:        wsURL,
		subscribed: make(map[string]bool),
		quoteCh:    make(chan quoteUpdate, quoteBufferSize),
		logger:     logger.With("component", "book_stream"),
	}
}

// Quotes returns a read-only channel of best-bid/best-ask ticks.
func (f *bookStream) Quotes() <-chan quoteUpdate { return f.quoteCh }

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled. Intended to run for the lifetime of the
// order-book executor (spec.md §4.1 "order-book executor").
func (f *bookStream) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("book stream disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Subscribe adds a symbol to the tracked set and, if connected, sends the
// subscription message immediately.
func (f *bookStream) Subscribe(symbol string) error {
	f.subscribedMu.Lock()
	f.subscribed[symbol] = true
	f.subscribedMu.Unlock()

	return f.writeJSON(map[string]any{"op": "subscribe", "symbols": []string{symbol}})
}

// Close gracefully closes the connection.
func (f *bookStream) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *bookStream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.resubscribeAll(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("book stream connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *bookStream) resubscribeAll() error {
	f.subscribedMu.RLock()
	symbols := make([]string, 0, len(f.subscribed))
	for s := range f.subscribed {
		symbols = append(symbols, s)
	}
	f.subscribedMu.RUnlock()

	if len(symbols) == 0 {
		return nil
	}
	return f.writeJSON(map[string]any{"op": "subscribe", "symbols": symbols})
}

type quoteWire struct {
	Symbol string `json:"symbol"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
}

func (f *bookStream) dispatchMessage(data []byte) {
	var wire quoteWire
	if err := json.Unmarshal(data, &wire); err != nil {
		f.logger.Debug("ignoring non-json stream message", "data", string(data))
		return
	}
	if wire.Symbol == "" {
		return
	}

	bid, err1 := decimal.NewFromString(wire.Bid)
	ask, err2 := decimal.NewFromString(wire.Ask)
	if err1 != nil || err2 != nil {
		return
	}

	select {
	case f.quoteCh <- quoteUpdate{symbol: wire.Symbol, bid: bid, ask: ask}:
	default:
		f.logger.Warn("quote channel full, dropping update", "symbol", wire.Symbol)
	}
}

func (f *bookStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *bookStream) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("book stream not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *bookStream) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("book stream not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
