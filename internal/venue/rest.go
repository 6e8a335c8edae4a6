// rest.go implements the REST leg of the Venue Adapter (spec.md §4.1):
// ticker, depth snapshot, balance, position, and order place/cancel/list.
//
// Ticker, depth, place and cancel requests are rate-limited via
// per-category TokenBuckets; balance, position and open-order reads are
// not. Every request is automatically retried on transport errors and 5xx
// responses, following the teacher's internal/exchange/client.go shape.
package venue

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"gridbot/internal/venueerr"
	"gridbot/pkg/types"
)

// restClient is the REST half of a venue session. It holds no streaming
// state; that lives in stream.go and book.go.
type restClient struct {
	http *resty.Client
	rl   *RateLimiter
	auth *starkAuth
}

func newRESTClient(baseURL string, auth *starkAuth) *restClient {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &restClient{http: http, rl: NewRateLimiter(), auth: auth}
}

type tickerWire struct {
	LastPrice   string `json:"last_price"`
	BestBid     string `json:"best_bid"`
	BestBidSize string `json:"best_bid_size"`
	BestAsk     string `json:"best_ask"`
	BestAskSize string `json:"best_ask_size"`
	Volume24h   string `json:"volume_24h"`
}

// GetTicker fetches the latest ticker snapshot for a symbol.
func (c *restClient) GetTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.Ticker{}, venueerr.Connectivity("get_ticker", err)
	}

	var wire tickerWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&wire).
		Get("/ticker")
	if err != nil {
		return types.Ticker{}, venueerr.Connectivity("get_ticker", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Ticker{}, venueerr.VenueReject("get_ticker", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	return types.Ticker{
		Symbol:      symbol,
		LastPrice:   parseDecimal(wire.LastPrice),
		BestBid:     parseDecimal(wire.BestBid),
		BestBidSize: parseDecimal(wire.BestBidSize),
		BestAsk:     parseDecimal(wire.BestAsk),
		BestAskSize: parseDecimal(wire.BestAskSize),
		Volume24h:   parseDecimal(wire.Volume24h),
		Timestamp:   time.Now(),
	}, nil
}

type depthWire struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

// GetDepthSnapshot fetches a REST order-book snapshot, used as the
// fallback leg of the hybrid depth source (spec.md §4.1).
func (c *restClient) GetDepthSnapshot(ctx context.Context, symbol string) (types.Depth, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.Depth{}, venueerr.Connectivity("get_depth", err)
	}

	var wire depthWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&wire).
		Get("/depth")
	if err != nil {
		return types.Depth{}, venueerr.Connectivity("get_depth", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Depth{}, venueerr.VenueReject("get_depth", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	return types.Depth{
		Symbol:    symbol,
		Bids:      toLevels(wire.Bids),
		Asks:      toLevels(wire.Asks),
		Timestamp: time.Now(),
	}, nil
}

// GetBalance fetches the balance for a single currency.
func (c *restClient) GetBalance(ctx context.Context, currency string) (types.Balance, error) {
	headers, err := c.auth.signedHeaders("GET", "/balance", "")
	if err != nil {
		return types.Balance{}, venueerr.Configuration("get_balance", "signing", err.Error())
	}

	var wire struct {
		Available string `json:"available"`
		Frozen    string `json:"frozen"`
		Total     string `json:"total"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("currency", currency).
		SetResult(&wire).
		Get("/balance")
	if err != nil {
		return types.Balance{}, venueerr.Connectivity("get_balance", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Balance{}, venueerr.VenueReject("get_balance", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	return types.Balance{
		Currency:  currency,
		Available: parseDecimal(wire.Available),
		Frozen:    parseDecimal(wire.Frozen),
		Total:     parseDecimal(wire.Total),
	}, nil
}

// GetPosition fetches the position snapshot for a symbol.
func (c *restClient) GetPosition(ctx context.Context, symbol string) (types.Position, error) {
	headers, err := c.auth.signedHeaders("GET", "/position", "")
	if err != nil {
		return types.Position{}, venueerr.Configuration("get_position", "signing", err.Error())
	}

	var wire struct {
		Quantity      string `json:"quantity"`
		EntryPrice    string `json:"entry_price"`
		UnrealizedPnL string `json:"unrealized_pnl"`
		Side          string `json:"side"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		SetResult(&wire).
		Get("/position")
	if err != nil {
		return types.Position{}, venueerr.Connectivity("get_position", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Position{}, venueerr.VenueReject("get_position", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	qty := parseDecimal(wire.Quantity)
	side := types.PositionSide(wire.Side)
	if side == "" {
		switch {
		case qty.IsPositive():
			side = types.PositionLong
		case qty.IsNegative():
			side = types.PositionShort
		default:
			side = types.PositionNone
		}
	}

	// Some venues report quantity as an unsigned magnitude and carry
	// direction only in side; fold that into the sign so Quantity always
	// matches the documented invariant (negative for shorts).
	if side == types.PositionShort && qty.IsPositive() {
		qty = qty.Neg()
	}

	return types.Position{
		Symbol:        symbol,
		Quantity:      qty,
		EntryPrice:    parseDecimal(wire.EntryPrice),
		UnrealizedPnL: parseDecimal(wire.UnrealizedPnL),
		Side:          side,
	}, nil
}

type placeOrderRequest struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Quantity   string `json:"quantity"`
	Price      string `json:"price,omitempty"`
	PostOnly   bool   `json:"post_only"`
	ReduceOnly bool   `json:"reduce_only"`
}

type orderWire struct {
	OrderID      string `json:"order_id"`
	Symbol       string `json:"symbol"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	Quantity     string `json:"quantity"`
	Price        string `json:"price"`
	PostOnly     bool   `json:"post_only"`
	ReduceOnly   bool   `json:"reduce_only"`
	Status       string `json:"status"`
	FilledQty    string `json:"filled_qty"`
	AvgFillPrice string `json:"avg_fill_price"`
}

func (w orderWire) toOrder() types.Order {
	return types.Order{
		OrderID:      w.OrderID,
		Symbol:       w.Symbol,
		Side:         types.Side(w.Side),
		Type:         types.OrderType(w.Type),
		Quantity:     parseDecimal(w.Quantity),
		Price:        parseDecimal(w.Price),
		PostOnly:     w.PostOnly,
		ReduceOnly:   w.ReduceOnly,
		Status:       types.OrderStatus(w.Status),
		FilledQty:    parseDecimal(w.FilledQty),
		AvgFillPrice: parseDecimal(w.AvgFillPrice),
		UpdatedAt:    time.Now(),
	}
}

// PlaceOrder submits a new order. Limit orders default to post_only unless
// the caller explicitly overrides (enforced one layer up, in managers.OrderManager).
func (c *restClient) PlaceOrder(ctx context.Context, req types.Order) (types.Order, error) {
	if req.Type == types.OrderTypeLimit && req.Price.IsZero() {
		return types.Order{}, venueerr.Validation("place_order", "limit order requires a price")
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return types.Order{}, venueerr.Connectivity("place_order", err)
	}

	body := placeOrderRequest{
		Symbol:     req.Symbol,
		Side:       string(req.Side),
		Type:       string(req.Type),
		Quantity:   req.Quantity.String(),
		PostOnly:   req.PostOnly,
		ReduceOnly: req.ReduceOnly,
	}
	if req.Type == types.OrderTypeLimit {
		body.Price = req.Price.String()
	}

	headers, err := c.auth.signedHeaders("POST", "/orders", "")
	if err != nil {
		return types.Order{}, venueerr.Configuration("place_order", "signing", err.Error())
	}

	var wire orderWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		SetResult(&wire).
		Post("/orders")
	if err != nil {
		return types.Order{}, venueerr.Connectivity("place_order", err)
	}
	if resp.StatusCode() == http.StatusBadRequest {
		return types.Order{}, venueerr.VenueReject("place_order", resp.String())
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Order{}, venueerr.VenueReject("place_order", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	return wire.toOrder(), nil
}

// CancelOrder cancels a single resting order by id.
func (c *restClient) CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error) {
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return types.Order{}, venueerr.Connectivity("cancel_order", err)
	}

	headers, err := c.auth.signedHeaders("DELETE", "/orders/"+orderID, "")
	if err != nil {
		return types.Order{}, venueerr.Configuration("cancel_order", "signing", err.Error())
	}

	var wire orderWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		SetResult(&wire).
		Delete("/orders/" + orderID)
	if err != nil {
		return types.Order{}, venueerr.Connectivity("cancel_order", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return types.Order{}, venueerr.NotFound("cancel_order", "order not found: "+orderID)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Order{}, venueerr.VenueReject("cancel_order", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	wire.Status = string(types.OrderCanceled)
	return wire.toOrder(), nil
}

// GetOpenOrders lists currently open orders, optionally filtered by symbol.
func (c *restClient) GetOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	headers, err := c.auth.signedHeaders("GET", "/orders", "")
	if err != nil {
		return nil, venueerr.Configuration("get_open_orders", "signing", err.Error())
	}

	var wire []orderWire
	req := c.http.R().SetContext(ctx).SetHeaders(headers).SetResult(&wire)
	if symbol != "" {
		req = req.SetQueryParam("symbol", symbol)
	}
	resp, err := req.Get("/orders")
	if err != nil {
		return nil, venueerr.Connectivity("get_open_orders", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, venueerr.VenueReject("get_open_orders", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	orders := make([]types.Order, 0, len(wire))
	for _, w := range wire {
		orders = append(orders, w.toOrder())
	}
	return orders, nil
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toLevels(raw [][2]string) []types.PriceLevel {
	levels := make([]types.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		levels = append(levels, types.PriceLevel{
			Price: parseDecimal(pair[0]),
			Size:  parseDecimal(pair[1]),
		})
	}
	return levels
}
