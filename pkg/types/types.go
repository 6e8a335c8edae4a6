// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — accounts, orders,
// positions, and order-book snapshots for a single Starknet-based
// perpetual venue. It has no dependencies on internal packages, so it can
// be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side is the direction of an order or position.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType distinguishes limit (resting) from market (immediate) orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderStatus is the lifecycle state of an order as reported by the venue.
type OrderStatus string

const (
	OrderNew             OrderStatus = "new"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCanceled        OrderStatus = "canceled"
	OrderUnknown         OrderStatus = "unknown"
)

// IsOpen reports whether an order still rests on the book.
func (s OrderStatus) IsOpen() bool {
	return s == OrderNew || s == OrderPartiallyFilled
}

// PositionSide is the directional label of a position.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
	PositionNone  PositionSide = "none"
)

// ————————————————————————————————————————————————————————————————————————
// Account
// ————————————————————————————————————————————————————————————————————————

// Account is one configured venue credential record, identified by a
// stable account_key. See internal/store for the persisted form.
type Account struct {
	AccountKey   string `json:"account_key"`
	AccountAlias string `json:"account_alias"`
	Venue        string `json:"name"` // venue identifier, e.g. "extended"
	Testnet      bool   `json:"testnet"`

	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key,omitempty"`

	// Starknet-specific fields. PublicKey/PrivateKey are the STARK
	// keypair used for order signing by the venue SDK; they are never
	// interpreted by the adapter itself (§1: venue signing is an external
	// collaborator consumed only through the venue.Client interface).
	PublicKey     string `json:"public_key,omitempty"`
	PrivateKey    string `json:"private_key,omitempty"`
	Vault         int64  `json:"vault,omitempty"`
	DefaultMarket string `json:"default_market,omitempty"`

	// L1Address is an optional Ethereum address used only for deposit /
	// withdrawal display and config validation; it never signs orders.
	L1Address string `json:"l1_address,omitempty"`
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Order is the venue-normalized representation of a single order.
type Order struct {
	OrderID       string // venue-assigned id
	ClientOrderID string // client-assigned id, may be empty
	Symbol        string // normalized symbol
	Side          Side
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal // present iff Type == OrderTypeLimit
	PostOnly      bool
	ReduceOnly    bool
	Status        OrderStatus
	FilledQty     decimal.Decimal
	AvgFillPrice  decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Position
// ————————————————————————————————————————————————————————————————————————

// Position is the venue's view of a single (account, symbol) exposure.
//
// Invariant (spec.md §3): Side is derived primarily from the venue's
// explicit directional field; the signed-quantity fallback applies only
// when that field is absent. When Side == PositionShort, Quantity is
// negative regardless of the venue's own internal representation.
type Position struct {
	Symbol        string
	Quantity      decimal.Decimal // signed: positive long, negative short
	EntryPrice    decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Side          PositionSide
}

// EmptyPosition returns a zero-valued position for the given symbol, used
// as the PositionManager's degrade-on-error default (spec.md §4.1).
func EmptyPosition(symbol string) Position {
	return Position{
		Symbol:   symbol,
		Quantity: decimal.Zero,
		Side:     PositionNone,
	}
}

// ————————————————————————————————————————————————————————————————————————
// Market data
// ————————————————————————————————————————————————————————————————————————

// PriceLevel is a single price/size pair in an order book.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Ticker is a snapshot of last-trade price, best bid/ask, and 24h stats.
type Ticker struct {
	Symbol      string
	LastPrice   decimal.Decimal
	BestBid     decimal.Decimal
	BestBidSize decimal.Decimal
	BestAsk     decimal.Decimal
	BestAskSize decimal.Decimal
	Volume24h   decimal.Decimal
	Timestamp   time.Time
}

// Zero reports whether this is the degrade-on-error zero ticker.
func (t Ticker) Zero() bool {
	return t.BestBid.IsZero() && t.BestAsk.IsZero()
}

// Mid returns (bid+ask)/2. Caller must check Zero() first.
func (t Ticker) Mid() decimal.Decimal {
	return t.BestBid.Add(t.BestAsk).Div(decimal.NewFromInt(2))
}

// Depth is an order-book snapshot with optional levels beyond best bid/ask.
//
// Invariant (spec.md §3): Bids sorted descending, Asks sorted ascending;
// best-bid < best-ask. Valid reports whether the top of book satisfies
// this; the venue package returns snapshots without calling Valid, so a
// crossed snapshot is not discarded.
type Depth struct {
	Symbol    string
	Bids      []PriceLevel // descending by price
	Asks      []PriceLevel // ascending by price
	Timestamp time.Time
}

// Valid reports whether the top of book satisfies best-bid < best-ask.
func (d Depth) Valid() bool {
	if len(d.Bids) == 0 || len(d.Asks) == 0 {
		return true
	}
	return d.Bids[0].Price.LessThan(d.Asks[0].Price)
}

// Balance is a per-currency balance snapshot.
type Balance struct {
	Currency  string
	Available decimal.Decimal
	Frozen    decimal.Decimal
	Total     decimal.Decimal
}
