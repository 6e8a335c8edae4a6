// Package grid implements the Strategy Core (spec.md §4.4): the
// sliding-window grid market-making algorithm. The package owns no I/O;
// it drives the Manager Triplet and exposes the tick algorithm as a set
// of pure functions (ladder.go) plus the stateful cadence loop
// (strategy.go).
package grid

import (
	"time"

	"github.com/shopspring/decimal"

	"gridbot/internal/config"
)

// Config is the immutable-after-start configuration table for one grid
// strategy instance (spec.md §4.4).
type Config struct {
	OrderSize         decimal.Decimal // quantity per grid order; required, no default
	TotalOrders       int
	WindowPercent     decimal.Decimal
	SellRatio         decimal.Decimal
	BuyRatio          decimal.Decimal
	BasePriceInterval decimal.Decimal
	SafeGap           decimal.Decimal
	MaxDriftBuffer    decimal.Decimal
	MinValidPrice     decimal.Decimal
	MaxMultiplier     decimal.Decimal
	OrderCooldown     time.Duration
	UpdateInterval    time.Duration
}

// FromDefaults builds a Config from the engine's strategy defaults,
// requiring only the per-instance order size.
func FromDefaults(d config.StrategyDefaults, orderSize decimal.Decimal) Config {
	return Config{
		OrderSize:         orderSize,
		TotalOrders:       d.TotalOrders,
		WindowPercent:     decimal.NewFromFloat(d.WindowPercent),
		SellRatio:         decimal.NewFromFloat(d.SellRatio),
		BuyRatio:          decimal.NewFromFloat(d.BuyRatio),
		BasePriceInterval: decimal.NewFromFloat(d.BasePriceInterval),
		SafeGap:           decimal.NewFromFloat(d.SafeGap),
		MaxDriftBuffer:    decimal.NewFromFloat(d.MaxDriftBuffer),
		MinValidPrice:     decimal.NewFromFloat(d.MinValidPrice),
		MaxMultiplier:     decimal.NewFromFloat(d.MaxMultiplier),
		OrderCooldown:     d.OrderCooldown,
		UpdateInterval:    d.UpdateInterval,
	}
}

// ratioClampMin and ratioClampMax bound the inventory-adjusted ratios
// (spec.md §4.4 step 2), except when the hard inventory cap is active.
var (
	ratioClampMin = decimal.NewFromFloat(0.1)
	ratioClampMax = decimal.NewFromFloat(0.9)
)
