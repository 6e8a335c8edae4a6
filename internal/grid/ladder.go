// ladder.go implements the pure-function core of the per-tick algorithm
// (spec.md §4.4 steps 2-5): inventory-aware ratio adjustment, the target
// price ladder, and the diff against live orders. None of these functions
// touch the network; strategy.go wires them to the Manager Triplet.
package grid

import (
	"sort"

	"github.com/shopspring/decimal"

	"gridbot/pkg/types"
)

var (
	two  = decimal.NewFromInt(2)
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
)

// ratios is the inventory-adjusted buy/sell split for one tick.
type ratios struct {
	Buy, Sell decimal.Decimal
	HardCap   bool // true when the max_multiplier cap is active (skips clamping)
}

// adjustRatios implements spec.md §4.4 step 2.
func adjustRatios(cfg Config, positionQty decimal.Decimal) ratios {
	if cfg.OrderSize.IsZero() || positionQty.IsZero() {
		return clampRatios(ratios{Buy: cfg.BuyRatio, Sell: cfg.SellRatio})
	}

	m := positionQty.Abs().Div(cfg.OrderSize)

	if m.GreaterThanOrEqual(cfg.MaxMultiplier) {
		if positionQty.IsPositive() {
			return ratios{Buy: zero, Sell: one, HardCap: true}
		}
		return ratios{Buy: one, Sell: zero, HardCap: true}
	}

	if m.IsPositive() {
		factor := one.Sub(m.Div(cfg.MaxMultiplier))
		if positionQty.IsPositive() {
			buy := cfg.BuyRatio.Mul(factor)
			return clampRatios(ratios{Buy: buy, Sell: one.Sub(buy)})
		}
		sell := cfg.SellRatio.Mul(factor)
		return clampRatios(ratios{Buy: one.Sub(sell), Sell: sell})
	}

	return clampRatios(ratios{Buy: cfg.BuyRatio, Sell: cfg.SellRatio})
}

func clampRatios(r ratios) ratios {
	r.Buy = clamp(r.Buy, ratioClampMin, ratioClampMax)
	r.Sell = clamp(r.Sell, ratioClampMin, ratioClampMax)
	return r
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// splitCounts implements spec.md §4.4 step 3.
func splitCounts(totalOrders int, r ratios) (sellCount, buyCount int) {
	sellCount = int(r.Sell.Mul(decimal.NewFromInt(int64(totalOrders))).Round(0).IntPart())
	if sellCount < 0 {
		sellCount = 0
	}
	if sellCount > totalOrders {
		sellCount = totalOrders
	}
	buyCount = totalOrders - sellCount
	return sellCount, buyCount
}

// ceilToMultiple returns the smallest multiple of interval that is >= target.
func ceilToMultiple(target, interval decimal.Decimal) decimal.Decimal {
	return target.Div(interval).Ceil().Mul(interval)
}

// floorToMultiple returns the largest multiple of interval that is <= target.
func floorToMultiple(target, interval decimal.Decimal) decimal.Decimal {
	return target.Div(interval).Floor().Mul(interval)
}

// ladderInputs carries the market snapshot and per-side counts that
// buildLadder turns into validated target prices.
type ladderInputs struct {
	cfg             Config
	mid, bid, ask   decimal.Decimal
	halfWindow      decimal.Decimal
	sellCount       int
	buyCount        int
}

// buildLadder implements spec.md §4.4 step 4 (ladder generation + re-validation).
func buildLadder(in ladderInputs) (sells, buys []decimal.Decimal) {
	sellCeiling := in.mid.Add(in.halfWindow).Add(in.cfg.MaxDriftBuffer)
	sellStart := ceilToMultiple(in.ask.Add(in.cfg.SafeGap), in.cfg.BasePriceInterval)
	if sellStart.Equal(in.ask.Add(in.cfg.SafeGap)) {
		sellStart = sellStart.Add(in.cfg.BasePriceInterval)
	}
	price := sellStart
	for i := 0; i < in.sellCount; i++ {
		if price.GreaterThan(sellCeiling) {
			break
		}
		sells = append(sells, price)
		price = price.Add(in.cfg.BasePriceInterval)
	}

	buyFloor := in.mid.Sub(in.halfWindow).Sub(in.cfg.MaxDriftBuffer)
	buyStart := floorToMultiple(in.bid.Sub(in.cfg.SafeGap), in.cfg.BasePriceInterval)
	if buyStart.Equal(in.bid.Sub(in.cfg.SafeGap)) {
		buyStart = buyStart.Sub(in.cfg.BasePriceInterval)
	}
	price = buyStart
	for i := 0; i < in.buyCount; i++ {
		if price.LessThan(buyFloor) || price.LessThan(in.cfg.MinValidPrice) {
			break
		}
		buys = append(buys, price)
		price = price.Sub(in.cfg.BasePriceInterval)
	}

	sells = filterDecimals(sells, func(p decimal.Decimal) bool {
		return !p.LessThan(in.ask.Add(in.cfg.SafeGap))
	})
	buys = filterDecimals(buys, func(p decimal.Decimal) bool {
		return !p.GreaterThan(in.bid.Sub(in.cfg.SafeGap))
	})
	return sells, buys
}

func filterDecimals(in []decimal.Decimal, keep func(decimal.Decimal) bool) []decimal.Decimal {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// cancelTarget is one entry of the to_cancel list. OrderID is set for the
// duplicate-removal phase; for the far-order phase the (Side, Price) pair
// is used to locate the first live order at that level.
type cancelTarget struct {
	OrderID string
	Side    types.Side
	Price   decimal.Decimal
}

const cancelBudget = 10

// diffPlan is the full output of spec.md §4.4 step 5.
type diffPlan struct {
	ToPlaceSells []decimal.Decimal
	ToPlaceBuys  []decimal.Decimal
	ToCancel     []cancelTarget
}

// buildDiff implements spec.md §4.4 step 5: place/cancel diff against the
// existing order book, including the duplicate and far-order cancel phases.
func buildDiff(cfg Config, mid decimal.Decimal, validSells, validBuys []decimal.Decimal, existing []types.Order) diffPlan {
	bySidePrice := make(map[string][]types.Order)
	key := func(side types.Side, price decimal.Decimal) string {
		return string(side) + "|" + price.String()
	}
	for _, o := range existing {
		k := key(o.Side, o.Price)
		bySidePrice[k] = append(bySidePrice[k], o)
	}

	existingSellPrices := decimalSet{}
	existingBuyPrices := decimalSet{}
	for _, o := range existing {
		if o.Side == types.Sell {
			existingSellPrices.add(o.Price)
		} else {
			existingBuyPrices.add(o.Price)
		}
	}

	plan := diffPlan{}
	sellSet := toDecimalSet(validSells)
	buySet := toDecimalSet(validBuys)

	for _, p := range validSells {
		if !existingSellPrices.has(p) {
			plan.ToPlaceSells = append(plan.ToPlaceSells, p)
		}
	}
	for _, p := range validBuys {
		if !existingBuyPrices.has(p) {
			plan.ToPlaceBuys = append(plan.ToPlaceBuys, p)
		}
	}

	// Phase 1: duplicates — keep the oldest submission at each level.
	for _, group := range bySidePrice {
		if len(group) <= 1 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
		for _, dup := range group[1:] {
			plan.ToCancel = append(plan.ToCancel, cancelTarget{OrderID: dup.OrderID, Side: dup.Side, Price: dup.Price})
		}
	}

	// Phase 2: far orders.
	uniqueExisting := existingSellPrices.len() + existingBuyPrices.len()
	sellOverTarget := existingSellPrices.len() > countDistinct(validSells)
	buyOverTarget := existingBuyPrices.len() > countDistinct(validBuys)

	if uniqueExisting > cfg.TotalOrders || sellOverTarget || buyOverTarget {
		type candidate struct {
			side     types.Side
			price    decimal.Decimal
			distance decimal.Decimal
		}
		var candidates []candidate
		for p := range existingSellPrices {
			if sellSet.has(p) {
				continue
			}
			dist := p.Sub(mid).Abs()
			if dist.GreaterThanOrEqual(cfg.SafeGap.Mul(two)) {
				candidates = append(candidates, candidate{side: types.Sell, price: p, distance: dist})
			}
		}
		for p := range existingBuyPrices {
			if buySet.has(p) {
				continue
			}
			dist := p.Sub(mid).Abs()
			if dist.GreaterThanOrEqual(cfg.SafeGap.Mul(two)) {
				candidates = append(candidates, candidate{side: types.Buy, price: p, distance: dist})
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].distance.GreaterThan(candidates[j].distance)
		})

		removed := 0
		for _, c := range candidates {
			if uniqueExisting-removed <= cfg.TotalOrders {
				break
			}
			if len(plan.ToCancel) >= cancelBudget {
				break
			}
			group := bySidePrice[key(c.side, c.price)]
			if len(group) == 0 {
				continue
			}
			plan.ToCancel = append(plan.ToCancel, cancelTarget{Side: c.side, Price: c.price})
			removed++
		}
	}

	return plan
}

func countDistinct(prices []decimal.Decimal) int {
	return toDecimalSet(prices).len()
}

type decimalSet map[string]decimal.Decimal

func (s decimalSet) add(d decimal.Decimal) { s[d.String()] = d }
func (s decimalSet) has(d decimal.Decimal) bool {
	_, ok := s[d.String()]
	return ok
}
func (s decimalSet) len() int { return len(s) }

func toDecimalSet(prices []decimal.Decimal) decimalSet {
	s := decimalSet{}
	for _, p := range prices {
		s.add(p)
	}
	return s
}
