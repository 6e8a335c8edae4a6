package grid

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gridbot/pkg/types"
)

func testConfig() Config {
	return Config{
		OrderSize:         decimal.NewFromInt(1),
		TotalOrders:       18,
		WindowPercent:     decimal.NewFromFloat(0.12),
		SellRatio:         decimal.NewFromFloat(0.5),
		BuyRatio:          decimal.NewFromFloat(0.5),
		BasePriceInterval: decimal.NewFromInt(10),
		SafeGap:           decimal.NewFromInt(20),
		MaxDriftBuffer:    decimal.NewFromInt(2000),
		MinValidPrice:     decimal.NewFromInt(10000),
		MaxMultiplier:     decimal.NewFromInt(15),
		OrderCooldown:     1500 * time.Millisecond,
		UpdateInterval:    3 * time.Second,
	}
}

func TestAdjustRatiosHardCapLong(t *testing.T) {
	cfg := testConfig()
	r := adjustRatios(cfg, decimal.NewFromInt(15)) // m == max_multiplier
	require.True(t, r.HardCap)
	require.True(t, r.Buy.IsZero())
	require.True(t, r.Sell.Equal(one))
}

func TestAdjustRatiosHardCapShort(t *testing.T) {
	cfg := testConfig()
	r := adjustRatios(cfg, decimal.NewFromInt(-20)) // m > max_multiplier
	require.True(t, r.HardCap)
	require.True(t, r.Buy.Equal(one))
	require.True(t, r.Sell.IsZero())
}

func TestAdjustRatiosProportionalReduction(t *testing.T) {
	cfg := testConfig()
	r := adjustRatios(cfg, decimal.NewFromInt(7)) // 0 < m < 15, long
	require.False(t, r.HardCap)
	// buy_ratio should be reduced below base 0.5
	require.True(t, r.Buy.LessThan(cfg.BuyRatio))
}

func TestAdjustRatiosClampedToBounds(t *testing.T) {
	cfg := testConfig()
	cfg.BuyRatio = decimal.NewFromFloat(0.05)
	cfg.SellRatio = decimal.NewFromFloat(0.95)
	r := adjustRatios(cfg, decimal.Zero)
	require.True(t, r.Buy.GreaterThanOrEqual(ratioClampMin))
	require.True(t, r.Sell.LessThanOrEqual(ratioClampMax))
}

func TestSplitCountsSumsToTotal(t *testing.T) {
	sellCount, buyCount := splitCounts(18, ratios{Buy: decimal.NewFromFloat(0.5), Sell: decimal.NewFromFloat(0.5)})
	require.Equal(t, 18, sellCount+buyCount)
}

func TestBuildLadderRespectsSafeGap(t *testing.T) {
	cfg := testConfig()
	mid := decimal.NewFromInt(50000)
	bid := decimal.NewFromInt(49990)
	ask := decimal.NewFromInt(50010)
	halfWindow := mid.Mul(cfg.WindowPercent).Div(two)

	sells, buys := buildLadder(ladderInputs{
		cfg: cfg, mid: mid, bid: bid, ask: ask, halfWindow: halfWindow,
		sellCount: 9, buyCount: 9,
	})

	for _, p := range sells {
		require.True(t, p.GreaterThanOrEqual(ask.Add(cfg.SafeGap)), "sell price %s violates safe gap", p)
	}
	for _, p := range buys {
		require.True(t, p.LessThanOrEqual(bid.Sub(cfg.SafeGap)), "buy price %s violates safe gap", p)
	}
}

func TestBuildLadderBuysRespectMinValidPrice(t *testing.T) {
	cfg := testConfig()
	mid := decimal.NewFromInt(10050)
	bid := decimal.NewFromInt(10040)
	ask := decimal.NewFromInt(10060)
	halfWindow := mid.Mul(cfg.WindowPercent).Div(two)

	_, buys := buildLadder(ladderInputs{
		cfg: cfg, mid: mid, bid: bid, ask: ask, halfWindow: halfWindow,
		sellCount: 0, buyCount: 9,
	})

	for _, p := range buys {
		require.True(t, p.GreaterThanOrEqual(cfg.MinValidPrice))
	}
}

func TestBuildDiffPlacesOnlyMissingPrices(t *testing.T) {
	cfg := testConfig()
	mid := decimal.NewFromInt(50000)
	validSells := []decimal.Decimal{decimal.NewFromInt(50100), decimal.NewFromInt(50110)}
	validBuys := []decimal.Decimal{decimal.NewFromInt(49900)}

	existing := []types.Order{
		{OrderID: "1", Side: types.Sell, Price: decimal.NewFromInt(50100), Status: types.OrderNew},
	}

	plan := buildDiff(cfg, mid, validSells, validBuys, existing)
	require.ElementsMatch(t, []decimal.Decimal{decimal.NewFromInt(50110)}, plan.ToPlaceSells)
	require.ElementsMatch(t, []decimal.Decimal{decimal.NewFromInt(49900)}, plan.ToPlaceBuys)
}

func TestBuildDiffCancelsDuplicatesKeepingOldest(t *testing.T) {
	cfg := testConfig()
	mid := decimal.NewFromInt(50000)
	price := decimal.NewFromInt(50100)

	older := types.Order{OrderID: "old", Side: types.Sell, Price: price, CreatedAt: time.Now().Add(-time.Hour), Status: types.OrderNew}
	newer := types.Order{OrderID: "new", Side: types.Sell, Price: price, CreatedAt: time.Now(), Status: types.OrderNew}

	plan := buildDiff(cfg, mid, []decimal.Decimal{price}, nil, []types.Order{older, newer})

	require.Len(t, plan.ToCancel, 1)
	require.Equal(t, "new", plan.ToCancel[0].OrderID)
}

func TestBuildDiffCancelBudgetIsCapped(t *testing.T) {
	cfg := testConfig()
	cfg.TotalOrders = 2
	mid := decimal.NewFromInt(50000)

	var existing []types.Order
	for i := 0; i < 20; i++ {
		price := mid.Add(decimal.NewFromInt(int64(1000 + i*100)))
		existing = append(existing, types.Order{
			OrderID: "far-sell-" + price.String(),
			Side:    types.Sell,
			Price:   price,
			Status:  types.OrderNew,
		})
	}

	plan := buildDiff(cfg, mid, nil, nil, existing)
	require.LessOrEqual(t, len(plan.ToCancel), cancelBudget)
}

func TestBuildDiffNoSpuriousCancelsWhenWithinTarget(t *testing.T) {
	cfg := testConfig()
	mid := decimal.NewFromInt(50000)
	price := decimal.NewFromInt(50100)

	existing := []types.Order{{OrderID: "1", Side: types.Sell, Price: price, Status: types.OrderNew}}
	plan := buildDiff(cfg, mid, []decimal.Decimal{price}, nil, existing)

	require.Empty(t, plan.ToCancel)
}
