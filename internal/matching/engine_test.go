package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/domain"
	"fenrir/internal/ledger"
	"fenrir/internal/risk"
	"fenrir/internal/store"
)

func wideLimits() *risk.Limits {
	return risk.NewLimits(risk.Defaults{
		MinQty:             1,
		MaxQty:             1_000_000,
		MinPrice:           decimal.NewFromFloat(0.01),
		MaxPrice:           decimal.NewFromInt(1_000_000),
		VolatilityLimitPct: decimal.NewFromInt(100),
		MaxOrderValue:      decimal.NewFromInt(100_000_000),
	})
}

type harness struct {
	engine *Engine
	store  *store.Store
	ledger *ledger.Ledger
}

func newHarness(t *testing.T, darkPoolEnabled bool) *harness {
	t.Helper()
	s := store.New()
	l := ledger.New(s)
	g := risk.NewGate(wideLimits())
	e := New(s, l, g, nil, darkPoolEnabled)
	return &harness{engine: e, store: s, ledger: l}
}

// account creates a funded account and, if qty != 0, seeds a starting
// inventory position so sell orders pass the risk gate's short-selling
// check without needing a prior trade.
func (h *harness) account(t *testing.T, symbol string, qty int64) string {
	t.Helper()
	acct, err := h.ledger.Create("Test", decimal.NewFromInt(100_000_000), "standard", "low")
	require.NoError(t, err)
	if qty != 0 {
		err := h.store.WithLock(symbol, func(tx *store.Tx) error {
			tx.PutPosition(&domain.Position{AccountID: acct.ID, Symbol: symbol, Quantity: qty, AvgCost: decimal.NewFromInt(100)})
			return nil
		})
		require.NoError(t, err)
	}
	return acct.ID
}

func TestSubmit_CrossesAtMakerPrice(t *testing.T) {
	h := newHarness(t, false)
	seller := h.account(t, "AAPL", 1000)
	buyer := h.account(t, "AAPL", 0)

	sellOrder := &domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 100, TIF: domain.GTC}
	restedSell, err := h.engine.Submit(sellOrder)
	require.NoError(t, err)
	assert.Equal(t, domain.Open, restedSell.Status)

	buyOrder := &domain.Order{AccountID: buyer, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(150), Quantity: 100, TIF: domain.GTC}
	filled, err := h.engine.Submit(buyOrder)
	require.NoError(t, err)

	assert.Equal(t, domain.Filled, filled.Status)
	assert.True(t, filled.ExecPrice.Equal(decimal.NewFromInt(149)), filled.ExecPrice.String())

	trades := h.store.AllTrades()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(149)))
	assert.Equal(t, int64(100), trades[0].Quantity)
}

func TestSubmit_SkipsSelfTrade(t *testing.T) {
	h := newHarness(t, false)
	trader := h.account(t, "AAPL", 1000)

	sellOrder := &domain.Order{AccountID: trader, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 100, TIF: domain.GTC}
	_, err := h.engine.Submit(sellOrder)
	require.NoError(t, err)

	buyOrder := &domain.Order{AccountID: trader, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(150), Quantity: 100, TIF: domain.GTC}
	result, err := h.engine.Submit(buyOrder)
	require.NoError(t, err)

	assert.Equal(t, domain.Open, result.Status)
	assert.Equal(t, int64(0), result.Filled)
	assert.Empty(t, h.store.AllTrades())
}

func TestSubmit_PartialFillRestsRemainder(t *testing.T) {
	h := newHarness(t, false)
	seller := h.account(t, "AAPL", 1000)
	buyer := h.account(t, "AAPL", 0)

	_, err := h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 100, TIF: domain.GTC})
	require.NoError(t, err)

	buyResult, err := h.engine.Submit(&domain.Order{AccountID: buyer, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(150), Quantity: 150, TIF: domain.GTC})
	require.NoError(t, err)

	assert.Equal(t, domain.PartiallyFilled, buyResult.Status)
	assert.Equal(t, int64(100), buyResult.Filled)
	assert.Equal(t, int64(50), buyResult.Remaining())
}

func TestSubmit_IOCCancelsUnfilledRemainder(t *testing.T) {
	h := newHarness(t, false)
	seller := h.account(t, "AAPL", 1000)
	buyer := h.account(t, "AAPL", 0)

	_, err := h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 50, TIF: domain.GTC})
	require.NoError(t, err)

	result, err := h.engine.Submit(&domain.Order{AccountID: buyer, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(150), Quantity: 100, TIF: domain.IOC})
	require.NoError(t, err)

	assert.Equal(t, domain.Cancelled, result.Status)
	assert.Equal(t, int64(50), result.Filled)
	assert.Empty(t, h.store.SymbolOrderIDs("AAPL"), "IOC remainder must not rest")
}

func TestSubmit_FOKRejectsEntirelyWhenUnfillable(t *testing.T) {
	h := newHarness(t, false)
	seller := h.account(t, "AAPL", 1000)
	buyer := h.account(t, "AAPL", 0)

	_, err := h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 50, TIF: domain.GTC})
	require.NoError(t, err)

	result, err := h.engine.Submit(&domain.Order{AccountID: buyer, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(150), Quantity: 100, TIF: domain.FOK})
	require.NoError(t, err)

	assert.Equal(t, domain.Cancelled, result.Status)
	assert.Equal(t, int64(0), result.Filled, "FOK must not partially fill")

	levels := h.store.BookDepth("AAPL", domain.Sell, false, 10)
	require.Len(t, levels, 1)
	assert.Equal(t, int64(50), levels[0].Orders[0].Remaining(), "resting order must be untouched by a failed FOK")
}

func TestSubmit_MarketOrderExecutesAtVolumeWeightedAverage(t *testing.T) {
	h := newHarness(t, false)
	seller := h.account(t, "AAPL", 1000)
	buyer := h.account(t, "AAPL", 0)

	_, err := h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(100), Quantity: 50, TIF: domain.GTC})
	require.NoError(t, err)
	_, err = h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(101), Quantity: 50, TIF: domain.GTC})
	require.NoError(t, err)

	result, err := h.engine.Submit(&domain.Order{AccountID: buyer, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Market, Quantity: 100})
	require.NoError(t, err)

	assert.Equal(t, domain.Filled, result.Status)
	assert.True(t, result.ExecPrice.Equal(decimal.NewFromFloat(100.5)), result.ExecPrice.String())
}

func TestSubmit_MarketOrderWithNoLiquidityGoesPending(t *testing.T) {
	h := newHarness(t, false)
	buyer := h.account(t, "AAPL", 0)

	result, err := h.engine.Submit(&domain.Order{AccountID: buyer, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Market, Quantity: 100})
	require.NoError(t, err)
	assert.Equal(t, domain.Pending, result.Status)
	assert.Equal(t, int64(0), result.Filled)

	// Still resumable: liquidity arrives, and the continuous driver's
	// reconcileSymbol (not a fresh Submit) is what revisits it.
	seller := h.account(t, "AAPL", 1000)
	_, err = h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(150), Quantity: 100, TIF: domain.GTC})
	require.NoError(t, err)

	_, err = h.engine.reconcileSymbol("AAPL")
	require.NoError(t, err)

	resumed, ok := h.store.GetOrder(result.ID)
	require.True(t, ok)
	assert.Equal(t, domain.Filled, resumed.Status)
	assert.Equal(t, int64(100), resumed.Filled)
}

func TestSubmit_DarkPoolPreference(t *testing.T) {
	h := newHarness(t, true)
	darkSeller := h.account(t, "AAPL", 1000)
	litSeller := h.account(t, "AAPL", 1000)
	buyer := h.account(t, "AAPL", 0)

	_, err := h.engine.Submit(&domain.Order{AccountID: litSeller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 100, TIF: domain.GTC})
	require.NoError(t, err)
	_, err = h.engine.Submit(&domain.Order{AccountID: darkSeller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 100, TIF: domain.GTC, Internal: true})
	require.NoError(t, err)

	result, err := h.engine.Submit(&domain.Order{AccountID: buyer, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(150), Quantity: 100, TIF: domain.GTC, Internal: true})
	require.NoError(t, err)

	require.Len(t, h.store.AllTrades(), 1)
	assert.Equal(t, darkSeller, h.store.AllTrades()[0].SellAccountID, "internal order must prefer the dark pool first")
	assert.Equal(t, domain.Filled, result.Status)
}

func TestCancel_RemovesRestingOrderFromBook(t *testing.T) {
	h := newHarness(t, false)
	seller := h.account(t, "AAPL", 1000)

	resting, err := h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 100, TIF: domain.GTC})
	require.NoError(t, err)

	cancelled, err := h.engine.Cancel(resting.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Cancelled, cancelled.Status)
	assert.Empty(t, h.store.SymbolOrderIDs("AAPL"))
}

func TestCancel_RejectsAlreadyTerminalOrder(t *testing.T) {
	h := newHarness(t, false)
	seller := h.account(t, "AAPL", 1000)
	resting, err := h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 100, TIF: domain.GTC})
	require.NoError(t, err)
	_, err = h.engine.Cancel(resting.ID)
	require.NoError(t, err)

	_, err = h.engine.Cancel(resting.ID)
	assert.True(t, domain.IsKind(err, domain.ErrKindConflict))
}

func TestEdit_RepricingTriggersImmediateMatch(t *testing.T) {
	h := newHarness(t, false)
	seller := h.account(t, "AAPL", 1000)
	buyer := h.account(t, "AAPL", 0)

	resting, err := h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(160), Quantity: 100, TIF: domain.GTC})
	require.NoError(t, err)

	_, err = h.engine.Submit(&domain.Order{AccountID: buyer, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(150), Quantity: 100, TIF: domain.GTC})
	require.NoError(t, err)
	assert.Empty(t, h.store.AllTrades())

	newPrice := decimal.NewFromInt(149)
	edited, err := h.engine.Edit(resting.ID, &newPrice, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Filled, edited.Status)
	require.Len(t, h.store.AllTrades(), 1)
}

func TestEdit_RejectsQuantityBelowFilled(t *testing.T) {
	h := newHarness(t, false)
	seller := h.account(t, "AAPL", 1000)
	buyer := h.account(t, "AAPL", 0)

	resting, err := h.engine.Submit(&domain.Order{AccountID: seller, Symbol: "AAPL", Side: domain.Sell, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(149), Quantity: 100, TIF: domain.GTC})
	require.NoError(t, err)
	_, err = h.engine.Submit(&domain.Order{AccountID: buyer, Symbol: "AAPL", Side: domain.Buy, OrderType: domain.Limit, LimitPrice: decimal.NewFromInt(150), Quantity: 40, TIF: domain.GTC})
	require.NoError(t, err)

	tooSmall := int64(10)
	_, err = h.engine.Edit(resting.ID, nil, &tooSmall)
	assert.True(t, domain.IsKind(err, domain.ErrKindValidation))
}
