package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fenrir/internal/domain"
)

func defaultLimits() *Limits {
	return NewLimits(Defaults{
		MinQty:             1,
		MaxQty:              100_000,
		MinPrice:            decimal.NewFromFloat(0.01),
		MaxPrice:            decimal.NewFromInt(1_000_000),
		VolatilityLimitPct:  decimal.NewFromInt(5),
		MaxOrderValue:       decimal.NewFromInt(100_000),
	})
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestEvaluate_RejectsDisabledAccount(t *testing.T) {
	g := NewGate(defaultLimits())
	o := &domain.Order{AccountID: "a1", Symbol: "AAPL", OrderType: domain.Limit, Side: domain.Buy, Quantity: 10, LimitPrice: dec(100)}
	v := g.Evaluate(o, AccountView{Active: false, Balance: dec(1_000_000)}, MarketContext{})
	assert.False(t, v.Admit)
	assert.Contains(t, v.Reason, "disabled")
}

func TestEvaluate_RejectsOutOfBoundQuantity(t *testing.T) {
	g := NewGate(defaultLimits())
	o := &domain.Order{AccountID: "a1", Symbol: "AAPL", OrderType: domain.Limit, Side: domain.Buy, Quantity: 200_000, LimitPrice: dec(1)}
	v := g.Evaluate(o, AccountView{Active: true, Balance: dec(1_000_000)}, MarketContext{})
	assert.False(t, v.Admit)
}

func TestEvaluate_RejectsVolatilityBreach(t *testing.T) {
	g := NewGate(defaultLimits())
	o := &domain.Order{AccountID: "a1", Symbol: "AAPL", OrderType: domain.Limit, Side: domain.Buy, Quantity: 10, LimitPrice: dec(120)}
	mkt := MarketContext{LastTradePrice: map[string]decimal.Decimal{"AAPL": dec(100)}}
	v := g.Evaluate(o, AccountView{Active: true, Balance: dec(1_000_000)}, mkt)
	assert.False(t, v.Admit)
	assert.Contains(t, v.Reason, "deviates")
}

func TestEvaluate_AcceptsVolatilityExactlyAtLimit(t *testing.T) {
	g := NewGate(defaultLimits())
	// 5% of 100 is 5, so 105 is exactly at the boundary and must be accepted.
	o := &domain.Order{AccountID: "a1", Symbol: "AAPL", OrderType: domain.Limit, Side: domain.Buy, Quantity: 10, LimitPrice: dec(105)}
	mkt := MarketContext{LastTradePrice: map[string]decimal.Decimal{"AAPL": dec(100)}}
	v := g.Evaluate(o, AccountView{Active: true, Balance: dec(1_000_000)}, mkt)
	assert.True(t, v.Admit, v.Reason)
}

func TestEvaluate_RejectsOneCentBeyondVolatilityLimit(t *testing.T) {
	g := NewGate(defaultLimits())
	o := &domain.Order{AccountID: "a1", Symbol: "AAPL", OrderType: domain.Limit, Side: domain.Buy, Quantity: 10, LimitPrice: dec(105.01)}
	mkt := MarketContext{LastTradePrice: map[string]decimal.Decimal{"AAPL": dec(100)}}
	v := g.Evaluate(o, AccountView{Active: true, Balance: dec(1_000_000)}, mkt)
	assert.False(t, v.Admit)
}

func TestEvaluate_RejectsInsufficientFunds(t *testing.T) {
	g := NewGate(defaultLimits())
	o := &domain.Order{AccountID: "a1", Symbol: "AAPL", OrderType: domain.Limit, Side: domain.Buy, Quantity: 100, LimitPrice: dec(150)}
	v := g.Evaluate(o, AccountView{Active: true, Balance: dec(1000)}, MarketContext{})
	assert.False(t, v.Admit)
	assert.Contains(t, v.Reason, "insufficient funds")
}

func TestEvaluate_RejectsShortSelling(t *testing.T) {
	g := NewGate(defaultLimits())
	o := &domain.Order{AccountID: "a1", Symbol: "AAPL", OrderType: domain.Limit, Side: domain.Sell, Quantity: 100, LimitPrice: dec(150)}
	v := g.Evaluate(o, AccountView{Active: true, Balance: dec(1_000_000), PositionQty: 50}, MarketContext{})
	assert.False(t, v.Admit)
	assert.Contains(t, v.Reason, "insufficient inventory")
}

func TestEvaluate_RejectsDisabledSymbol(t *testing.T) {
	l := defaultLimits()
	l.SetSymbolLimit("HALT", SymbolLimits{Enabled: false})
	g := NewGate(l)
	o := &domain.Order{AccountID: "a1", Symbol: "HALT", OrderType: domain.Limit, Side: domain.Buy, Quantity: 10, LimitPrice: dec(10)}
	v := g.Evaluate(o, AccountView{Active: true, Balance: dec(1_000_000)}, MarketContext{})
	assert.False(t, v.Admit)
}

func TestEvaluate_AccountOverrideRaisesMaxOrderValue(t *testing.T) {
	l := defaultLimits()
	big := decimal.NewFromInt(10_000_000)
	l.SetAccountLimit("whale", AccountLimits{MaxOrderValue: &big})
	g := NewGate(l)
	o := &domain.Order{AccountID: "whale", Symbol: "AAPL", OrderType: domain.Limit, Side: domain.Buy, Quantity: 1000, LimitPrice: dec(500)}
	v := g.Evaluate(o, AccountView{Active: true, Balance: dec(10_000_000)}, MarketContext{})
	assert.True(t, v.Admit, v.Reason)
}

func TestAlerts_RecordsRejections(t *testing.T) {
	g := NewGate(defaultLimits())
	o := &domain.Order{ID: "o1", AccountID: "a1", Symbol: "AAPL", OrderType: domain.Limit, Side: domain.Buy, Quantity: 10, LimitPrice: dec(100)}
	g.Evaluate(o, AccountView{Active: false}, MarketContext{})
	alerts := g.Alerts(10)
	assert.Len(t, alerts, 1)
	assert.Equal(t, "o1", alerts[0].OrderID)
}
