package seed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/domain"
	"fenrir/internal/ledger"
	"fenrir/internal/matching"
	"fenrir/internal/risk"
	"fenrir/internal/store"
)

func newTestEngine(t *testing.T) (*matching.Engine, *ledger.Ledger, *store.Store) {
	t.Helper()
	s := store.New()
	l := ledger.New(s)
	limits := risk.NewLimits(risk.Defaults{
		MinQty: 1, MaxQty: 1_000_000,
		MinPrice: decimal.NewFromInt(1), MaxPrice: decimal.NewFromInt(1_000_000),
		VolatilityLimitPct: decimal.NewFromInt(100), MaxOrderValue: decimal.NewFromInt(100_000_000),
	})
	gate := risk.NewGate(limits)
	return matching.New(s, l, gate, nil, true), l, s
}

func TestPopulate_SeedsRestingOrdersOnBothSides(t *testing.T) {
	engine, l, s := newTestEngine(t)

	seller, err := l.Create("Seller", decimal.NewFromInt(1_000_000), "standard", "low")
	require.NoError(t, err)
	buyer, err := l.Create("Buyer", decimal.NewFromInt(1_000_000), "standard", "low")
	require.NoError(t, err)

	require.NoError(t, Populate(engine, l, seller.ID, buyer.ID, []Symbol{{"AAPL", decimal.NewFromInt(150)}}))

	bids := s.BookDepth("AAPL", domain.Buy, false, 10)
	asks := s.BookDepth("AAPL", domain.Sell, false, 10)
	assert.Len(t, bids, 3)
	assert.Len(t, asks, 3)
}

func TestPopulate_DefaultsToBuiltinSymbolsWhenNoneGiven(t *testing.T) {
	engine, l, s := newTestEngine(t)

	seller, err := l.Create("Seller", decimal.NewFromInt(1_000_000), "standard", "low")
	require.NoError(t, err)
	buyer, err := l.Create("Buyer", decimal.NewFromInt(1_000_000), "standard", "low")
	require.NoError(t, err)

	require.NoError(t, Populate(engine, l, seller.ID, buyer.ID, nil))

	for _, sym := range DefaultSymbols {
		asks := s.BookDepth(sym.Ticker, domain.Sell, false, 10)
		assert.NotEmpty(t, asks, "expected seeded asks for %s", sym.Ticker)
	}
}
