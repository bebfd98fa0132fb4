// Package seed is the external data-seeder collaborator spec.md's Open
// Questions section calls for: "the source's 'seeded historical external
// book' and random-walk price updater appear to be a demo feature; they
// are not part of the core and should be implemented as an external
// data-seeder collaborator." It is grounded on original_source/app/
// populate_market_data.py and populate_trades.py, reimplemented against
// the engine's public Submit API rather than writing store keys
// directly, so it can never desync from the invariants the matching
// engine itself enforces.
//
// Nothing in internal/matching, internal/book, internal/ledger or
// internal/risk imports this package; it is a pure consumer of their
// public APIs, exactly as the excluded populator scripts were external
// callers of the original system's HTTP API.
package seed

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/domain"
	"fenrir/internal/ledger"
	"fenrir/internal/matching"
)

// Symbol is one demo instrument and the starting mid price that
// Populate lays lit-book depth around.
type Symbol struct {
	Ticker   string
	MidPrice decimal.Decimal
}

// DefaultSymbols mirrors the handful of tickers original_source's
// per-asset-class fixtures used for equities, isolated here behind the
// demo flag rather than mixed into any live endpoint response (spec.md
// Open Questions: "these should be dropped or clearly isolated behind a
// demo flag").
var DefaultSymbols = []Symbol{
	{"AAPL", decimal.NewFromInt(150)},
	{"MSFT", decimal.NewFromInt(300)},
	{"GOOG", decimal.NewFromInt(120)},
}

// Populate lays down a handful of resting orders per symbol, a few price
// levels on each side, using the two given account ids as counterparties
// (one seeded long the inventory needed to sell, one funded to buy).
// It is not idempotent: each call seeds more inventory and adds more
// resting liquidity, so it is meant to be called once per process.
func Populate(engine *matching.Engine, l *ledger.Ledger, sellerAccountID, buyerAccountID string, symbols []Symbol) error {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	for _, sym := range symbols {
		// The seller needs inventory on hand before the risk gate will
		// admit a sell order (spec.md §4.2 check 8: short-selling
		// disallowed); seed enough to cover every level laid down below.
		if err := l.SeedPosition(sellerAccountID, sym.Ticker, 50*(1+2+3), sym.MidPrice); err != nil {
			return err
		}
		for i := int64(0); i < 3; i++ {
			bidPrice := sym.MidPrice.Sub(decimal.NewFromInt(i + 1))
			askPrice := sym.MidPrice.Add(decimal.NewFromInt(i + 1))

			if _, err := engine.Submit(&domain.Order{
				AccountID: buyerAccountID, Symbol: sym.Ticker, Side: domain.Buy,
				OrderType: domain.Limit, LimitPrice: bidPrice, Quantity: 50 * (i + 1), TIF: domain.GTC,
			}); err != nil {
				return err
			}
			if _, err := engine.Submit(&domain.Order{
				AccountID: sellerAccountID, Symbol: sym.Ticker, Side: domain.Sell,
				OrderType: domain.Limit, LimitPrice: askPrice, Quantity: 50 * (i + 1), TIF: domain.GTC,
			}); err != nil {
				return err
			}
		}
		log.Info().Str("symbol", sym.Ticker).Msg("seeded demo order book depth")
	}
	return nil
}
