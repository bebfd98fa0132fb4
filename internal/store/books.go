package store

import (
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/domain"
)

// bookFor returns the lit or dark book.Book for symbol, creating it on
// first touch. Callers must hold the store's write lock (i.e. this is
// only ever called from a Tx method).
func (s *Store) bookFor(symbol string, internal bool) *book.Book {
	m := s.litBooks
	if internal {
		m = s.darkBooks
	}
	b, ok := m[symbol]
	if !ok {
		b = book.New()
		m[symbol] = b
	}
	return b
}

// BookInsert rests o on its symbol's lit or dark book, per o.Internal.
func (tx *Tx) BookInsert(o *domain.Order) {
	b := tx.s.bookFor(o.Symbol, o.Internal)
	b.SideFor(o.Side).Insert(o)
}

// BookRemove takes o off whichever book it rests on. No-op if absent.
func (tx *Tx) BookRemove(o *domain.Order) {
	b := tx.s.bookFor(o.Symbol, o.Internal)
	b.SideFor(o.Side).Remove(o)
}

// BookBestExcluding returns the best resting order on the given side of
// symbol's book within the given pool, skipping ids in skip (self-trade
// prevention, spec.md §4.4).
func (tx *Tx) BookBestExcluding(symbol string, side domain.Side, internal bool, skip map[string]bool) (*domain.Order, bool) {
	b := tx.s.bookFor(symbol, internal)
	return b.SideFor(side).BestExcluding(skip)
}

// BookLen reports how many resting orders sit on one side of one pool.
func (tx *Tx) BookLen(symbol string, side domain.Side, internal bool) int {
	return tx.s.bookFor(symbol, internal).SideFor(side).Len()
}

// BookDepth is the Tx-scoped, non-locking twin of Store.BookDepth: it
// reaches the book package directly rather than through Store's RWMutex,
// since the caller (internal/matching) already holds the write lock for
// the whole transaction and a second RLock from the same goroutine would
// deadlock. n <= 0 returns every level.
func (tx *Tx) BookDepth(symbol string, side domain.Side, internal bool, n int) []*book.PriceLevel {
	return tx.s.bookFor(symbol, internal).SideFor(side).Depth(n)
}

// SetLastTradePrice records the most recent execution price for symbol,
// feeding the risk gate's volatility-band check (spec.md §4.2).
func (tx *Tx) SetLastTradePrice(symbol string, price decimal.Decimal) {
	tx.s.lastTradePrice[symbol] = price
}

// LastTradePrices is the Tx-scoped snapshot used to build a
// risk.MarketContext from inside an in-flight transaction.
func (tx *Tx) LastTradePrices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(tx.s.lastTradePrice))
	for k, v := range tx.s.lastTradePrice {
		out[k] = v
	}
	return out
}

// LastTradePrice is the lock-free read used outside a transaction (e.g.
// for display).
func (s *Store) LastTradePrice(symbol string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.lastTradePrice[symbol]
	return p, ok
}

// --- lock-free / snapshot reads ---------------------------------------

// BookDepth returns up to n best price levels on one side of one pool,
// for read-only display (spec.md §6: "view order book depth").
func (s *Store) BookDepth(symbol string, side domain.Side, internal bool, n int) []*book.PriceLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.litBooks
	if internal {
		m = s.darkBooks
	}
	b, ok := m[symbol]
	if !ok {
		return nil
	}
	return b.SideFor(side).Depth(n)
}

// BookSymbols returns every symbol with a lit or dark book allocated,
// regardless of whether it currently holds resting orders.
func (s *Store) BookSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for sym := range s.litBooks {
		seen[sym] = struct{}{}
	}
	for sym := range s.darkBooks {
		seen[sym] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	return out
}
