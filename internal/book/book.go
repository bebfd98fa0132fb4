// Package book implements the per-symbol, price-time-priority order
// index (spec.md C4): one Book per symbol per lit/dark pool, each holding
// a Bids and an Asks Side. It is a pure data structure — no locking, no
// I/O — the surrounding internal/store package is what guards it with a
// single mutex so every mutation is atomic from a reader's perspective.
//
// Each price level is realized as a FIFO queue of resting orders
// (arrival order == price-time priority within the level), backed by
// github.com/tidwall/btree for the ordered-by-price index across levels.
// This is the concrete choice behind spec.md §4.4's abstract "single
// sortable (price, time) score": a per-level queue gives identical
// ordering guarantees without floating-point epsilon tricks. See
// DESIGN.md.
package book

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"fenrir/internal/domain"
)

// PriceLevel holds every resting order at one price, oldest first.
type PriceLevel struct {
	Price  decimal.Decimal
	Orders []*domain.Order
}

// Side is one ordered side (bids or asks) of one pool (lit or dark) of
// one symbol's book.
type Side struct {
	levels *btree.BTreeG[*PriceLevel]
	isBid  bool
}

func newSide(isBid bool) *Side {
	var less func(a, b *PriceLevel) bool
	if isBid {
		// Highest price first.
		less = func(a, b *PriceLevel) bool { return a.Price.GreaterThan(b.Price) }
	} else {
		// Lowest price first.
		less = func(a, b *PriceLevel) bool { return a.Price.LessThan(b.Price) }
	}
	return &Side{levels: btree.NewBTreeG(less), isBid: isBid}
}

// Insert adds o to its price level, creating the level if necessary.
func (s *Side) Insert(o *domain.Order) {
	probe := &PriceLevel{Price: o.LimitPrice}
	if lvl, ok := s.levels.GetMut(probe); ok {
		lvl.Orders = append(lvl.Orders, o)
		return
	}
	s.levels.Set(&PriceLevel{Price: o.LimitPrice, Orders: []*domain.Order{o}})
}

// Remove takes o out of its price level (wherever it sits in the FIFO
// queue), deleting the level if it becomes empty. No-op if o isn't
// present at the given price.
func (s *Side) Remove(o *domain.Order) {
	probe := &PriceLevel{Price: o.LimitPrice}
	lvl, ok := s.levels.GetMut(probe)
	if !ok {
		return
	}
	for i, cand := range lvl.Orders {
		if cand.ID == o.ID {
			lvl.Orders = append(lvl.Orders[:i], lvl.Orders[i+1:]...)
			break
		}
	}
	if len(lvl.Orders) == 0 {
		s.levels.Delete(lvl)
	}
}

// Best returns the best (highest bid / lowest ask) non-empty level.
func (s *Side) Best() (*PriceLevel, bool) {
	return s.levels.Min()
}

// BestExcluding returns the highest-priority order not present in skip,
// scanning price levels best-to-worst and orders oldest-to-newest within
// a level. It is the primitive self-trade prevention (spec.md §4.4) is
// built on: the matching loop adds an order's id to skip and retries
// rather than removing it from the book.
func (s *Side) BestExcluding(skip map[string]bool) (*domain.Order, bool) {
	var found *domain.Order
	s.levels.Scan(func(lvl *PriceLevel) bool {
		for _, o := range lvl.Orders {
			if !skip[o.ID] {
				found = o
				return false
			}
		}
		return true
	})
	return found, found != nil
}

// Depth returns up to n best price levels, best first. n<=0 means all
// levels. Returned levels are snapshots (new slices) so callers cannot
// mutate the live book.
func (s *Side) Depth(n int) []*PriceLevel {
	var out []*PriceLevel
	s.levels.Scan(func(lvl *PriceLevel) bool {
		cp := &PriceLevel{Price: lvl.Price, Orders: append([]*domain.Order(nil), lvl.Orders...)}
		out = append(out, cp)
		return n <= 0 || len(out) < n
	})
	return out
}

// Len returns the number of resting orders on this side.
func (s *Side) Len() int {
	n := 0
	s.levels.Scan(func(lvl *PriceLevel) bool {
		n += len(lvl.Orders)
		return true
	})
	return n
}

// Book is one symbol's bid/ask pair for a single pool (lit or dark).
type Book struct {
	Bids *Side
	Asks *Side
}

func New() *Book {
	return &Book{Bids: newSide(true), Asks: newSide(false)}
}

// SideFor returns the Side an order rests on (Bids for buys, Asks for
// sells).
func (b *Book) SideFor(side domain.Side) *Side {
	if side == domain.Buy {
		return b.Bids
	}
	return b.Asks
}
