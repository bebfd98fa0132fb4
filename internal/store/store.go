// Package store is the in-memory, key-addressed repository (spec.md C1):
// orders, accounts, positions, transactions and trades, plus the
// unordered active-index sets that the book and ledger layers build on.
//
// It mediates the atomic scripted multi-key mutation spec.md §4.1 and §5
// require. The reference implementation here uses a single in-process
// RWMutex (concurrency model option (c) from spec.md §5: "a global mutex
// (acceptable for a reference implementation, pessimal at scale)") rather
// than a per-symbol actor, since there is no distributed store to script
// against. See DESIGN.md for the tradeoff.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/domain"
)

// ErrUnavailable is returned by any mutating call while the store is in
// simulated-unavailable mode, standing in for spec.md §7's "transient
// store error" path.
var ErrUnavailable = domain.NewError(domain.ErrKindTransient, "store temporarily unavailable")

// Store is the in-memory repository. All exported methods are safe for
// concurrent use.
type Store struct {
	mu sync.RWMutex

	orders        map[string]*domain.Order
	ordersAll     map[string]struct{}
	symbolOrders  map[string]map[string]struct{}
	accountOrders map[string]map[string]struct{}

	accounts  map[string]*domain.Account
	positions map[string]*domain.Position // key: accountID + "|" + symbol

	transactions map[string][]*domain.Transaction

	trades        []*domain.Trade
	tradesByID    map[string]*domain.Trade
	accountTrades map[string][]*domain.Trade

	// litBooks and darkBooks hold one book.Book per symbol per pool.
	// Keeping them here, guarded by the same mutex as orders/accounts,
	// is what makes a match (book mutation + settlement) atomic from any
	// reader's perspective, per spec.md §5.
	litBooks  map[string]*book.Book
	darkBooks map[string]*book.Book

	lastTradePrice map[string]decimal.Decimal

	unavailable atomic.Bool
}

func New() *Store {
	return &Store{
		orders:        make(map[string]*domain.Order),
		ordersAll:     make(map[string]struct{}),
		symbolOrders:  make(map[string]map[string]struct{}),
		accountOrders: make(map[string]map[string]struct{}),
		accounts:      make(map[string]*domain.Account),
		positions:     make(map[string]*domain.Position),
		transactions:  make(map[string][]*domain.Transaction),
		tradesByID:    make(map[string]*domain.Trade),
		accountTrades: make(map[string][]*domain.Trade),
		litBooks:       make(map[string]*book.Book),
		darkBooks:      make(map[string]*book.Book),
		lastTradePrice: make(map[string]decimal.Decimal),
	}
}

// SimulateUnavailable toggles transient-failure simulation for tests
// exercising spec.md §7's retry/backoff path.
func (s *Store) SimulateUnavailable(down bool) {
	s.unavailable.Store(down)
}

func (s *Store) checkAvailable() error {
	if s.unavailable.Load() {
		return ErrUnavailable
	}
	return nil
}

func positionKey(account, symbol string) string { return account + "|" + symbol }

// Tx is the handle passed to the function given to WithLock. Every method
// on it assumes the caller already holds the store's write lock, so it
// never locks again and never blocks mid-mutation.
type Tx struct {
	s *Store
}

// WithLock runs fn as one atomic, indivisible mutation: the scripted
// multi-key transaction spec.md §4.1 calls for. On an ErrUnavailable
// return the caller (internal/matching's driver) is expected to retry
// with backoff; no partial writes are ever visible to other readers
// because the whole function body runs under the write lock.
func (s *Store) WithLock(symbol string, fn func(*Tx) error) error {
	if err := s.checkAvailable(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return err
	}
	return fn(&Tx{s: s})
}

// --- order repository -------------------------------------------------

func (tx *Tx) PutOrder(o *domain.Order) {
	s := tx.s
	s.orders[o.ID] = o
	if o.Status.Terminal() {
		return
	}
	s.ordersAll[o.ID] = struct{}{}
	if s.symbolOrders[o.Symbol] == nil {
		s.symbolOrders[o.Symbol] = make(map[string]struct{})
	}
	s.symbolOrders[o.Symbol][o.ID] = struct{}{}
	if s.accountOrders[o.AccountID] == nil {
		s.accountOrders[o.AccountID] = make(map[string]struct{})
	}
	s.accountOrders[o.AccountID][o.ID] = struct{}{}
}

// RemoveFromIndices strips a terminal order out of every active-set index
// (orders:all, symbol:{sym}:orders, account:{acct}:orders) without
// deleting the order record itself (it is still readable by id).
func (tx *Tx) RemoveFromIndices(o *domain.Order) {
	s := tx.s
	delete(s.ordersAll, o.ID)
	if set := s.symbolOrders[o.Symbol]; set != nil {
		delete(set, o.ID)
	}
	if set := s.accountOrders[o.AccountID]; set != nil {
		delete(set, o.ID)
	}
}

func (tx *Tx) GetOrder(id string) (*domain.Order, bool) {
	o, ok := tx.s.orders[id]
	return o, ok
}

// SymbolOrderIDs is the within-transaction twin of Store.SymbolOrderIDs: it
// assumes the caller already holds the write lock (e.g. the continuous
// driver resuming Pending market orders) and must not re-lock.
func (tx *Tx) SymbolOrderIDs(symbol string) []string {
	set := tx.s.symbolOrders[symbol]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (tx *Tx) AppendTrade(t *domain.Trade) {
	s := tx.s
	s.trades = append(s.trades, t)
	s.tradesByID[t.ID] = t
	s.accountTrades[t.BuyAccountID] = append(s.accountTrades[t.BuyAccountID], t)
	s.accountTrades[t.SellAccountID] = append(s.accountTrades[t.SellAccountID], t)
}

func (tx *Tx) GetAccount(id string) (*domain.Account, bool) {
	a, ok := tx.s.accounts[id]
	return a, ok
}

func (tx *Tx) PutAccount(a *domain.Account) {
	tx.s.accounts[a.ID] = a
}

func (tx *Tx) GetPosition(account, symbol string) (*domain.Position, bool) {
	p, ok := tx.s.positions[positionKey(account, symbol)]
	return p, ok
}

func (tx *Tx) PutPosition(p *domain.Position) {
	tx.s.positions[positionKey(p.AccountID, p.Symbol)] = p
}

func (tx *Tx) AppendTransaction(t *domain.Transaction) {
	s := tx.s
	s.transactions[t.AccountID] = append(s.transactions[t.AccountID], t)
}

// --- lock-free / snapshot reads ---------------------------------------
//
// spec.md §5: "Reads of book depth, order status, and account balances
// are lock-free / snapshot-consistent." An RLock is as close as a single
// process gets to lock-free while staying race-free; it never blocks on
// another reader and only ever blocks behind one in-flight match.

func (s *Store) GetOrder(id string) (*domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *Store) GetAccount(id string) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *Store) ListAccounts() []*domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out
}

func (s *Store) GetPosition(account, symbol string) (*domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[positionKey(account, symbol)]
	return p, ok
}

func (s *Store) ListPositions(account string) []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Position
	prefix := account + "|"
	for k, p := range s.positions {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, p)
		}
	}
	return out
}

// Transactions returns the most recent `limit` transactions for an
// account, newest first. limit <= 0 means "a sane default" (50), per the
// supplemented pagination behavior in SPEC_FULL.md §7.
func (s *Store) Transactions(account string, limit int) []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	all := s.transactions[account]
	n := len(all)
	start := n - limit
	if start < 0 {
		start = 0
	}
	out := make([]*domain.Transaction, 0, n-start)
	for i := n - 1; i >= start; i-- {
		out = append(out, all[i])
	}
	return out
}

func (s *Store) AccountOrderIDs(account string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.accountOrders[account]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (s *Store) SymbolOrderIDs(symbol string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.symbolOrders[symbol]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Symbols returns every symbol with at least one active (open,
// partially-filled or pending) order, used by the continuous driver to
// know what to sweep each cycle.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.symbolOrders))
	for sym, set := range s.symbolOrders {
		if len(set) > 0 {
			out = append(out, sym)
		}
	}
	return out
}

func (s *Store) AllTrades() []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

func (s *Store) AccountTrades(account string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Trade, len(s.accountTrades[account]))
	copy(out, s.accountTrades[account])
	return out
}

// Sweep removes any active-index entry whose order is missing or
// terminal. A correctly atomic matcher never leaves work for this; it is
// retained as a belt-and-suspenders diagnostic per spec.md's DESIGN
// NOTES (§9: "retain them only as ... a diagnostic that logs but never
// has work to do").
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	prune := func(set map[string]struct{}, scope string) {
		for id := range set {
			o, ok := s.orders[id]
			if !ok || o.Status.Terminal() {
				delete(set, id)
				log.Warn().Str("scope", scope).Str("orderID", id).Msg("sweep removed stale index entry")
			}
		}
	}
	prune(s.ordersAll, "orders:all")
	for sym, set := range s.symbolOrders {
		prune(set, "symbol:"+sym)
	}
	for acct, set := range s.accountOrders {
		prune(set, "account:"+acct)
	}
}
