// Package matching implements the core matching engine (spec.md C5): order
// admission through the risk gate, price-time-priority crossing against
// the lit and dark books, settlement through internal/ledger, and the
// continuous background driver.
//
// Every mutating operation (Submit, Cancel, Edit) runs its whole body
// inside one internal/store.Store.WithLock call, so a match's book
// update, order-status transitions and ledger settlement are a single
// atomic unit (spec.md §5). This mirrors the teacher's OrderBook.PlaceOrder
// -> Match() pipeline (_examples/saiputravu-Exchange/internal/engine/
// orderbook.go), generalized from a single in-process book to the
// store-guarded lit/dark pair per symbol.
package matching

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/domain"
	"fenrir/internal/events"
	"fenrir/internal/ledger"
	"fenrir/internal/risk"
	"fenrir/internal/store"
)

// Apart from haltedMu, which guards only the halted-symbol map, Engine
// owns no locks of its own; internal/store.Store is the single source of
// synchronization for orders, books and accounts, per spec.md §5 option (c).
type Engine struct {
	store           *store.Store
	ledger          *ledger.Ledger
	gate            *risk.Gate
	bus             *events.Bus // may be nil; publishing is best-effort
	darkPoolEnabled bool

	haltedMu sync.RWMutex
	halted   map[string]string
}

func New(s *store.Store, l *ledger.Ledger, g *risk.Gate, bus *events.Bus, darkPoolEnabled bool) *Engine {
	return &Engine{
		store:           s,
		ledger:          l,
		gate:            g,
		bus:             bus,
		darkPoolEnabled: darkPoolEnabled,
		halted:          make(map[string]string),
	}
}

// publish is a nil-safe fan-out helper so matching never has to guard
// every call site against a missing bus (e.g. in tests).
func (e *Engine) publish(channel string, ev events.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(channel, ev)
}

// HaltedSymbols returns the symbols the continuous driver has taken out
// of service, each mapped to its halt reason, per spec.md §9's halt-on-invariant
// design note.
func (e *Engine) HaltedSymbols() map[string]string {
	e.haltedMu.RLock()
	defer e.haltedMu.RUnlock()
	out := make(map[string]string, len(e.halted))
	for k, v := range e.halted {
		out[k] = v
	}
	return out
}

func (e *Engine) isHalted(symbol string) bool {
	e.haltedMu.RLock()
	defer e.haltedMu.RUnlock()
	_, ok := e.halted[symbol]
	return ok
}

func (e *Engine) halt(symbol, reason string) {
	e.haltedMu.Lock()
	defer e.haltedMu.Unlock()
	e.halted[symbol] = reason
	log.Error().Str("symbol", symbol).Str("reason", reason).Msg("symbol halted")
}

func opposite(s domain.Side) domain.Side {
	if s == domain.Buy {
		return domain.Sell
	}
	return domain.Buy
}

// Submit admits a new order through the risk gate and, if admitted,
// matches it against the book before resting any remainder. The returned
// order reflects its final state for this call: Filled, PartiallyFilled,
// Open (resting), Cancelled (IOC/FOK remainder, or explicit cancel),
// Pending (market order with an unfilled remainder), or Rejected (risk
// gate).
func (e *Engine) Submit(o *domain.Order) (*domain.Order, error) {
	if o.ID == "" {
		o.ID = "ord-" + uuid.New().String()
	}
	o.SubmittedAt = time.Now()
	if o.OrderType == domain.Market {
		o.TIF = domain.IOC
	}

	var result *domain.Order
	err := e.store.WithLock(o.Symbol, func(tx *store.Tx) error {
		acct, ok := tx.GetAccount(o.AccountID)
		if !ok {
			return domain.NewError(domain.ErrKindNotFound, "account not found")
		}
		pos, _ := tx.GetPosition(o.AccountID, o.Symbol)
		var posQty int64
		if pos != nil {
			posQty = pos.Quantity
		}
		view := risk.AccountView{Active: acct.Active, Balance: acct.Balance, PositionQty: posQty}
		mkt := risk.MarketContext{LastTradePrice: tx.LastTradePrices()}

		verdict := e.gate.Evaluate(o, view, mkt)
		if !verdict.Admit {
			now := time.Now()
			o.Status = domain.Rejected
			o.RejectReason = verdict.Reason
			o.ClosedAt = &now
			tx.PutOrder(o)
			result = o
			return nil
		}

		o.Status = domain.Open
		if err := e.matchAndRest(tx, o); err != nil {
			return err
		}
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publishOrderUpdate(result)
	if result.Status == domain.Rejected {
		return result, domain.NewError(domain.ErrKindRisk, result.RejectReason)
	}
	return result, nil
}

// Cancel removes a resting order from its book. Returns a conflict error
// if the order is already terminal.
func (e *Engine) Cancel(orderID string) (*domain.Order, error) {
	o, ok := e.store.GetOrder(orderID)
	if !ok {
		return nil, domain.NewError(domain.ErrKindNotFound, "order not found")
	}
	var result *domain.Order
	err := e.store.WithLock(o.Symbol, func(tx *store.Tx) error {
		cur, ok := tx.GetOrder(orderID)
		if !ok {
			return domain.NewError(domain.ErrKindNotFound, "order not found")
		}
		if cur.Status.Terminal() {
			return domain.NewError(domain.ErrKindConflict, "order is already "+cur.Status.String())
		}
		now := time.Now()
		cur.Status = domain.Cancelled
		cur.ClosedAt = &now
		tx.BookRemove(cur)
		tx.RemoveFromIndices(cur)
		tx.PutOrder(cur)
		result = cur
		return nil
	})
	if err == nil {
		e.publishOrderUpdate(result)
	}
	return result, err
}

// Edit changes a resting limit order's price and/or quantity via
// cancel-replace: the order loses time priority (SubmittedAt resets) and
// is immediately re-run through the matching pass, since a price change
// may bring it back into cross. newQty may not drop below the quantity
// already filled.
func (e *Engine) Edit(orderID string, newPrice *decimal.Decimal, newQty *int64) (*domain.Order, error) {
	o, ok := e.store.GetOrder(orderID)
	if !ok {
		return nil, domain.NewError(domain.ErrKindNotFound, "order not found")
	}
	var result *domain.Order
	err := e.store.WithLock(o.Symbol, func(tx *store.Tx) error {
		cur, ok := tx.GetOrder(orderID)
		if !ok {
			return domain.NewError(domain.ErrKindNotFound, "order not found")
		}
		if cur.Status.Terminal() {
			return domain.NewError(domain.ErrKindConflict, "order is already "+cur.Status.String())
		}
		if cur.OrderType != domain.Limit {
			return domain.NewError(domain.ErrKindValidation, "only limit orders can be edited")
		}
		if newQty != nil && *newQty < cur.Filled {
			return domain.NewError(domain.ErrKindValidation, "new quantity cannot be below quantity already filled")
		}

		tx.BookRemove(cur)
		tx.RemoveFromIndices(cur)

		if newPrice != nil {
			cur.LimitPrice = *newPrice
		}
		if newQty != nil {
			cur.Quantity = *newQty
		}
		now := time.Now()
		cur.Edited = true
		cur.LastEditedAt = &now
		cur.SubmittedAt = now
		cur.Status = domain.Open

		if err := e.matchAndRest(tx, cur); err != nil {
			return err
		}
		result = cur
		return nil
	})
	if err == nil {
		e.publishOrderUpdate(result)
	}
	return result, err
}

// publishOrderUpdate notifies the owning account and the general
// orderbook-updates channel that o changed state.
func (e *Engine) publishOrderUpdate(o *domain.Order) {
	ev := events.Event{Type: events.OrderUpdated, Payload: o.Clone()}
	e.publish(events.AccountUpdates(o.AccountID), ev)
	e.publish(events.ChannelOrderBookUpdates, ev)
}

// matchAndRest runs the crossing pass for o against the opposite side of
// whichever pools apply, then either closes o out (fully filled, or no
// remainder allowed to rest per TIF) or rests the remainder on its book.
func (e *Engine) matchAndRest(tx *store.Tx, o *domain.Order) error {
	pools := e.poolOrder(o)
	oppSide := opposite(o.Side)

	if o.OrderType == domain.Limit && o.TIF == domain.FOK {
		if e.availableQuantity(tx, o, pools, oppSide) < o.Remaining() {
			now := time.Now()
			o.Status = domain.Cancelled
			o.RejectReason = "fill-or-kill: insufficient liquidity to fill immediately"
			o.ClosedAt = &now
			tx.PutOrder(o)
			return nil
		}
	}

	skip := make(map[string]bool)
	for _, internal := range pools {
		for o.Remaining() > 0 {
			best, ok := tx.BookBestExcluding(o.Symbol, oppSide, internal, skip)
			if !ok {
				break
			}
			if best.AccountID == o.AccountID {
				skip[best.ID] = true
				continue
			}
			if !priceAcceptable(o, best) {
				break
			}
			qty := min(o.Remaining(), best.Remaining())
			price := executionPrice(o, best)
			if err := e.executeTrade(tx, o, best, qty, price, internal); err != nil {
				return err
			}
			if best.Remaining() == 0 {
				now := time.Now()
				best.Status = domain.Filled
				best.ClosedAt = &now
				tx.BookRemove(best)
				tx.RemoveFromIndices(best)
			} else {
				best.Status = domain.PartiallyFilled
			}
			tx.PutOrder(best)
		}
		if o.Remaining() == 0 {
			break
		}
	}

	switch {
	case o.Remaining() == 0:
		now := time.Now()
		o.Status = domain.Filled
		o.ClosedAt = &now
	case o.OrderType == domain.Market:
		// Market orders never rest on the book; an unfilled remainder goes
		// Pending (spec.md §4.5) rather than resting or dying, and is
		// retried by the continuous driver's reconcileSymbol pass on a
		// later cycle once more liquidity appears.
		o.Status = domain.Pending
	case o.TIF == domain.IOC:
		now := time.Now()
		o.Status = domain.Cancelled
		o.ClosedAt = &now
	default:
		if o.Internal && !e.darkPoolEnabled {
			// With the dark pool disabled, rest on the lit book so lit
			// orders can reach this remainder.
			o.Internal = false
		}
		if o.Filled > 0 {
			o.Status = domain.PartiallyFilled
		} else {
			o.Status = domain.Open
		}
		tx.BookInsert(o)
	}
	tx.PutOrder(o)
	return nil
}

// poolOrder returns which pools (internal=dark, !internal=lit) to sweep,
// in preference order, per spec.md's dark-pool preference: an order
// flagged Internal tries internal-vs-internal first, then falls back to
// internal-vs-lit; a plain order only ever sees lit-vs-lit. When the dark
// pool is disabled process-wide, internal orders behave as lit orders.
func (e *Engine) poolOrder(o *domain.Order) []bool {
	if o.Internal && e.darkPoolEnabled {
		return []bool{true, false}
	}
	return []bool{false}
}

func priceAcceptable(taker, resting *domain.Order) bool {
	if taker.OrderType == domain.Market {
		return true
	}
	if taker.Side == domain.Buy {
		return resting.LimitPrice.LessThanOrEqual(taker.LimitPrice)
	}
	return resting.LimitPrice.GreaterThanOrEqual(taker.LimitPrice)
}

// executionPrice is the maker-price tie-break from spec.md §4.4: the
// earlier-submitted order's limit price. Submit and Edit both stamp the
// taker with a fresh SubmittedAt, so for limit takers the resting order
// (the maker) is normally the earlier one and this reduces to "trade at
// the maker's price". Market takers always trade at the resting price.
func executionPrice(taker, resting *domain.Order) decimal.Decimal {
	if taker.OrderType == domain.Market {
		return resting.LimitPrice
	}
	if earlier(taker, resting) {
		return taker.LimitPrice
	}
	return resting.LimitPrice
}

// earlier reports whether a is the earlier of a and b, by submission
// timestamp first and lexicographic order id on an exact tie (spec.md
// §4.5: "Crossed market with two orders at the same timestamp: break ties
// by order id lexicographic order").
func earlier(a, b *domain.Order) bool {
	if a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.ID < b.ID
	}
	return a.SubmittedAt.Before(b.SubmittedAt)
}

func (e *Engine) executeTrade(tx *store.Tx, taker, maker *domain.Order, qty int64, price decimal.Decimal, internal bool) error {
	var buyOrder, sellOrder *domain.Order
	if taker.Side == domain.Buy {
		buyOrder, sellOrder = taker, maker
	} else {
		buyOrder, sellOrder = maker, taker
	}
	if err := e.ledger.Settle(tx, buyOrder.AccountID, sellOrder.AccountID, taker.Symbol, qty, price); err != nil {
		return err
	}

	accumulateExec(taker, qty, price)
	accumulateExec(maker, qty, price)

	trade := &domain.Trade{
		ID:            "trd-" + uuid.New().String(),
		Symbol:        taker.Symbol,
		BuyOrderID:    buyOrder.ID,
		SellOrderID:   sellOrder.ID,
		BuyAccountID:  buyOrder.AccountID,
		SellAccountID: sellOrder.AccountID,
		Price:         price,
		Quantity:      qty,
		Timestamp:     time.Now(),
		Internal:      internal,
	}
	tx.AppendTrade(trade)
	tx.SetLastTradePrice(taker.Symbol, price)
	log.Info().Str("tradeID", trade.ID).Str("symbol", trade.Symbol).Str("price", price.String()).Int64("qty", qty).Bool("internal", internal).Msg("trade executed")

	ev := events.Event{Type: events.TradeExecuted, Payload: trade}
	e.publish(events.SymbolTrades(taker.Symbol), ev)
	e.publish(events.AccountNotifications(buyOrder.AccountID), ev)
	e.publish(events.AccountNotifications(sellOrder.AccountID), ev)
	return nil
}

// accumulateExec folds a new fill into an order's volume-weighted
// execution price and bumps Filled, mirroring the ledger position's
// average-cost accounting.
func accumulateExec(o *domain.Order, qty int64, price decimal.Decimal) {
	prevFilled := o.Filled
	newFilled := prevFilled + qty
	prevNotional := o.ExecPrice.Mul(decimal.NewFromInt(prevFilled))
	addNotional := price.Mul(decimal.NewFromInt(qty))
	o.ExecPrice = prevNotional.Add(addNotional).Div(decimal.NewFromInt(newFilled))
	o.Filled = newFilled
}

// availableQuantity sums resting quantity eligible to fill o (excluding
// o's own account, respecting o's limit price) across pools, without
// mutating anything. It backs the fill-or-kill precheck.
func (e *Engine) availableQuantity(tx *store.Tx, o *domain.Order, pools []bool, oppSide domain.Side) int64 {
	var total int64
	for _, internal := range pools {
		for _, lvl := range tx.BookDepth(o.Symbol, oppSide, internal, 0) {
			if o.OrderType == domain.Limit {
				if o.Side == domain.Buy && lvl.Price.GreaterThan(o.LimitPrice) {
					continue
				}
				if o.Side == domain.Sell && lvl.Price.LessThan(o.LimitPrice) {
					continue
				}
			}
			for _, resting := range lvl.Orders {
				if resting.AccountID == o.AccountID {
					continue
				}
				total += resting.Remaining()
			}
		}
	}
	return total
}
