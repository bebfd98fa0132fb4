// Package risk implements the pre-trade risk gate (spec.md C2): a pure
// synchronous function deciding whether an order may be admitted to the
// book, ported from original_source/app/risk_management.py's
// validate_order but reshaped into a closed Go type with a fixed,
// short-circuiting check order instead of a dict-driven dispatch.
package risk

import (
	"github.com/shopspring/decimal"

	"fenrir/internal/domain"
)

// MarketContext is the read-only market state the gate needs: the last
// traded price per symbol, for the volatility-band check.
type MarketContext struct {
	LastTradePrice map[string]decimal.Decimal
}

// AccountView is the subset of ledger state the gate needs about the
// submitting account, so internal/risk never imports internal/ledger.
type AccountView struct {
	Active             bool
	Balance            decimal.Decimal
	PositionQty        int64 // current inventory in the order's symbol
}

// Verdict is the gate's decision. Reason is empty iff Admit is true.
type Verdict struct {
	Admit  bool
	Reason string
}

func admit() Verdict  { return Verdict{Admit: true} }
func reject(reason string) Verdict { return Verdict{Admit: false, Reason: reason} }

// Gate evaluates orders against Limits. It holds no mutable state beyond
// the alert ring (spec.md §6: "list risk alerts"), and the alert ring is
// append-only bookkeeping, not an input to Evaluate's decision.
type Gate struct {
	limits *Limits
	alerts *alertRing
}

func NewGate(limits *Limits) *Gate {
	return &Gate{limits: limits, alerts: newAlertRing(500)}
}

func (g *Gate) Limits() *Limits { return g.limits }

// Evaluate runs the fixed-order checks from spec.md §4.2. The first
// failing check short-circuits the rest, matching the source's
// validate_order contract.
func (g *Gate) Evaluate(o *domain.Order, acct AccountView, mkt MarketContext) Verdict {
	v := g.evaluate(o, acct, mkt)
	if !v.Admit {
		g.alerts.add(Alert{
			OrderID:   o.ID,
			AccountID: o.AccountID,
			Symbol:    o.Symbol,
			Reason:    v.Reason,
		})
	}
	return v
}

func (g *Gate) evaluate(o *domain.Order, acct AccountView, mkt MarketContext) Verdict {
	// 1. Account exists and is active.
	if !acct.Active {
		return reject("account is disabled or not authorized to trade")
	}

	// 2. Symbol trading enabled.
	if !g.limits.SymbolEnabled(o.Symbol) {
		return reject("trading in " + o.Symbol + " is currently disabled")
	}

	// 3. Quantity bounds.
	if o.Quantity < g.limits.Defaults.MinQty {
		return reject("order quantity is below the minimum")
	}
	if o.Quantity > g.limits.Defaults.MaxQty {
		return reject("order quantity exceeds the maximum")
	}

	// 4. Limit-order price bounds.
	if o.OrderType == domain.Limit {
		if o.LimitPrice.LessThan(g.limits.Defaults.MinPrice) {
			return reject("limit price is below the minimum")
		}
		if o.LimitPrice.GreaterThan(g.limits.Defaults.MaxPrice) {
			return reject("limit price exceeds the maximum")
		}
	}

	// 5. Volatility band against the last trade price, limit orders only.
	if o.OrderType == domain.Limit {
		if last, ok := mkt.LastTradePrice[o.Symbol]; ok && !last.IsZero() {
			deviation := o.LimitPrice.Sub(last).Abs().Div(last)
			limitPct := g.limits.volatilityLimitPct(o.AccountID, o.Symbol).Div(decimal.NewFromInt(100))
			if deviation.GreaterThan(limitPct) {
				return reject("limit price deviates from the last trade price beyond the allowed band")
			}
		}
	}

	// 6. Max order value.
	if o.OrderType == domain.Limit {
		orderValue := o.LimitPrice.Mul(decimal.NewFromInt(o.Quantity))
		if orderValue.GreaterThan(g.limits.maxOrderValue(o.AccountID)) {
			return reject("order value exceeds the account's maximum order value")
		}
	}

	// 7 & 8. Sufficient funds (buy) / sufficient inventory (sell). Market
	// orders have no limit price to size a funds check against up front,
	// so market buys skip the funds check. The inventory check below
	// applies to market sells too, since short-selling is disallowed
	// regardless of order type.
	if o.Side == domain.Buy && o.OrderType == domain.Limit {
		cost := o.LimitPrice.Mul(decimal.NewFromInt(o.Quantity))
		if cost.GreaterThan(acct.Balance) {
			return reject("insufficient funds for order")
		}
	}
	if o.Side == domain.Sell {
		if acct.PositionQty < o.Quantity {
			return reject("insufficient inventory for sell order (short-selling disallowed)")
		}
	}

	return admit()
}

// Alert is a risk-rejection record (spec.md §6: "list risk alerts").
type Alert struct {
	OrderID   string
	AccountID string
	Symbol    string
	Reason    string
}

// Alerts returns up to limit of the most recent rejections, newest
// first. limit <= 0 returns everything retained.
func (g *Gate) Alerts(limit int) []Alert {
	return g.alerts.recent(limit)
}

// alertRing is a small fixed-capacity ring buffer; the bus-level
// duplicate tolerance spec.md accepts for events applies here too — a
// dropped alert under extreme rejection volume is acceptable, losing the
// risk gate's own decision is not.
type alertRing struct {
	buf []Alert
	cap int
}

func newAlertRing(capacity int) *alertRing {
	return &alertRing{cap: capacity}
}

func (r *alertRing) add(a Alert) {
	r.buf = append(r.buf, a)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
}

func (r *alertRing) recent(limit int) []Alert {
	n := len(r.buf)
	start := 0
	if limit > 0 && limit < n {
		start = n - limit
	}
	out := make([]Alert, 0, n-start)
	for i := n - 1; i >= start; i-- {
		out = append(out, r.buf[i])
	}
	return out
}
