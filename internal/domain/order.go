package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the canonical order record. Fields mirror spec.md §3 exactly.
//
// Invariant: Filled <= Quantity; Status == Filled iff Filled == Quantity;
// Status in {Cancelled, Rejected, Filled} implies the order is absent from
// every book and active-order index (enforced by internal/matching and
// internal/store, not here).
type Order struct {
	ID          string
	AccountID   string
	Symbol      string
	Side        Side
	OrderType   OrderType
	LimitPrice  decimal.Decimal // unused for Market orders
	Quantity    int64           // original requested quantity
	Filled      int64
	Status      OrderStatus
	TIF         TIF
	Internal    bool // true routes to the dark pool first
	SubmittedAt time.Time
	ClosedAt    *time.Time
	RejectReason string
	// ExecPrice is the VWAP over all fills for this order; meaningful once
	// Filled > 0. For a fully-resting, never-matched limit order it is zero.
	ExecPrice decimal.Decimal
	Edited       bool
	LastEditedAt *time.Time
}

// Remaining is the quantity still eligible to match.
func (o *Order) Remaining() int64 {
	return o.Quantity - o.Filled
}

// Clone returns a deep-enough copy for safe external exposure: callers
// must not be able to mutate engine-owned state through a returned Order.
func (o *Order) Clone() *Order {
	cp := *o
	if o.ClosedAt != nil {
		t := *o.ClosedAt
		cp.ClosedAt = &t
	}
	if o.LastEditedAt != nil {
		t := *o.LastEditedAt
		cp.LastEditedAt = &t
	}
	return &cp
}
