package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a trading account. It is owned entirely by internal/ledger:
// created once, never destroyed, only ever disabled via Active=false.
type Account struct {
	ID        string
	Name      string
	Balance   decimal.Decimal
	Type      string // e.g. "standard", "institutional"
	RiskLevel string // e.g. "low", "medium", "high"
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Position is the composite (account, symbol) holding. It is created
// lazily on first fill and persists at zero rather than being deleted.
type Position struct {
	AccountID string
	Symbol    string
	Quantity  int64 // signed; negative would mean short, disallowed by risk gate
	AvgCost   decimal.Decimal
}

// Transaction is an append-only ledger entry. Never mutated after write.
type Transaction struct {
	ID          string
	AccountID   string
	Type        TransactionType
	Amount      decimal.Decimal // signed
	PostBalance decimal.Decimal
	Description string
	Timestamp   time.Time
}
