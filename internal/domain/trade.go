package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an append-only execution record. Never mutated after write.
type Trade struct {
	ID            string
	Symbol        string
	BuyOrderID    string
	SellOrderID   string
	BuyAccountID  string
	SellAccountID string
	Price         decimal.Decimal
	Quantity      int64
	Timestamp     time.Time
	Internal      bool // true if this crossed (at least partly) in the dark pool
}
