// Package ledger implements the account ledger (spec.md C3): balances,
// positions and transaction history, settled atomically by the matching
// engine. Settle takes the caller's *store.Tx so a trade's settlement
// composes into the same atomic unit as the book update that triggered
// it (spec.md §4.3: "all four mutations must be observable together or
// not at all"); the other mutating methods open their own
// store.WithLock call.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/domain"
	"fenrir/internal/store"
)

type Ledger struct {
	store *store.Store
}

func New(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// Create opens a new account with an initial deposit transaction,
// grounded on original_source/app/accounts.py's create_account.
func (l *Ledger) Create(name string, initialBalance decimal.Decimal, accountType, riskLevel string) (*domain.Account, error) {
	acct := &domain.Account{
		ID:        "acc-" + uuid.New().String(),
		Name:      name,
		Balance:   initialBalance,
		Type:      accountType,
		RiskLevel: riskLevel,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	err := l.store.WithLock("", func(tx *store.Tx) error {
		tx.PutAccount(acct)
		tx.AppendTransaction(&domain.Transaction{
			ID:          "txn-" + uuid.New().String(),
			AccountID:   acct.ID,
			Type:        domain.TxDeposit,
			Amount:      initialBalance,
			PostBalance: initialBalance,
			Description: "initial account funding",
			Timestamp:   time.Now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("accountID", acct.ID).Str("name", name).Str("balance", initialBalance.String()).Msg("account created")
	return acct, nil
}

func (l *Ledger) Get(accountID string) (*domain.Account, error) {
	a, ok := l.store.GetAccount(accountID)
	if !ok {
		return nil, domain.NewError(domain.ErrKindNotFound, "account not found")
	}
	return a, nil
}

func (l *Ledger) List() []*domain.Account {
	return l.store.ListAccounts()
}

// Update changes mutable account fields (name/type/risk/active).
func (l *Ledger) Update(accountID string, name, accountType, riskLevel *string, active *bool) (*domain.Account, error) {
	var out *domain.Account
	err := l.store.WithLock("", func(tx *store.Tx) error {
		a, ok := tx.GetAccount(accountID)
		if !ok {
			return domain.NewError(domain.ErrKindNotFound, "account not found")
		}
		if name != nil {
			a.Name = *name
		}
		if accountType != nil {
			a.Type = *accountType
		}
		if riskLevel != nil {
			a.RiskLevel = *riskLevel
		}
		if active != nil {
			a.Active = *active
		}
		a.UpdatedAt = time.Now()
		tx.PutAccount(a)
		out = a
		return nil
	})
	return out, err
}

// Adjust applies a non-trade balance change (deposit/withdrawal/
// adjustment/fee) and records the transaction. Returns the new balance.
func (l *Ledger) Adjust(accountID string, amount decimal.Decimal, txType domain.TransactionType, desc string) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := l.store.WithLock("", func(tx *store.Tx) error {
		a, ok := tx.GetAccount(accountID)
		if !ok {
			return domain.NewError(domain.ErrKindNotFound, "account not found")
		}
		newBalance = a.Balance.Add(amount)
		if newBalance.IsNegative() {
			return domain.NewError(domain.ErrKindValidation, "adjustment would drive balance negative")
		}
		a.Balance = newBalance
		a.UpdatedAt = time.Now()
		tx.PutAccount(a)
		tx.AppendTransaction(&domain.Transaction{
			ID:          "txn-" + uuid.New().String(),
			AccountID:   accountID,
			Type:        txType,
			Amount:      amount,
			PostBalance: newBalance,
			Description: desc,
			Timestamp:   time.Now(),
		})
		return nil
	})
	return newBalance, err
}

func (l *Ledger) GetPosition(accountID, symbol string) domain.Position {
	if p, ok := l.store.GetPosition(accountID, symbol); ok {
		return *p
	}
	return domain.Position{AccountID: accountID, Symbol: symbol}
}

func (l *Ledger) ListPositions(accountID string) []*domain.Position {
	return l.store.ListPositions(accountID)
}

// SeedPosition grants a starting inventory outside of any trade. It
// exists for the external data-seeder collaborator (internal/seed) and
// for test fixtures that need an account to already hold shares before
// it can pass the risk gate's sufficient-inventory check; it is not part
// of the settlement contract and is never called from internal/matching.
func (l *Ledger) SeedPosition(accountID, symbol string, qty int64, avgCost decimal.Decimal) error {
	return l.store.WithLock(symbol, func(tx *store.Tx) error {
		pos, ok := tx.GetPosition(accountID, symbol)
		if !ok {
			pos = &domain.Position{AccountID: accountID, Symbol: symbol}
		}
		pos.Quantity += qty
		pos.AvgCost = avgCost
		tx.PutPosition(pos)
		return nil
	})
}

func (l *Ledger) Transactions(accountID string, limit int) []*domain.Transaction {
	return l.store.Transactions(accountID, limit)
}

// Settle performs the four-mutation settlement contract from spec.md
// §4.3 inside the caller's transaction, so it is observable only
// together with whatever book/order mutations the caller bundles in the
// same store.WithLock call.
//
//   - debit buyer by qty*price, credit seller by qty*price
//   - increase buyer's position (volume-weighted average cost)
//   - decrease seller's position (average cost unchanged; realized P&L
//     is out of scope per spec.md §1)
func (l *Ledger) Settle(tx *store.Tx, buyAcct, sellAcct, symbol string, qty int64, price decimal.Decimal) error {
	buyer, ok := tx.GetAccount(buyAcct)
	if !ok {
		return domain.NewError(domain.ErrKindNotFound, "buy account not found")
	}
	seller, ok := tx.GetAccount(sellAcct)
	if !ok {
		return domain.NewError(domain.ErrKindNotFound, "sell account not found")
	}
	if buyer.ID == seller.ID {
		return domain.NewError(domain.ErrKindInvariant, "buy and sell accounts must differ")
	}

	notional := price.Mul(decimal.NewFromInt(qty))
	now := time.Now()

	// Debit buyer.
	buyer.Balance = buyer.Balance.Sub(notional)
	buyer.UpdatedAt = now
	tx.PutAccount(buyer)
	tx.AppendTransaction(&domain.Transaction{
		ID: "txn-" + uuid.New().String(), AccountID: buyer.ID, Type: domain.TxTrade,
		Amount: notional.Neg(), PostBalance: buyer.Balance,
		Description: "buy " + symbol, Timestamp: now,
	})

	// Credit seller.
	seller.Balance = seller.Balance.Add(notional)
	seller.UpdatedAt = now
	tx.PutAccount(seller)
	tx.AppendTransaction(&domain.Transaction{
		ID: "txn-" + uuid.New().String(), AccountID: seller.ID, Type: domain.TxTrade,
		Amount: notional, PostBalance: seller.Balance,
		Description: "sell " + symbol, Timestamp: now,
	})

	// Increase buyer position (volume-weighted average cost).
	buyerPos, ok := tx.GetPosition(buyer.ID, symbol)
	if !ok {
		buyerPos = &domain.Position{AccountID: buyer.ID, Symbol: symbol}
	}
	newQty := buyerPos.Quantity + qty
	oldNotional := buyerPos.AvgCost.Mul(decimal.NewFromInt(buyerPos.Quantity))
	buyerPos.AvgCost = oldNotional.Add(notional).Div(decimal.NewFromInt(newQty))
	buyerPos.Quantity = newQty
	tx.PutPosition(buyerPos)

	// Decrease seller position; average cost is unchanged.
	sellerPos, ok := tx.GetPosition(seller.ID, symbol)
	if !ok {
		sellerPos = &domain.Position{AccountID: seller.ID, Symbol: symbol}
	}
	sellerPos.Quantity -= qty
	tx.PutPosition(sellerPos)

	return nil
}
