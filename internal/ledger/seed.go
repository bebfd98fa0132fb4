package ledger

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// sampleAccount is a fixture for SeedIfEmpty, grounded on
// original_source/app/accounts.py's _seed_sample_accounts.
type sampleAccount struct {
	name      string
	balance   decimal.Decimal
	acctType  string
	riskLevel string
}

var defaultSampleAccounts = []sampleAccount{
	{"Alpha Capital", decimal.NewFromInt(1_000_000), "institutional", "medium"},
	{"Beta Trading", decimal.NewFromInt(500_000), "standard", "low"},
	{"Gamma Quant", decimal.NewFromInt(250_000), "standard", "high"},
}

// SeedIfEmpty creates the default sample accounts iff no accounts exist
// yet, per spec.md §4.3: "Seeds sample accounts at first startup iff the
// accounts index is empty." Returns the ids of the created accounts, or
// nil if seeding was skipped because accounts already exist.
func (l *Ledger) SeedIfEmpty() ([]string, error) {
	if len(l.List()) > 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(defaultSampleAccounts))
	for _, sa := range defaultSampleAccounts {
		acct, err := l.Create(sa.name, sa.balance, sa.acctType, sa.riskLevel)
		if err != nil {
			return ids, err
		}
		ids = append(ids, acct.ID)
	}
	log.Info().Int("count", len(ids)).Msg("seeded sample accounts")
	return ids, nil
}
