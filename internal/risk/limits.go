package risk

import "github.com/shopspring/decimal"

// DefaultKey is the fallback bucket used when no account- or
// symbol-specific override exists, mirroring original_source/app/
// risk_management.py's account_limits["default"] / symbol_limits["default"]
// dictionaries — reimplemented here as a typed struct with an explicit
// default entry rather than an open dict (spec.md DESIGN NOTES §9).
const DefaultKey = "default"

// Defaults holds the process-wide fallback risk parameters, sourced from
// internal/config (spec.md §6: MAX_ORDER_SIZE, MIN_ORDER_SIZE, MAX_PRICE,
// MIN_PRICE, PRICE_DEVIATION_PCT).
type Defaults struct {
	MinQty              int64
	MaxQty              int64
	MinPrice            decimal.Decimal
	MaxPrice            decimal.Decimal
	VolatilityLimitPct  decimal.Decimal
	MaxOrderValue       decimal.Decimal
}

// AccountLimits overrides Defaults for one account. Nil fields fall back:
// MaxOrderValue to Defaults, VolatilityLimitPct to SymbolLimits and then
// Defaults.
type AccountLimits struct {
	MaxOrderValue      *decimal.Decimal
	VolatilityLimitPct *decimal.Decimal
}

// SymbolLimits overrides Defaults for one symbol.
type SymbolLimits struct {
	Enabled             bool
	VolatilityLimitPct  *decimal.Decimal
}

// Limits is the two-level (account, symbol) override table the Gate
// evaluates against, plus the process defaults.
type Limits struct {
	Defaults Defaults
	Accounts map[string]AccountLimits
	Symbols  map[string]SymbolLimits
}

func NewLimits(d Defaults) *Limits {
	return &Limits{
		Defaults: d,
		Accounts: make(map[string]AccountLimits),
		Symbols:  make(map[string]SymbolLimits),
	}
}

func (l *Limits) SetAccountLimit(account string, al AccountLimits) {
	l.Accounts[account] = al
}

func (l *Limits) SetSymbolLimit(symbol string, sl SymbolLimits) {
	l.Symbols[symbol] = sl
}

// SymbolEnabled reports whether trading is enabled for symbol. Unknown
// symbols default to enabled, matching the original's "default" fallback
// which only disables symbols explicitly configured to be disabled.
// Callers that set a SymbolLimits entry for other overrides (e.g. a
// volatility band) while leaving the symbol tradeable must set
// Enabled: true explicitly.
func (l *Limits) SymbolEnabled(symbol string) bool {
	sl, ok := l.Symbols[symbol]
	if !ok {
		return true
	}
	return sl.Enabled
}

func (l *Limits) maxOrderValue(account string) decimal.Decimal {
	if al, ok := l.Accounts[account]; ok && al.MaxOrderValue != nil {
		return *al.MaxOrderValue
	}
	return l.Defaults.MaxOrderValue
}

func (l *Limits) volatilityLimitPct(account, symbol string) decimal.Decimal {
	if al, ok := l.Accounts[account]; ok && al.VolatilityLimitPct != nil {
		return *al.VolatilityLimitPct
	}
	if sl, ok := l.Symbols[symbol]; ok && sl.VolatilityLimitPct != nil {
		return *sl.VolatilityLimitPct
	}
	return l.Defaults.VolatilityLimitPct
}
