package domain

import "fmt"

// ErrorKind is the stable, machine-readable error taxonomy from spec.md §7.
// Recoverable kinds (Transient) are retried internally; everything else is
// surfaced to the caller with this kind plus a human message.
type ErrorKind string

const (
	ErrKindValidation ErrorKind = "validation"
	ErrKindRisk       ErrorKind = "risk_rejected"
	ErrKindAuth       ErrorKind = "authorization"
	ErrKindConflict   ErrorKind = "conflict"
	ErrKindTransient  ErrorKind = "transient"
	ErrKindInvariant  ErrorKind = "invariant_violation"
	ErrKindNotFound   ErrorKind = "not_found"
)

// TradingError is the error type every package-boundary call returns for
// anything that isn't a plain Go sentinel. It carries a stable Kind so
// callers (and eventually the excluded HTTP layer) can branch on it
// without string matching.
type TradingError struct {
	Kind ErrorKind
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *TradingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *TradingError) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, msg string) *TradingError {
	return &TradingError{Kind: kind, Msg: msg}
}

func WrapError(kind ErrorKind, msg string, cause error) *TradingError {
	return &TradingError{Kind: kind, Msg: msg, Err: cause}
}

// IsKind reports whether err is a *TradingError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	te, ok := err.(*TradingError)
	return ok && te.Kind == kind
}
