package matching

import (
	"time"

	tomb "gopkg.in/tomb.v2"

	"github.com/rs/zerolog/log"

	"fenrir/internal/domain"
	"fenrir/internal/store"
)

// Run is the continuous background driver (spec.md §5: "runs continuously
// ... so a resting order ... is revisited"). Every mutating path
// (Submit/Cancel/Edit) already matches synchronously and atomically, so
// Run's job is the belt-and-suspenders one spec.md's DESIGN NOTES §9
// describe: sweep stale indices and check for book states that should be
// structurally impossible, halting a symbol rather than silently
// tolerating a crossed book. It follows the tomb.v2-supervised-goroutine
// shape of _examples/saiputravu-Exchange/internal/worker.go's WorkerPool,
// adapted from a task-queue pool to a single ticking reconciliation loop.
func (e *Engine) Run(t *tomb.Tomb, cycle time.Duration) error {
	ticker := time.NewTicker(cycle)
	defer ticker.Stop()

	backoff := cycle
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-t.Dying():
			log.Info().Msg("matching driver stopping")
			return nil
		case <-ticker.C:
			e.store.Sweep()
			for _, symbol := range e.store.Symbols() {
				if e.isHalted(symbol) {
					continue
				}
				resumed, err := e.reconcileSymbol(symbol)
				for _, o := range resumed {
					e.publishOrderUpdate(o)
				}
				if err != nil {
					if domain.IsKind(err, domain.ErrKindTransient) {
						log.Warn().Str("symbol", symbol).Dur("backoff", backoff).Msg("store unavailable, backing off")
						time.Sleep(backoff)
						if backoff < maxBackoff {
							backoff *= 2
						}
						continue
					}
					if domain.IsKind(err, domain.ErrKindInvariant) {
						e.halt(symbol, err.Error())
						continue
					}
					log.Error().Err(err).Str("symbol", symbol).Msg("reconcile failed")
					continue
				}
				backoff = cycle
			}
		}
	}
}

// reconcileSymbol asserts that a symbol's lit and dark books hold no
// crossed top-of-book across different accounts; a correctly atomic
// matchAndRest never leaves one, so finding one here means a bug, not a
// race, and the symbol is halted rather than auto-corrected. It also
// resumes any Pending market orders (spec.md §4.5: "re-attempted on
// subsequent matching cycles"), since a market order that found no
// liquidity at submission time isn't retried by anything else.
func (e *Engine) reconcileSymbol(symbol string) ([]*domain.Order, error) {
	var resumed []*domain.Order
	err := e.store.WithLock(symbol, func(tx *store.Tx) error {
		for _, internal := range []bool{false, true} {
			bestBid, okBid := tx.BookBestExcluding(symbol, domain.Buy, internal, nil)
			bestAsk, okAsk := tx.BookBestExcluding(symbol, domain.Sell, internal, nil)
			if !okBid || !okAsk {
				continue
			}
			if bestBid.AccountID == bestAsk.AccountID {
				continue
			}
			if bestBid.LimitPrice.GreaterThanOrEqual(bestAsk.LimitPrice) {
				return domain.NewError(domain.ErrKindInvariant, "crossed book detected for "+symbol)
			}
		}

		for _, id := range tx.SymbolOrderIDs(symbol) {
			o, ok := tx.GetOrder(id)
			if !ok || o.Status != domain.Pending {
				continue
			}
			if err := e.matchAndRest(tx, o); err != nil {
				return err
			}
			resumed = append(resumed, o)
		}
		return nil
	})
	return resumed, err
}
