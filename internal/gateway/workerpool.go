// Package gateway is the thin JSON-over-TCP collaborator standing in for
// spec.md §6's excluded REST/UI surface: just enough wire protocol to
// drive internal/matching.Engine, internal/ledger.Ledger and
// internal/risk.Gate from outside the process (cmd/exchctl is its demo
// client). All decision logic stays in internal/*; this package only
// decodes requests, calls the engine, and encodes responses.
package gateway

import (
	tomb "gopkg.in/tomb.v2"

	"github.com/rs/zerolog/log"
)

const taskChanSize = 256

// WorkerFunc processes one queued task (a net.Conn, here). Adapted from
// _examples/saiputravu-Exchange/internal/worker.go's WorkerFunction,
// generalized only in name.
type WorkerFunc func(t *tomb.Tomb, task any) error

// WorkerPool runs up to n concurrent workers pulling tasks off a shared
// channel, exactly as the teacher's pool does for its connection
// handling, reused here verbatim for the same purpose.
type WorkerPool struct {
	n     int
	tasks chan any
	work  WorkerFunc
}

func NewWorkerPool(size int) *WorkerPool {
	return &WorkerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

// AddTask enqueues a unit of work (typically a net.Conn) for a worker to
// pick up.
func (p *WorkerPool) AddTask(task any) {
	p.tasks <- task
}

// Setup keeps exactly n workers alive under the tomb until it starts
// dying, restarting any worker that returns.
func (p *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunc) {
	p.work = work
	log.Info().Int("workers", p.n).Msg("gateway worker pool starting")
	active := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if active < p.n {
				t.Go(func() error {
					err := p.worker(t)
					active--
					return err
				})
				active++
			}
		}
	}
}

func (p *WorkerPool) worker(t *tomb.Tomb) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-p.tasks:
		if err := p.work(t, task); err != nil {
			log.Error().Err(err).Msg("gateway worker exiting")
			return err
		}
	}
	return nil
}
