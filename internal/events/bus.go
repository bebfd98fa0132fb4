// Package events implements the notification bus (spec.md C6): named,
// fire-and-forget pub/sub channels that tolerate slow or duplicate
// consumers. It follows the teacher's supervised-goroutine shape
// (_examples/saiputravu-Exchange/internal/worker.go's tomb.v2 pattern)
// applied to a single dispatch loop instead of a task-queue pool, since a
// publish here has no per-task result to wait on.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Type tags the shape of an Event's Payload.
type Type string

const (
	TradeExecuted Type = "trade_executed"
	OrderUpdated  Type = "order_updated"
	OrdersUpdated Type = "orders_updated"
	Refresh       Type = "refresh"
	Toast         Type = "toast"
)

// Well-known channel names. Account- and symbol-scoped channels are built
// with the helper functions below.
const (
	ChannelNotifications    = "notifications"
	ChannelOrderBookUpdates = "orderbook_updates"
)

func AccountNotifications(accountID string) string { return "account:" + accountID + ":notifications" }
func AccountUpdates(accountID string) string        { return "account:" + accountID + ":updates" }
func SymbolTrades(symbol string) string              { return "trades:" + symbol }

// Event is one published notification.
type Event struct {
	Type      Type
	Channel   string
	Payload   any
	Timestamp time.Time
}

type publishReq struct {
	channel string
	event   Event
}

// Bus is a named-channel pub/sub broker. Publish never blocks the caller
// beyond a bounded ingress queue; a full queue drops the event rather
// than apply backpressure to the matching engine, and a full subscriber
// buffer drops its oldest unread event rather than the new one, per
// spec.md's "duplicate-tolerant, at-most-once" notification contract.
type Bus struct {
	in   chan publishReq
	subs map[string][]chan Event
	mu   sync.RWMutex
}

func New(ingressBuffer int) *Bus {
	return &Bus{
		in:   make(chan publishReq, ingressBuffer),
		subs: make(map[string][]chan Event),
	}
}

// Run drains the ingress queue and fans events out to subscribers until
// the tomb starts dying.
func (b *Bus) Run(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case req := <-b.in:
			b.dispatch(req.channel, req.event)
		}
	}
}

// Publish enqueues ev for delivery on channel. Fire-and-forget: a full
// ingress queue logs and drops rather than blocking the caller, since the
// caller is usually inside a held store lock.
func (b *Bus) Publish(channel string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case b.in <- publishReq{channel: channel, event: ev}:
	default:
		log.Warn().Str("channel", channel).Msg("event bus ingress full, dropping event")
	}
}

// Subscribe returns a channel that receives every Event published on
// channel from this point on, plus an unsubscribe func. The returned
// channel is buffered; once full, new events evict the oldest unread one.
func (b *Bus) Subscribe(channel string, buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[channel]
		for i, c := range list {
			if c == ch {
				b.subs[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	return ch, unsubscribe
}

func (b *Bus) dispatch(channel string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
