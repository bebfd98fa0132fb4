package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/domain"
	"fenrir/internal/events"
	"fenrir/internal/ledger"
	"fenrir/internal/matching"
	"fenrir/internal/risk"
	"fenrir/internal/store"
)

const defaultWorkers = 16

// Server is the TCP accept loop, grounded on _examples/saiputravu-Exchange/
// internal/net/server.go's Run/handleConnection split. Unlike the
// teacher's fixed-size binary frames (one read = one message, requeued
// as a fresh task), a JSON line protocol naturally reads as a stream, so
// handleConnection here owns a connection for its whole lifetime instead
// of handing it back to the pool after every message; the worker pool
// still bounds how many connections are served concurrently.
type Server struct {
	addr   string
	pool   *WorkerPool
	engine *matching.Engine
	ledger *ledger.Ledger
	gate   *risk.Gate
	bus    *events.Bus
	store  *store.Store
	cancel context.CancelFunc
}

func New(addr string, engine *matching.Engine, l *ledger.Ledger, gate *risk.Gate, bus *events.Bus, st *store.Store) *Server {
	return &Server{
		addr:   addr,
		pool:   NewWorkerPool(defaultWorkers),
		engine: engine,
		ledger: l,
		gate:   gate,
		bus:    bus,
		store:  st,
	}
}

func (s *Server) Shutdown() {
	if s.cancel != nil {
		log.Info().Msg("gateway shutting down")
		s.cancel()
	}
}

// Run accepts connections until ctx is cancelled, exactly matching the
// teacher's Run shape: a listener loop handing connections to a
// tomb-supervised worker pool.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	defer listener.Close()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	log.Info().Str("addr", s.addr).Msg("gateway listening")
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				log.Error().Err(err).Msg("gateway accept error")
				continue
			}
			s.pool.AddTask(conn)
		}
	}
}

// handleConnection reads newline-delimited JSON requests from conn until
// it closes or the tomb dies, writing one JSON response line per request.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return fmt.Errorf("gateway: unexpected task type %T", task)
	}
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = enc.Encode(fail(fmt.Errorf("malformed request: %w", err)))
			continue
		}
		resp := s.dispatch(req)
		if err := enc.Encode(resp); err != nil {
			log.Warn().Err(err).Msg("gateway: failed writing response")
			return nil
		}
	}
	return nil
}

func (s *Server) dispatch(req Request) Response {
	switch req.Type {
	case ReqSubmitOrder:
		return s.submitOrder(req)
	case ReqCancelOrder:
		o, err := s.engine.Cancel(req.OrderID)
		if err != nil {
			return fail(err)
		}
		return ok(o)
	case ReqEditOrder:
		o, err := s.engine.Edit(req.OrderID, req.NewPrice, req.NewQty)
		if err != nil {
			return fail(err)
		}
		return ok(o)
	case ReqCreateAccount:
		a, err := s.ledger.Create(req.Name, req.Balance, req.AcctType, req.RiskLevel)
		if err != nil {
			return fail(err)
		}
		return ok(a)
	case ReqGetAccount:
		a, err := s.ledger.Get(req.AccountID)
		if err != nil {
			return fail(err)
		}
		return ok(a)
	case ReqListAccounts:
		return ok(s.ledger.List())
	case ReqPostTxn:
		bal, err := s.ledger.Adjust(req.AccountID, req.Amount, domain.TransactionType(req.TxType), req.Desc)
		if err != nil {
			return fail(err)
		}
		return ok(map[string]any{"balance": bal})
	case ReqListTxns:
		return ok(s.ledger.Transactions(req.AccountID, req.Limit))
	case ReqListPositions:
		return ok(s.ledger.ListPositions(req.AccountID))
	case ReqListOrders:
		var ids []string
		if req.AccountID != "" {
			ids = s.store.AccountOrderIDs(req.AccountID)
		} else {
			ids = s.store.SymbolOrderIDs(req.Symbol)
		}
		orders := make([]*domain.Order, 0, len(ids))
		for _, id := range ids {
			if o, ok := s.store.GetOrder(id); ok {
				orders = append(orders, o)
			}
		}
		return ok(orders)
	case ReqDepth:
		side := domain.Buy
		if req.Side == "sell" {
			side = domain.Sell
		}
		return ok(s.store.BookDepth(req.Symbol, side, req.Internal, req.N))
	case ReqRiskAlerts:
		return ok(s.gate.Alerts(req.Limit))
	default:
		return fail(fmt.Errorf("unknown request type %q", req.Type))
	}
}

func (s *Server) submitOrder(req Request) Response {
	side := domain.Buy
	if req.Side == "sell" {
		side = domain.Sell
	}
	otype := domain.Limit
	if req.OrderType == "market" {
		otype = domain.Market
	}
	tif := domain.GTC
	switch req.TIF {
	case "ioc":
		tif = domain.IOC
	case "fok":
		tif = domain.FOK
	case "day":
		tif = domain.Day
	}

	order := &domain.Order{
		AccountID:  req.AccountID,
		Symbol:     req.Symbol,
		Side:       side,
		OrderType:  otype,
		LimitPrice: req.Price,
		Quantity:   req.Quantity,
		TIF:        tif,
		Internal:   req.Internal,
	}

	start := time.Now()
	result, err := s.engine.Submit(order)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	if result == nil {
		return fail(err)
	}
	payload := map[string]any{
		"order":      result,
		"latency_ms": latencyMs,
	}
	if err != nil && !domain.IsKind(err, domain.ErrKindRisk) {
		return fail(err)
	}
	return ok(payload)
}
