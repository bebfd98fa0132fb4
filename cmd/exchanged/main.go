// Command exchanged is the composition root (spec.md §9: "a top-level
// composition root that constructs each component once and passes
// references/handles downward"). It wires the state store, risk gate,
// ledger, matching engine, event bus and gateway together, then runs the
// continuous matching driver and the TCP gateway under one supervising
// tomb, following the shutdown shape of
// _examples/saiputravu-Exchange/cmd/server/server.go (signal-driven
// context, tomb-supervised goroutines) generalized from one server
// goroutine to several cooperating ones.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/config"
	"fenrir/internal/events"
	"fenrir/internal/gateway"
	"fenrir/internal/ledger"
	"fenrir/internal/matching"
	"fenrir/internal/risk"
	"fenrir/internal/seed"
	"fenrir/internal/store"
)

func main() {
	noClear := flag.Bool("no-clear", false, "preserve store contents on startup (no-op: this reference store is always in-process and starts empty)")
	skipPopulate := flag.Bool("skip-populate", false, "do not seed sample accounts or demo order book depth")
	flag.Parse()
	_ = noClear

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	st := store.New()
	l := ledger.New(st)

	limits := risk.NewLimits(risk.Defaults{
		MinQty:             cfg.MinOrderSize,
		MaxQty:             cfg.MaxOrderSize,
		MinPrice:           cfg.MinPriceDecimal(),
		MaxPrice:           cfg.MaxPriceDecimal(),
		VolatilityLimitPct: cfg.PriceDeviationPctDecimal(),
		MaxOrderValue:      cfg.MaxOrderValueDecimal(),
	})
	gate := risk.NewGate(limits)

	bus := events.New(cfg.EventBusBuffer)
	engine := matching.New(st, l, gate, bus, cfg.DarkPoolEnabled)

	if _, err := l.SeedIfEmpty(); err != nil {
		log.Fatal().Err(err).Msg("failed to seed sample accounts")
	}

	if !*skipPopulate {
		accts := l.List()
		if len(accts) >= 2 {
			if err := seed.Populate(engine, l, accts[0].ID, accts[1].ID, seed.DefaultSymbols); err != nil {
				log.Error().Err(err).Msg("failed to populate demo order book depth")
			}
		}
	}

	gw := gateway.New(cfg.ListenAddr, engine, l, gate, bus, st)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error { return bus.Run(t) })
	t.Go(func() error { return engine.Run(t, cfg.MatchCycleDuration()) })
	t.Go(func() error { return gw.Run(ctx) })

	log.Info().Str("addr", cfg.ListenAddr).Bool("darkPool", cfg.DarkPoolEnabled).Msg("exchanged started")

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("exchanged stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("exchanged stopped cleanly")
}
