package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"blackjack-lite/apps/server/internal/admission"
	"blackjack-lite/apps/server/internal/config"
	"blackjack-lite/apps/server/internal/gateway"
	"blackjack-lite/apps/server/internal/ledger"
	"blackjack-lite/apps/server/internal/session"
	"blackjack-lite/apps/server/internal/table"
	"blackjack-lite/blackjack"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("[Server] Invalid configuration: %v", err)
	}

	ledgerService, ledgerMode, err := ledger.New(ledger.Options{
		Mode:        cfg.LedgerMode,
		SQLitePath:  cfg.LedgerSQLitePath,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()

	tbl, err := table.New("main", table.Config{
		Game: blackjack.Config{
			MaxPlayers:       cfg.MaxPlayers,
			EnforceTurnOrder: cfg.EnforceTurnOrder,
			Seed:             cfg.Seed,
		},
		AutoStart:     cfg.AutoStart,
		AutoNextRound: cfg.AutoNextRound,
	}, ledgerService)
	if err != nil {
		log.Fatalf("[Server] Failed to create table: %v", err)
	}
	defer tbl.Stop()

	basePort, _ := cfg.RendezvousPort()
	pool, err := admission.NewPortPool(cfg.BindHost, basePort, cfg.PortMax)
	if err != nil {
		log.Fatalf("[Server] Failed to init port pool: %v", err)
	}
	adm := admission.NewServer(tbl, pool, admission.Options{
		Addr:           cfg.RendezvousAddr,
		BindHost:       cfg.BindHost,
		HandoffTimeout: cfg.HandoffTimeout,
		Session: session.Options{
			SendQueue:   cfg.SendQueue,
			SendTimeout: cfg.SendTimeout,
		},
	})
	if err := adm.Listen(); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[Server] Ledger mode: %s", ledgerMode)
	log.Printf("[Server] Waiting for %d players (enforce_turn_order=%v)", cfg.MaxPlayers, cfg.EnforceTurnOrder)

	if cfg.HTTPAddr != "" {
		gw := gateway.New(tbl, ledgerService)
		defer gw.Close()
		go func() {
			if err := gateway.Serve(ctx, cfg.HTTPAddr, gw.Router()); err != nil {
				log.Printf("[Server] HTTP server stopped: %v", err)
			}
		}()
	}

	if err := adm.Serve(ctx); err != nil {
		log.Printf("[Server] Admission stopped: %v", err)
	}
	log.Printf("[Server] Shutting down")
}
