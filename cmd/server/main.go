// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Command server runs the LeadFlow backend: webhook intake, the
// automation engine, the dashboard API, and the live activity feed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadflowhq/leadflow/internal/api"
	"github.com/leadflowhq/leadflow/internal/auth"
	"github.com/leadflowhq/leadflow/internal/automation"
	"github.com/leadflowhq/leadflow/internal/billing"
	"github.com/leadflowhq/leadflow/internal/config"
	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/events"
	"github.com/leadflowhq/leadflow/internal/flow"
	"github.com/leadflowhq/leadflow/internal/instagram"
	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/plans"
	"github.com/leadflowhq/leadflow/internal/secrets"
	"github.com/leadflowhq/leadflow/internal/supervisor"
	"github.com/leadflowhq/leadflow/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().Str("environment", cfg.Server.Environment).Msg("leadflow starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	var box *secrets.Box
	if cfg.Security.EncryptionKey != "" {
		box, err = secrets.NewBox(cfg.Security.EncryptionKey)
		if err != nil {
			return err
		}
	} else {
		logging.Warn().Msg("no encryption key configured, access tokens stored in the clear")
	}

	accounts := database.NewAccountStore(db, box)
	rules := database.NewRuleStore(db)
	leads := database.NewLeadStore(db)
	subs := database.NewSubscriptionStore(db)
	usage := database.NewUsageStore(db, accounts, rules)
	enforcer := plans.NewEnforcer(usage)

	states, err := newFlowStore(cfg)
	if err != nil {
		return err
	}
	defer states.Close()

	igClient := instagram.NewClient(&cfg.Instagram)
	ig := instagram.NewCircuitBreakerClient(igClient)

	hub := websocket.NewHub()

	engine := automation.NewEngine(automation.Deps{
		Accounts: accounts,
		Rules:    rules,
		Leads:    leads,
		Tiers:    subs,
		Quota:    enforcer,
		States:   states,
		API:      ig,
		Notifier: hub,
	})

	bus := events.NewBus(cfg.Events)
	defer bus.Close()
	eventRouter, err := events.NewRouter(cfg.Events, bus, engine)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Deps{
		Config:   cfg,
		DB:       db,
		Accounts: accounts,
		Rules:    rules,
		Leads:    leads,
		Subs:     subs,
		Enforcer: enforcer,
		Billing:  billing.NewProcessor(subs),
		Bus:      bus,
		Hub:      hub,
		IG:       ig,
		Verifier: auth.NewVerifier(cfg.Supabase),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree()
	if badgerStore, ok := states.(*flow.BadgerStore); ok {
		tree.AddData(supervisor.BadgerGCService(badgerStore))
	}
	tree.AddMessaging(supervisor.NewService("event-router", eventRouter.Run))
	tree.AddMessaging(supervisor.NewService("websocket-hub", func(ctx context.Context) error {
		hub.Run(ctx)
		return ctx.Err()
	}))
	tree.AddAPI(supervisor.HTTPService(server))

	errCh := tree.Start(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
		<-errCh
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("supervision tree failed: %w", err)
		}
	}

	tree.LogUnstopped()
	logging.Info().Msg("leadflow stopped")
	return nil
}

// newFlowStore selects the conversation state backend.
func newFlowStore(cfg *config.Config) (flow.Store, error) {
	switch cfg.FlowStore.Backend {
	case "badger":
		return flow.NewBadgerStore(cfg.FlowStore.Path)
	default:
		logging.Warn().Msg("in-memory flow store selected, conversation state is lost on restart")
		return flow.NewMemoryStore(), nil
	}
}
