// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package supervisor arranges long-running components into a supervision
// tree. Layers restart independently: a crashing event consumer does not
// take the HTTP listener down with it.
package supervisor

import (
	"context"
	"log/slog"
	"os"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/leadflowhq/leadflow/internal/logging"
)

// Tree is the three-layer supervision tree: data (stores, GC),
// messaging (event router, websocket hub), api (HTTP server).
type Tree struct {
	root      *suture.Supervisor
	data      *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
}

// NewTree builds an empty tree.
func NewTree() *Tree {
	hook := (&sutureslog.Handler{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}).MustHook()

	root := suture.New("leadflow", suture.Spec{EventHook: hook})
	data := suture.NewSimple("data")
	messaging := suture.NewSimple("messaging")
	api := suture.NewSimple("api")

	root.Add(data)
	root.Add(messaging)
	root.Add(api)

	return &Tree{root: root, data: data, messaging: messaging, api: api}
}

// AddData supervises a storage-layer service.
func (t *Tree) AddData(svc suture.Service) { t.data.Add(svc) }

// AddMessaging supervises an event-pipeline service.
func (t *Tree) AddMessaging(svc suture.Service) { t.messaging.Add(svc) }

// AddAPI supervises an HTTP-layer service.
func (t *Tree) AddAPI(svc suture.Service) { t.api.Add(svc) }

// Start launches the tree in the background. The returned channel yields
// the tree's terminal error once ctx is cancelled.
func (t *Tree) Start(ctx context.Context) <-chan error {
	logging.Info().Msg("supervision tree starting")
	return t.root.ServeBackground(ctx)
}

// LogUnstopped reports services that failed to stop during shutdown.
func (t *Tree) LogUnstopped() {
	report, err := t.root.UnstoppedServiceReport()
	if err != nil {
		logging.Warn().Err(err).Msg("unstopped service report unavailable")
		return
	}
	for _, entry := range report {
		logging.Warn().Str("service", entry.Name).Msg("service did not stop cleanly")
	}
}
