// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/leadflowhq/leadflow/internal/flow"
	"github.com/leadflowhq/leadflow/internal/logging"
)

// Service adapts a run function to the supervision tree.
type Service struct {
	name string
	run  func(ctx context.Context) error
}

// NewService wraps run as a supervised service.
func NewService(name string, run func(ctx context.Context) error) *Service {
	return &Service{name: name, run: run}
}

// Serve runs the service until ctx is cancelled.
func (s *Service) Serve(ctx context.Context) error {
	return s.run(ctx)
}

func (s *Service) String() string {
	return s.name
}

// httpShutdownTimeout bounds graceful drain on shutdown.
const httpShutdownTimeout = 10 * time.Second

// HTTPService supervises an HTTP server with graceful shutdown.
func HTTPService(server *http.Server) *Service {
	return NewService("http-server", func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			logging.Info().Str("addr", server.Addr).Msg("http server listening")
			errCh <- server.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("http shutdown incomplete")
			}
			return ctx.Err()
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	})
}

// badgerGCInterval paces value log garbage collection.
const badgerGCInterval = 10 * time.Minute

// BadgerGCService runs periodic value log garbage collection for the
// persistent flow store.
func BadgerGCService(store *flow.BadgerStore) *Service {
	return NewService("flowstore-gc", func(ctx context.Context) error {
		ticker := time.NewTicker(badgerGCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				store.RunGC()
			}
		}
	})
}
