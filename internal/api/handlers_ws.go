// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"net/http"

	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/websocket"
)

// websocketFeed attaches a dashboard client to the live activity hub.
// Browsers cannot set Authorization headers on websocket upgrades, so
// the bearer token travels in the token query parameter.
func (h *Handler) websocketFeed(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Security.AuthMode != "none" {
		token := r.URL.Query().Get("token")
		if token == "" {
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token")
			return
		}
		if _, err := h.verifier.Verify(token); err != nil {
			logging.Debug().Err(err).Msg("websocket token rejected")
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid token")
			return
		}
	}
	websocket.ServeWS(h.hub, w, r)
}
