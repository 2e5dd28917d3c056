// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"net/http"
	"time"
)

// health reports liveness plus database reachability.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	status := "ok"
	dbStatus := "ok"
	code := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			status = "degraded"
			dbStatus = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, code, map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	}, start)
}

// ready reports whether the service can take traffic. Unlike health it
// fails hard when the database is unreachable, so orchestrators hold
// traffic instead of marking the process unhealthy.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR", "database unreachable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"}, start)
}
