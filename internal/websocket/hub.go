// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package websocket pushes live automation activity (DMs sent, leads
// captured) to connected dashboard clients.
package websocket

import (
	"context"
	"time"

	json "github.com/goccy/go-json"

	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/metrics"
)

// Envelope is the frame pushed to dashboard clients.
type Envelope struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans events out to every connected client. Slow clients are
// disconnected rather than allowed to block the hub.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

// NewHub creates an empty hub. Call Run before registering clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes hub events until ctx is cancelled. Lifecycle events are
// drained before broadcasts so connect/disconnect are never starved by a
// busy feed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.WSConnectedClients.Set(float64(len(h.clients)))
			logging.Debug().Int("clients", len(h.clients)).Msg("websocket client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				logging.Debug().Int("clients", len(h.clients)).Msg("websocket client disconnected")
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Client cannot keep up; cut it loose.
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.WSConnectedClients.Set(float64(len(h.clients)))
}

// Broadcast queues an event for every connected client. Never blocks;
// when the hub is saturated the event is dropped, the dashboard feed is
// best-effort.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := json.Marshal(Envelope{
		Type:      event,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logging.Warn().Err(err).Str("event", event).Msg("broadcast marshal failed")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.Warn().Str("event", event).Msg("broadcast queue full, event dropped")
	}
}
