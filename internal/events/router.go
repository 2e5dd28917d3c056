// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	json "github.com/goccy/go-json"

	"github.com/leadflowhq/leadflow/internal/config"
	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/models"
)

// Handler processes one normalized inbound event. Implemented by the
// automation engine.
type Handler interface {
	HandleEvent(ctx context.Context, ev *models.InboundEvent) error
}

// NewRouter builds the consumer side of the pipeline: one handler per
// shard, retry with backoff, and a poison topic for events that keep
// failing.
func NewRouter(cfg config.EventsConfig, bus *Bus, handler Handler) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, bus.logger)
	if err != nil {
		return nil, fmt.Errorf("events: new router: %w", err)
	}

	poison, err := middleware.PoisonQueue(poisonCounter{pub: bus.pubsub}, cfg.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("events: poison queue: %w", err)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInitialInterval,
		Multiplier:      2,
		Logger:          bus.logger,
	}

	router.AddMiddleware(
		middleware.Recoverer,
		poison,
		retry.Middleware,
	)

	for _, topic := range bus.shardTopics() {
		router.AddNoPublisherHandler(
			"engine-"+topic,
			topic,
			bus.pubsub,
			func(msg *message.Message) error {
				var ev models.InboundEvent
				if err := json.Unmarshal(msg.Payload, &ev); err != nil {
					// Malformed payloads can never succeed; let the poison
					// middleware take them without retrying.
					return fmt.Errorf("events: unmarshal event: %w", err)
				}
				return handler.HandleEvent(msg.Context(), &ev)
			},
		)
	}

	// Poison messages are logged and counted; there is no operator replay
	// surface, the log line carries the full payload.
	router.AddNoPublisherHandler(
		"poison-logger",
		cfg.PoisonTopic,
		bus.pubsub,
		func(msg *message.Message) error {
			logging.Error().
				Str("message_id", msg.UUID).
				Str("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)).
				Bytes("payload", msg.Payload).
				Msg("event poisoned after retries")
			return nil
		},
	)

	return router, nil
}

// poisonCounter counts poisoned events on their way to the poison topic.
type poisonCounter struct {
	pub message.Publisher
}

func (p poisonCounter) Publish(topic string, messages ...*message.Message) error {
	metrics.EventsPoisoned.Add(float64(len(messages)))
	return p.pub.Publish(topic, messages...)
}

func (p poisonCounter) Close() error {
	// The underlying pub/sub is owned by the Bus.
	return nil
}
