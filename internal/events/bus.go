// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package events

import (
	"fmt"
	"hash/fnv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/leadflowhq/leadflow/internal/config"
	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/models"
)

// inboundTopicPrefix prefixes the sharded inbound topics. Events are
// sharded by sender so one handler per shard keeps per-sender ordering
// while shards process in parallel.
const inboundTopicPrefix = "automation.inbound"

// Bus is the in-process event pipeline. The webhook handler publishes
// normalized events; the router consumes them into the engine.
type Bus struct {
	pubsub *gochannel.GoChannel
	shards int
	logger watermill.LoggerAdapter
}

// NewBus creates the pipeline with cfg.Workers shards.
func NewBus(cfg config.EventsConfig) *Bus {
	shards := cfg.Workers
	if shards < 1 {
		shards = 1
	}
	logger := newLoggerAdapter()
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.BufferSize),
	}, logger)
	return &Bus{pubsub: pubsub, shards: shards, logger: logger}
}

// PublishInbound enqueues one normalized event for the engine.
func (b *Bus) PublishInbound(ev *models.InboundEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}

	topic := b.shardTopic(ev.SenderID)
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("events: publish: %w", err)
	}
	metrics.EventsPublished.WithLabelValues(topic).Inc()
	return nil
}

// shardTopic maps a sender to its shard topic. All events from one
// sender land on the same shard.
func (b *Bus) shardTopic(senderID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(senderID))
	return fmt.Sprintf("%s.%d", inboundTopicPrefix, h.Sum32()%uint32(b.shards))
}

// shardTopics lists every inbound topic the router must subscribe to.
func (b *Bus) shardTopics() []string {
	topics := make([]string, b.shards)
	for i := range topics {
		topics[i] = fmt.Sprintf("%s.%d", inboundTopicPrefix, i)
	}
	return topics
}

// Close shuts the pipeline down. Pending messages are dropped; the
// upstream webhook redelivers anything that matters.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
