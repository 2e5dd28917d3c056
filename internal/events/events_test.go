// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/internal/config"
	"github.com/leadflowhq/leadflow/internal/models"
)

func testConfig() config.EventsConfig {
	return config.EventsConfig{
		BufferSize:           16,
		Workers:              2,
		RetryCount:           2,
		RetryInitialInterval: time.Millisecond,
		PoisonTopic:          "automation.poison",
		CloseTimeout:         time.Second,
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	events []*models.InboundEvent
	done   chan struct{}
	want   int

	failures int
}

func newRecordingHandler(want int) *recordingHandler {
	return &recordingHandler{done: make(chan struct{}), want: want}
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev *models.InboundEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures > 0 {
		h.failures--
		return errors.New("transient failure")
	}
	h.events = append(h.events, ev)
	if len(h.events) == h.want {
		close(h.done)
	}
	return nil
}

func runRouter(t *testing.T, bus *Bus, handler Handler) {
	t.Helper()
	router, err := NewRouter(testConfig(), bus, handler)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()
	t.Cleanup(func() {
		cancel()
		_ = router.Close()
	})
}

func TestBusDeliversEventsToHandler(t *testing.T) {
	bus := NewBus(testConfig())
	defer bus.Close()

	handler := newRecordingHandler(3)
	runRouter(t, bus, handler)

	for _, sender := range []string{"a", "b", "c"} {
		require.NoError(t, bus.PublishInbound(&models.InboundEvent{
			Kind:     models.EventMessage,
			SenderID: sender,
			Text:     "hello",
		}))
	}

	select {
	case <-handler.done:
	case <-time.After(5 * time.Second):
		t.Fatal("events not delivered")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	senders := make(map[string]bool)
	for _, ev := range handler.events {
		senders[ev.SenderID] = true
		assert.Equal(t, "hello", ev.Text)
	}
	assert.Len(t, senders, 3)
}

func TestBusRetriesTransientFailures(t *testing.T) {
	bus := NewBus(testConfig())
	defer bus.Close()

	handler := newRecordingHandler(1)
	handler.failures = 2
	runRouter(t, bus, handler)

	require.NoError(t, bus.PublishInbound(&models.InboundEvent{
		Kind:     models.EventMessage,
		SenderID: "retry-sender",
	}))

	select {
	case <-handler.done:
	case <-time.After(5 * time.Second):
		t.Fatal("event not retried to success")
	}
}

func TestShardTopicIsStablePerSender(t *testing.T) {
	bus := NewBus(testConfig())
	defer bus.Close()

	first := bus.shardTopic("sender-123")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, bus.shardTopic("sender-123"))
	}
	assert.Contains(t, bus.shardTopics(), first)
}
