// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package flow implements the per-sender conversation state machine that
// decides, for every inbound comment/DM event, which message to send next.
//
// State is keyed by (sender, rule) so a visitor can run independent flows
// against different rules (e.g. a post flow and a story flow) without the
// two interfering.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Step names the coarse position of a flow.
type Step string

const (
	StepNew            Step = "new"
	StepAwaitingFollow Step = "awaiting_follow"
	StepAwaitingEmail  Step = "awaiting_email"
	StepCompleted      Step = "completed"
)

// State is the conversation state for one (sender, rule) pair. It is
// re-evaluated statelessly on every inbound event; the store is the only
// thing that persists between events.
type State struct {
	SenderID string `json:"sender_id"`
	RuleID   string `json:"rule_id"`

	Step               Step   `json:"step"`
	FollowRequestSent  bool   `json:"follow_request_sent"`
	FollowConfirmed    bool   `json:"follow_confirmed"`
	FollowButtonTapped bool   `json:"follow_button_clicked"`
	EmailRequestSent   bool   `json:"email_request_sent"`
	EmailReceived      bool   `json:"email_received"`
	Email              string `json:"email,omitempty"`
	PrimaryDMSent      bool   `json:"primary_dm_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns a fresh state for the given pair.
func NewState(senderID, ruleID string) *State {
	now := time.Now().UTC()
	return &State{
		SenderID:  senderID,
		RuleID:    ruleID,
		Step:      StepNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Key returns the storage key for a (sender, rule) pair.
func (s *State) Key() string {
	return StateKey(s.SenderID, s.RuleID)
}

// StateKey builds the canonical storage key for a (sender, rule) pair.
func StateKey(senderID, ruleID string) string {
	return fmt.Sprintf("%s_%s", senderID, ruleID)
}

// ErrStateNotFound is returned by stores when no state exists for a key.
var ErrStateNotFound = errors.New("flow: state not found")

// Store persists conversation state between webhook events.
type Store interface {
	// Get returns the state for the key, or ErrStateNotFound.
	Get(ctx context.Context, key string) (*State, error)

	// Put stores the state under its key.
	Put(ctx context.Context, state *State) error

	// Delete removes the state for the key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-process Store. Suitable for tests and single-node
// development; state is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	cp := st
	return &cp, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, state *State) error {
	if state == nil {
		return errors.New("flow: nil state")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Key()] = *state
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored states. Test helper.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
