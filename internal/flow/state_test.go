// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateKey(t *testing.T) {
	assert.Equal(t, "sender_rule", StateKey("sender", "rule"))

	s := NewState("17841400001", "a2f1")
	assert.Equal(t, "17841400001_a2f1", s.Key())
	assert.Equal(t, StepNew, s.Step)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrStateNotFound)

	state := NewState("sender", "rule")
	state.FollowRequestSent = true
	require.NoError(t, store.Put(ctx, state))

	got, err := store.Get(ctx, state.Key())
	require.NoError(t, err)
	assert.True(t, got.FollowRequestSent)

	// The store hands out copies; mutating a result must not leak back.
	got.PrimaryDMSent = true
	again, err := store.Get(ctx, state.Key())
	require.NoError(t, err)
	assert.False(t, again.PrimaryDMSent)

	require.NoError(t, store.Delete(ctx, state.Key()))
	_, err = store.Get(ctx, state.Key())
	assert.ErrorIs(t, err, ErrStateNotFound)

	// Deleting a missing key is fine.
	assert.NoError(t, store.Delete(ctx, "missing"))
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrStateNotFound)

	state := NewState("sender", "rule")
	state.Email = "me@example.com"
	state.EmailReceived = true
	require.NoError(t, store.Put(ctx, state))

	got, err := store.Get(ctx, state.Key())
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got.Email)
	assert.True(t, got.EmailReceived)

	require.NoError(t, store.Delete(ctx, state.Key()))
	_, err = store.Get(ctx, state.Key())
	assert.ErrorIs(t, err, ErrStateNotFound)
}
