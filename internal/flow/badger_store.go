// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/leadflowhq/leadflow/internal/logging"
)

// stateTTL bounds how long an abandoned conversation lingers on disk.
// Instagram flows that see no activity for this long restart from scratch.
const stateTTL = 30 * 24 * time.Hour

// keyPrefix namespaces conversation state inside the badger keyspace.
var keyPrefix = []byte("flowstate:")

// BadgerStore is a persistent Store backed by badger. Conversation state
// survives restarts, so flows resume where they left off.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("flow: open badger store at %s: %w", path, err)
	}

	logging.Info().Str("path", path).Msg("conversation state store opened")
	return &BadgerStore{db: db}, nil
}

// Get implements Store.
func (b *BadgerStore) Get(_ context.Context, key string) (*State, error) {
	var state State
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("flow: get state %s: %w", key, err)
	}
	return &state, nil
}

// Put implements Store.
func (b *BadgerStore) Put(_ context.Context, state *State) error {
	if state == nil {
		return errors.New("flow: nil state")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("flow: marshal state: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(storeKey(state.Key()), data).WithTTL(stateTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("flow: put state %s: %w", state.Key(), err)
	}
	return nil
}

// Delete implements Store.
func (b *BadgerStore) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(storeKey(key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("flow: delete state %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// RunGC runs badger value-log garbage collection until there is nothing
// left to collect. Call periodically from a background service.
func (b *BadgerStore) RunGC() {
	for {
		if err := b.db.RunValueLogGC(0.5); err != nil {
			return
		}
	}
}

func storeKey(key string) []byte {
	return append(append([]byte{}, keyPrefix...), key...)
}
