// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package automation

import "sync"

// Deduper suppresses redelivered webhook events by message/comment ID.
// It keeps a bounded FIFO window of recent keys; Meta redeliveries arrive
// within minutes, so a few thousand entries is plenty.
type Deduper struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	cap   int
}

// NewDeduper creates a deduper remembering the last capacity keys.
func NewDeduper(capacity int) *Deduper {
	if capacity < 1 {
		capacity = 1
	}
	return &Deduper{
		seen: make(map[string]struct{}, capacity),
		cap:  capacity,
	}
}

// Seen marks key and reports whether it was already present. Empty keys
// are never deduplicated.
func (d *Deduper) Seen(key string) bool {
	if key == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	if len(d.order) >= d.cap {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	d.seen[key] = struct{}{}
	d.order = append(d.order, key)
	return false
}

// Len returns the number of remembered keys. Test helper.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
