// Package cooldown keeps the per-requester, per-operation admission window.
// Entries live only as long as the process (or its boot namespace in Redis).
package cooldown

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Key identifies a cooldown entry: one per operation and requester.
type Key struct {
	Operation   string
	RequesterID string
}

func (k Key) String() string {
	return k.Operation + ":" + k.RequesterID
}

// Decision is the result of an admission attempt. NextEligible is the expiry
// of the entry that is now in force (new on admission, existing on rejection).
type Decision struct {
	Admitted     bool
	NextEligible time.Time
}

// Remaining returns how long the requester must still wait at now.
func (d Decision) Remaining(now time.Time) time.Duration {
	if d.Admitted || !d.NextEligible.After(now) {
		return 0
	}
	return d.NextEligible.Sub(now)
}

// Table performs an atomic check-and-set of cooldown entries.
type Table interface {
	// Admit admits the key when no unexpired entry exists, recording
	// now+window before returning.
	Admit(ctx context.Context, key Key, now time.Time, window time.Duration) (Decision, error)
	// Remaining reports the time left on an entry without modifying it.
	Remaining(ctx context.Context, key Key, now time.Time) (time.Duration, error)
}

// MemoryTable is an in-process Table.
type MemoryTable struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryTable returns an empty table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{entries: make(map[string]time.Time)}
}

func (t *MemoryTable) Admit(_ context.Context, key Key, now time.Time, window time.Duration) (Decision, error) {
	id := key.String()

	t.mu.Lock()
	defer t.mu.Unlock()

	if expiry, ok := t.entries[id]; ok {
		if now.Before(expiry) {
			return Decision{Admitted: false, NextEligible: expiry}, nil
		}
		delete(t.entries, id)
	}

	expiry := now.Add(window)
	t.entries[id] = expiry
	return Decision{Admitted: true, NextEligible: expiry}, nil
}

func (t *MemoryTable) Remaining(_ context.Context, key Key, now time.Time) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, ok := t.entries[key.String()]
	if !ok || !now.Before(expiry) {
		return 0, nil
	}
	return expiry.Sub(now), nil
}

// Sweep drops entries that expired at or before now and returns how many
// were removed.
func (t *MemoryTable) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, expiry := range t.entries {
		if !now.Before(expiry) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (t *MemoryTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func sanitize(part string) string {
	return strings.ReplaceAll(part, ":", "_")
}
