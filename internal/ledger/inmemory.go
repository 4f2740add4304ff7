package ledger

import (
	"context"
	"sync"
	"time"
)

type inMemoryLedger struct {
	mu     sync.RWMutex
	claims map[string]int64
}

// NewInMemory creates a concurrency-safe in-memory claim ledger for tests and local runs.
func NewInMemory() ClaimLedger {
	return &inMemoryLedger{claims: make(map[string]int64)}
}

func (l *inMemoryLedger) LastClaim(_ context.Context, account string) (time.Time, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.claims[account]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.Unix(at, 0), true, nil
}

func (l *inMemoryLedger) RecordClaim(_ context.Context, account string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if at.Unix() > l.claims[account] {
		l.claims[account] = at.Unix()
	}
	return nil
}

func (l *inMemoryLedger) Claims(_ context.Context) (map[string]int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int64, len(l.claims))
	for k, v := range l.claims {
		out[k] = v
	}
	return out, nil
}
