package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/winlew/winlew_agent/internal/infra"
)

// FileLedger stores claims as a single JSON object mapping account to unix
// seconds. Every commit rewrites the whole file; commits are serialized.
type FileLedger struct {
	path string
	mu   sync.Mutex
}

// NewFileLedger returns a ledger backed by path. The file is created on the
// first commit.
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

// Path returns the backing file location.
func (l *FileLedger) Path() string { return l.path }

func (l *FileLedger) LastClaim(_ context.Context, account string) (time.Time, bool, error) {
	claims, err := l.read()
	if err != nil {
		return time.Time{}, false, err
	}
	at, ok := claims[account]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.Unix(at, 0), true, nil
}

func (l *FileLedger) RecordClaim(ctx context.Context, account string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	claims, err := l.read()
	if err != nil {
		return err
	}
	if existing, ok := claims[account]; ok && existing >= at.Unix() {
		return nil
	}
	claims[account] = at.Unix()
	if err := infra.WriteJSONFile(l.path, claims); err != nil {
		return fmt.Errorf("commit claim: %w", err)
	}
	return nil
}

func (l *FileLedger) Claims(_ context.Context) (map[string]int64, error) {
	return l.read()
}

// read loads the whole file. A missing or empty file is an empty ledger.
func (l *FileLedger) read() (map[string]int64, error) {
	claims := make(map[string]int64)
	if _, err := infra.ReadJSONFile(l.path, &claims); err != nil {
		if errors.Is(err, infra.ErrMalformedJSON) {
			return nil, fmt.Errorf("%w: %v", ErrCorruptLedger, err)
		}
		return nil, err
	}
	return claims, nil
}
