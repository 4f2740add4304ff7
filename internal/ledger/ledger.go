// Package ledger records the last successful distribution per recipient
// account. It is the durable half of the distribution rate limits.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrCorruptLedger indicates the persisted claim data could not be decoded.
var ErrCorruptLedger = errors.New("claim ledger is corrupt")

// ClaimLedger defines the contract implemented by claim backends (file, Postgres).
// Account keys are canonical base58 strings. Timestamps are stored with
// second precision.
type ClaimLedger interface {
	// LastClaim returns the most recent claim for account, if any.
	LastClaim(ctx context.Context, account string) (time.Time, bool, error)
	// RecordClaim durably stores at for account. An older timestamp never
	// replaces a newer one.
	RecordClaim(ctx context.Context, account string, at time.Time) error
	// Claims returns every stored claim as unix seconds.
	Claims(ctx context.Context) (map[string]int64, error)
}

// Eligible reports whether a claim at now falls outside window of last.
func Eligible(last, now time.Time, window time.Duration) bool {
	return now.Sub(last) >= window
}
