package ledger

import "time"

// SeedClaim is a test helper that stores a claim when using the in-memory ledger.
func SeedClaim(l ClaimLedger, account string, at time.Time) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.claims[account] = at.Unix()
	}
}
