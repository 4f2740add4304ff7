package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createClaimsTable = `
CREATE TABLE IF NOT EXISTS faucet_claims (
    account         TEXT PRIMARY KEY,
    last_claim_unix BIGINT NOT NULL
)`

// PostgresLedger persists claims in PostgreSQL, one row per recipient account.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed claim ledger.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Migrate creates the claims table when it does not exist.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, createClaimsTable); err != nil {
		return fmt.Errorf("create faucet_claims: %w", err)
	}
	return nil
}

// LastClaim returns the stored claim time for account.
func (l *PostgresLedger) LastClaim(ctx context.Context, account string) (time.Time, bool, error) {
	const query = `SELECT last_claim_unix FROM faucet_claims WHERE account = $1`
	var at int64
	if err := l.db.QueryRow(ctx, query, account).Scan(&at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("read claim for %s: %w", account, err)
	}
	return time.Unix(at, 0), true, nil
}

// RecordClaim upserts the claim, keeping the greater timestamp.
func (l *PostgresLedger) RecordClaim(ctx context.Context, account string, at time.Time) error {
	const stmt = `
        INSERT INTO faucet_claims (account, last_claim_unix) VALUES ($1, $2)
        ON CONFLICT (account) DO UPDATE
        SET last_claim_unix = GREATEST(faucet_claims.last_claim_unix, EXCLUDED.last_claim_unix)`
	if _, err := l.db.Exec(ctx, stmt, account, at.Unix()); err != nil {
		return fmt.Errorf("record claim for %s: %w", account, err)
	}
	return nil
}

// Claims returns every stored claim.
func (l *PostgresLedger) Claims(ctx context.Context) (map[string]int64, error) {
	rows, err := l.db.Query(ctx, `SELECT account, last_claim_unix FROM faucet_claims`)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			account string
			at      int64
		)
		if err := rows.Scan(&account, &at); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out[account] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return out, nil
}
