package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/winlew/winlew_agent/internal/infra"
)

// ErrAlreadyRegistered indicates the address is already on the list.
var ErrAlreadyRegistered = errors.New("address already registered")

// Repository persists registrations, one per address.
type Repository interface {
	Create(ctx context.Context, reg Registration) error
	List(ctx context.Context) ([]Registration, error)
}

const createRegistrationsTable = `
CREATE TABLE IF NOT EXISTS airdrop_registrations (
    id           UUID PRIMARY KEY,
    address      TEXT NOT NULL UNIQUE,
    input        TEXT NOT NULL,
    requester_id TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
)`

// PostgresRepository stores registrations in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the registrations table when it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createRegistrationsTable); err != nil {
		return fmt.Errorf("create airdrop_registrations: %w", err)
	}
	return nil
}

// Create inserts a registration unless the address is already present.
func (r *PostgresRepository) Create(ctx context.Context, reg Registration) error {
	id, err := uuid.Parse(reg.ID)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `INSERT INTO airdrop_registrations (id, address, input, requester_id, created_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (address) DO NOTHING`,
		id, reg.Address, reg.Input, reg.RequesterID, reg.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyRegistered
	}
	return nil
}

// List returns registrations oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Registration, error) {
	rows, err := r.db.Query(ctx, `SELECT id, address, input, requester_id, created_at
        FROM airdrop_registrations ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var (
			id        uuid.UUID
			createdAt time.Time
			reg       Registration
		)
		if err := rows.Scan(&id, &reg.Address, &reg.Input, &reg.RequesterID, &createdAt); err != nil {
			return nil, err
		}
		reg.ID = id.String()
		reg.CreatedAt = createdAt.UTC()
		out = append(out, reg)
	}
	return out, rows.Err()
}

// FileRepository keeps registrations in a JSON array on disk.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository returns a repository backed by path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Create(_ context.Context, reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []Registration
	if _, err := infra.ReadJSONFile(r.path, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if existing.Address == reg.Address {
			return ErrAlreadyRegistered
		}
	}
	return infra.WriteJSONFile(r.path, append(list, reg))
}

func (r *FileRepository) List(_ context.Context) ([]Registration, error) {
	var list []Registration
	if _, err := infra.ReadJSONFile(r.path, &list); err != nil {
		return nil, err
	}
	return list, nil
}

type memoryRepository struct {
	mu      sync.RWMutex
	order   []string
	storage map[string]Registration
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Registration)}
}

func (r *memoryRepository) Create(_ context.Context, reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[reg.Address]; exists {
		return ErrAlreadyRegistered
	}
	r.storage[reg.Address] = reg
	r.order = append(r.order, reg.Address)
	return nil
}

func (r *memoryRepository) List(_ context.Context) ([]Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.storage[addr])
	}
	return out, nil
}
