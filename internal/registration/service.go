// Package registration keeps the opt-in list of accounts for future airdrops.
package registration

import (
	"context"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Resolver turns an address or .sol name into an account.
type Resolver interface {
	Resolve(ctx context.Context, input string) (solana.PublicKey, error)
}

// Service manages airdrop registrations.
type Service struct {
	repo     Repository
	resolver Resolver
}

// NewService creates a registration service.
func NewService(repo Repository, resolver Resolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// Register resolves input and stores the canonical address once.
func (s *Service) Register(ctx context.Context, requesterID, input string) (Registration, error) {
	input = strings.TrimSpace(input)
	addr, err := s.resolver.Resolve(ctx, input)
	if err != nil {
		return Registration{}, err
	}

	reg := Registration{
		ID:          uuid.New().String(),
		Address:     addr.String(),
		Input:       input,
		RequesterID: requesterID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		return Registration{}, err
	}
	return reg, nil
}

// List returns every registration.
func (s *Service) List(ctx context.Context) ([]Registration, error) {
	return s.repo.List(ctx)
}
