package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/winlew/winlew_agent/internal/logging"
)

// ErrNoTokenAccount indicates the owner holds no token account for the mint.
var ErrNoTokenAccount = errors.New("no token account found for that address")

// Resolver turns an address or .sol name into an account.
type Resolver interface {
	Resolve(ctx context.Context, input string) (solana.PublicKey, error)
}

// Chain is the read-only RPC surface used by the wallet service.
type Chain interface {
	AccountExists(ctx context.Context, key solana.PublicKey) (bool, error)
	TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (decimal.Decimal, error)
	TokenSupply(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error)
}

// Service exposes custodial wallet and token queries.
type Service struct {
	resolver  Resolver
	chain     Chain
	custodial solana.PublicKey
	mint      solana.PublicKey
	logger    *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(resolver Resolver, chain Chain, custodial, mint solana.PublicKey, logger *slog.Logger) *Service {
	return &Service{
		resolver:  resolver,
		chain:     chain,
		custodial: custodial,
		mint:      mint,
		logger:    logging.Component(logger, "wallet"),
	}
}

// Custodial returns the custodial wallet description.
func (s *Service) Custodial() (Wallet, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(s.custodial, s.mint)
	if err != nil {
		return Wallet{}, fmt.Errorf("derive custodial token account: %w", err)
	}
	return Wallet{Address: s.custodial.String(), Mint: s.mint.String(), TokenAccount: ata.String()}, nil
}

// Balance resolves input and returns the owner's token balance.
func (s *Service) Balance(ctx context.Context, input string) (Balance, error) {
	owner, err := s.resolver.Resolve(ctx, input)
	if err != nil {
		return Balance{}, err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, s.mint)
	if err != nil {
		return Balance{}, fmt.Errorf("derive token account: %w", err)
	}

	exists, err := s.chain.AccountExists(ctx, ata)
	if err != nil {
		return Balance{}, err
	}
	if !exists {
		return Balance{}, ErrNoTokenAccount
	}

	amount, err := s.chain.TokenBalance(ctx, ata)
	if err != nil {
		return Balance{}, err
	}
	s.logger.Debug("balance fetched", slog.String("owner", owner.String()), slog.String("amount", amount.String()))
	return Balance{Owner: owner.String(), TokenAccount: ata.String(), Amount: amount, AsOf: time.Now().UTC()}, nil
}

// Supply returns the mint's total supply.
func (s *Service) Supply(ctx context.Context) (Supply, error) {
	amount, err := s.chain.TokenSupply(ctx, s.mint)
	if err != nil {
		return Supply{}, err
	}
	return Supply{Mint: s.mint.String(), Amount: amount, AsOf: time.Now().UTC()}, nil
}
