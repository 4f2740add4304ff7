// Package account turns human supplied address strings into canonical Solana
// account identifiers, either by parsing a base58 public key directly or by
// looking up the owner of a .sol name in the SPL Name Service.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/winlew/winlew_agent/internal/logging"
)

// DomainSuffix marks input that must be resolved through the name registry.
const DomainSuffix = ".sol"

var (
	// ErrInvalidAddress is returned when input is neither a .sol name nor a
	// well-formed base58 public key.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrDomainResolutionFailed covers every failure on the name lookup path.
	ErrDomainResolutionFailed = errors.New("unable to resolve .sol domain")
)

// ID is the canonical 32-byte account identifier.
type ID = solana.PublicKey

// NameRegistry looks up the declared owner of a registered name. The name is
// passed without the DomainSuffix.
type NameRegistry interface {
	Owner(ctx context.Context, name string) (ID, error)
}

// Resolver resolves raw addresses and .sol names. It keeps no cache; every
// call re-resolves.
type Resolver struct {
	names   NameRegistry
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver builds a resolver. A zero timeout leaves name lookups bounded
// only by the caller's context.
func NewResolver(names NameRegistry, timeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{names: names, timeout: timeout, logger: logging.Component(logger, "account")}
}

// Resolve normalizes input into an account identifier.
func (r *Resolver) Resolve(ctx context.Context, input string) (ID, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return ID{}, ErrInvalidAddress
	}

	if strings.HasSuffix(strings.ToLower(input), DomainSuffix) {
		return r.resolveName(ctx, input[:len(input)-len(DomainSuffix)])
	}

	id, err := Parse(input)
	if err != nil {
		return ID{}, err
	}
	return id, nil
}

func (r *Resolver) resolveName(ctx context.Context, name string) (ID, error) {
	if r.names == nil || name == "" {
		return ID{}, ErrDomainResolutionFailed
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	owner, err := r.names.Owner(ctx, name)
	if err != nil {
		r.logger.Warn("name resolution failed", slog.String("name", name+DomainSuffix), slog.Any("error", err))
		return ID{}, ErrDomainResolutionFailed
	}
	if owner == (ID{}) {
		r.logger.Warn("name resolved to empty owner", slog.String("name", name+DomainSuffix))
		return ID{}, ErrDomainResolutionFailed
	}
	return owner, nil
}

// Parse decodes a base58 public key.
func Parse(input string) (ID, error) {
	id, err := solana.PublicKeyFromBase58(strings.TrimSpace(input))
	if err != nil {
		return ID{}, ErrInvalidAddress
	}
	return id, nil
}
