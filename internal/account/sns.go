package account

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const (
	nameHashPrefix = "SPL Name Service"
	// Registry records start with parent name, owner and class keys.
	registryHeaderLen = 96
	ownerOffset       = 32
)

var (
	// NameServiceProgramID is the SPL Name Service program.
	NameServiceProgramID = solana.MustPublicKeyFromBase58("namesLPneVptA9Z5rqUDD9tMTWEJwofgaYwp8cawRkX")
	// SolTLDAuthority is the parent account of every .sol name.
	SolTLDAuthority = solana.MustPublicKeyFromBase58("58PwtjSDuFHuUkYjH9BYnnQKHfwo9reZhC2zMJv9JPkx")

	errRecordTooShort = errors.New("name registry record too short")
)

// AccountFetcher returns the raw data stored in an on-chain account.
type AccountFetcher interface {
	AccountData(ctx context.Context, key ID) ([]byte, error)
}

// NameService resolves .sol names against the SPL Name Service registry.
type NameService struct {
	accounts AccountFetcher
}

// NewNameService builds a NameRegistry backed by on-chain account reads.
func NewNameService(accounts AccountFetcher) *NameService {
	return &NameService{accounts: accounts}
}

// Owner derives the registry key for name, loads the record and returns its owner.
func (s *NameService) Owner(ctx context.Context, name string) (ID, error) {
	key, err := DomainKey(name)
	if err != nil {
		return ID{}, fmt.Errorf("derive key: %w", err)
	}
	data, err := s.accounts.AccountData(ctx, key)
	if err != nil {
		return ID{}, fmt.Errorf("retrieve record %s: %w", key, err)
	}
	owner, err := RecordOwner(data)
	if err != nil {
		return ID{}, fmt.Errorf("read owner of %s: %w", key, err)
	}
	return owner, nil
}

// DomainKey derives the registry account for a name (without the .sol
// suffix). A single subdomain level ("sub.name") is supported.
func DomainKey(name string) (ID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	parts := strings.Split(name, ".")
	for _, p := range parts {
		if p == "" {
			return ID{}, fmt.Errorf("malformed name %q", name)
		}
	}

	switch len(parts) {
	case 1:
		return deriveNameKey(parts[0], SolTLDAuthority)
	case 2:
		parent, err := deriveNameKey(parts[1], SolTLDAuthority)
		if err != nil {
			return ID{}, err
		}
		return deriveNameKey("\x00"+parts[0], parent)
	default:
		return ID{}, fmt.Errorf("unsupported name depth in %q", name)
	}
}

// RecordOwner extracts the owner key from raw registry record data.
func RecordOwner(data []byte) (ID, error) {
	if len(data) < registryHeaderLen {
		return ID{}, errRecordTooShort
	}
	return solana.PublicKeyFromBytes(data[ownerOffset : ownerOffset+solana.PublicKeyLength]), nil
}

func deriveNameKey(name string, parent ID) (ID, error) {
	hashed := sha256.Sum256([]byte(nameHashPrefix + name))
	var class ID
	key, _, err := solana.FindProgramAddress(
		[][]byte{hashed[:], class[:], parent[:]},
		NameServiceProgramID,
	)
	if err != nil {
		return ID{}, err
	}
	return key, nil
}
