package account

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/winlew/winlew_agent/internal/logging"
)

type memoryAccounts struct {
	mu    sync.Mutex
	data  map[ID][]byte
	reads int
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{data: make(map[ID][]byte)}
}

func (m *memoryAccounts) AccountData(_ context.Context, key ID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	data, ok := m.data[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memoryAccounts) register(t *testing.T, name string, owner ID) {
	t.Helper()
	key, err := DomainKey(name)
	if err != nil {
		t.Fatalf("derive key for %s: %v", name, err)
	}
	record := make([]byte, registryHeaderLen+16)
	copy(record[ownerOffset:], owner[:])
	m.mu.Lock()
	m.data[key] = record
	m.mu.Unlock()
}

func randomID(t *testing.T) ID {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PublicKey()
}

func TestResolveRawAddress(t *testing.T) {
	want := randomID(t)
	r := NewResolver(NewNameService(newMemoryAccounts()), 0, logging.Discard())

	got, err := r.Resolve(context.Background(), "  "+want.String()+" ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Equals(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestResolveInvalidAddress(t *testing.T) {
	r := NewResolver(NewNameService(newMemoryAccounts()), 0, logging.Discard())

	for _, input := range []string{"", "not-a-key", "0OIl", "abc"} {
		if _, err := r.Resolve(context.Background(), input); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("input %q: expected ErrInvalidAddress, got %v", input, err)
		}
	}
}

func TestResolveDomain(t *testing.T) {
	accounts := newMemoryAccounts()
	owner := randomID(t)
	accounts.register(t, "example", owner)
	r := NewResolver(NewNameService(accounts), 0, logging.Discard())

	got, err := r.Resolve(context.Background(), "example.sol")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Equals(owner) {
		t.Fatalf("expected owner %s, got %s", owner, got)
	}

	// No caching: a second call hits the registry again.
	if _, err := r.Resolve(context.Background(), "Example.SOL"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if accounts.reads != 2 {
		t.Fatalf("expected 2 registry reads, got %d", accounts.reads)
	}
}

func TestResolveSubdomain(t *testing.T) {
	accounts := newMemoryAccounts()
	parentOwner := randomID(t)
	subOwner := randomID(t)
	accounts.register(t, "example", parentOwner)
	accounts.register(t, "pay.example", subOwner)
	r := NewResolver(NewNameService(accounts), 0, logging.Discard())

	got, err := r.Resolve(context.Background(), "pay.example.sol")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Equals(subOwner) {
		t.Fatalf("expected sub owner %s, got %s", subOwner, got)
	}
}

func TestResolveDomainFailuresAreUniform(t *testing.T) {
	accounts := newMemoryAccounts()
	shortKey, err := DomainKey("short")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	accounts.data[shortKey] = make([]byte, 10)
	accounts.register(t, "nobody", ID{})

	r := NewResolver(NewNameService(accounts), 0, logging.Discard())
	cases := []string{
		"missing.sol",  // record retrieval fails
		"short.sol",    // owner extraction fails
		"a..b.sol",     // key derivation fails
		"x.y.z.sol",    // unsupported depth
		".sol",         // empty name
		"nobody.sol",   // zero owner
	}
	for _, input := range cases {
		_, err := r.Resolve(context.Background(), input)
		if !errors.Is(err, ErrDomainResolutionFailed) {
			t.Fatalf("input %q: expected ErrDomainResolutionFailed, got %v", input, err)
		}
		if errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("input %q: domain failure must not surface as invalid address", input)
		}
	}
}

func TestDomainKeyIsDeterministic(t *testing.T) {
	a, err := DomainKey("winlew")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DomainKey("WinLEW")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !a.Equals(b) {
		t.Fatalf("expected case-insensitive derivation, got %s and %s", a, b)
	}
	sub, err := DomainKey("pay.winlew")
	if err != nil {
		t.Fatalf("derive sub: %v", err)
	}
	if sub.Equals(a) {
		t.Fatal("subdomain key must differ from parent key")
	}
}
