package transfer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/winlew/winlew_agent/internal/logging"
)

type fakeChain struct {
	mu          sync.Mutex
	exists      bool
	sendErr     error
	confirmAt   int
	statusCalls int
	txErr       error
	height      uint64
	lastValid   uint64
	sent        []*solana.Transaction
}

func (f *fakeChain) AccountExists(context.Context, solana.PublicKey) (bool, error) {
	return f.exists, nil
}

func (f *fakeChain) LatestBlockhash(context.Context) (solana.Hash, uint64, error) {
	return solana.Hash{1, 2, 3}, f.lastValid, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeChain) SignatureStatus(context.Context, solana.Signature) (bool, error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.confirmAt > 0 && f.statusCalls >= f.confirmAt {
		return true, f.txErr, nil
	}
	return false, nil, nil
}

func (f *fakeChain) BlockHeight(context.Context) (uint64, error) {
	return f.height, nil
}

func newTestTransferer(t *testing.T, chain *fakeChain) *SolanaTransferer {
	t.Helper()
	signer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	mint, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	tr := NewSolanaTransferer(chain, signer, mint.PublicKey(), time.Second, logging.Discard())
	tr.pollInterval = time.Millisecond
	return tr
}

func recipient(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("recipient: %v", err)
	}
	return key.PublicKey()
}

func TestTransferConfirmed(t *testing.T) {
	chain := &fakeChain{exists: true, confirmAt: 2, lastValid: 100, height: 50}
	tr := newTestTransferer(t, chain)

	sig, err := tr.Transfer(context.Background(), Instruction{Recipient: recipient(t), Amount: 1_000_000_000})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(chain.sent) != 1 {
		t.Fatalf("expected one transaction, got %d", len(chain.sent))
	}
	if sig != chain.sent[0].Signatures[0].String() {
		t.Fatalf("unexpected signature %s", sig)
	}
	if n := len(chain.sent[0].Message.Instructions); n != 1 {
		t.Fatalf("expected only the transfer instruction, got %d", n)
	}
}

func TestTransferConfirmsAfterSubmitTimeout(t *testing.T) {
	chain := &fakeChain{exists: true, confirmAt: 10, lastValid: 100, height: 50}
	tr := newTestTransferer(t, chain)
	tr.submitTimeout = 5 * time.Millisecond
	tr.pollInterval = 3 * time.Millisecond

	sig, err := tr.Transfer(context.Background(), Instruction{Recipient: recipient(t), Amount: 1})
	if err != nil {
		t.Fatalf("confirmation past the submit timeout must still succeed: %v", err)
	}
	if sig == "" || chain.statusCalls < 10 {
		t.Fatalf("unexpected sig %q after %d status polls", sig, chain.statusCalls)
	}
}

func TestTransferConfirmWaitCapped(t *testing.T) {
	chain := &fakeChain{exists: true, lastValid: 100, height: 1}
	tr := newTestTransferer(t, chain)
	tr.confirmWait = 20 * time.Millisecond

	_, err := tr.Transfer(context.Background(), Instruction{Recipient: recipient(t), Amount: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(chain.sent) != 1 {
		t.Fatalf("expected the transaction to be submitted, got %d", len(chain.sent))
	}
}

func TestTransferMissingRecipientAccount(t *testing.T) {
	chain := &fakeChain{exists: false}
	tr := newTestTransferer(t, chain)

	_, err := tr.Transfer(context.Background(), Instruction{Recipient: recipient(t), Amount: 1})
	if !errors.Is(err, ErrMissingRecipientAccount) {
		t.Fatalf("expected ErrMissingRecipientAccount, got %v", err)
	}
	if len(chain.sent) != 0 {
		t.Fatal("no transaction should be sent")
	}
}

func TestTransferCreatesRecipientAccount(t *testing.T) {
	chain := &fakeChain{exists: false, confirmAt: 1, lastValid: 10}
	tr := newTestTransferer(t, chain)

	if _, err := tr.Transfer(context.Background(), Instruction{Recipient: recipient(t), Amount: 5, CreateRecipientAccount: true}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if n := len(chain.sent[0].Message.Instructions); n != 2 {
		t.Fatalf("expected create + transfer instructions, got %d", n)
	}
}

func TestTransferExpires(t *testing.T) {
	chain := &fakeChain{exists: true, lastValid: 100, height: 101}
	tr := newTestTransferer(t, chain)

	_, err := tr.Transfer(context.Background(), Instruction{Recipient: recipient(t), Amount: 1})
	if !errors.Is(err, ErrTransferExpired) {
		t.Fatalf("expected ErrTransferExpired, got %v", err)
	}
}

func TestTransferOnChainFailure(t *testing.T) {
	chain := &fakeChain{exists: true, confirmAt: 1, txErr: errors.New("InstructionError: insufficient funds"), lastValid: 10}
	tr := newTestTransferer(t, chain)

	_, err := tr.Transfer(context.Background(), Instruction{Recipient: recipient(t), Amount: 1})
	if err == nil || !strings.Contains(err.Error(), "insufficient funds") {
		t.Fatalf("expected on-chain failure, got %v", err)
	}
	if errors.Is(err, ErrTransferExpired) || errors.Is(err, ErrMissingRecipientAccount) {
		t.Fatalf("generic failure misclassified: %v", err)
	}
}

func TestTransferSendErrorClassified(t *testing.T) {
	chain := &fakeChain{exists: true, sendErr: errors.New("simulation failed: TokenAccountNotFoundError")}
	tr := newTestTransferer(t, chain)

	_, err := tr.Transfer(context.Background(), Instruction{Recipient: recipient(t), Amount: 1})
	if !errors.Is(err, ErrMissingRecipientAccount) {
		t.Fatalf("expected ErrMissingRecipientAccount, got %v", err)
	}
}

func TestTransferHonoursContext(t *testing.T) {
	chain := &fakeChain{exists: true, lastValid: 100, height: 1}
	tr := newTestTransferer(t, chain)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.Transfer(ctx, Instruction{Recipient: recipient(t), Amount: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"could not find an ATA account for owner", ErrMissingRecipientAccount},
		{"simulation failed: TokenAccountNotFoundError", ErrMissingRecipientAccount},
		{"TransactionExpiredBlockheightExceededError: signature expired", ErrTransferExpired},
		{"block height exceeded", ErrTransferExpired},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); !errors.Is(got, tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.msg, tc.want, got)
		}
	}

	for _, msg := range []string{"connection reset", "Failed to send transaction: 503 Service Unavailable"} {
		plain := errors.New(msg)
		if got := Classify(plain); got != plain {
			t.Fatalf("%q: unrecognised errors must pass through, got %v", msg, got)
		}
	}
	if Classify(nil) != nil {
		t.Fatal("nil stays nil")
	}
}

func TestStaticTransferer(t *testing.T) {
	sig, err := StaticTransferer{}.Transfer(context.Background(), Instruction{Amount: 1})
	if err != nil || !strings.HasPrefix(sig, "dryrun-") {
		t.Fatalf("unexpected static result %q err=%v", sig, err)
	}
}
