package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/winlew/winlew_agent/internal/logging"
)

const defaultPollInterval = 2 * time.Second

// MaxConfirmWait caps the confirmation loop when block height lookups keep
// failing. A blockhash normally expires well before this.
const MaxConfirmWait = 2 * time.Minute

// Chain is the subset of RPC operations a token transfer needs.
type Chain interface {
	AccountExists(ctx context.Context, key solana.PublicKey) (bool, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (done bool, txErr error, err error)
	BlockHeight(ctx context.Context) (uint64, error)
}

// SolanaTransferer sends SPL token transfers signed by the custodial key.
type SolanaTransferer struct {
	chain         Chain
	signer        solana.PrivateKey
	mint          solana.PublicKey
	submitTimeout time.Duration
	confirmWait   time.Duration
	pollInterval  time.Duration
	logger        *slog.Logger
}

// NewSolanaTransferer builds a transferer for mint signed by signer.
// submitTimeout bounds everything up to submission; confirmation runs until
// the blockhash expires or the caller's context ends.
func NewSolanaTransferer(chain Chain, signer solana.PrivateKey, mint solana.PublicKey, submitTimeout time.Duration, logger *slog.Logger) *SolanaTransferer {
	return &SolanaTransferer{
		chain:         chain,
		signer:        signer,
		mint:          mint,
		submitTimeout: submitTimeout,
		confirmWait:   MaxConfirmWait,
		pollInterval:  defaultPollInterval,
		logger:        logging.Component(logger, "transfer"),
	}
}

// Owner returns the custodial account.
func (t *SolanaTransferer) Owner() solana.PublicKey {
	return t.signer.PublicKey()
}

// Transfer moves in.Amount base units from the custodial token account to
// the recipient's associated token account and waits for confirmation.
func (t *SolanaTransferer) Transfer(ctx context.Context, in Instruction) (string, error) {
	sig, lastValid, err := t.submit(ctx, in)
	if err != nil {
		return "", err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, t.confirmWait)
	defer cancel()
	if err := t.confirm(confirmCtx, sig, lastValid); err != nil {
		return "", err
	}
	return sig.String(), nil
}

func (t *SolanaTransferer) submit(ctx context.Context, in Instruction) (solana.Signature, uint64, error) {
	if t.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.submitTimeout)
		defer cancel()
	}

	owner := t.signer.PublicKey()
	source, _, err := solana.FindAssociatedTokenAddress(owner, t.mint)
	if err != nil {
		return solana.Signature{}, 0, fmt.Errorf("derive source token account: %w", err)
	}
	destination, _, err := solana.FindAssociatedTokenAddress(in.Recipient, t.mint)
	if err != nil {
		return solana.Signature{}, 0, fmt.Errorf("derive recipient token account: %w", err)
	}

	instructions, err := t.instructions(ctx, in, owner, source, destination)
	if err != nil {
		return solana.Signature{}, 0, err
	}

	blockhash, lastValid, err := t.chain.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, 0, err
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return solana.Signature{}, 0, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner) {
			return &t.signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, 0, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := t.chain.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, 0, Classify(err)
	}
	t.logger.Info("transfer submitted",
		slog.String("signature", sig.String()),
		slog.String("recipient", in.Recipient.String()),
		slog.Uint64("amount", in.Amount))
	return sig, lastValid, nil
}

func (t *SolanaTransferer) instructions(ctx context.Context, in Instruction, owner, source, destination solana.PublicKey) ([]solana.Instruction, error) {
	var out []solana.Instruction

	exists, err := t.chain.AccountExists(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("check recipient token account: %w", err)
	}
	if !exists {
		if !in.CreateRecipientAccount {
			return nil, ErrMissingRecipientAccount
		}
		create, err := associatedtokenaccount.NewCreateInstruction(owner, in.Recipient, t.mint).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("build create account instruction: %w", err)
		}
		out = append(out, create)
	}

	move, err := token.NewTransferInstruction(in.Amount, source, destination, owner, []solana.PublicKey{}).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build transfer instruction: %w", err)
	}
	return append(out, move), nil
}

// confirm polls until sig is confirmed or the chain passes lastValid.
func (t *SolanaTransferer) confirm(ctx context.Context, sig solana.Signature, lastValid uint64) error {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		done, txErr, err := t.chain.SignatureStatus(ctx, sig)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			t.logger.Warn("signature status lookup failed", slog.String("signature", sig.String()), slog.Any("error", err))
		}
		if done {
			if txErr != nil {
				return Classify(txErr)
			}
			return nil
		}

		height, err := t.chain.BlockHeight(ctx)
		if err == nil && height > lastValid {
			return fmt.Errorf("%w: signature %s, block height %d past %d", ErrTransferExpired, sig, height, lastValid)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("await confirmation of %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}
