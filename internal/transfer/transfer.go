// Package transfer moves tokens from the custodial account to a recipient.
package transfer

import (
	"context"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

var (
	// ErrMissingRecipientAccount means the recipient has no token account for
	// the mint and the instruction did not ask for one to be created.
	ErrMissingRecipientAccount = errors.New("recipient token account does not exist")

	// ErrTransferExpired means the transaction was not confirmed before its
	// blockhash stopped being valid.
	ErrTransferExpired = errors.New("transfer expired before confirmation")
)

// Upstream error fragments that identify the two distinguished failures.
var (
	missingAccountMarkers = []string{
		"could not find an ATA account",
		"TokenAccountNotFoundError",
	}
	expiredMarkers = []string{
		"TransactionExpiredBlockheightExceededError",
		"block height exceeded",
		"Blockhash not found",
	}
)

// Instruction describes a single distribution. Amount is in base units.
type Instruction struct {
	Recipient              solana.PublicKey
	Amount                 uint64
	CreateRecipientAccount bool
}

// Transferer executes a transfer and returns the transaction signature.
type Transferer interface {
	Transfer(ctx context.Context, in Instruction) (string, error)
}

// Classify maps raw upstream errors onto the package sentinels by message.
// Errors already wrapping a sentinel, and unrecognised errors, are returned
// unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrMissingRecipientAccount) || errors.Is(err, ErrTransferExpired) {
		return err
	}
	msg := err.Error()
	for _, marker := range missingAccountMarkers {
		if strings.Contains(msg, marker) {
			return errors.Join(ErrMissingRecipientAccount, err)
		}
	}
	for _, marker := range expiredMarkers {
		if strings.Contains(msg, marker) {
			return errors.Join(ErrTransferExpired, err)
		}
	}
	return err
}

// StaticTransferer simulates successful transfers with synthetic signatures.
// It is used when the agent runs in dry-run mode.
type StaticTransferer struct{}

// Transfer approves the instruction without touching the network.
func (StaticTransferer) Transfer(_ context.Context, _ Instruction) (string, error) {
	return "dryrun-" + uuid.NewString(), nil
}
