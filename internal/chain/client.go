// Package chain wraps the Solana JSON-RPC client with a request throttle and a
// per-call timeout, exposing only the reads and writes the agent needs.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrAccountNotFound is returned when an account holds no data on chain.
var ErrAccountNotFound = errors.New("account not found")

const commitment = rpc.CommitmentConfirmed

// Client is a throttled Solana RPC client.
type Client struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds a client for endpoint allowing rps requests per second. A
// non-positive rps disables throttling.
func New(endpoint string, rps int, timeout time.Duration) *Client {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = rps
	}
	return &Client{
		rpc:     rpc.New(endpoint),
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rpc throttle: %w", err)
	}
	if c.timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, cancel, nil
}

// AccountData returns the raw bytes held by key.
func (c *Client) AccountData(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	out, err := c.rpc.GetAccountInfo(ctx, key)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account info: %w", err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, ErrAccountNotFound
	}
	return out.Value.Data.GetBinary(), nil
}

// AccountExists reports whether key has been created on chain.
func (c *Client) AccountExists(ctx context.Context, key solana.PublicKey) (bool, error) {
	_, err := c.AccountData(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrAccountNotFound):
		return false, nil
	default:
		return false, err
	}
}

// TokenBalance returns the UI amount held by a token account.
func (c *Client) TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (decimal.Decimal, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer cancel()

	out, err := c.rpc.GetTokenAccountBalance(ctx, tokenAccount, commitment)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get token account balance: %w", err)
	}
	if out == nil || out.Value == nil {
		return decimal.Zero, ErrAccountNotFound
	}
	return uiAmount(out.Value.Amount, out.Value.Decimals)
}

// TokenSupply returns the UI supply of mint.
func (c *Client) TokenSupply(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer cancel()

	out, err := c.rpc.GetTokenSupply(ctx, mint, commitment)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get token supply: %w", err)
	}
	if out == nil || out.Value == nil {
		return decimal.Zero, ErrAccountNotFound
	}
	return uiAmount(out.Value.Amount, out.Value.Decimals)
}

// LatestBlockhash returns a recent blockhash and the last block height at
// which transactions referencing it are still valid.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return solana.Hash{}, 0, err
	}
	defer cancel()

	out, err := c.rpc.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, 0, errors.New("get latest blockhash: empty response")
	}
	return out.Value.Blockhash, out.Value.LastValidBlockHeight, nil
}

// BlockHeight returns the current confirmed block height.
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	height, err := c.rpc.GetBlockHeight(ctx, commitment)
	if err != nil {
		return 0, fmt.Errorf("get block height: %w", err)
	}
	return height, nil
}

// SendTransaction submits a signed transaction after preflight simulation.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return solana.Signature{}, err
	}
	defer cancel()

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// SignatureStatus reports the confirmation state of sig. Done is true once
// the transaction is confirmed or finalized; txErr carries an on-chain
// execution failure.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (done bool, txErr error, err error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return false, nil, err
	}
	defer cancel()

	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return false, nil, fmt.Errorf("get signature statuses: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil, nil
	}
	status := out.Value[0]
	if status.Err != nil {
		return true, fmt.Errorf("transaction %s failed: %v", sig, status.Err), nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil, nil
	default:
		return false, nil, nil
	}
}

// Health pings the RPC node.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	status, err := c.rpc.GetHealth(ctx)
	if err != nil {
		return err
	}
	if status != rpc.HealthOk {
		return fmt.Errorf("rpc unhealthy: %s", status)
	}
	return nil
}

func uiAmount(raw string, decimals uint8) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse token amount %q: %w", raw, err)
	}
	return amount.Shift(-int32(decimals)), nil
}
