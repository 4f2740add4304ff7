// Package faucet disburses a fixed token amount to requesters behind two
// independent limits: a durable per-recipient claim ledger and an in-process
// per-requester cooldown.
package faucet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/winlew/winlew_agent/internal/account"
	"github.com/winlew/winlew_agent/internal/cooldown"
	"github.com/winlew/winlew_agent/internal/ledger"
	"github.com/winlew/winlew_agent/internal/logging"
	"github.com/winlew/winlew_agent/internal/notification"
	"github.com/winlew/winlew_agent/internal/transfer"
)

// Operations, also used as the cooldown key prefix.
const (
	OperationFaucet = "faucet"
	OperationSend   = "send"
)

// DefaultWindow is the length of both limits.
const DefaultWindow = 24 * time.Hour

const notifyTimeout = 10 * time.Second

var (
	// ErrUnauthorized is returned when a non-moderator invokes the privileged path.
	ErrUnauthorized = errors.New("not authorized to use this command")
	// ErrSelfTransferDisallowed is returned when the recipient is the custodial account.
	ErrSelfTransferDisallowed = errors.New("cannot send tokens to the custodial account")
	// ErrLedgerCooldownActive is returned when the recipient claimed within the window.
	ErrLedgerCooldownActive = errors.New("address already claimed in the past 24h")
	// ErrRequesterCooldownActive is matched by every *CooldownError.
	ErrRequesterCooldownActive = errors.New("requester cooldown active")
	// ErrUpstreamFailure wraps unclassified failures of external dependencies.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrLedgerCommitFailed means tokens moved but the claim was not recorded.
	// The Result returned alongside it carries the signature.
	ErrLedgerCommitFailed = errors.New("claim ledger commit failed after transfer")
)

// CooldownError carries the time left on a requester cooldown.
type CooldownError struct {
	Operation    string
	NextEligible time.Time
	Remaining    time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s cooldown active, retry in ~%dh", e.Operation, e.Hours())
}

// Is makes errors.Is(err, ErrRequesterCooldownActive) match.
func (e *CooldownError) Is(target error) bool {
	return target == ErrRequesterCooldownActive
}

// Hours returns the remaining wait rounded up to whole hours.
func (e *CooldownError) Hours() int {
	if e.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(e.Remaining.Hours()))
}

// Status is the terminal state of a request.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

// Classify maps an error returned by Faucet or Send to its terminal status.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusSucceeded
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, account.ErrInvalidAddress),
		errors.Is(err, account.ErrDomainResolutionFailed),
		errors.Is(err, ErrSelfTransferDisallowed),
		errors.Is(err, ErrLedgerCooldownActive),
		errors.Is(err, ErrRequesterCooldownActive):
		return StatusRejected
	default:
		return StatusFailed
	}
}

// Resolver turns an address or .sol name into an account.
type Resolver interface {
	Resolve(ctx context.Context, input string) (account.ID, error)
}

// Recorder observes terminal outcomes.
type Recorder interface {
	ObserveDisbursement(operation string, status Status)
}

// Policy configures the engine.
type Policy struct {
	// Amount is the disbursed quantity in base units; Display is the same
	// quantity in whole tokens.
	Amount  uint64
	Display decimal.Decimal

	Custodial  account.ID
	Moderators []string

	LedgerWindow   time.Duration
	CooldownWindow time.Duration
}

// Result describes a completed disbursement.
type Result struct {
	Operation   string
	Signature   string
	Recipient   account.ID
	Amount      decimal.Decimal
	CompletedAt time.Time
}

// Service runs both disbursement paths over injected stores.
type Service struct {
	resolver   Resolver
	claims     ledger.ClaimLedger
	cooldowns  cooldown.Table
	transferer transfer.Transferer
	notifier   notification.Notifier
	recorder   Recorder
	policy     Policy
	moderators map[string]struct{}
	logger     *slog.Logger
	now        func() time.Time
	pending    sync.WaitGroup
}

// NewService constructs a distribution engine.
func NewService(resolver Resolver, claims ledger.ClaimLedger, cooldowns cooldown.Table, transferer transfer.Transferer, notifier notification.Notifier, recorder Recorder, policy Policy, logger *slog.Logger) *Service {
	if policy.LedgerWindow <= 0 {
		policy.LedgerWindow = DefaultWindow
	}
	if policy.CooldownWindow <= 0 {
		policy.CooldownWindow = DefaultWindow
	}
	mods := make(map[string]struct{}, len(policy.Moderators))
	for _, id := range policy.Moderators {
		mods[id] = struct{}{}
	}
	return &Service{
		resolver:   resolver,
		claims:     claims,
		cooldowns:  cooldowns,
		transferer: transferer,
		notifier:   notifier,
		recorder:   recorder,
		policy:     policy,
		moderators: mods,
		logger:     logging.Component(logger, "faucet"),
		now:        time.Now,
	}
}

// IsModerator reports whether requesterID may use the privileged path.
func (s *Service) IsModerator(requesterID string) bool {
	_, ok := s.moderators[requesterID]
	return ok
}

// Wait blocks until in-flight announcements are delivered.
func (s *Service) Wait() { s.pending.Wait() }

// Amount returns the disbursed quantity in whole tokens.
func (s *Service) Amount() decimal.Decimal { return s.policy.Display }

// Faucet disburses to any requester once per window per recipient and requester.
func (s *Service) Faucet(ctx context.Context, requesterID, address string) (Result, error) {
	return s.run(ctx, OperationFaucet, requesterID, address)
}

// Send is the moderator-only path. It refuses the custodial account as
// recipient and creates the recipient token account when absent.
func (s *Service) Send(ctx context.Context, requesterID, address string) (Result, error) {
	return s.run(ctx, OperationSend, requesterID, address)
}

// Remaining reports the requester cooldown left on each operation. Zero
// means the requester may run the command now.
func (s *Service) Remaining(ctx context.Context, requesterID string) (map[string]time.Duration, error) {
	now := s.now()
	out := make(map[string]time.Duration, 2)
	for _, op := range []string{OperationFaucet, OperationSend} {
		left, err := s.cooldowns.Remaining(ctx, cooldown.Key{Operation: op, RequesterID: requesterID}, now)
		if err != nil {
			return nil, fmt.Errorf("%w: cooldown table: %w", ErrUpstreamFailure, err)
		}
		out[op] = left
	}
	return out, nil
}

func (s *Service) run(ctx context.Context, op, requesterID, address string) (Result, error) {
	res, err := s.disburse(ctx, op, requesterID, address)
	status := Classify(err)
	if s.recorder != nil {
		s.recorder.ObserveDisbursement(op, status)
	}

	attrs := []any{
		slog.String("operation", op),
		slog.String("requester_id", requesterID),
		slog.String("address", address),
		slog.String("status", string(status)),
	}
	switch status {
	case StatusSucceeded:
		s.logger.Info("disbursement completed", append(attrs, slog.String("signature", res.Signature))...)
	case StatusRejected:
		s.logger.Info("disbursement rejected", append(attrs, slog.String("reason", err.Error()))...)
	default:
		if res.Signature != "" {
			attrs = append(attrs, slog.String("signature", res.Signature))
		}
		s.logger.Error("disbursement failed", append(attrs, slog.Any("error", err))...)
	}
	return res, err
}

func (s *Service) disburse(ctx context.Context, op, requesterID, address string) (Result, error) {
	privileged := op == OperationSend

	if privileged && !s.IsModerator(requesterID) {
		return Result{}, ErrUnauthorized
	}

	recipient, err := s.resolver.Resolve(ctx, address)
	if err != nil {
		if errors.Is(err, account.ErrInvalidAddress) || errors.Is(err, account.ErrDomainResolutionFailed) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: resolve: %w", ErrUpstreamFailure, err)
	}

	if privileged && recipient.Equals(s.policy.Custodial) {
		return Result{}, ErrSelfTransferDisallowed
	}

	now := s.now()
	key := recipient.String()

	last, found, err := s.claims.LastClaim(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read claim ledger: %w", ErrUpstreamFailure, err)
	}
	if found && !ledger.Eligible(last, now, s.policy.LedgerWindow) {
		return Result{}, fmt.Errorf("%w (next claim after %s)", ErrLedgerCooldownActive,
			last.Add(s.policy.LedgerWindow).UTC().Format(time.RFC3339))
	}

	// Admission consumes the cooldown before the transfer outcome is known.
	decision, err := s.cooldowns.Admit(ctx, cooldown.Key{Operation: op, RequesterID: requesterID}, now, s.policy.CooldownWindow)
	if err != nil {
		return Result{}, fmt.Errorf("%w: cooldown table: %w", ErrUpstreamFailure, err)
	}
	if !decision.Admitted {
		return Result{}, &CooldownError{
			Operation:    op,
			NextEligible: decision.NextEligible,
			Remaining:    decision.Remaining(now),
		}
	}

	signature, err := s.transfer(ctx, recipient, privileged)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Operation:   op,
		Signature:   signature,
		Recipient:   recipient,
		Amount:      s.policy.Display,
		CompletedAt: s.now().UTC(),
	}
	s.notify(ctx, requesterID, res)

	if err := s.claims.RecordClaim(ctx, key, now); err != nil {
		return res, fmt.Errorf("%w: %w", ErrLedgerCommitFailed, err)
	}
	return res, nil
}

// transfer runs without a deadline of its own: the transferer bounds
// submission and confirmation ends when the blockhash expires.
func (s *Service) transfer(ctx context.Context, recipient account.ID, privileged bool) (string, error) {
	signature, err := s.transferer.Transfer(ctx, transfer.Instruction{
		Recipient:              recipient,
		Amount:                 s.policy.Amount,
		CreateRecipientAccount: privileged,
	})
	if err == nil {
		return signature, nil
	}

	err = transfer.Classify(err)
	switch {
	case errors.Is(err, transfer.ErrMissingRecipientAccount):
		return "", err
	case errors.Is(err, transfer.ErrTransferExpired):
		if privileged {
			return "", err
		}
		return "", fmt.Errorf("%w: transfer: %v", ErrUpstreamFailure, err)
	default:
		return "", fmt.Errorf("%w: transfer: %w", ErrUpstreamFailure, err)
	}
}

// notify announces a disbursement off the request path.
func (s *Service) notify(ctx context.Context, requesterID string, res Result) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindDisbursement,
		Destination: requesterID,
		Body:        fmt.Sprintf("Sent %s WinLEW to %s (tx %s)", res.Amount.String(), res.Recipient, res.Signature),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("disbursement notification failed", slog.String("signature", res.Signature), slog.Any("error", err))
		}
	}()
}
