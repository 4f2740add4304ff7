package faucet

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/winlew/winlew_agent/internal/account"
	"github.com/winlew/winlew_agent/internal/transfer"
)

const (
	explorerTxURL = "https://solscan.io/tx/"
	explorerHint  = "If you don't see the transaction on Solscan right away, please wait a minute and check again!"
	unrecorded    = "⚠️ Tokens were sent but the claim could not be recorded. Please tell a moderator."
)

// Handler exposes the faucet and send commands.
type Handler struct {
	service *Service
}

// NewHandler constructs a distribution handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type disburseRequest struct {
	Address string `json:"address"`
}

type disburseResponse struct {
	Message     string `json:"message"`
	Signature   string `json:"signature"`
	ExplorerURL string `json:"explorer_url"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	CompletedAt string `json:"completed_at"`
}

// Faucet handles POST /faucet.
func (h *Handler) Faucet(c *fiber.Ctx) error {
	address, err := parseAddress(c, OperationFaucet)
	if err != nil {
		return err
	}
	res, err := h.service.Faucet(c.UserContext(), requester(c), address)
	if errors.Is(err, ErrLedgerCommitFailed) {
		return c.Status(http.StatusInternalServerError).JSON(respond(unrecorded, res))
	}
	if err != nil {
		return h.mapError(c, OperationFaucet, err)
	}
	return c.Status(http.StatusOK).JSON(respond("💧 Dripped!", res))
}

// Send handles POST /send.
func (h *Handler) Send(c *fiber.Ctx) error {
	// Authorization precedes argument validation.
	if !h.service.IsModerator(requester(c)) {
		return h.mapError(c, OperationSend, ErrUnauthorized)
	}
	address, err := parseAddress(c, OperationSend)
	if err != nil {
		return err
	}
	res, err := h.service.Send(c.UserContext(), requester(c), address)
	if errors.Is(err, ErrLedgerCommitFailed) {
		return c.Status(http.StatusInternalServerError).JSON(respond(unrecorded, res))
	}
	if err != nil {
		return h.mapError(c, OperationSend, err)
	}
	return c.Status(http.StatusOK).JSON(respond(fmt.Sprintf("✅ Sent %s WinLEW!", res.Amount.String()), res))
}

func respond(headline string, res Result) disburseResponse {
	return disburseResponse{
		Message:     fmt.Sprintf("%s Tx: %s%s\n_%s_", headline, explorerTxURL, res.Signature, explorerHint),
		Signature:   res.Signature,
		ExplorerURL: explorerTxURL + res.Signature,
		Recipient:   res.Recipient.String(),
		Amount:      res.Amount.String(),
		CompletedAt: res.CompletedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func parseAddress(c *fiber.Ctx, op string) (string, error) {
	var req disburseRequest
	if err := c.BodyParser(&req); err != nil {
		return "", fiber.NewError(http.StatusBadRequest, err.Error())
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return "", fiber.NewError(http.StatusBadRequest, fmt.Sprintf("Usage: !%s <Your Solana ADDRESS or .sol>", op))
	}
	return address, nil
}

func requester(c *fiber.Ctx) string {
	id, _ := c.Locals("requester_id").(string)
	return id
}

func (h *Handler) mapError(c *fiber.Ctx, op string, err error) error {
	var cooldownErr *CooldownError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, "❌ You are not authorized to use this command.")
	case errors.Is(err, account.ErrInvalidAddress), errors.Is(err, account.ErrDomainResolutionFailed):
		return fiber.NewError(http.StatusBadRequest, "❌ Invalid address or .sol domain")
	case errors.Is(err, ErrSelfTransferDisallowed):
		return fiber.NewError(http.StatusBadRequest, "❌ Cannot send tokens to the bot's own address!")
	case errors.Is(err, ErrLedgerCooldownActive):
		return fiber.NewError(http.StatusTooManyRequests, "⏳ This address already claimed the faucet in the past 24h!💥")
	case errors.As(err, &cooldownErr):
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(cooldownErr.Remaining.Seconds())))
		return fiber.NewError(http.StatusTooManyRequests, fmt.Sprintf("⏳ Please wait ~%dh to use that command again.", cooldownErr.Hours()))
	case errors.Is(err, transfer.ErrMissingRecipientAccount):
		return fiber.NewError(http.StatusUnprocessableEntity, "💥 Error No ATA Account! (Recipient must create their $WinLEW token account first)")
	case errors.Is(err, transfer.ErrTransferExpired):
		return fiber.NewError(http.StatusGatewayTimeout, "⏰ Transaction expired (block height exceeded). The Solana network was too slow or the transaction was sent too late. Please try again!")
	case op == OperationSend:
		return fiber.NewError(http.StatusBadGateway, "❌ Failed to send: "+err.Error())
	default:
		return fiber.NewError(http.StatusBadGateway, "❌ "+err.Error())
	}
}
