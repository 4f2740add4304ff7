package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/winlew/winlew_agent/internal/account"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	Address      string `json:"address"`
	Mint         string `json:"mint"`
	TokenAccount string `json:"token_account"`
}

// Custodial returns the custodial wallet address.
func (h *Handler) Custodial(c *fiber.Ctx) error {
	w, err := h.service.Custodial()
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(walletResponse{
		Address:      w.Address,
		Mint:         w.Mint,
		TokenAccount: w.TokenAccount,
	})
}

// Balance returns the token balance of an address or .sol name.
func (h *Handler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), c.Params("address"))
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidAddress), errors.Is(err, account.ErrDomainResolutionFailed):
			return fiber.NewError(http.StatusBadRequest, "invalid address or .sol domain")
		case errors.Is(err, ErrNoTokenAccount):
			return fiber.NewError(http.StatusNotFound, "no WinLEW account found for that address")
		default:
			return fiber.NewError(http.StatusBadGateway, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner":         balance.Owner,
		"token_account": balance.TokenAccount,
		"balance":       balance.Amount.String(),
		"timestamp":     balance.AsOf,
	})
}

// Supply returns the total token supply.
func (h *Handler) Supply(c *fiber.Ctx) error {
	supply, err := h.service.Supply(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"mint":      supply.Mint,
		"supply":    supply.Amount.String(),
		"timestamp": supply.AsOf,
	})
}
