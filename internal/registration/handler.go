package registration

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/winlew/winlew_agent/internal/account"
)

// Handler exposes registration endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a registration handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Address string `json:"address"`
}

// Register adds the caller's address to the airdrop list.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Address == "" {
		return fiber.NewError(http.StatusBadRequest, "address is required")
	}
	requester, _ := c.Locals("requester_id").(string)

	reg, err := h.service.Register(c.UserContext(), requester, req.Address)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidAddress), errors.Is(err, account.ErrDomainResolutionFailed):
			return fiber.NewError(http.StatusBadRequest, "invalid address or .sol domain")
		case errors.Is(err, ErrAlreadyRegistered):
			return fiber.NewError(http.StatusConflict, "address already registered")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         reg.ID,
		"address":    reg.Address,
		"message":    "✅ Registered " + req.Address,
		"created_at": reg.CreatedAt,
	})
}

// List returns every registration.
func (h *Handler) List(c *fiber.Ctx) error {
	regs, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"registrations": regs, "count": len(regs)})
}
