package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/winlew/winlew_agent/internal/wallet"
)

// RegisterWalletRoutes wires balance, supply and custodial wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Custodial)
	r.Get("/balance/:address", h.Balance)
	r.Get("/supply", h.Supply)
}
