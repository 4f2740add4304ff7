package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/winlew/winlew_agent/internal/price"
)

// RegisterPriceRoutes wires the price lookup and the moderator diagnostic.
func RegisterPriceRoutes(r fiber.Router, h *price.Handler, modOnly fiber.Handler) {
	r.Get("/price", h.Price)
	r.Get("/price/sources", modOnly, h.Sources)
}
