package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/winlew/winlew_agent/internal/registration"
)

// RegisterRegistrationRoutes wires airdrop registration.
func RegisterRegistrationRoutes(r fiber.Router, h *registration.Handler, modOnly fiber.Handler) {
	r.Post("/register", h.Register)
	r.Get("/registrations", modOnly, h.List)
}
