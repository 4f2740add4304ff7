package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/winlew/winlew_agent/internal/faucet"
	"github.com/winlew/winlew_agent/internal/middleware"
)

// RegisterFaucetRoutes wires the two disbursement commands.
func RegisterFaucetRoutes(r fiber.Router, h *faucet.Handler) {
	r.Post("/faucet", h.Faucet)
	r.Post("/send", h.Send)
}

// RegisterMeRoute exposes the caller's role and remaining cooldowns.
func RegisterMeRoute(r fiber.Router, svc *faucet.Service) {
	r.Get("/me", func(c *fiber.Ctx) error {
		requester := middleware.RequesterID(c)
		left, err := svc.Remaining(c.UserContext(), requester)
		if err != nil {
			return fiber.NewError(http.StatusBadGateway, err.Error())
		}
		cooldowns := fiber.Map{}
		for op, d := range left {
			cooldowns[op] = fiber.Map{
				"remaining_seconds": int64(d.Seconds()),
				"eligible":          d == 0,
			}
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"requester_id": requester,
			"moderator":    svc.IsModerator(requester),
			"drip_amount":  svc.Amount().String(),
			"cooldowns":    cooldowns,
		})
	})
}
