package price

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// diagnosticLimit caps the rendered diagnostic text to fit a chat message.
const diagnosticLimit = 1900

// Handler exposes price lookups.
type Handler struct {
	aggregator *Aggregator
}

// NewHandler constructs a price handler.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// Price returns the first valid price in source order.
func (h *Handler) Price(c *fiber.Ctx) error {
	quote, err := h.aggregator.ResolveBest(c.UserContext())
	if err != nil {
		if errors.Is(err, ErrAllSourcesFailed) {
			return fiber.NewError(http.StatusServiceUnavailable, "❌ No price source available for $WinLEW right now.")
		}
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	formatted := Format(quote.Value)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"price":       quote.Value,
		"formatted":   formatted,
		"message":     "💰 WinLEW Price: $" + formatted,
		"source":      quote.SourceID,
		"observed_at": quote.ObservedAt,
	})
}

type sourceReport struct {
	Source string  `json:"source"`
	OK     bool    `json:"ok"`
	Price  float64 `json:"price,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Sources queries every source and reports each result.
func (h *Handler) Sources(c *fiber.Ctx) error {
	outcomes := h.aggregator.ResolveAll(c.UserContext())

	reports := make([]sourceReport, 0, len(outcomes))
	var text strings.Builder
	text.WriteString("🛠️ Debugging price sources...\n")
	for _, o := range outcomes {
		if o.Err != nil {
			reports = append(reports, sourceReport{Source: o.SourceID, Error: o.Err.Error()})
			fmt.Fprintf(&text, "%s ❌: %s\n", o.SourceID, o.Err)
			continue
		}
		reports = append(reports, sourceReport{Source: o.SourceID, OK: true, Price: o.Value})
		fmt.Fprintf(&text, "%s ✅: $%s\n", o.SourceID, Format(o.Value))
	}

	message := text.String()
	if runes := []rune(message); len(runes) > diagnosticLimit {
		message = string(runes[:diagnosticLimit]) + "…"
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"sources": reports,
		"message": message,
	})
}
