package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/winlew/winlew_agent/internal/config"
	"github.com/winlew/winlew_agent/internal/faucet"
	"github.com/winlew/winlew_agent/internal/metrics"
	"github.com/winlew/winlew_agent/internal/middleware"
	"github.com/winlew/winlew_agent/internal/price"
	"github.com/winlew/winlew_agent/internal/registration"
	"github.com/winlew/winlew_agent/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// are optional.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	Chain         HealthChecker
	Metrics       *metrics.Collector
	Prices        *price.Aggregator
	Faucet        *faucet.Service
	Wallets       *wallet.Service
	Registrations *registration.Service
	StartedAt     time.Time
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if err := d.validate(); err != nil {
		return err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())

	RegisterHealthRoutes(app, d)
	if d.Metrics != nil {
		app.Get("/metrics", d.Metrics.Handler())
	}

	api := app.Group("/api/v1",
		middleware.Audit(d.Logger),
		middleware.RelayAuth(d.Cfg.RelaySecret),
		middleware.RelayRateLimit(d.Cache, d.Cfg.RelayRatePerMinute),
	)
	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	modOnly := middleware.RequireModerator(d.Faucet.IsModerator)

	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	api.Get("/uptime", func(c *fiber.Ctx) error {
		up := time.Since(d.StartedAt)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"uptime_seconds": int64(up.Seconds()),
			"message":        "⏳ Uptime: " + formatUptime(up),
		})
	})

	RegisterPriceRoutes(api, price.NewHandler(d.Prices), modOnly)
	RegisterFaucetRoutes(api, faucet.NewHandler(d.Faucet))
	RegisterMeRoute(api, d.Faucet)
	RegisterWalletRoutes(api, wallet.NewHandler(d.Wallets))
	RegisterRegistrationRoutes(api, registration.NewHandler(d.Registrations), modOnly)

	return nil
}

func (d Deps) validate() error {
	if !isDev(d.Cfg.AppEnv) && d.Cfg.RelaySecret == "" {
		return fmt.Errorf("RELAY_SECRET is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	var missing []string
	if d.Prices == nil {
		missing = append(missing, "price aggregator")
	}
	if d.Faucet == nil {
		missing = append(missing, "faucet service")
	}
	if d.Wallets == nil {
		missing = append(missing, "wallet service")
	}
	if d.Registrations == nil {
		missing = append(missing, "registration service")
	}
	if len(missing) > 0 {
		return fmt.Errorf("routes: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func formatUptime(d time.Duration) string {
	total := int64(d.Seconds())
	return fmt.Sprintf("%dh %dm %ds", total/3600, (total/60)%60, total%60)
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
