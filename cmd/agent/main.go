package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/winlew/winlew_agent/internal/account"
	"github.com/winlew/winlew_agent/internal/chain"
	"github.com/winlew/winlew_agent/internal/config"
	"github.com/winlew/winlew_agent/internal/cooldown"
	"github.com/winlew/winlew_agent/internal/faucet"
	"github.com/winlew/winlew_agent/internal/infra"
	"github.com/winlew/winlew_agent/internal/ledger"
	"github.com/winlew/winlew_agent/internal/logging"
	"github.com/winlew/winlew_agent/internal/metrics"
	"github.com/winlew/winlew_agent/internal/notification"
	"github.com/winlew/winlew_agent/internal/price"
	"github.com/winlew/winlew_agent/internal/registration"
	"github.com/winlew/winlew_agent/internal/routes"
	"github.com/winlew/winlew_agent/internal/scheduler"
	"github.com/winlew/winlew_agent/internal/server"
	"github.com/winlew/winlew_agent/internal/transfer"
	"github.com/winlew/winlew_agent/internal/wallet"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	startedAt := time.Now()
	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.CallTimeout)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, cfg.CallTimeout)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	signer, err := infra.LoadSigner(cfg.KeypairPath)
	if err != nil {
		logger.Error("load signer", "error", err)
		os.Exit(1)
	}
	mint, err := infra.ParseMint(cfg.TokenMint)
	if err != nil {
		logger.Error("parse mint", "error", err)
		os.Exit(1)
	}
	amount, display, err := wallet.ToBaseUnits(cfg.DripAmount, cfg.TokenDecimals)
	if err != nil {
		logger.Error("parse drip amount", "error", err)
		os.Exit(1)
	}

	rpc := chain.New(cfg.RPCURL, cfg.RPCRateLimit, cfg.CallTimeout)
	httpClient := infra.NewHTTPClient(cfg.CallTimeout)
	collector := metrics.NewCollector()
	resolver := account.NewResolver(account.NewNameService(rpc), cfg.CallTimeout, logger)

	sources, err := price.BuildSources(cfg.PriceSources, price.Endpoints{
		Mint:               cfg.TokenMint,
		SolscanAPIKey:      cfg.SolscanAPIKey,
		SolscanBaseURL:     cfg.SolscanBaseURL,
		RaydiumPoolID:      cfg.RaydiumPoolID,
		RaydiumBaseURL:     cfg.RaydiumBaseURL,
		PumpFunPoolID:      cfg.PumpFunPoolID,
		PumpFunBaseURL:     cfg.PumpFunBaseURL,
		DexscreenerPairID:  cfg.DexscreenerPairID,
		DexscreenerBaseURL: cfg.DexscreenerBaseURL,
	}, httpClient, logger)
	if err != nil {
		logger.Error("build price sources", "error", err)
		os.Exit(1)
	}
	prices := price.NewAggregator(sources, cfg.CallTimeout, collector, logger)

	claims, err := buildClaimLedger(ctx, cfg, db, logger)
	if err != nil {
		logger.Error("build claim ledger", "error", err)
		os.Exit(1)
	}
	registrations, err := buildRegistrationRepository(ctx, cfg, db)
	if err != nil {
		logger.Error("build registration repository", "error", err)
		os.Exit(1)
	}

	var cooldowns cooldown.Table
	var sweeper scheduler.Sweeper
	if cfg.RedisCooldowns() {
		cooldowns = cooldown.NewRedisTable(cache)
	} else {
		memory := cooldown.NewMemoryTable()
		cooldowns, sweeper = memory, memory
	}

	var transferer transfer.Transferer = transfer.NewSolanaTransferer(rpc, signer, mint, cfg.CallTimeout, logger)
	if cfg.DryRun {
		logger.Warn("transfer dry run enabled, no tokens will move")
		transferer = transfer.StaticTransferer{}
	}

	var announcer notification.Notifier
	if cfg.AnnounceDisbursements {
		announcer = notifier(logger, cfg.GeneralWebhookURL, httpClient)
	}
	faucetSvc := faucet.NewService(resolver, claims, cooldowns, transferer, announcer, collector, faucet.Policy{
		Amount:     amount,
		Display:    display,
		Custodial:  signer.PublicKey(),
		Moderators: cfg.ModIDs,
	}, logger)

	srv, err := server.New(routes.Deps{
		Cfg:           cfg,
		DB:            db,
		Cache:         cache,
		Logger:        logger,
		Chain:         rpc,
		Metrics:       collector,
		Prices:        prices,
		Faucet:        faucetSvc,
		Wallets:       wallet.NewService(resolver, rpc, signer.PublicKey(), mint, logger),
		Registrations: registration.NewService(registrations, resolver),
		StartedAt:     startedAt,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	var jobs *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		channels := scheduler.Channels{Voice: cfg.VoiceChannelID, Price: cfg.PriceChannelID, Alert: cfg.AlertChannelID}
		jobs = scheduler.New(prices, notifier(logger, cfg.PriceWebhookURL, httpClient), sweeper, collector, channels, cfg.CallTimeout*4, logger)
		if err := jobs.Start(); err != nil {
			logger.Error("start scheduler", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("agent starting",
		"addr", cfg.Address(),
		"custodial", signer.PublicKey().String(),
		"mint", mint.String(),
		"claims_backend", cfg.ClaimsBackend,
		"cooldown_backend", cfg.CooldownBackend,
		"price_sources", prices.Sources(),
	)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if jobs != nil {
		select {
		case <-jobs.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("scheduled jobs still running at shutdown")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	announced := make(chan struct{})
	go func() {
		faucetSvc.Wait()
		close(announced)
	}()
	select {
	case <-announced:
	case <-shutdownCtx.Done():
		logger.Warn("disbursement announcements still pending at shutdown")
	}

	logger.Info("agent exited cleanly")
}

func buildClaimLedger(ctx context.Context, cfg config.Config, db *pgxpool.Pool, logger *slog.Logger) (ledger.ClaimLedger, error) {
	if !cfg.PostgresClaims() {
		logger.Info("claim ledger backed by file", "path", cfg.ClaimsFile)
		return ledger.NewFileLedger(cfg.ClaimsFile), nil
	}
	pg := ledger.NewPostgresLedger(db)
	if err := pg.Migrate(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

func buildRegistrationRepository(ctx context.Context, cfg config.Config, db *pgxpool.Pool) (registration.Repository, error) {
	if db == nil {
		return registration.NewFileRepository(cfg.RegistrationsFile), nil
	}
	pg := registration.NewPostgresRepository(db)
	if err := pg.Migrate(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

func notifier(logger *slog.Logger, webhookURL string, client *http.Client) notification.Notifier {
	base := notification.NewLoggerNotifier(logging.Component(logger, "notification"))
	if webhookURL == "" {
		return base
	}
	return notification.Multi{base, notification.NewWebhookNotifier(webhookURL, client)}
}
