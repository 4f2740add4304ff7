// Package scheduler runs the periodic price display refresh and cooldown
// housekeeping.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/winlew/winlew_agent/internal/logging"
	"github.com/winlew/winlew_agent/internal/notification"
	"github.com/winlew/winlew_agent/internal/price"
)

// Job names, also used as metric labels.
const (
	JobPriceLabel    = "price_label"
	JobPriceAlert    = "price_alert"
	JobCooldownSweep = "cooldown_sweep"
)

const (
	hourlySpec   = "0 * * * *"
	alertSpec    = "*/10 * * * *"
	dailySpec    = "@daily"
	defaultLimit = 2 * time.Minute
)

// PriceResolver returns the current best price.
type PriceResolver interface {
	ResolveBest(ctx context.Context) (price.Quote, error)
}

// Sweeper drops expired cooldown entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Observer records job outcomes.
type Observer interface {
	ObserveJob(job string, err error)
}

// Channels names the chat channels whose labels carry the price.
type Channels struct {
	Voice string
	Price string
	Alert string
}

// Scheduler owns a cron runner. Jobs may overlap; each run is bounded by its
// own timeout and a panic in one run is recovered.
type Scheduler struct {
	cron     *cron.Cron
	prices   PriceResolver
	notifier notification.Notifier
	sweeper  Sweeper
	observer Observer
	channels Channels
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a scheduler. sweeper and observer may be nil.
func New(prices PriceResolver, notifier notification.Notifier, sweeper Sweeper, observer Observer, channels Channels, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = defaultLimit
	}
	logger = logging.Component(logger, "scheduler")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		prices:   prices,
		notifier: notifier,
		sweeper:  sweeper,
		observer: observer,
		channels: channels,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers every job and starts the runner.
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(ctx context.Context) error
	}{
		{hourlySpec, JobPriceLabel, func(ctx context.Context) error {
			return s.RefreshLabels(ctx, notification.KindChannelLabel, s.channels.Voice, s.channels.Price)
		}},
		{alertSpec, JobPriceAlert, func(ctx context.Context) error {
			return s.RefreshLabels(ctx, notification.KindPriceAlert, s.channels.Alert)
		}},
		{dailySpec, JobCooldownSweep, s.sweep},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.runJob(job.name, job.run) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop halts the runner and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.logger.Info("scheduler stopped")
	return ctx
}

func (s *Scheduler) runJob(name string, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	err := run(ctx)
	if s.observer != nil {
		s.observer.ObserveJob(name, err)
	}
	if err != nil {
		s.logger.Error("scheduled job failed", slog.String("job", name), slog.Any("error", err))
		return
	}
	s.logger.Debug("scheduled job completed", slog.String("job", name), slog.Duration("duration", time.Since(started)))
}

// RefreshLabels resolves the best price once and publishes the label to every
// non-empty destination.
func (s *Scheduler) RefreshLabels(ctx context.Context, kind string, destinations ...string) error {
	targets := destinations[:0:0]
	for _, d := range destinations {
		if d != "" {
			targets = append(targets, d)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	quote, err := s.prices.ResolveBest(ctx)
	if err != nil {
		return err
	}
	label := price.Label(quote.Value)

	var errs []error
	for _, dest := range targets {
		msg := notification.Message{Kind: kind, Destination: dest, Body: label}
		if err := s.notifier.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dest, err))
			continue
		}
		s.logger.Info("channel label published", slog.String("destination", dest), slog.String("label", label))
	}
	return errors.Join(errs...)
}

func (s *Scheduler) sweep(context.Context) error {
	if s.sweeper == nil {
		return nil
	}
	removed := s.sweeper.Sweep(s.now())
	s.logger.Info("cooldown table swept", slog.Int("removed", removed))
	return nil
}
