// Package price resolves the token's USD price from an ordered list of
// independent market data sources.
package price

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/winlew/winlew_agent/internal/logging"
)

const displayPlaces = 6

var (
	// ErrAllSourcesFailed is returned when no configured source produced a price.
	ErrAllSourcesFailed = errors.New("all price sources failed")
	// ErrSourceUnavailable marks a source whose circuit breaker is open.
	ErrSourceUnavailable = errors.New("price source unavailable")
	// ErrInvalidPrice marks a response whose price is missing, non-numeric,
	// non-finite or not strictly positive.
	ErrInvalidPrice = errors.New("invalid price")
)

// Source fetches a single USD price.
type Source interface {
	ID() string
	Fetch(ctx context.Context) (float64, error)
}

// Quote is a successful resolution.
type Quote struct {
	Value      float64
	SourceID   string
	ObservedAt time.Time
}

// Outcome is the per-source result of a diagnostic run. Exactly one of Value
// or Err is meaningful.
type Outcome struct {
	SourceID string
	Value    float64
	Err      error
}

// Observer receives the result of every source call.
type Observer interface {
	ObserveSource(sourceID string, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveSource(string, error, time.Duration) {}

// Aggregator walks sources in their configured order. It holds no mutable
// state and is safe for concurrent use.
type Aggregator struct {
	sources  []Source
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewAggregator builds an aggregator. Each source call is bounded by timeout
// when it is positive.
func NewAggregator(sources []Source, timeout time.Duration, observer Observer, logger *slog.Logger) *Aggregator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Aggregator{
		sources:  sources,
		timeout:  timeout,
		logger:   logging.Component(logger, "price"),
		observer: observer,
		now:      time.Now,
	}
}

// Sources returns the configured source identifiers in order.
func (a *Aggregator) Sources() []string {
	ids := make([]string, 0, len(a.sources))
	for _, s := range a.sources {
		ids = append(ids, s.ID())
	}
	return ids
}

// ResolveBest returns the first valid price. Sources after the first success
// are not called.
func (a *Aggregator) ResolveBest(ctx context.Context) (Quote, error) {
	var errs []error
	for _, src := range a.sources {
		value, err := a.fetch(ctx, src)
		if err != nil {
			a.logger.Warn("price source failed", slog.String("source", src.ID()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", src.ID(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		a.logger.Debug("price resolved", slog.String("source", src.ID()), slog.Float64("price", value))
		return Quote{Value: value, SourceID: src.ID(), ObservedAt: a.now().UTC()}, nil
	}

	a.logger.Error("all price sources failed", slog.Any("error", errors.Join(errs...)))
	return Quote{}, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
}

// ResolveAll calls every source and reports one outcome per source in the
// configured order.
func (a *Aggregator) ResolveAll(ctx context.Context) []Outcome {
	outcomes := make([]Outcome, len(a.sources))
	var g errgroup.Group
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			value, err := a.fetch(ctx, src)
			outcomes[i] = Outcome{SourceID: src.ID(), Value: value, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (a *Aggregator) fetch(ctx context.Context, src Source) (float64, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	started := time.Now()
	value, err := src.Fetch(ctx)
	if err == nil {
		err = Validate(value)
	}
	a.observer.ObserveSource(src.ID(), err, time.Since(started))
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Validate rejects prices that are not finite and strictly positive.
func Validate(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, value)
	}
	return nil
}

// Format renders a price with six fractional digits.
func Format(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(displayPlaces)
}

// Label renders the channel label published by the scheduled refresh.
func Label(value float64) string {
	return "💰 WinLEW: $" + Format(value)
}
