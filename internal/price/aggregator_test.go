package price

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/winlew/winlew_agent/internal/logging"
)

type stubSource struct {
	id    string
	value float64
	err   error
	calls atomic.Int32
}

func (s *stubSource) ID() string { return s.id }

func (s *stubSource) Fetch(context.Context) (float64, error) {
	s.calls.Add(1)
	return s.value, s.err
}

type recordingObserver struct {
	calls atomic.Int32
}

func (o *recordingObserver) ObserveSource(string, error, time.Duration) { o.calls.Add(1) }

func TestResolveBestStopsAtFirstSuccess(t *testing.T) {
	a := &stubSource{id: "a", err: errors.New("down")}
	b := &stubSource{id: "b", value: 0.00042}
	c := &stubSource{id: "c", value: 1}
	obs := &recordingObserver{}
	agg := NewAggregator([]Source{a, b, c}, time.Second, obs, logging.Discard())

	quote, err := agg.ResolveBest(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.SourceID != "b" || quote.Value != 0.00042 {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if quote.ObservedAt.IsZero() {
		t.Fatal("expected observed timestamp")
	}
	if c.calls.Load() != 0 {
		t.Fatalf("source after success must not be called, got %d calls", c.calls.Load())
	}
	if obs.calls.Load() != 2 {
		t.Fatalf("expected 2 observations, got %d", obs.calls.Load())
	}
}

func TestResolveBestRejectsNonPositivePrices(t *testing.T) {
	zero := &stubSource{id: "zero", value: 0}
	negative := &stubSource{id: "neg", value: -3}
	nan := &stubSource{id: "nan", value: math.NaN()}
	good := &stubSource{id: "good", value: 2.5}
	agg := NewAggregator([]Source{zero, negative, nan, good}, 0, nil, logging.Discard())

	quote, err := agg.ResolveBest(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.SourceID != "good" {
		t.Fatalf("expected fallback to good source, got %s", quote.SourceID)
	}
}

func TestResolveBestExhaustion(t *testing.T) {
	sources := []Source{
		&stubSource{id: "a", err: errors.New("timeout")},
		&stubSource{id: "b", err: ErrSourceUnavailable},
		&stubSource{id: "c", value: 0},
	}
	agg := NewAggregator(sources, 0, nil, logging.Discard())

	_, err := agg.ResolveBest(context.Background())
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("expected ErrAllSourcesFailed, got %v", err)
	}
	if !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected per-source causes to be joined, got %v", err)
	}
}

func TestResolveAllReportsEverySourceInOrder(t *testing.T) {
	sources := []Source{
		&stubSource{id: "a", err: errors.New("boom")},
		&stubSource{id: "b", value: 0.1},
		&stubSource{id: "c", value: 0.2},
	}
	agg := NewAggregator(sources, time.Second, nil, logging.Discard())

	outcomes := agg.ResolveAll(context.Background())
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].SourceID != "a" || outcomes[0].Err == nil {
		t.Fatalf("unexpected first outcome %+v", outcomes[0])
	}
	if outcomes[1].SourceID != "b" || outcomes[1].Err != nil || outcomes[1].Value != 0.1 {
		t.Fatalf("unexpected second outcome %+v", outcomes[1])
	}
	if outcomes[2].SourceID != "c" || outcomes[2].Value != 0.2 {
		t.Fatalf("unexpected third outcome %+v", outcomes[2])
	}
	for _, s := range sources {
		if s.(*stubSource).calls.Load() != 1 {
			t.Fatalf("source %s should be called exactly once", s.ID())
		}
	}
}

func TestResolveAllAllFailing(t *testing.T) {
	sources := []Source{
		&stubSource{id: "a", err: errors.New("x")},
		&stubSource{id: "b", err: errors.New("y")},
	}
	agg := NewAggregator(sources, 0, nil, logging.Discard())

	for _, o := range agg.ResolveAll(context.Background()) {
		if o.Err == nil {
			t.Fatalf("expected failure for %s", o.SourceID)
		}
	}
}

func TestFormatAndLabel(t *testing.T) {
	if got := Format(0.000123); got != "0.000123" {
		t.Fatalf("unexpected format %s", got)
	}
	if got := Format(1.5); got != "1.500000" {
		t.Fatalf("unexpected format %s", got)
	}
	if got := Label(0.000123); got != "💰 WinLEW: $0.000123" {
		t.Fatalf("unexpected label %s", got)
	}
}
