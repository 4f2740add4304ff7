package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/winlew/winlew_agent/internal/cooldown"
	"github.com/winlew/winlew_agent/internal/logging"
	"github.com/winlew/winlew_agent/internal/notification"
	"github.com/winlew/winlew_agent/internal/price"
)

type stubPrices struct {
	value float64
	err   error
	calls int
}

func (s *stubPrices) ResolveBest(context.Context) (price.Quote, error) {
	s.calls++
	if s.err != nil {
		return price.Quote{}, s.err
	}
	return price.Quote{Value: s.value, SourceID: "stub"}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
	failFor  string
}

func (n *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if m.Destination == n.failFor {
		return errors.New("webhook 500")
	}
	n.messages = append(n.messages, m)
	return nil
}

type jobRecorder struct {
	results map[string]error
}

func (r *jobRecorder) ObserveJob(job string, err error) {
	r.results[job] = err
}

func TestRefreshLabelsPublishesToEachChannel(t *testing.T) {
	prices := &stubPrices{value: 0.000123}
	notifier := &recordingNotifier{}
	s := New(prices, notifier, nil, nil, Channels{}, time.Second, logging.Discard())

	if err := s.RefreshLabels(context.Background(), notification.KindChannelLabel, "voice", "", "price"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if prices.calls != 1 {
		t.Fatalf("expected one price resolution, got %d", prices.calls)
	}
	if len(notifier.messages) != 2 {
		t.Fatalf("expected 2 messages got %d", len(notifier.messages))
	}
	for _, m := range notifier.messages {
		if m.Body != "💰 WinLEW: $0.000123" || m.Kind != notification.KindChannelLabel {
			t.Fatalf("unexpected message %+v", m)
		}
	}
}

func TestRefreshLabelsWithoutChannelsSkipsResolution(t *testing.T) {
	prices := &stubPrices{value: 1}
	s := New(prices, &recordingNotifier{}, nil, nil, Channels{}, time.Second, logging.Discard())

	if err := s.RefreshLabels(context.Background(), notification.KindPriceAlert, ""); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if prices.calls != 0 {
		t.Fatal("no destination means no price lookup")
	}
}

func TestRefreshLabelsReportsFailures(t *testing.T) {
	notifier := &recordingNotifier{failFor: "voice"}
	s := New(&stubPrices{value: 1}, notifier, nil, nil, Channels{}, time.Second, logging.Discard())

	err := s.RefreshLabels(context.Background(), notification.KindChannelLabel, "voice", "price")
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if len(notifier.messages) != 1 {
		t.Fatal("other destinations still receive the label")
	}

	s = New(&stubPrices{err: price.ErrAllSourcesFailed}, notifier, nil, nil, Channels{}, time.Second, logging.Discard())
	if err := s.RefreshLabels(context.Background(), notification.KindChannelLabel, "price"); !errors.Is(err, price.ErrAllSourcesFailed) {
		t.Fatalf("expected ErrAllSourcesFailed, got %v", err)
	}
}

func TestRunJobObservesOutcome(t *testing.T) {
	rec := &jobRecorder{results: map[string]error{}}
	channels := Channels{Voice: "voice", Price: "price", Alert: "alert"}
	s := New(&stubPrices{err: price.ErrAllSourcesFailed}, &recordingNotifier{}, nil, rec, channels, time.Second, logging.Discard())

	s.runJob(JobPriceLabel, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Fatal("job context must carry a deadline")
		}
		return s.RefreshLabels(ctx, notification.KindChannelLabel, s.channels.Voice)
	})
	if !errors.Is(rec.results[JobPriceLabel], price.ErrAllSourcesFailed) {
		t.Fatalf("unexpected recorded result %v", rec.results[JobPriceLabel])
	}
}

func TestSweepDropsExpiredCooldowns(t *testing.T) {
	table := cooldown.NewMemoryTable()
	start := time.Unix(1_700_000_000, 0)
	ctx := context.Background()
	if _, err := table.Admit(ctx, cooldown.Key{Operation: "faucet", RequesterID: "u1"}, start, time.Hour); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, err := table.Admit(ctx, cooldown.Key{Operation: "faucet", RequesterID: "u2"}, start, 48*time.Hour); err != nil {
		t.Fatalf("admit: %v", err)
	}

	s := New(&stubPrices{}, &recordingNotifier{}, table, nil, Channels{}, time.Second, logging.Discard())
	s.now = func() time.Time { return start.Add(2 * time.Hour) }
	if err := s.sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected one live entry, got %d", table.Len())
	}
}

func TestStartRegistersJobs(t *testing.T) {
	s := New(&stubPrices{}, &recordingNotifier{}, nil, nil, Channels{}, time.Second, logging.Discard())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if n := len(s.cron.Entries()); n != 3 {
		t.Fatalf("expected 3 jobs got %d", n)
	}
}
