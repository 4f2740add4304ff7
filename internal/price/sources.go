package price

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"github.com/winlew/winlew_agent/internal/logging"
)

// Source identifiers accepted in the configured order.
const (
	SourceSolscan     = "solscan"
	SourceRaydium     = "raydium"
	SourcePumpFun     = "pumpfun"
	SourceDexscreener = "dexscreener"
)

const maxResponseBytes = 1 << 20

var errMissingIdentifier = errors.New("source identifier not configured")

// Endpoints carries the identifiers and base URLs for every known source.
type Endpoints struct {
	Mint string

	SolscanAPIKey  string
	SolscanBaseURL string

	RaydiumPoolID  string
	RaydiumBaseURL string

	PumpFunPoolID  string
	PumpFunBaseURL string

	DexscreenerPairID  string
	DexscreenerBaseURL string
}

// BuildSources instantiates sources in the given order. A source whose
// identifiers are absent is still built and fails when fetched.
func BuildSources(order []string, ep Endpoints, client *http.Client, logger *slog.Logger) ([]Source, error) {
	logger = logging.Component(logger, "price")
	sources := make([]Source, 0, len(order))
	for _, id := range order {
		base := newHTTPSource(strings.ToLower(id), client, logger)
		switch base.id {
		case SourceSolscan:
			sources = append(sources, &solscanSource{httpSource: base, baseURL: ep.SolscanBaseURL, apiKey: ep.SolscanAPIKey, mint: ep.Mint})
		case SourceRaydium:
			sources = append(sources, &raydiumSource{httpSource: base, baseURL: ep.RaydiumBaseURL, poolID: ep.RaydiumPoolID})
		case SourcePumpFun:
			sources = append(sources, &pumpFunSource{httpSource: base, baseURL: ep.PumpFunBaseURL, poolID: ep.PumpFunPoolID})
		case SourceDexscreener:
			sources = append(sources, &dexscreenerSource{httpSource: base, baseURL: ep.DexscreenerBaseURL, pairID: ep.DexscreenerPairID})
		default:
			return nil, fmt.Errorf("unknown price source %q", id)
		}
	}
	return sources, nil
}

type httpSource struct {
	id      string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newHTTPSource(id string, client *http.Client, logger *slog.Logger) httpSource {
	if client == nil {
		client = http.DefaultClient
	}
	settings := gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("price source breaker state changed",
				slog.String("source", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return httpSource{id: id, client: client, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (s *httpSource) ID() string { return s.id }

// guard runs fn through the breaker; an open breaker is a source failure.
func (s *httpSource) guard(fn func() (float64, error)) (float64, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return 0, err
	}
	return out.(float64), nil
}

func (s *httpSource) getJSON(ctx context.Context, endpoint string, header http.Header) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("request %s: %w", s.id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read %s response: %w", s.id, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, fmt.Errorf("%s returned status %d", s.id, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s returned malformed json", s.id)
	}
	return gjson.ParseBytes(body), nil
}

// numberAt reads a JSON number at path.
func numberAt(doc gjson.Result, path string) (float64, error) {
	v := doc.Get(path)
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%w: no number at %s", ErrInvalidPrice, path)
	}
	return v.Float(), nil
}

// numericAt reads a JSON number or a numeric string at path.
func numericAt(doc gjson.Result, path string) (float64, error) {
	v := doc.Get(path)
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not numeric", ErrInvalidPrice, path)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: no price at %s", ErrInvalidPrice, path)
	}
}

type solscanSource struct {
	httpSource
	baseURL string
	apiKey  string
	mint    string
}

func (s *solscanSource) Fetch(ctx context.Context) (float64, error) {
	if s.apiKey == "" {
		return 0, fmt.Errorf("solscan api key: %w", errMissingIdentifier)
	}
	return s.guard(func() (float64, error) {
		endpoint := fmt.Sprintf("%s/v2.0/token/price?address=%s", strings.TrimRight(s.baseURL, "/"), url.QueryEscape(s.mint))
		doc, err := s.getJSON(ctx, endpoint, http.Header{"token": []string{s.apiKey}})
		if err != nil {
			return 0, err
		}
		return numberAt(doc, "data.price")
	})
}

type raydiumSource struct {
	httpSource
	baseURL string
	poolID  string
}

func (s *raydiumSource) Fetch(ctx context.Context) (float64, error) {
	if s.poolID == "" {
		return 0, fmt.Errorf("raydium pool id: %w", errMissingIdentifier)
	}
	return s.guard(func() (float64, error) {
		base := strings.TrimRight(s.baseURL, "/")
		ids := url.QueryEscape(s.poolID)

		keys, err := s.getJSON(ctx, base+"/pools/key/ids?ids="+ids, nil)
		if err != nil {
			return 0, err
		}
		if !keys.Get("data.0.id").Exists() {
			return 0, fmt.Errorf("raydium pool %s has no key data", s.poolID)
		}

		info, err := s.getJSON(ctx, base+"/pools/info/ids?ids="+ids, nil)
		if err != nil {
			return 0, err
		}
		return numericAt(info, "data.0.price")
	})
}

type pumpFunSource struct {
	httpSource
	baseURL string
	poolID  string
}

func (s *pumpFunSource) Fetch(ctx context.Context) (float64, error) {
	if s.poolID == "" {
		return 0, fmt.Errorf("pump.fun coin id: %w", errMissingIdentifier)
	}
	return s.guard(func() (float64, error) {
		doc, err := s.getJSON(ctx, strings.TrimRight(s.baseURL, "/")+"/coin/"+url.PathEscape(s.poolID), nil)
		if err != nil {
			return 0, err
		}
		return numberAt(doc, "price.usd")
	})
}

type dexscreenerSource struct {
	httpSource
	baseURL string
	pairID  string
}

func (s *dexscreenerSource) Fetch(ctx context.Context) (float64, error) {
	if s.pairID == "" {
		return 0, fmt.Errorf("dexscreener pair id: %w", errMissingIdentifier)
	}
	return s.guard(func() (float64, error) {
		doc, err := s.getJSON(ctx, strings.TrimRight(s.baseURL, "/")+"/latest/dex/pairs/solana/"+url.PathEscape(s.pairID), nil)
		if err != nil {
			return 0, err
		}
		return numericAt(doc, "pair.priceUsd")
	})
}
