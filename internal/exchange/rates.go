// Package exchange provides currency exchange rates for the ledger view.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"myex/internal/cache"
	"myex/internal/core"
	"myex/internal/log"
)

const (
	SourceAPI      = "exchangerate-api"
	SourceFallback = "fallback"
	SourceIdentity = "identity"

	DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"
)

var (
	ErrBadStatus    = errors.New("exchange: unexpected status")
	ErrRateNotFound = errors.New("exchange: rate not found")
)

// Rate is the value of one unit of From expressed in To.
type Rate struct {
	From      core.Currency   `json:"from"`
	To        core.Currency   `json:"to"`
	Value     decimal.Decimal `json:"rate"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type Config struct {
	BaseURL string
	// Fallback is the EUR->BRL rate used when the provider is unavailable.
	Fallback   decimal.Decimal
	TTL        time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// RateService fetches rates from an exchangerate-api compatible endpoint and
// caches them per currency pair.
type RateService struct {
	baseURL  string
	fallback decimal.Decimal
	client   *http.Client
	now      func() time.Time
	cache    *cache.LRU[Rate]
	logger   *log.Logger
}

func NewRateService(cfg Config, logger *log.Logger) *RateService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !cfg.Fallback.IsPositive() {
		cfg.Fallback = core.DefaultRate
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RateService{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		fallback: cfg.Fallback,
		client:   cfg.HTTPClient,
		now:      cfg.Now,
		cache:    cache.NewLRU[Rate](cache.Options{MaxSize: 16, TTL: cfg.TTL, Now: cfg.Now}),
		logger:   logger.WithComponent(log.ComponentExchange),
	}
}

// Cache exposes the rate cache so it can be swept by a janitor.
func (s *RateService) Cache() cache.Cleaner {
	return s.cache
}

// Rate returns the from->to rate. It never fails: provider errors degrade to
// the configured fallback, which is not cached.
func (s *RateService) Rate(ctx context.Context, from, to core.Currency) Rate {
	if from == to {
		return Rate{From: from, To: to, Value: decimal.NewFromInt(1), Source: SourceIdentity, FetchedAt: s.now()}
	}

	key := string(from) + ":" + string(to)
	if r, ok := s.cache.Get(key); ok {
		return r
	}

	value, err := s.fetch(ctx, from, to)
	if err != nil {
		s.logger.WarnContext(ctx, "Exchange rate fetch failed, using fallback",
			log.FieldOperation, log.OpFetchRate,
			"from", string(from),
			"to", string(to),
			log.FieldError, err.Error())
		return s.fallbackRate(from, to)
	}

	r := Rate{From: from, To: to, Value: value, Source: SourceAPI, FetchedAt: s.now()}
	s.cache.Set(key, r)
	s.logger.DebugContext(ctx, "Exchange rate fetched",
		log.FieldOperation, log.OpFetchRate,
		log.FieldRate, value.String())
	return r
}

func (s *RateService) fallbackRate(from, to core.Currency) Rate {
	value := s.fallback
	if from == core.SecondaryCurrency && to == core.PrimaryCurrency {
		value = decimal.NewFromInt(1).DivRound(s.fallback, 8)
	}
	return Rate{From: from, To: to, Value: value, Source: SourceFallback, FetchedAt: s.now()}
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (s *RateService) fetch(ctx context.Context, from, to core.Currency) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+strings.ToUpper(string(from)), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rates: %w", err)
	}

	value, ok := body.Rates[strings.ToUpper(string(to))]
	if !ok || !value.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateNotFound, to)
	}
	return value, nil
}
