// Package currency converts amounts between currencies using live rates,
// a short-lived cache and a static fallback table.
package currency

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/telemetry"
	"github.com/eventdesk/eventdesk/internal/validation"
)

// DefaultCacheTTL is how long a fetched pair rate is reused.
const DefaultCacheTTL = 5 * time.Minute

// Errors.
var (
	ErrRatesUnavailable    = errors.New("exchange rates unavailable")
	ErrUnsupportedCurrency = errors.New("no rate for currency pair")
)

// RateSource says where a conversion's rate came from.
type RateSource string

// Rate sources.
const (
	SourceLive     RateSource = "live"
	SourceCache    RateSource = "cache"
	SourceFallback RateSource = "fallback"
	SourceIdentity RateSource = "identity"
)

// RateProvider fetches rates from a base currency.
type RateProvider interface {
	Latest(ctx context.Context, base string) (map[string]float64, error)
}

// ConvertInput is a conversion request.
type ConvertInput struct {
	Amount float64 `json:"amount" validate:"gte=0"`
	From   string  `json:"from" validate:"required,iso4217"`
	To     string  `json:"to" validate:"required,iso4217"`
}

// Conversion is a converted amount.
type Conversion struct {
	Amount float64    `json:"amount"`
	From   string     `json:"from"`
	To     string     `json:"to"`
	Rate   float64    `json:"rate"`
	Result float64    `json:"result"`
	Source RateSource `json:"source"`
	AsOf   time.Time  `json:"asOf"`
}

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// ServiceConfig holds configuration for the currency service.
type ServiceConfig struct {
	Rates RateProvider

	// CacheTTL defaults to DefaultCacheTTL.
	CacheTTL time.Duration

	// LiveRates gates calls to Rates. Nil means enabled.
	LiveRates func() bool

	Metrics *telemetry.ProviderMetrics
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Service converts currency amounts.
type Service struct {
	rates     RateProvider
	ttl       time.Duration
	liveRates func() bool
	metrics   *telemetry.ProviderMetrics
	logger    zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]cachedRate
}

// NewService creates a currency service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	live := cfg.LiveRates
	if live == nil {
		live = func() bool { return true }
	}

	return &Service{
		rates:     cfg.Rates,
		ttl:       ttl,
		liveRates: live,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       now,
		cache:     make(map[string]cachedRate),
	}
}

func pairKey(from, to string) string {
	return from + "_" + to
}

// Convert converts amount from one currency to another. Invalid input is
// rejected before any rate lookup. When live rates fail the static table
// is used.
func (s *Service) Convert(ctx context.Context, amount float64, from, to string) (Conversion, error) {
	in := ConvertInput{
		Amount: amount,
		From:   strings.ToUpper(strings.TrimSpace(from)),
		To:     strings.ToUpper(strings.TrimSpace(to)),
	}
	if math.IsInf(in.Amount, 0) || math.IsNaN(in.Amount) {
		return Conversion{}, validation.NewError("amount", "must be a finite number")
	}
	if err := validation.Struct(in); err != nil {
		return Conversion{}, err
	}

	now := s.now()
	rate, src, err := s.rate(ctx, in.From, in.To, now)
	if err != nil {
		return Conversion{}, err
	}

	return Conversion{
		Amount: in.Amount,
		From:   in.From,
		To:     in.To,
		Rate:   rate,
		Result: in.Amount * rate,
		Source: src,
		AsOf:   now,
	}, nil
}

func (s *Service) rate(ctx context.Context, from, to string, now time.Time) (float64, RateSource, error) {
	if from == to {
		return 1, SourceIdentity, nil
	}

	key := pairKey(from, to)

	s.mu.Lock()
	c, ok := s.cache[key]
	s.mu.Unlock()
	if ok && now.Sub(c.fetchedAt) < s.ttl {
		s.metrics.RecordCacheHit(ProviderName, "latest")
		return c.rate, SourceCache, nil
	}

	if s.rates != nil && s.liveRates() {
		rates, err := s.rates.Latest(ctx, from)
		if err == nil {
			if r, found := rates[to]; found && r > 0 {
				s.store(from, rates, now)
				return r, SourceLive, nil
			}
			err = ErrUnsupportedCurrency
		}
		s.logger.Warn().Err(err).
			Str("from", from).
			Str("to", to).
			Msg("live exchange rate failed, using fallback table")
	}

	s.metrics.RecordFallback(ProviderName, "latest")
	r, ok := FallbackRate(from, to)
	if !ok {
		return 0, "", ErrUnsupportedCurrency
	}
	return r, SourceFallback, nil
}

func (s *Service) store(from string, rates map[string]float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, r := range rates {
		if r > 0 {
			s.cache[pairKey(from, code)] = cachedRate{rate: r, fetchedAt: now}
		}
	}
}

// usdRates is the static table used when live rates are unavailable.
var usdRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 149.5,
	"CAD": 1.36,
	"AUD": 1.52,
	"CHF": 0.88,
	"CNY": 7.24,
	"INR": 83.1,
	"ZAR": 18.6,
	"NGN": 1550,
	"KES": 129,
	"AED": 3.67,
	"SGD": 1.34,
	"BRL": 4.97,
	"MXN": 17.1,
}

// FallbackRate derives from→to from the static USD table.
func FallbackRate(from, to string) (float64, bool) {
	f, ok := usdRates[from]
	if !ok {
		return 0, false
	}
	t, ok := usdRates[to]
	if !ok {
		return 0, false
	}
	return t / f, true
}
