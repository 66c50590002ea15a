// Package currency converts expense amounts into the ledger's base currency.
package currency

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
)

// Tier identifies which step of the fallback chain produced a rate.
type Tier string

const (
	// TierBase means the amount was already in the base currency.
	TierBase Tier = "base"
	// TierUnsupported means the currency is not queried live.
	TierUnsupported Tier = "unsupported"
	// TierFuture means the date is ahead of today and no rate is observable.
	TierFuture Tier = "future"
	// TierLive means the rate came from the rate source.
	TierLive Tier = "live"
	// TierFallback means the live lookup failed and the default was used.
	TierFallback Tier = "fallback"
)

// Config holds normalizer settings.
type Config struct {
	DefaultRates map[string]decimal.Decimal
	Base         string
	SourceURL    string
	Supported    []string
	Timeout      time.Duration
	CacheTTL     time.Duration
}

// DefaultConfig returns the ILS ledger defaults. Default rates are static
// approximations used only when no live rate is available.
func DefaultConfig() Config {
	return Config{
		Base:      "ILS",
		Supported: []string{"USD", "EUR", "GBP"},
		DefaultRates: map[string]decimal.Decimal{
			"USD": decimal.RequireFromString("3.7"),
			"EUR": decimal.RequireFromString("4.0"),
			"GBP": decimal.RequireFromString("4.7"),
			"CHF": decimal.RequireFromString("4.2"),
			"CAD": decimal.RequireFromString("2.7"),
			"AUD": decimal.RequireFromString("2.4"),
			"JPY": decimal.RequireFromString("0.025"),
		},
		Timeout:   5 * time.Second,
		CacheTTL:  24 * time.Hour,
		SourceURL: DefaultSourceURL,
	}
}

// Conversion is the outcome of normalizing one amount.
type Conversion struct {
	Date   time.Time
	Amount decimal.Decimal
	Rate   decimal.Decimal
	Tier   Tier
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithSource replaces the live rate source.
func WithSource(src RateSource) Option {
	return func(n *Normalizer) { n.source = src }
}

// WithClock replaces the clock used to decide whether a date is in the future.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithLogger sets the logger used for rate provenance.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) { n.logger = logger }
}

// Normalizer resolves exchange rates through a tiered fallback chain. It never
// fails: every live lookup problem degrades to a default rate.
type Normalizer struct {
	source    RateSource
	logger    *slog.Logger
	now       func() time.Time
	cache     *rateCache
	defaults  map[string]decimal.Decimal
	supported map[string]bool
	group     singleflight.Group
	base      string
}

// NewNormalizer creates a normalizer from cfg. Without WithSource it queries
// a FrankfurterSource built from cfg.
func NewNormalizer(cfg Config, opts ...Option) *Normalizer {
	def := DefaultConfig()
	if cfg.Base == "" {
		cfg.Base = def.Base
	}
	if cfg.Supported == nil {
		cfg.Supported = def.Supported
	}
	if cfg.DefaultRates == nil {
		cfg.DefaultRates = def.DefaultRates
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	n := &Normalizer{
		base:      normalizeCode(cfg.Base),
		supported: make(map[string]bool, len(cfg.Supported)),
		defaults:  make(map[string]decimal.Decimal, len(cfg.DefaultRates)),
		now:       time.Now,
	}
	for _, c := range cfg.Supported {
		n.supported[normalizeCode(c)] = true
	}
	for c, r := range cfg.DefaultRates {
		n.defaults[normalizeCode(c)] = r
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.logger == nil {
		n.logger = slog.Default()
	}
	if n.source == nil {
		n.source = NewFrankfurterSource(cfg.SourceURL, n.base, cfg.Timeout)
	}
	n.cache = newRateCache(cfg.CacheTTL, n.now)

	return n
}

// Base returns the base currency code.
func (n *Normalizer) Base() string {
	return n.base
}

// Close releases background resources.
func (n *Normalizer) Close() {
	n.cache.close()
}

// Convert converts amount from currency into the base currency using the rate
// for date. An empty currency is treated as the base currency. The converted
// amount is exact; rounding is left to presentation.
func (n *Normalizer) Convert(ctx context.Context, amount decimal.Decimal, currency string, date time.Time) Conversion {
	code := normalizeCode(currency)
	if code == "" {
		code = n.base
	}
	day := model.Day(date)

	rate, tier := n.resolve(ctx, code, day)

	n.logger.Info("Resolved exchange rate",
		"tier", tier,
		"currency", code,
		"date", day.Format(time.DateOnly),
		"rate", rate.String())

	return Conversion{
		Amount: amount.Mul(rate),
		Rate:   rate,
		Date:   day,
		Tier:   tier,
	}
}

func (n *Normalizer) resolve(ctx context.Context, code string, day time.Time) (decimal.Decimal, Tier) {
	if code == n.base {
		return decimal.NewFromInt(1), TierBase
	}

	if !n.supported[code] {
		return n.defaultRate(code), TierUnsupported
	}

	if day.After(model.Day(n.now())) {
		return n.defaultRate(code), TierFuture
	}

	rate, err := n.live(ctx, code, day)
	if err != nil {
		lookupErr := &common.RateLookupError{Currency: code, Date: day, Err: err}
		n.logger.Warn("Live rate lookup failed, using default rate",
			"currency", code,
			"date", day.Format(time.DateOnly),
			"error", lookupErr)
		return n.defaultRate(code), TierFallback
	}

	return rate, TierLive
}

// live returns a cached or freshly fetched rate. Identical concurrent lookups
// share a single request.
func (n *Normalizer) live(ctx context.Context, code string, day time.Time) (decimal.Decimal, error) {
	key := cacheKey(code, day)
	if rate, ok := n.cache.get(key); ok {
		n.logger.Debug("Using cached exchange rate", "currency", code, "date", day.Format(time.DateOnly), "cached", true)
		return rate, nil
	}

	v, err, _ := n.group.Do(key, func() (any, error) {
		rate, err := n.source.Lookup(ctx, code, day)
		if err != nil {
			return nil, err
		}
		n.cache.set(key, rate)
		return rate, nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	return v.(decimal.Decimal), nil
}

func (n *Normalizer) defaultRate(code string) decimal.Decimal {
	if rate, ok := n.defaults[code]; ok {
		return rate
	}
	n.logger.Warn("No default rate configured, using 1", "currency", code)
	return decimal.NewFromInt(1)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
