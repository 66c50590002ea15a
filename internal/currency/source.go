package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource looks up the exchange rate of one currency into the base
// currency for one exact calendar day.
type RateSource interface {
	Lookup(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error)
}

// DefaultSourceURL is the public Frankfurter endpoint.
const DefaultSourceURL = "https://api.frankfurter.app"

// FrankfurterSource implements RateSource against a Frankfurter compatible API.
type FrankfurterSource struct {
	httpClient *http.Client
	baseURL    string
	base       string
}

// NewFrankfurterSource creates a rate source converting into base. The
// timeout bounds every lookup so a slow upstream degrades to the fallback
// rate instead of hanging ingestion.
func NewFrankfurterSource(baseURL, base string, timeout time.Duration) *FrankfurterSource {
	if baseURL == "" {
		baseURL = DefaultSourceURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &FrankfurterSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    strings.ToUpper(base),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type frankfurterResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
}

// Lookup implements RateSource.
func (s *FrankfurterSource) Lookup(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("from", currency)
	q.Set("to", s.base)
	endpoint := fmt.Sprintf("%s/%s?%s", s.baseURL, day.Format(time.DateOnly), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("rate API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed frankfurterResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse response: %w", err)
	}

	rate, ok := parsed.Rates[s.base]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no %s rate in response", s.base)
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("non-positive rate %s", rate)
	}

	return rate, nil
}
