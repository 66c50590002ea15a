// Package extract turns expense documents into raw payloads using a
// generative model.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Extractor reads an invoice or salary slip document and returns the
// expenses it describes.
type Extractor interface {
	Extract(ctx context.Context, document []byte, mimeType string) ([]model.Payload, error)
}

// Config holds extractor settings.
type Config struct {
	APIKey      string
	Model       string
	Retry       common.RetryOptions
	Temperature float32
}

// generator is the slice of the genai client the extractor calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor extracts expenses with the Gemini API.
type GeminiExtractor struct {
	models generator
	logger *slog.Logger
	model  string
	retry  common.RetryOptions
	config *genai.GenerateContentConfig
}

// NewGeminiExtractor creates an extractor backed by the Gemini developer API.
func NewGeminiExtractor(ctx context.Context, cfg Config, logger *slog.Logger) (*GeminiExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", common.ErrMissingConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newGeminiExtractor(client.Models, cfg, logger), nil
}

func newGeminiExtractor(models generator, cfg Config, logger *slog.Logger) *GeminiExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	temperature := cfg.Temperature

	return &GeminiExtractor{
		models: models,
		logger: logger,
		model:  cfg.Model,
		retry:  cfg.Retry,
		config: &genai.GenerateContentConfig{
			Temperature:      &temperature,
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema(),
		},
	}
}

// Extract sends the document to the model and decodes the expenses in its
// reply. Transient API failures are retried.
func (g *GeminiExtractor) Extract(ctx context.Context, document []byte, mimeType string) ([]model.Payload, error) {
	if len(document) == 0 {
		return nil, fmt.Errorf("%w: empty document", common.ErrExtractionFailed)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt(mimeType)},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: document}},
			},
		},
	}

	retry := g.retry
	retry.Operation = "gemini generate content"

	var raw string
	err := common.WithRetry(ctx, func() error {
		resp, err := g.models.GenerateContent(ctx, g.model, contents, g.config)
		if err != nil {
			return classify(err)
		}
		raw = resp.Text()
		if strings.TrimSpace(raw) == "" {
			return &common.RetryableError{Err: errors.New("empty response from model"), Retryable: true}
		}
		return nil
	}, retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrExtractionFailed, err)
	}

	payloads, err := decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	g.logger.Info("Extracted expenses from document",
		"mime_type", mimeType,
		"bytes", len(document),
		"expenses", len(payloads))
	return payloads, nil
}

// classify marks client errors as final and everything else as transient.
// Rate limited calls carry the server's RetryInfo delay when it sent one.
func classify(err error) error {
	var apiErr *genai.APIError
	var apiVal genai.APIError
	switch {
	case errors.As(err, &apiVal):
		apiErr = &apiVal
	case errors.As(err, &apiErr):
	default:
		return &common.RetryableError{Err: err, Retryable: true}
	}

	switch code := apiErr.Code; {
	case code == http.StatusTooManyRequests:
		return &common.RetryableError{
			Err:        fmt.Errorf("%w: %w", common.ErrRateLimit, err),
			RetryAfter: retryDelay(apiErr.Details),
			Retryable:  true,
		}
	case code >= 400 && code < 500:
		return &common.RetryableError{Err: err, Retryable: false}
	default:
		return &common.RetryableError{Err: err, Retryable: true}
	}
}

// retryDelay reads the google.rpc.RetryInfo detail of an API error.
func retryDelay(details []map[string]any) time.Duration {
	for _, detail := range details {
		typ, _ := detail["@type"].(string)
		if !strings.HasSuffix(typ, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		if delay, err := time.ParseDuration(raw); err == nil && delay > 0 {
			return delay
		}
	}
	return 0
}

func prompt(mimeType string) string {
	return "Extract expense information from this document. The document is a " + mimeType + " file.\n" +
		"Each expense is either an invoice or a salary slip. " +
		"Use ISO dates (YYYY-MM-DD) and ISO 4217 currency codes. " +
		"Pick mainCategory and subCategory from the allowed values only."
}
