package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
)

type fakeGenerator struct {
	errs    []error
	replies []string
	calls   int
	config  *genai.GenerateContentConfig
	parts   []*genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.config = config
	f.parts = contents[0].Parts

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	text := ""
	if i < len(f.replies) {
		text = f.replies[i]
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
	}, nil
}

var fastRetry = common.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

const invoiceReply = `{"expenses":[{"date":"2024-03-01","mainCategory":"generalExpenses","subCategory":"advertising",
"expenseType":"invoice","providerName":"Acme Ltd.","currency":"USD",
"invoice":{"invoiceNumber":42,"invoiceTotal":100.5}}]}`

func TestGeminiExtract(t *testing.T) {
	gen := &fakeGenerator{replies: []string{invoiceReply}}
	ex := newGeminiExtractor(gen, Config{Retry: fastRetry}, nil)

	payloads, err := ex.Extract(context.Background(), []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	p := payloads[0]
	assert.Equal(t, "invoice", p.ExpenseType)
	require.NotNil(t, p.Invoice)
	assert.Equal(t, model.Code("42"), p.Invoice.InvoiceNumber)
	assert.Equal(t, "100.5", p.Invoice.InvoiceTotal.String())

	require.Len(t, gen.parts, 2)
	assert.Contains(t, gen.parts[0].Text, "application/pdf")
	require.NotNil(t, gen.parts[1].InlineData)
	assert.Equal(t, "application/pdf", gen.parts[1].InlineData.MIMEType)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.NotNil(t, gen.config.ResponseSchema)
}

func TestGeminiExtractRetriesTransientFailures(t *testing.T) {
	gen := &fakeGenerator{
		errs:    []error{errors.New("connection reset"), nil},
		replies: []string{"", invoiceReply},
	}
	ex := newGeminiExtractor(gen, Config{Retry: fastRetry}, nil)

	payloads, err := ex.Extract(context.Background(), []byte("doc"), "image/png")
	require.NoError(t, err)
	assert.Len(t, payloads, 1)
	assert.Equal(t, 2, gen.calls)
}

func TestGeminiExtractClientErrorIsFinal(t *testing.T) {
	gen := &fakeGenerator{errs: []error{genai.APIError{Code: 400, Message: "bad request"}}}
	ex := newGeminiExtractor(gen, Config{Retry: fastRetry}, nil)

	_, err := ex.Extract(context.Background(), []byte("doc"), "image/png")
	require.ErrorIs(t, err, common.ErrExtractionFailed)
	assert.Equal(t, 1, gen.calls)
}

func TestClassify(t *testing.T) {
	retryInfo := []map[string]any{
		{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
		{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "12s"},
	}

	tests := []struct {
		err           error
		name          string
		wantAfter     time.Duration
		wantRetryable bool
		wantRateLimit bool
	}{
		{name: "quota with hint", err: genai.APIError{Code: 429, Details: retryInfo}, wantRetryable: true, wantRateLimit: true, wantAfter: 12 * time.Second},
		{name: "quota without hint", err: &genai.APIError{Code: 429}, wantRetryable: true, wantRateLimit: true},
		{name: "bad request", err: genai.APIError{Code: 400}},
		{name: "permission denied", err: genai.APIError{Code: 403}},
		{name: "server error", err: genai.APIError{Code: 503}, wantRetryable: true},
		{name: "network", err: errors.New("connection reset"), wantRetryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)

			var retryable *common.RetryableError
			require.ErrorAs(t, got, &retryable)
			assert.Equal(t, tt.wantRetryable, retryable.Retryable)
			assert.Equal(t, tt.wantAfter, retryable.RetryAfter)
			assert.Equal(t, tt.wantRateLimit, errors.Is(got, common.ErrRateLimit))
		})
	}
}

func TestGeminiExtractEmptyDocument(t *testing.T) {
	gen := &fakeGenerator{}
	ex := newGeminiExtractor(gen, Config{}, nil)

	_, err := ex.Extract(context.Background(), nil, "application/pdf")
	require.ErrorIs(t, err, common.ErrExtractionFailed)
	assert.Zero(t, gen.calls)
}

func TestNewGeminiExtractorRequiresKey(t *testing.T) {
	_, err := NewGeminiExtractor(context.Background(), Config{}, nil)
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestResponseSchemaEnumeratesTaxonomy(t *testing.T) {
	schema := responseSchema()
	items := schema.Properties["expenses"].Items
	require.NotNil(t, items)

	assert.Len(t, items.Properties["subCategory"].Enum, len(model.SubCategories("")))
	assert.ElementsMatch(t, []string{"costOfRevenues", "generalExpenses"}, items.Properties["mainCategory"].Enum)
	assert.Contains(t, items.Required, "providerName")
}

func TestMockExtractor(t *testing.T) {
	m := &MockExtractor{Payloads: map[string][]model.Payload{"application/pdf": {{ProviderName: "Acme"}}}}

	got, err := m.Extract(context.Background(), []byte("x"), "application/pdf")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	m.Err = common.ErrExtractionFailed
	_, err = m.Extract(context.Background(), []byte("x"), "application/pdf")
	require.ErrorIs(t, err, common.ErrExtractionFailed)
	assert.Len(t, m.Calls, 2)
}
