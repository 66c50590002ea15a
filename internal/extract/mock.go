package extract

import (
	"context"
	"sync"

	"github.com/Veraticus/expense-ledger/internal/model"
)

// MockExtractor returns canned payloads. It is safe for concurrent use.
type MockExtractor struct {
	Err      error
	Payloads map[string][]model.Payload
	Calls    []string
	mu       sync.Mutex
}

// Extract returns the payloads registered for mimeType.
func (m *MockExtractor) Extract(_ context.Context, _ []byte, mimeType string) ([]model.Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, mimeType)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Payloads[mimeType], nil
}
