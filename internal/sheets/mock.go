package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/service"
)

// MockWriter is a mock implementation of ReportWriter for testing.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, expenses []*model.Expense, summary *service.ReportSummary) error
	LastSummary    *service.ReportSummary
	WriteCalls     []WriteCall
	LastExpenses   []*model.Expense
	WriteCallCount int
	mu             sync.Mutex
}

// WriteCall represents a single call to Write.
type WriteCall struct {
	Error    error
	Summary  *service.ReportSummary
	Expenses []*model.Expense
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		WriteCalls: make([]WriteCall, 0),
	}
}

// Write implements the ReportWriter interface.
func (m *MockWriter) Write(ctx context.Context, expenses []*model.Expense, summary *service.ReportSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastExpenses = expenses
	m.LastSummary = summary

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, expenses, summary)
	}

	m.WriteCalls = append(m.WriteCalls, WriteCall{
		Expenses: expenses,
		Summary:  summary,
		Error:    err,
	})

	return err
}

// GetWriteCalls returns a copy of all write calls.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]WriteCall, len(m.WriteCalls))
	copy(calls, m.WriteCalls)
	return calls
}

// SetWriteError configures the mock to return err from every Write call.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(context.Context, []*model.Expense, *service.ReportSummary) error {
		return err
	}
}

var _ service.ReportWriter = (*MockWriter)(nil)
var _ service.ReportWriter = (*Writer)(nil)
