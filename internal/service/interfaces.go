// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/expense-ledger/internal/model"
)

// Storage defines the contract for the ledger persistence layer.
type Storage interface {
	// Expense operations
	InsertExpense(ctx context.Context, expense *model.Expense) error
	GetExpense(ctx context.Context, id string) (*model.Expense, error)
	FindByDedupKey(ctx context.Context, expenseType model.ExpenseType, key string) (*model.Expense, error)
	ListExpenses(ctx context.Context, dateRange DateRange) ([]*model.Expense, error)
	UpdateExpense(ctx context.Context, expense *model.Expense) error
	DeleteExpense(ctx context.Context, id string) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// DedupLookup is the read-only slice of Storage the resolver needs.
type DedupLookup interface {
	FindByDedupKey(ctx context.Context, expenseType model.ExpenseType, key string) (*model.Expense, error)
}

// ReportWriter exports a ledger and its summary to an external sink.
type ReportWriter interface {
	Write(ctx context.Context, expenses []*model.Expense, summary *ReportSummary) error
}

// ReportSummary contains aggregate information for the report.
type ReportSummary struct {
	DateRange      DateRange
	ByMainCategory map[model.MainCategory]CategorySummary
	BySubCategory  map[model.SubCategory]CategorySummary
	ByMonth        map[string]CategorySummary
	Total          CategorySummary
}

// DateRange represents a time period with start and end dates. Both ends are
// inclusive; a zero value leaves that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// CategorySummary contains aggregated statistics for a bucket.
type CategorySummary struct {
	Amount decimal.Decimal
	Count  int
}
