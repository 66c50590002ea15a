package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/currency"
	"github.com/Veraticus/expense-ledger/internal/model"
)

// fakeConverter converts ILS at 1 and other currencies at rateFor(date).
type fakeConverter struct {
	rateFor func(code string, date time.Time) decimal.Decimal
	calls   []string
	mu      sync.Mutex
}

func newFakeConverter() *fakeConverter {
	return &fakeConverter{
		rateFor: func(string, time.Time) decimal.Decimal { return decimal.RequireFromString("3.5") },
	}
}

func (f *fakeConverter) Base() string { return "ILS" }

func (f *fakeConverter) Convert(_ context.Context, amount decimal.Decimal, code string, date time.Time) currency.Conversion {
	f.mu.Lock()
	f.calls = append(f.calls, code+"@"+date.Format(time.DateOnly))
	f.mu.Unlock()

	day := model.Day(date)
	if code == "" || code == "ILS" {
		return currency.Conversion{Amount: amount, Rate: decimal.NewFromInt(1), Date: day, Tier: currency.TierBase}
	}
	rate := f.rateFor(code, day)
	return currency.Conversion{Amount: amount.Mul(rate), Rate: rate, Date: day, Tier: currency.TierLive}
}

func (f *fakeConverter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// mapLookup is an in-memory DedupLookup.
type mapLookup map[string]*model.Expense

func (m mapLookup) FindByDedupKey(_ context.Context, _ model.ExpenseType, key string) (*model.Expense, error) {
	if e, ok := m[key]; ok {
		return e, nil
	}
	return nil, common.ErrNotFound
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// acmeInvoice is the flat invoice payload used across the pipeline tests.
func acmeInvoice() model.Payload {
	return model.Payload{
		Date:         "2024-03-01",
		ProviderName: "Acme Ltd.",
		Currency:     "ILS",
		MainCategory: "generalExpenses",
		SubCategory:  "advertising",
		InvoiceFields: model.InvoiceFields{
			InvoiceNumber: "42",
			InvoiceTotal:  dec("100"),
		},
	}
}
