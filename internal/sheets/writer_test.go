package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/report"
	"github.com/Veraticus/expense-ledger/internal/service"
)

func testExpenses() []*model.Expense {
	march := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)

	return []*model.Expense{
		{
			ID:                  "inv-1",
			Date:                march,
			MainCategory:        model.GeneralExpenses,
			SubCategory:         model.Advertising,
			ProviderName:        "Acme Ltd.",
			Currency:            "USD",
			TotalAmount:         decimal.RequireFromString("100.5"),
			ConversionRate:      decimal.RequireFromString("3.7"),
			ConvertedAmountBase: decimal.RequireFromString("371.85"),
			Details: &model.Invoice{
				InvoiceID:     "42-acme-ltd",
				InvoiceNumber: "42",
				InvoiceTotal:  decimal.RequireFromString("100.5"),
			},
		},
		{
			ID:                  "slip-1",
			Date:                feb,
			MainCategory:        model.CostOfRevenues,
			SubCategory:         model.SalariesAndRelated,
			Currency:            "ILS",
			TotalAmount:         decimal.NewFromInt(12000),
			ConversionRate:      decimal.NewFromInt(1),
			ConvertedAmountBase: decimal.NewFromInt(12000),
			Details: &model.SalarySlip{
				SalarySlipID: "E-7-2024-02-12000",
				EmployeeID:   "E-7",
				EmployeeName: "Dana",
				GrossSalary:  decimal.NewFromInt(12000),
				NetSalary:    decimal.NewFromInt(9000),
			},
		},
	}
}

func TestExpenseRows(t *testing.T) {
	rows := expenseRows(testExpenses(), "ILS")
	require.Len(t, rows, 3)

	assert.Equal(t, "Converted (ILS)", rows[0][9])

	// Oldest first.
	assert.Equal(t, []any{
		"2024-02-29", "salarySlip", "costOfRevenues", "salariesAndRelated", "", "E-7-2024-02-12000",
		"ILS", "12000.00", "1", "12000.00", "Dana", "slip-1",
	}, rows[1])
	assert.Equal(t, "42-acme-ltd", rows[2][5])
	assert.Equal(t, "100.50", rows[2][7])
	assert.Equal(t, "371.85", rows[2][9])
}

func TestExpenseRowsDoesNotReorderInput(t *testing.T) {
	expenses := testExpenses()
	_ = expenseRows(expenses, "ILS")
	assert.Equal(t, "inv-1", expenses[0].ID)
}

func TestSummaryRows(t *testing.T) {
	expenses := testExpenses()
	dateRange := service.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	rows := summaryRows(report.Summarize(expenses, dateRange), "ILS")

	assert.Equal(t, []any{"Expense Report", "Jan 1, 2024 - Mar 31, 2024"}, rows[0])
	assert.Equal(t, []any{"Total", 2, "12371.85"}, rows[2])

	assert.Contains(t, rows, []any{"costOfRevenues", 1, "12000.00"})
	assert.Contains(t, rows, []any{"advertising", 1, "371.85", "generalExpenses"})
	assert.Contains(t, rows, []any{"2024-02", 1, "12000.00"})
	assert.Contains(t, rows, []any{"2024-03", 1, "371.85"})
}

func TestDetails(t *testing.T) {
	tests := []struct {
		name    string
		details model.Variant
		want    string
	}{
		{name: "invoice", details: &model.Invoice{}, want: ""},
		{name: "salary slip", details: &model.SalarySlip{EmployeeName: "Dana"}, want: "Dana"},
		{name: "one-off manual", details: &model.Manual{Note: "printer"}, want: "printer"},
		{name: "recurring manual", details: &model.Manual{Note: "rent", Interval: model.IntervalMonthly}, want: "rent (monthly)"},
		{name: "recurring without note", details: &model.Manual{Interval: model.IntervalYearly}, want: "yearly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, details(&model.Expense{Details: tt.details}))
		})
	}
}

func TestFormatRangeOpenEnds(t *testing.T) {
	assert.Equal(t, "beginning - now", formatRange(service.DateRange{}, time.DateOnly))
	assert.Equal(t, "2024-01-01 - now", formatRange(service.DateRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, time.DateOnly))
}

func TestSheetIDs(t *testing.T) {
	ids := sheetIDs(&sheets.Spreadsheet{Sheets: []*sheets.Sheet{
		{Properties: &sheets.SheetProperties{Title: ExpensesSheet, SheetId: 0}},
		{Properties: &sheets.SheetProperties{Title: SummarySheet, SheetId: 77}},
		{},
	}})
	assert.Equal(t, map[string]int64{ExpensesSheet: 0, SummarySheet: 77}, ids)
}

func TestMockWriter(t *testing.T) {
	m := NewMockWriter()
	summary := &service.ReportSummary{}

	require.NoError(t, m.Write(context.Background(), testExpenses(), summary))
	assert.Equal(t, 1, m.WriteCallCount)
	assert.Len(t, m.LastExpenses, 2)
	assert.Same(t, summary, m.LastSummary)

	boom := errors.New("quota exceeded")
	m.SetWriteError(boom)
	require.ErrorIs(t, m.Write(context.Background(), nil, summary), boom)

	calls := m.GetWriteCalls()
	require.Len(t, calls, 2)
	assert.ErrorIs(t, calls[1].Error, boom)
}

func TestClassifyAPIError(t *testing.T) {
	quota := &googleapi.Error{Code: 429, Header: http.Header{"Retry-After": []string{"20"}}}

	tests := []struct {
		err           error
		name          string
		wantAfter     time.Duration
		wantRetryable bool
		wantRateLimit bool
	}{
		{name: "quota with header", err: quota, wantRetryable: true, wantRateLimit: true, wantAfter: 20 * time.Second},
		{name: "quota without header", err: &googleapi.Error{Code: 429}, wantRetryable: true, wantRateLimit: true},
		{name: "not found", err: fmt.Errorf("update: %w", &googleapi.Error{Code: 404})},
		{name: "backend error", err: &googleapi.Error{Code: 500}, wantRetryable: true},
		{name: "transport", err: errors.New("EOF"), wantRetryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyAPIError(tt.err)

			var retryable *common.RetryableError
			require.ErrorAs(t, got, &retryable)
			assert.Equal(t, tt.wantRetryable, retryable.Retryable)
			assert.Equal(t, tt.wantAfter, retryable.RetryAfter)
			assert.Equal(t, tt.wantRateLimit, errors.Is(got, common.ErrRateLimit))
		})
	}

	assert.NoError(t, classifyAPIError(nil))
}
