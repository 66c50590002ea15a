package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/service"
)

func expense(date string, sub model.SubCategory, total, converted string) *model.Expense {
	d, _ := time.Parse(time.DateOnly, date)
	main, _ := sub.Owner()
	e := &model.Expense{
		Date:         d,
		MainCategory: main,
		SubCategory:  sub,
		TotalAmount:  decimal.RequireFromString(total),
		Details:      &model.Manual{ManualTotalAmount: decimal.RequireFromString(total)},
	}
	if converted != "" {
		e.ConvertedAmountBase = decimal.RequireFromString(converted)
	}
	return e
}

func TestSummarize(t *testing.T) {
	expenses := []*model.Expense{
		expense("2024-01-05", model.Advertising, "100", "370"),
		expense("2024-01-20", model.Advertising, "50", "50"),
		expense("2024-02-01", model.SalariesAndRelated, "12000", "12000"),
		expense("2024-02-11", model.RentAndMaintenance, "10.333", "10.333"),
		expense("2024-03-01", model.Commissions, "7", ""),
	}

	summary := Summarize(expenses, service.DateRange{})

	assert.Equal(t, 5, summary.Total.Count)
	assert.Equal(t, "12437.333", summary.Total.Amount.String())

	gen := summary.ByMainCategory[model.GeneralExpenses]
	assert.Equal(t, 3, gen.Count)
	assert.Equal(t, "430.333", gen.Amount.String())

	cor := summary.ByMainCategory[model.CostOfRevenues]
	assert.Equal(t, 2, cor.Count)
	assert.Equal(t, "12007", cor.Amount.String(), "falls back to total when unconverted")

	adv := summary.BySubCategory[model.Advertising]
	assert.Equal(t, 2, adv.Count)
	assert.Equal(t, "420", adv.Amount.String())

	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, Months(summary))
	assert.Equal(t, "12010.333", summary.ByMonth["2024-02"].Amount.String())
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil, service.DateRange{})
	assert.Zero(t, summary.Total.Count)
	assert.True(t, summary.Total.Amount.IsZero())
	assert.Empty(t, Months(summary))
	assert.Empty(t, BySubCategory(summary))
}

func TestBySubCategoryOrder(t *testing.T) {
	expenses := []*model.Expense{
		expense("2024-01-05", model.OfficeAndOther, "1", "1"),
		expense("2024-01-05", model.SalariesAndRelated, "2", "2"),
		expense("2024-01-05", model.Advertising, "3", "3"),
	}

	rows := BySubCategory(Summarize(expenses, service.DateRange{}))
	require.Len(t, rows, 3)
	assert.Equal(t, model.SalariesAndRelated, rows[0].Sub)
	assert.Equal(t, model.CostOfRevenues, rows[0].Main)
	assert.Equal(t, model.Advertising, rows[1].Sub)
	assert.Equal(t, model.OfficeAndOther, rows[2].Sub)
}
