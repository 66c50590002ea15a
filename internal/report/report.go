// Package report aggregates ledger entries for presentation and export.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/service"
)

// MonthLayout is the key format of ReportSummary.ByMonth.
const MonthLayout = "2006-01"

// Amount is the base currency value an expense contributes to reports. Rows
// stored before normalization fall back to their original total.
func Amount(e *model.Expense) decimal.Decimal {
	if !e.ConvertedAmountBase.IsZero() {
		return e.ConvertedAmountBase
	}
	return e.TotalAmount
}

// Summarize totals the expenses overall and by main category, subcategory
// and month. Amounts are exact; round only when displaying.
func Summarize(expenses []*model.Expense, dateRange service.DateRange) *service.ReportSummary {
	summary := &service.ReportSummary{
		DateRange:      dateRange,
		ByMainCategory: make(map[model.MainCategory]service.CategorySummary),
		BySubCategory:  make(map[model.SubCategory]service.CategorySummary),
		ByMonth:        make(map[string]service.CategorySummary),
	}

	for _, e := range expenses {
		amount := Amount(e)

		summary.Total = add(summary.Total, amount)
		summary.ByMainCategory[e.MainCategory] = add(summary.ByMainCategory[e.MainCategory], amount)
		summary.BySubCategory[e.SubCategory] = add(summary.BySubCategory[e.SubCategory], amount)

		month := e.Date.Format(MonthLayout)
		summary.ByMonth[month] = add(summary.ByMonth[month], amount)
	}

	return summary
}

func add(s service.CategorySummary, amount decimal.Decimal) service.CategorySummary {
	return service.CategorySummary{
		Count:  s.Count + 1,
		Amount: s.Amount.Add(amount),
	}
}

// Months returns the month keys of a summary in chronological order.
func Months(summary *service.ReportSummary) []string {
	months := make([]string, 0, len(summary.ByMonth))
	for m := range summary.ByMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

// SubCategoryRow is one line of a subcategory breakdown.
type SubCategoryRow struct {
	Main model.MainCategory
	Sub  model.SubCategory
	service.CategorySummary
}

// BySubCategory returns the subcategory totals in taxonomy order, skipping
// subcategories with no expenses.
func BySubCategory(summary *service.ReportSummary) []SubCategoryRow {
	var rows []SubCategoryRow
	for _, main := range model.MainCategories() {
		for _, sub := range model.SubCategories(main) {
			s, ok := summary.BySubCategory[sub]
			if !ok {
				continue
			}
			rows = append(rows, SubCategoryRow{Main: main, Sub: sub, CategorySummary: s})
		}
	}
	return rows
}
