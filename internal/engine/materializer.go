package engine

import (
	"context"
	"time"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
)

// DefaultSeriesYears bounds a recurring series that has no explicit end.
const DefaultSeriesYears = 2

// Materializer expands recurring manual expenses into dated occurrences.
type Materializer struct {
	converter Converter
	years     int
}

// NewMaterializer creates a materializer that normalizes each occurrence with converter.
func NewMaterializer(converter Converter) *Materializer {
	return &Materializer{converter: converter, years: DefaultSeriesYears}
}

// Expand returns every occurrence of base between its date and its interval
// end, inclusive. Without an interval the base is returned alone and any end
// date is ignored. Each occurrence is converted at the rate of its own date.
func (m *Materializer) Expand(ctx context.Context, base *model.Expense) ([]*model.Expense, error) {
	manual, ok := base.Details.(*model.Manual)
	if !ok || manual.Interval == model.IntervalNone {
		return []*model.Expense{base}, nil
	}

	start := model.Day(base.Date)
	end := start.AddDate(m.years, 0, 0)
	if manual.IntervalEnd != nil {
		end = model.Day(*manual.IntervalEnd)
	}
	if end.Before(start) {
		return nil, &common.InvalidFieldError{
			Field:  "intervalEndDate",
			Reason: end.Format(time.DateOnly) + " is before " + start.Format(time.DateOnly),
		}
	}

	var series []*model.Expense
	for n := 0; ; n++ {
		date := Occurrence(start, manual.Interval, n)
		if date.After(end) {
			break
		}

		occurrence := base.Clone()
		occurrence.Date = date
		occManual := occurrence.Details.(*model.Manual)
		occManual.IntervalEnd = &end
		if !converted(base, date) {
			normalize(ctx, m.converter, occurrence)
		}

		series = append(series, occurrence)
	}

	return series, nil
}

func converted(e *model.Expense, date time.Time) bool {
	return !e.ConversionDate.IsZero() && e.ConversionDate.Equal(date) && e.TotalAmount.Equal(e.Details.SourceAmount())
}

// Occurrence returns the nth recurrence of start. Steps are computed from the
// original start, and the day is clamped to the end of shorter months, so a
// series starting Jan 31 runs Feb 29, Mar 31, Apr 30.
func Occurrence(start time.Time, interval model.Interval, n int) time.Time {
	months := n
	if interval == model.IntervalYearly {
		months = 12 * n
	}

	y, mo, d := start.Date()
	first := time.Date(y, mo+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
