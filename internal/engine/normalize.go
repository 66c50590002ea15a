package engine

import (
	"context"

	"github.com/Veraticus/expense-ledger/internal/model"
)

// normalize derives the total from the variant and attaches the base
// currency conversion for the expense's own date.
func normalize(ctx context.Context, conv Converter, e *model.Expense) {
	if e.Currency == "" {
		e.Currency = conv.Base()
	}
	e.TotalAmount = e.Details.SourceAmount()

	c := conv.Convert(ctx, e.TotalAmount, e.Currency, e.Date)
	e.ConvertedAmountBase = c.Amount
	e.ConversionRate = c.Rate
	e.ConversionDate = c.Date
}
