package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/expense-ledger/internal/currency"
)

// Converter defines the contract for currency normalization. It must never
// fail; rate problems are absorbed by the implementation.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, code string, date time.Time) currency.Conversion
	Base() string
}
