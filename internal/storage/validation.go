// Package storage provides the data persistence layer for the expense ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/service"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidExpense   = errors.New("invalid expense")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDateRange rejects ranges whose end precedes their start.
func validateDateRange(r service.DateRange) error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return ErrInvalidDateRange
	}
	return nil
}

// validateExpense checks the fields every stored expense must carry.
func validateExpense(expense *model.Expense) error {
	if expense == nil {
		return fmt.Errorf("%w: expense", ErrNilParameter)
	}
	if expense.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidExpense)
	}
	if expense.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidExpense)
	}
	if expense.Details == nil {
		return fmt.Errorf("%w: missing variant details", ErrInvalidExpense)
	}
	if expense.ConversionRate.IsZero() {
		return fmt.Errorf("%w: not currency normalized", ErrInvalidExpense)
	}
	return nil
}
