// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Resolution errors.
	ErrInvalidCategory    = errors.New("invalid category")
	ErrUnknownExpenseType = errors.New("unknown expense type")
	ErrMissingField       = errors.New("missing required field")
	ErrInvalidField       = errors.New("invalid field")

	// External collaborator errors.
	ErrRateLookup       = errors.New("rate lookup failed")
	ErrExtractionFailed = errors.New("extraction failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// InvalidCategoryError reports a subcategory that belongs to no main category.
type InvalidCategoryError struct {
	Main string
	Sub  string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid subcategory %q for main category %q", e.Sub, e.Main)
}

// Is matches ErrInvalidCategory.
func (e *InvalidCategoryError) Is(target error) bool {
	return target == ErrInvalidCategory
}

// UnknownExpenseTypeError reports a payload whose variant could not be determined.
type UnknownExpenseTypeError struct {
	Type string
}

func (e *UnknownExpenseTypeError) Error() string {
	if e.Type == "" {
		return "unknown expense type: payload carries no invoice, salary slip or manual fields"
	}
	return fmt.Sprintf("unknown expense type %q", e.Type)
}

// Is matches ErrUnknownExpenseType.
func (e *UnknownExpenseTypeError) Is(target error) bool {
	return target == ErrUnknownExpenseType
}

// MissingFieldError names a required field that was absent or zero.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// Is matches ErrMissingField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// InvalidFieldError names a field that was present but unusable.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// Is matches ErrInvalidField.
func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// DuplicateRecordError carries the dedup key of a source document that was
// already ingested.
type DuplicateRecordError struct {
	Key string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("record already exists: %s", e.Key)
}

// Is matches ErrDuplicateEntry.
func (e *DuplicateRecordError) Is(target error) bool {
	return target == ErrDuplicateEntry
}

// RateLookupError describes a failed live exchange-rate lookup. It is always
// recovered by the currency normalizer and only ever logged.
type RateLookupError struct {
	Date     time.Time
	Err      error
	Currency string
}

func (e *RateLookupError) Error() string {
	return fmt.Sprintf("rate lookup for %s on %s: %v", e.Currency, e.Date.Format(time.DateOnly), e.Err)
}

func (e *RateLookupError) Unwrap() error {
	return e.Err
}

// Is matches ErrRateLookup.
func (e *RateLookupError) Is(target error) bool {
	return target == ErrRateLookup
}

// NotFoundError reports a record id that does not exist in the ledger.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("expense not found: %s", e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
