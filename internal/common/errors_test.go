package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		name     string
		message  string
	}{
		{
			name:     "invalid category",
			err:      &InvalidCategoryError{Main: "generalExpenses", Sub: "snacks"},
			sentinel: ErrInvalidCategory,
			message:  `invalid subcategory "snacks" for main category "generalExpenses"`,
		},
		{
			name:     "unknown type",
			err:      &UnknownExpenseTypeError{Type: "receipt"},
			sentinel: ErrUnknownExpenseType,
			message:  `unknown expense type "receipt"`,
		},
		{
			name:     "missing field",
			err:      &MissingFieldError{Field: "netSalary"},
			sentinel: ErrMissingField,
			message:  `missing required field "netSalary"`,
		},
		{
			name:     "invalid field",
			err:      &InvalidFieldError{Field: "intervalEndDate", Reason: "before start"},
			sentinel: ErrInvalidField,
			message:  `invalid field "intervalEndDate": before start`,
		},
		{
			name:     "duplicate",
			err:      &DuplicateRecordError{Key: "42-acme-ltd"},
			sentinel: ErrDuplicateEntry,
			message:  "record already exists: 42-acme-ltd",
		},
		{
			name:     "not found",
			err:      &NotFoundError{ID: "abc"},
			sentinel: ErrNotFound,
			message:  "expense not found: abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("while saving: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}
}

func TestDuplicateRecordErrorAs(t *testing.T) {
	err := fmt.Errorf("ingest entry 2: %w", &DuplicateRecordError{Key: "emp-7-2024-03-12000"})

	var dup *DuplicateRecordError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "emp-7-2024-03-12000", dup.Key)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRateLookupErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &RateLookupError{
		Currency: "USD",
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Err:      cause,
	}

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrRateLookup)
	assert.Equal(t, "rate lookup for USD on 2024-03-01: connection refused", err.Error())
}

func TestUserError(t *testing.T) {
	err := NewUserError("could not read document", errors.New("permission denied"))
	assert.Equal(t, "could not read document: permission denied", err.Error())

	plain := NewUserError("nothing to do", nil)
	assert.Equal(t, "nothing to do", plain.Error())
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", lvl.String())

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
