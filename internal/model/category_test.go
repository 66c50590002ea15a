package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/expense-ledger/internal/common"
)

func TestValidateCategoryHealsMainFromSub(t *testing.T) {
	supplied := []MainCategory{CostOfRevenues, GeneralExpenses, "", "somethingElse"}

	for _, main := range MainCategories() {
		for _, sub := range SubCategories(main) {
			for _, given := range supplied {
				got, err := ValidateCategory(given, sub)
				require.NoError(t, err, "sub %s", sub)
				assert.Equal(t, main, got, "sub %s supplied with %q", sub, given)
			}
		}
	}
}

func TestValidateCategoryRejectsUnknownSub(t *testing.T) {
	tests := []struct {
		name string
		main MainCategory
		sub  SubCategory
	}{
		{name: "unknown sub", main: GeneralExpenses, sub: "snacks"},
		{name: "empty sub", main: CostOfRevenues, sub: ""},
		{name: "main used as sub", main: GeneralExpenses, sub: SubCategory(GeneralExpenses)},
		{name: "wrong case", main: GeneralExpenses, sub: "Advertising"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateCategory(tt.main, tt.sub)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidCategory)

			var catErr *common.InvalidCategoryError
			require.ErrorAs(t, err, &catErr)
			assert.Equal(t, string(tt.sub), catErr.Sub)
		})
	}
}

func TestTaxonomyShape(t *testing.T) {
	assert.Equal(t, []MainCategory{CostOfRevenues, GeneralExpenses}, MainCategories())
	assert.Len(t, SubCategories(CostOfRevenues), 6)
	assert.Len(t, SubCategories(GeneralExpenses), 6)
	assert.Len(t, SubCategories(""), 12)

	owner, ok := Advertising.Owner()
	assert.True(t, ok)
	assert.Equal(t, GeneralExpenses, owner)

	assert.True(t, CostOfRevenues.Valid())
	assert.False(t, MainCategory("other").Valid())
}
