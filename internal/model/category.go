package model

import (
	"github.com/Veraticus/expense-ledger/internal/common"
)

// MainCategory is the coarse bookkeeping bucket an expense is reported under.
type MainCategory string

// SubCategory is the narrow label owned by exactly one MainCategory.
type SubCategory string

const (
	// CostOfRevenues covers spend directly tied to producing revenue.
	CostOfRevenues MainCategory = "costOfRevenues"
	// GeneralExpenses covers overhead.
	GeneralExpenses MainCategory = "generalExpenses"
)

// Cost of revenues subcategories.
const (
	SalariesAndRelated   SubCategory = "salariesAndRelated"
	Commissions          SubCategory = "commissions"
	EquipmentAndSoftware SubCategory = "equipmentAndSoftware"
	OfficeExpenses       SubCategory = "officeExpenses"
	VehicleMaintenance   SubCategory = "vehicleMaintenance"
	Depreciation         SubCategory = "depreciation"
)

// General expenses subcategories.
const (
	ManagementServices       SubCategory = "managementServices"
	ProfessionalServices     SubCategory = "professionalServices"
	Advertising              SubCategory = "advertising"
	RentAndMaintenance       SubCategory = "rentAndMaintenance"
	PostageAndCommunications SubCategory = "postageAndCommunications"
	OfficeAndOther           SubCategory = "officeAndOther"
)

var taxonomy = []struct {
	main MainCategory
	subs []SubCategory
}{
	{
		main: CostOfRevenues,
		subs: []SubCategory{
			SalariesAndRelated,
			Commissions,
			EquipmentAndSoftware,
			OfficeExpenses,
			VehicleMaintenance,
			Depreciation,
		},
	},
	{
		main: GeneralExpenses,
		subs: []SubCategory{
			ManagementServices,
			ProfessionalServices,
			Advertising,
			RentAndMaintenance,
			PostageAndCommunications,
			OfficeAndOther,
		},
	},
}

// owner maps every subcategory to its main category.
var owner = func() map[SubCategory]MainCategory {
	m := make(map[SubCategory]MainCategory)
	for _, entry := range taxonomy {
		for _, sub := range entry.subs {
			m[sub] = entry.main
		}
	}
	return m
}()

// ValidateCategory returns the main category that owns sub. The supplied main
// category is ignored when it disagrees, since extraction gets the narrow
// subcategory right far more often than the coarse bucket. A subcategory that
// is not part of the taxonomy is an InvalidCategoryError.
func ValidateCategory(main MainCategory, sub SubCategory) (MainCategory, error) {
	correct, ok := owner[sub]
	if !ok {
		return "", &common.InvalidCategoryError{Main: string(main), Sub: string(sub)}
	}
	return correct, nil
}

// MainCategories lists the main categories in declaration order.
func MainCategories() []MainCategory {
	mains := make([]MainCategory, 0, len(taxonomy))
	for _, entry := range taxonomy {
		mains = append(mains, entry.main)
	}
	return mains
}

// SubCategories lists the subcategories owned by main, or every subcategory
// when main is empty.
func SubCategories(main MainCategory) []SubCategory {
	var subs []SubCategory
	for _, entry := range taxonomy {
		if main == "" || entry.main == main {
			subs = append(subs, entry.subs...)
		}
	}
	return subs
}

// Owner reports the main category of sub.
func (s SubCategory) Owner() (MainCategory, bool) {
	m, ok := owner[s]
	return m, ok
}

// Valid reports whether m is a known main category.
func (m MainCategory) Valid() bool {
	for _, entry := range taxonomy {
		if entry.main == m {
			return true
		}
	}
	return false
}
