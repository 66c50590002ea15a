package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
)

func newTestResolver(lookup mapLookup) (*Resolver, *fakeConverter) {
	conv := newFakeConverter()
	if lookup == nil {
		lookup = mapLookup{}
	}
	return NewResolver(lookup, conv, nil), conv
}

func TestResolveInvoice(t *testing.T) {
	r, _ := newTestResolver(nil)

	got, err := r.Resolve(context.Background(), acmeInvoice())
	require.NoError(t, err)

	assert.Equal(t, model.TypeInvoice, got.Type())
	assert.Equal(t, "42-acme-ltd", got.DedupKey())
	assert.Equal(t, "100", got.TotalAmount.String())
	assert.Equal(t, "100", got.ConvertedAmountBase.String())
	assert.Equal(t, "1", got.ConversionRate.String())
	assert.True(t, day(2024, 3, 1).Equal(got.Date))
	assert.True(t, day(2024, 3, 1).Equal(got.ConversionDate))
	assert.Equal(t, model.GeneralExpenses, got.MainCategory)
	assert.Empty(t, got.ID, "ids are assigned at persist time")
}

func TestResolveNestedExtractionPayload(t *testing.T) {
	raw := `{
		"date": "2024-02-29",
		"mainCategory": "generalExpenses",
		"subCategory": "salariesAndRelated",
		"expenseType": "salarySlip",
		"providerName": "Widgets Inc",
		"currency": "usd",
		"salarySlip": {
			"employeeId": "E-7",
			"employeeName": "Dana Levi",
			"employeeNumber": 12,
			"grossSalary": 4000,
			"netSalary": 3100.5
		}
	}`

	var p model.Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	r, _ := newTestResolver(nil)
	got, err := r.Resolve(context.Background(), p)
	require.NoError(t, err)

	slip, ok := got.Details.(*model.SalarySlip)
	require.True(t, ok)
	assert.Equal(t, "E-7", slip.EmployeeID)
	assert.Equal(t, "Dana Levi", slip.EmployeeName)
	assert.Equal(t, "3100.5", slip.NetSalary.String())
	assert.Equal(t, "E-7-2024-02-4000", slip.SalarySlipID)

	assert.Equal(t, model.CostOfRevenues, got.MainCategory, "main category healed from subcategory")
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "4000", got.TotalAmount.String())
	assert.Equal(t, "14000", got.ConvertedAmountBase.String())
	assert.Equal(t, "3.5", got.ConversionRate.String())
}

func TestResolveDiscriminates(t *testing.T) {
	base := func(mut func(*model.Payload)) model.Payload {
		p := model.Payload{Date: "2024-01-01", SubCategory: "officeAndOther", ProviderName: "Shop"}
		mut(&p)
		return p
	}

	tests := []struct {
		payload model.Payload
		name    string
		want    model.ExpenseType
	}{
		{
			name: "nested invoice",
			payload: base(func(p *model.Payload) {
				p.Invoice = &model.InvoiceFields{InvoiceNumber: "1", InvoiceTotal: dec("5")}
			}),
			want: model.TypeInvoice,
		},
		{
			name: "nested salary slip",
			payload: base(func(p *model.Payload) {
				p.SalarySlip = &model.SalarySlipFields{EmployeeID: "E", GrossSalary: dec("5"), NetSalary: dec("4")}
			}),
			want: model.TypeSalarySlip,
		},
		{
			name: "flat invoice",
			payload: base(func(p *model.Payload) {
				p.InvoiceNumber = "9"
				p.InvoiceTotal = dec("1")
			}),
			want: model.TypeInvoice,
		},
		{
			name: "flat salary slip",
			payload: base(func(p *model.Payload) {
				p.EmployeeID = "E"
				p.GrossSalary = dec("5")
				p.NetSalary = dec("4")
			}),
			want: model.TypeSalarySlip,
		},
		{
			name: "flat manual",
			payload: base(func(p *model.Payload) {
				p.ManualTotalAmount = dec("12")
			}),
			want: model.TypeManual,
		},
		{
			name: "explicit type wins",
			payload: base(func(p *model.Payload) {
				p.ExpenseType = "manual"
				p.ManualTotalAmount = dec("12")
				p.Invoice = &model.InvoiceFields{InvoiceNumber: "1"}
			}),
			want: model.TypeManual,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestResolver(nil)
			got, err := r.Resolve(context.Background(), tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Type())
		})
	}
}

func TestResolveUnknownType(t *testing.T) {
	r, _ := newTestResolver(nil)

	_, err := r.Resolve(context.Background(), model.Payload{Date: "2024-01-01", SubCategory: "advertising"})
	assert.ErrorIs(t, err, common.ErrUnknownExpenseType)

	_, err = r.Resolve(context.Background(), model.Payload{ExpenseType: "receipt", Date: "2024-01-01"})
	var typeErr *common.UnknownExpenseTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "receipt", typeErr.Type)
}

func TestResolveMissingFields(t *testing.T) {
	tests := []struct {
		mutate func(*model.Payload)
		name   string
		field  string
	}{
		{
			name:   "invoice without number",
			mutate: func(p *model.Payload) { p.InvoiceNumber = "" },
			field:  "invoiceNumber",
		},
		{
			name:   "invoice without provider",
			mutate: func(p *model.Payload) { p.ProviderName = "  " },
			field:  "providerName",
		},
		{
			name:   "invoice without total",
			mutate: func(p *model.Payload) { p.InvoiceTotal = nil },
			field:  "invoiceTotal",
		},
		{
			name:   "invoice with zero total",
			mutate: func(p *model.Payload) { p.InvoiceTotal = dec("0") },
			field:  "invoiceTotal",
		},
		{
			name:   "no date",
			mutate: func(p *model.Payload) { p.Date = "" },
			field:  "date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := acmeInvoice()
			tt.mutate(&p)

			r, _ := newTestResolver(nil)
			_, err := r.Resolve(context.Background(), p)

			var missing *common.MissingFieldError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.field, missing.Field)
		})
	}
}

func TestResolveSalarySlipAmounts(t *testing.T) {
	tests := []struct {
		gross *decimal.Decimal
		net   *decimal.Decimal
		name  string
		field string
	}{
		{name: "missing net", gross: dec("12000"), net: nil, field: "netSalary"},
		{name: "zero net", gross: dec("12000"), net: dec("0"), field: "netSalary"},
		{name: "missing gross", gross: nil, net: dec("9000"), field: "grossSalary"},
		{name: "zero gross", gross: dec("0"), net: dec("9000"), field: "grossSalary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.Payload{
				ExpenseType:  "salarySlip",
				Date:         "2024-03-31",
				SubCategory:  "salariesAndRelated",
				ProviderName: "Widgets Inc",
				SalarySlip: &model.SalarySlipFields{
					EmployeeID:  "E-7",
					GrossSalary: tt.gross,
					NetSalary:   tt.net,
				},
			}

			r, conv := newTestResolver(nil)
			_, err := r.Resolve(context.Background(), p)

			var missing *common.MissingFieldError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.field, missing.Field)
			assert.Zero(t, conv.callCount(), "no normalization for rejected payloads")
		})
	}
}

func TestResolveManualAmount(t *testing.T) {
	tests := []struct {
		amount    *string
		name      string
		wantField string
		wantErr   error
	}{
		{name: "absent", amount: nil, wantErr: common.ErrMissingField, wantField: "manualTotalAmount"},
		{name: "zero", amount: strPtr("0"), wantErr: common.ErrMissingField, wantField: "manualTotalAmount"},
		{name: "negative", amount: strPtr("-5"), wantErr: common.ErrInvalidField, wantField: "manualTotalAmount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.Payload{ExpenseType: "manual", Date: "2024-01-01", SubCategory: "officeAndOther"}
			if tt.amount != nil {
				p.ManualTotalAmount = dec(*tt.amount)
			}

			r, _ := newTestResolver(nil)
			_, err := r.Resolve(context.Background(), p)
			require.ErrorIs(t, err, tt.wantErr)

			var missing *common.MissingFieldError
			var invalid *common.InvalidFieldError
			switch {
			case errors.As(err, &missing):
				assert.Equal(t, tt.wantField, missing.Field)
			case errors.As(err, &invalid):
				assert.Equal(t, tt.wantField, invalid.Field)
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func TestResolveInvalidFields(t *testing.T) {
	r, _ := newTestResolver(nil)

	p := acmeInvoice()
	p.Date = "sometime"
	_, err := r.Resolve(context.Background(), p)
	var invalid *common.InvalidFieldError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "date", invalid.Field)

	manual := model.Payload{
		Date:        "2024-01-01",
		SubCategory: "officeAndOther",
		ManualFields: model.ManualFields{
			ManualTotalAmount: dec("10"),
			ManualInterval:    "weekly",
		},
	}
	_, err = r.Resolve(context.Background(), manual)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "manualInterval", invalid.Field)
}

func TestResolveCategory(t *testing.T) {
	r, _ := newTestResolver(nil)

	p := acmeInvoice()
	p.MainCategory = "costOfRevenues"
	got, err := r.Resolve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, model.GeneralExpenses, got.MainCategory)

	p.SubCategory = "snacks"
	_, err = r.Resolve(context.Background(), p)
	assert.ErrorIs(t, err, common.ErrInvalidCategory)
}

func TestResolveDuplicate(t *testing.T) {
	existing := &model.Expense{ID: "first"}
	r, conv := newTestResolver(mapLookup{"42-acme-ltd": existing})

	p := acmeInvoice()
	p.ProviderName = "ACME   LTD"
	_, err := r.Resolve(context.Background(), p)

	var dup *common.DuplicateRecordError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "42-acme-ltd", dup.Key)
	assert.Zero(t, conv.callCount())
}

type failingLookup struct{}

func (failingLookup) FindByDedupKey(context.Context, model.ExpenseType, string) (*model.Expense, error) {
	return nil, errors.New("disk on fire")
}

func TestResolveLookupFailureSurfaces(t *testing.T) {
	r := NewResolver(failingLookup{}, newFakeConverter(), nil)

	_, err := r.Resolve(context.Background(), acmeInvoice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.NotErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestResolveDefaultsCurrencyToBase(t *testing.T) {
	r, _ := newTestResolver(nil)

	p := acmeInvoice()
	p.Currency = ""
	got, err := r.Resolve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "ILS", got.Currency)
	assert.Equal(t, "1", got.ConversionRate.String())
}
