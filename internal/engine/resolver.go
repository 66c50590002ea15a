package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
	"github.com/Veraticus/expense-ledger/internal/service"
)

// The required-field sets per variant. Field order is the order a missing
// field is reported in.
type invoiceInput struct {
	Date          string `json:"date" validate:"required"`
	InvoiceNumber string `json:"invoiceNumber" validate:"required"`
	ProviderName  string `json:"providerName" validate:"required"`
}

type salarySlipInput struct {
	Date        string           `json:"date" validate:"required"`
	EmployeeID  string           `json:"employeeId" validate:"required"`
	GrossSalary *decimal.Decimal `json:"grossSalary" validate:"required"`
	NetSalary   *decimal.Decimal `json:"netSalary" validate:"required"`
}

type manualInput struct {
	Date              string           `json:"date" validate:"required"`
	ManualTotalAmount *decimal.Decimal `json:"manualTotalAmount" validate:"required"`
}

// Resolver turns raw payloads into validated, categorized, deduplicated and
// currency-normalized expenses. It only reads from the store.
type Resolver struct {
	lookup    service.DedupLookup
	converter Converter
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewResolver creates a resolver that checks duplicates against lookup.
func NewResolver(lookup service.DedupLookup, converter Converter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		lookup:    lookup,
		converter: converter,
		validate:  newValidator(),
		logger:    logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Resolve discriminates, flattens and validates the payload, derives its
// total, heals its category, rejects it if already ingested and attaches the
// base currency conversion. The returned expense has no id or timestamps.
func (r *Resolver) Resolve(ctx context.Context, payload model.Payload) (*model.Expense, error) {
	typ, err := discriminate(payload)
	if err != nil {
		return nil, err
	}

	flat := payload.Flatten()

	expense, err := r.build(typ, flat)
	if err != nil {
		return nil, err
	}

	main, err := model.ValidateCategory(model.MainCategory(strings.TrimSpace(flat.MainCategory)), model.SubCategory(strings.TrimSpace(flat.SubCategory)))
	if err != nil {
		return nil, err
	}
	if main != expense.MainCategory {
		r.logger.Debug("Corrected main category from subcategory",
			"supplied", expense.MainCategory,
			"corrected", main,
			"sub_category", expense.SubCategory)
	}
	expense.MainCategory = main

	if err := r.checkDuplicate(ctx, expense); err != nil {
		return nil, err
	}

	normalize(ctx, r.converter, expense)
	return expense, nil
}

// discriminate determines the variant. An explicit type wins; otherwise a
// nested sub-object, then any flat variant field, decides.
func discriminate(p model.Payload) (model.ExpenseType, error) {
	if raw := strings.TrimSpace(p.ExpenseType); raw != "" {
		typ := model.ExpenseType(raw)
		if !typ.Valid() {
			return "", &common.UnknownExpenseTypeError{Type: raw}
		}
		return typ, nil
	}

	switch {
	case p.Invoice != nil:
		return model.TypeInvoice, nil
	case p.SalarySlip != nil:
		return model.TypeSalarySlip, nil
	case p.HasInvoiceFields():
		return model.TypeInvoice, nil
	case p.HasSalarySlipFields():
		return model.TypeSalarySlip, nil
	case p.HasManualFields():
		return model.TypeManual, nil
	}

	return "", &common.UnknownExpenseTypeError{}
}

func (r *Resolver) build(typ model.ExpenseType, p model.Payload) (*model.Expense, error) {
	expense := &model.Expense{
		MainCategory: model.MainCategory(strings.TrimSpace(p.MainCategory)),
		SubCategory:  model.SubCategory(strings.TrimSpace(p.SubCategory)),
		ProviderName: strings.TrimSpace(p.ProviderName),
		Currency:     strings.ToUpper(strings.TrimSpace(p.Currency)),
	}

	switch typ {
	case model.TypeInvoice:
		in := invoiceInput{
			Date:          p.Date,
			InvoiceNumber: string(p.InvoiceNumber),
			ProviderName:  expense.ProviderName,
		}
		if err := r.check(in); err != nil {
			return nil, err
		}
		if p.InvoiceTotal == nil || p.InvoiceTotal.IsZero() {
			return nil, &common.MissingFieldError{Field: "invoiceTotal"}
		}
		expense.Details = &model.Invoice{
			InvoiceID:     model.InvoiceKey(in.InvoiceNumber, in.ProviderName),
			InvoiceNumber: in.InvoiceNumber,
			InvoiceTotal:  *p.InvoiceTotal,
		}

	case model.TypeSalarySlip:
		in := salarySlipInput{
			Date:        p.Date,
			EmployeeID:  string(p.EmployeeID),
			GrossSalary: p.GrossSalary,
			NetSalary:   p.NetSalary,
		}
		if err := r.check(in); err != nil {
			return nil, err
		}
		switch {
		case in.GrossSalary.IsZero():
			return nil, &common.MissingFieldError{Field: "grossSalary"}
		case in.NetSalary.IsZero():
			return nil, &common.MissingFieldError{Field: "netSalary"}
		}
		expense.Details = &model.SalarySlip{
			EmployeeID:     in.EmployeeID,
			EmployeeName:   strings.TrimSpace(p.EmployeeName),
			EmployeeNumber: p.EmployeeNumber,
			GrossSalary:    *in.GrossSalary,
			NetSalary:      *in.NetSalary,
		}

	case model.TypeManual:
		in := manualInput{
			Date:              p.Date,
			ManualTotalAmount: p.ManualTotalAmount,
		}
		if err := r.check(in); err != nil {
			return nil, err
		}
		switch amount := *in.ManualTotalAmount; {
		case amount.IsZero():
			return nil, &common.MissingFieldError{Field: "manualTotalAmount"}
		case amount.IsNegative():
			return nil, &common.InvalidFieldError{Field: "manualTotalAmount", Reason: "must be positive"}
		}
		manual, err := buildManual(p, *in.ManualTotalAmount)
		if err != nil {
			return nil, err
		}
		expense.Details = manual
	}

	date, err := model.ParseDate(p.Date)
	if err != nil {
		return nil, &common.InvalidFieldError{Field: "date", Reason: err.Error()}
	}
	expense.Date = date

	// The salary slip key depends on the parsed date.
	if slip, ok := expense.Details.(*model.SalarySlip); ok {
		slip.SalarySlipID = model.SalarySlipKey(slip.EmployeeID, date, slip.GrossSalary)
	}

	return expense, nil
}

func buildManual(p model.Payload, amount decimal.Decimal) (*model.Manual, error) {
	manual := &model.Manual{
		ManualTotalAmount: amount,
		Note:              strings.TrimSpace(p.Note),
	}

	switch interval := model.Interval(strings.ToLower(strings.TrimSpace(p.ManualInterval))); interval {
	case model.IntervalNone, model.IntervalMonthly, model.IntervalYearly:
		manual.Interval = interval
	default:
		return nil, &common.InvalidFieldError{Field: "manualInterval", Reason: fmt.Sprintf("%q is not monthly or yearly", p.ManualInterval)}
	}

	if strings.TrimSpace(p.IntervalEndDate) != "" {
		end, err := model.ParseDate(p.IntervalEndDate)
		if err != nil {
			return nil, &common.InvalidFieldError{Field: "intervalEndDate", Reason: err.Error()}
		}
		manual.IntervalEnd = &end
	}

	return manual, nil
}

// check runs struct validation and reports the first failing field.
func (r *Resolver) check(input any) error {
	err := r.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", common.ErrInvalidField, err)
	}

	first := verrs[0]
	if first.Tag() == "required" {
		return &common.MissingFieldError{Field: first.Field()}
	}
	return &common.InvalidFieldError{Field: first.Field(), Reason: fmt.Sprintf("failed %s=%s", first.Tag(), first.Param())}
}

func (r *Resolver) checkDuplicate(ctx context.Context, expense *model.Expense) error {
	key := expense.DedupKey()
	if key == "" || r.lookup == nil {
		return nil
	}

	existing, err := r.lookup.FindByDedupKey(ctx, expense.Type(), key)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check for duplicate %s: %w", key, err)
	case existing != nil:
		r.logger.Info("Rejected already ingested document", "key", key, "existing_id", existing.ID)
		return &common.DuplicateRecordError{Key: key}
	}
	return nil
}
