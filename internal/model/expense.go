package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseType discriminates the concrete variant of an expense.
type ExpenseType string

const (
	// TypeInvoice is a supplier invoice.
	TypeInvoice ExpenseType = "invoice"
	// TypeSalarySlip is an employee pay slip.
	TypeSalarySlip ExpenseType = "salarySlip"
	// TypeManual is a user-entered expense, optionally recurring.
	TypeManual ExpenseType = "manual"
)

// Valid reports whether t names a known variant.
func (t ExpenseType) Valid() bool {
	switch t {
	case TypeInvoice, TypeSalarySlip, TypeManual:
		return true
	}
	return false
}

// Interval controls recurring expansion of manual expenses.
type Interval string

const (
	// IntervalNone means the expense happens once.
	IntervalNone Interval = ""
	// IntervalMonthly repeats every calendar month.
	IntervalMonthly Interval = "monthly"
	// IntervalYearly repeats every calendar year.
	IntervalYearly Interval = "yearly"
)

// Expense is the atomic ledger unit. The variant specific fields live in
// Details; Type is derived from it.
type Expense struct {
	Date                time.Time
	ConversionDate      time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Details             Variant
	TotalAmount         decimal.Decimal
	ConvertedAmountBase decimal.Decimal
	ConversionRate      decimal.Decimal
	ID                  string
	MainCategory        MainCategory
	SubCategory         SubCategory
	ProviderName        string
	Currency            string
}

// Type returns the variant discriminant.
func (e *Expense) Type() ExpenseType {
	if e.Details == nil {
		return ""
	}
	return e.Details.Type()
}

// DedupKey returns the invoice or salary slip identity, or "" for manual
// expenses.
func (e *Expense) DedupKey() string {
	switch d := e.Details.(type) {
	case *Invoice:
		return d.InvoiceID
	case *SalarySlip:
		return d.SalarySlipID
	}
	return ""
}

// Clone returns a deep copy of e.
func (e *Expense) Clone() *Expense {
	c := *e
	if e.Details != nil {
		c.Details = e.Details.clone()
	}
	return &c
}

// Variant is implemented by the three concrete expense kinds.
type Variant interface {
	Type() ExpenseType
	// SourceAmount is the field totalAmount is derived from.
	SourceAmount() decimal.Decimal
	clone() Variant
}

// Invoice holds supplier invoice fields.
type Invoice struct {
	InvoiceID     string
	InvoiceNumber string
	InvoiceTotal  decimal.Decimal
}

// Type implements Variant.
func (*Invoice) Type() ExpenseType { return TypeInvoice }

// SourceAmount implements Variant.
func (i *Invoice) SourceAmount() decimal.Decimal { return i.InvoiceTotal }

func (i *Invoice) clone() Variant {
	c := *i
	return &c
}

// SalarySlip holds pay slip fields.
type SalarySlip struct {
	SalarySlipID   string
	EmployeeID     string
	EmployeeName   string
	EmployeeNumber *int64
	GrossSalary    decimal.Decimal
	NetSalary      decimal.Decimal
}

// Type implements Variant.
func (*SalarySlip) Type() ExpenseType { return TypeSalarySlip }

// SourceAmount implements Variant.
func (s *SalarySlip) SourceAmount() decimal.Decimal { return s.GrossSalary }

func (s *SalarySlip) clone() Variant {
	c := *s
	if s.EmployeeNumber != nil {
		n := *s.EmployeeNumber
		c.EmployeeNumber = &n
	}
	return &c
}

// Manual holds user-entered expense fields.
type Manual struct {
	IntervalEnd       *time.Time
	Interval          Interval
	Note              string
	ManualTotalAmount decimal.Decimal
}

// Type implements Variant.
func (*Manual) Type() ExpenseType { return TypeManual }

// SourceAmount implements Variant.
func (m *Manual) SourceAmount() decimal.Decimal { return m.ManualTotalAmount }

func (m *Manual) clone() Variant {
	c := *m
	if m.IntervalEnd != nil {
		end := *m.IntervalEnd
		c.IntervalEnd = &end
	}
	return &c
}
