package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payload is a raw expense as produced by document extraction or typed in by
// a user. Extraction nests variant fields under invoice or salarySlip, manual
// entry sends them flat; both shapes decode into the same value.
type Payload struct {
	Invoice          *InvoiceFields    `json:"invoice,omitempty"`
	SalarySlip       *SalarySlipFields `json:"salarySlip,omitempty"`
	ExpenseType      string            `json:"expenseType,omitempty"`
	Date             string            `json:"date,omitempty"`
	MainCategory     string            `json:"mainCategory,omitempty"`
	SubCategory      string            `json:"subCategory,omitempty"`
	ProviderName     string            `json:"providerName,omitempty"`
	Currency         string            `json:"currency,omitempty"`
	InvoiceFields
	SalarySlipFields
	ManualFields
}

// InvoiceFields are the invoice specific payload fields.
type InvoiceFields struct {
	InvoiceTotal  *decimal.Decimal `json:"invoiceTotal,omitempty"`
	InvoiceNumber Code             `json:"invoiceNumber,omitempty"`
}

// SalarySlipFields are the salary slip specific payload fields.
type SalarySlipFields struct {
	EmployeeNumber *int64           `json:"employeeNumber,omitempty"`
	GrossSalary    *decimal.Decimal `json:"grossSalary,omitempty"`
	NetSalary      *decimal.Decimal `json:"netSalary,omitempty"`
	EmployeeID     Code             `json:"employeeId,omitempty"`
	EmployeeName   string           `json:"employeeName,omitempty"`
}

// ManualFields are the manual entry specific payload fields.
type ManualFields struct {
	ManualTotalAmount *decimal.Decimal `json:"manualTotalAmount,omitempty"`
	ManualInterval    string           `json:"manualInterval,omitempty"`
	IntervalEndDate   string           `json:"intervalEndDate,omitempty"`
	Note              string           `json:"note,omitempty"`
}

// HasInvoiceFields reports whether any invoice field is set, flat or nested.
func (p *Payload) HasInvoiceFields() bool {
	return p.Invoice != nil || p.InvoiceNumber != "" || p.InvoiceTotal != nil
}

// HasSalarySlipFields reports whether any salary slip field is set, flat or nested.
func (p *Payload) HasSalarySlipFields() bool {
	return p.SalarySlip != nil || p.EmployeeID != "" || p.GrossSalary != nil || p.NetSalary != nil
}

// HasManualFields reports whether a manual amount is set.
func (p *Payload) HasManualFields() bool {
	return p.ManualTotalAmount != nil
}

// Flatten returns a copy with the nested invoice and salarySlip objects merged
// into the flat fields. Nested values win over flat ones.
func (p Payload) Flatten() Payload {
	if inv := p.Invoice; inv != nil {
		if inv.InvoiceNumber != "" {
			p.InvoiceNumber = inv.InvoiceNumber
		}
		if inv.InvoiceTotal != nil {
			p.InvoiceTotal = inv.InvoiceTotal
		}
		p.Invoice = nil
	}

	if slip := p.SalarySlip; slip != nil {
		if slip.EmployeeID != "" {
			p.EmployeeID = slip.EmployeeID
		}
		if slip.EmployeeName != "" {
			p.EmployeeName = slip.EmployeeName
		}
		if slip.EmployeeNumber != nil {
			p.EmployeeNumber = slip.EmployeeNumber
		}
		if slip.GrossSalary != nil {
			p.GrossSalary = slip.GrossSalary
		}
		if slip.NetSalary != nil {
			p.NetSalary = slip.NetSalary
		}
		p.SalarySlip = nil
	}

	return p
}

// Code is an identifier that extraction may emit either as a JSON number or
// as a string. It is always carried as text.
type Code string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(strings.TrimSpace(s))
		return nil
	}

	n, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("code must be a string or number: %w", err)
	}
	*c = Code(n.String())
	return nil
}

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"02/01/2006",
	"02.01.2006",
}

// ParseDate parses the date formats seen in extracted documents and returns
// the calendar day at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
