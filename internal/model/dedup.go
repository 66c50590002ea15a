package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// NormalizeProvider reduces a provider name to a stable slug. Letters of any
// script and digits survive, whitespace runs become a single hyphen and all
// other punctuation is dropped, so "Acme Ltd." and "ACME  ltd" agree.
func NormalizeProvider(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingHyphen = true
		}
	}

	return b.String()
}

// InvoiceKey is the dedup identity of an invoice.
func InvoiceKey(invoiceNumber, providerName string) string {
	return fmt.Sprintf("%s-%s", strings.TrimSpace(invoiceNumber), NormalizeProvider(providerName))
}

// SalarySlipKey is the dedup identity of a salary slip. A corrected re-upload
// with a different gross salary yields a different key.
func SalarySlipKey(employeeID string, date time.Time, gross decimal.Decimal) string {
	return fmt.Sprintf("%s-%s-%s", strings.TrimSpace(employeeID), date.Format("2006-01"), gross.String())
}
