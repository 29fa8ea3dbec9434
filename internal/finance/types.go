// Package finance is the tenant-scoped read model: invoices, expenses and
// the BTW (Dutch VAT) summary. Every query filters on the company id a
// tenant resolution produced; no handler passes a client-supplied id in.
package finance

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("finance: not found")
	ErrInvalidInput = errors.New("finance: invalid input")
)

// BTWRate is one of the fixed Dutch VAT rates, in percent.
type BTWRate int

const (
	BTWHoog        BTWRate = 21
	BTWLaag        BTWRate = 9
	BTWVrijgesteld BTWRate = 0
)

// ValidBTWRate reports whether r is one of the fixed rates.
func ValidBTWRate(r BTWRate) bool {
	return r == BTWHoog || r == BTWLaag || r == BTWVrijgesteld
}

// BTWAmountCents computes the VAT amount over an ex-VAT amount in cents,
// rounding half away from zero per Belastingdienst practice.
func BTWAmountCents(amountExclCents int64, rate BTWRate) int64 {
	if !ValidBTWRate(rate) {
		return 0
	}
	raw := amountExclCents * int64(rate)
	// round(raw / 100) without floats
	if raw >= 0 {
		return (raw + 50) / 100
	}
	return (raw - 50) / 100
}

// Invoice is an outgoing invoice row, amounts in cents ex-VAT.
type Invoice struct {
	ID              string
	CompanyID       string
	Number          string
	ClientName      string
	IssueDate       time.Time
	AmountExclCents int64
	Rate            BTWRate
	Status          string
}

const (
	InvoiceDraft = "draft"
	InvoiceSent  = "sent"
	InvoicePaid  = "paid"
)

// Expense is a booked cost row, amounts in cents ex-VAT.
type Expense struct {
	ID              string
	CompanyID       string
	Supplier        string
	Date            time.Time
	AmountExclCents int64
	Rate            BTWRate
	Category        string
}

// QuarterSummary is the BTW position for one calendar quarter.
type QuarterSummary struct {
	Quarter        int
	RevenueCents   int64
	OutputBTWCents int64 // verschuldigde btw over omzet
	InputBTWCents  int64 // voorbelasting over kosten
	PayableCents   int64 // output minus input, negative means refund
}

// BTWSummary is the per-quarter position for one year and one tenant.
type BTWSummary struct {
	CompanyID string
	Year      int
	Quarters  [4]QuarterSummary
}
