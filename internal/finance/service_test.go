package finance

import (
	"context"
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBTWAmountCents(t *testing.T) {
	cases := []struct {
		amount   int64
		rate     BTWRate
		expected int64
	}{
		{10000, BTWHoog, 2100},
		{10000, BTWLaag, 900},
		{10000, BTWVrijgesteld, 0},
		{333, BTWHoog, 70},   // 69.93 rounds up
		{105, BTWLaag, 9},    // 9.45 rounds down
		{-10000, BTWHoog, -2100},
		{10000, BTWRate(15), 0}, // not a Dutch rate
	}
	for _, c := range cases {
		if got := BTWAmountCents(c.amount, c.rate); got != c.expected {
			t.Fatalf("BTWAmountCents(%d, %d)=%d, want %d", c.amount, c.rate, got, c.expected)
		}
	}
}

func TestBTWSummaryQuarters(t *testing.T) {
	store := NewMemStore()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	seed := []Invoice{
		{CompanyID: "u1", Number: "2025-001", IssueDate: date(2025, time.January, 15), AmountExclCents: 100000, Rate: BTWHoog, Status: InvoicePaid},
		{CompanyID: "u1", Number: "2025-002", IssueDate: date(2025, time.March, 31), AmountExclCents: 50000, Rate: BTWLaag, Status: InvoiceSent},
		{CompanyID: "u1", Number: "2025-003", IssueDate: date(2025, time.April, 1), AmountExclCents: 20000, Rate: BTWHoog, Status: InvoiceSent},
		// Draft and foreign rows must not count.
		{CompanyID: "u1", Number: "2025-004", IssueDate: date(2025, time.February, 1), AmountExclCents: 99999, Rate: BTWHoog, Status: InvoiceDraft},
		{CompanyID: "u2", Number: "2025-001", IssueDate: date(2025, time.January, 1), AmountExclCents: 77777, Rate: BTWHoog, Status: InvoicePaid},
	}
	for i := range seed {
		if err := store.Invoices(ctx).Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seed invoice: %v", err)
		}
	}
	expenses := []Expense{
		{CompanyID: "u1", Supplier: "Coolblue", Date: date(2025, time.February, 10), AmountExclCents: 40000, Rate: BTWHoog},
		{CompanyID: "u1", Supplier: "NS", Date: date(2025, time.October, 2), AmountExclCents: 10000, Rate: BTWLaag},
	}
	for i := range expenses {
		if err := store.Expenses(ctx).Create(ctx, &expenses[i]); err != nil {
			t.Fatalf("seed expense: %v", err)
		}
	}

	summary, err := svc.BTWSummaryForYear(ctx, "u1", 2025)
	if err != nil {
		t.Fatalf("BTWSummaryForYear: %v", err)
	}

	q1 := summary.Quarters[0]
	if q1.RevenueCents != 150000 {
		t.Fatalf("Q1 revenue: got %d", q1.RevenueCents)
	}
	if q1.OutputBTWCents != 21000+4500 {
		t.Fatalf("Q1 output btw: got %d", q1.OutputBTWCents)
	}
	if q1.InputBTWCents != 8400 {
		t.Fatalf("Q1 input btw: got %d", q1.InputBTWCents)
	}
	if q1.PayableCents != 25500-8400 {
		t.Fatalf("Q1 payable: got %d", q1.PayableCents)
	}

	q2 := summary.Quarters[1]
	if q2.OutputBTWCents != 4200 || q2.InputBTWCents != 0 {
		t.Fatalf("Q2 unexpected: %+v", q2)
	}

	q4 := summary.Quarters[3]
	if q4.PayableCents != -900 {
		t.Fatalf("Q4 should be a refund of 900, got %d", q4.PayableCents)
	}
}

func TestBTWSummaryImplausibleYear(t *testing.T) {
	svc, err := NewService(NewMemStore())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.BTWSummaryForYear(context.Background(), "u1", 1999); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListIsTenantScoped(t *testing.T) {
	store := NewMemStore()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	for _, companyID := range []string{"u1", "u2"} {
		inv := Invoice{CompanyID: companyID, Number: "X", IssueDate: date(2025, time.May, 1), AmountExclCents: 100, Rate: BTWHoog, Status: InvoiceSent}
		if err := store.Invoices(ctx).Create(ctx, &inv); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	list, err := svc.ListInvoices(ctx, "u1")
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(list) != 1 || list[0].CompanyID != "u1" {
		t.Fatalf("listing leaked across tenants: %+v", list)
	}
}
