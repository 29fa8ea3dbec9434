package finance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store describes persistence for the finance read model.
type Store interface {
	Invoices(ctx context.Context) InvoiceStore
	Expenses(ctx context.Context) ExpenseStore
}

// InvoiceStore manages invoice rows.
type InvoiceStore interface {
	Create(ctx context.Context, inv *Invoice) error
	ListByCompany(ctx context.Context, companyID string) ([]*Invoice, error)
	ListByCompanyYear(ctx context.Context, companyID string, year int) ([]*Invoice, error)
}

// ExpenseStore manages expense rows.
type ExpenseStore interface {
	Create(ctx context.Context, e *Expense) error
	ListByCompany(ctx context.Context, companyID string) ([]*Expense, error)
	ListByCompanyYear(ctx context.Context, companyID string, year int) ([]*Expense, error)
}

// Service answers tenant-scoped finance reads.
type Service struct {
	store Store
}

// NewService constructs the finance service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("finance store is required")
	}
	return &Service{store: store}, nil
}

// Store exposes the underlying store for seeding in dev mode.
func (s *Service) Store() Store {
	return s.store
}

// ListInvoices returns the tenant's invoices.
func (s *Service) ListInvoices(ctx context.Context, companyID string) ([]*Invoice, error) {
	out, err := s.store.Invoices(ctx).ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

// ListExpenses returns the tenant's expenses.
func (s *Service) ListExpenses(ctx context.Context, companyID string) ([]*Expense, error) {
	out, err := s.store.Expenses(ctx).ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

// BTWSummaryForYear buckets the year's invoices and expenses per quarter
// and nets output VAT against deductible input VAT. Draft invoices do not
// count toward the position.
func (s *Service) BTWSummaryForYear(ctx context.Context, companyID string, year int) (BTWSummary, error) {
	if year < 2000 || year > 2100 {
		return BTWSummary{}, fmt.Errorf("%w: implausible year %d", ErrInvalidInput, year)
	}

	invoices, err := s.store.Invoices(ctx).ListByCompanyYear(ctx, companyID, year)
	if err != nil {
		return BTWSummary{}, fmt.Errorf("list invoices: %w", err)
	}
	expenses, err := s.store.Expenses(ctx).ListByCompanyYear(ctx, companyID, year)
	if err != nil {
		return BTWSummary{}, fmt.Errorf("list expenses: %w", err)
	}

	summary := BTWSummary{CompanyID: companyID, Year: year}
	for i := range summary.Quarters {
		summary.Quarters[i].Quarter = i + 1
	}

	for _, inv := range invoices {
		if inv.Status == InvoiceDraft {
			continue
		}
		q := &summary.Quarters[quarterIndex(inv.IssueDate.Month())]
		q.RevenueCents += inv.AmountExclCents
		q.OutputBTWCents += BTWAmountCents(inv.AmountExclCents, inv.Rate)
	}
	for _, e := range expenses {
		q := &summary.Quarters[quarterIndex(e.Date.Month())]
		q.InputBTWCents += BTWAmountCents(e.AmountExclCents, e.Rate)
	}
	for i := range summary.Quarters {
		q := &summary.Quarters[i]
		q.PayableCents = q.OutputBTWCents - q.InputBTWCents
	}
	return summary, nil
}

func quarterIndex(m time.Month) int {
	return (int(m) - 1) / 3
}
