package finance

import (
	"context"
	"sort"
	"sync"

	"boekie.app/internal/ids"
)

// MemStore implements Store in memory, for tests and dev mode.
type MemStore struct {
	mu       sync.RWMutex
	invoices map[string]*Invoice
	expenses map[string]*Expense
}

// NewMemStore creates an empty in-memory finance store.
func NewMemStore() *MemStore {
	return &MemStore{
		invoices: make(map[string]*Invoice),
		expenses: make(map[string]*Expense),
	}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Invoices(ctx context.Context) InvoiceStore { return (*memInvoices)(m) }
func (m *MemStore) Expenses(ctx context.Context) ExpenseStore { return (*memExpenses)(m) }

type memInvoices MemStore

func (m *memInvoices) Create(ctx context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memInvoices) ListByCompany(ctx context.Context, companyID string) ([]*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.CompanyID == companyID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueDate.Before(out[j].IssueDate) })
	return out, nil
}

func (m *memInvoices) ListByCompanyYear(ctx context.Context, companyID string, year int) ([]*Invoice, error) {
	all, err := m.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var out []*Invoice
	for _, inv := range all {
		if inv.IssueDate.Year() == year {
			out = append(out, inv)
		}
	}
	return out, nil
}

type memExpenses MemStore

func (m *memExpenses) Create(ctx context.Context, e *Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = ids.New()
	}
	cp := *e
	m.expenses[e.ID] = &cp
	return nil
}

func (m *memExpenses) ListByCompany(ctx context.Context, companyID string) ([]*Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Expense
	for _, e := range m.expenses {
		if e.CompanyID == companyID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memExpenses) ListByCompanyYear(ctx context.Context, companyID string, year int) ([]*Expense, error) {
	all, err := m.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var out []*Expense
	for _, e := range all {
		if e.Date.Year() == year {
			out = append(out, e)
		}
	}
	return out, nil
}
