package finance

import (
	"context"
	"database/sql"

	"boekie.app/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Invoices(ctx context.Context) InvoiceStore { return &pgInvoices{db: s.db} }
func (s *PGStore) Expenses(ctx context.Context) ExpenseStore { return &pgExpenses{db: s.db} }

type pgInvoices struct{ db *sql.DB }

func (s *pgInvoices) Create(ctx context.Context, inv *Invoice) error {
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into invoices(id, company_id, number, client_name, issue_date, amount_excl_cents, btw_rate, status)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		inv.ID, inv.CompanyID, inv.Number, inv.ClientName, inv.IssueDate, inv.AmountExclCents, int(inv.Rate), inv.Status,
	)
	return err
}

func (s *pgInvoices) ListByCompany(ctx context.Context, companyID string) ([]*Invoice, error) {
	return s.list(ctx,
		`select id, company_id, number, client_name, issue_date, amount_excl_cents, btw_rate, status
		 from invoices where company_id=$1 order by issue_date asc`,
		companyID)
}

func (s *pgInvoices) ListByCompanyYear(ctx context.Context, companyID string, year int) ([]*Invoice, error) {
	return s.list(ctx,
		`select id, company_id, number, client_name, issue_date, amount_excl_cents, btw_rate, status
		 from invoices where company_id=$1 and extract(year from issue_date)=$2 order by issue_date asc`,
		companyID, year)
}

func (s *pgInvoices) list(ctx context.Context, query string, args ...any) ([]*Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Invoice
	for rows.Next() {
		var (
			inv  Invoice
			rate int
		)
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.Number, &inv.ClientName, &inv.IssueDate, &inv.AmountExclCents, &rate, &inv.Status); err != nil {
			return nil, err
		}
		inv.Rate = BTWRate(rate)
		out = append(out, &inv)
	}
	return out, rows.Err()
}

type pgExpenses struct{ db *sql.DB }

func (s *pgExpenses) Create(ctx context.Context, e *Expense) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into expenses(id, company_id, supplier, booked_at, amount_excl_cents, btw_rate, category)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.CompanyID, e.Supplier, e.Date, e.AmountExclCents, int(e.Rate), e.Category,
	)
	return err
}

func (s *pgExpenses) ListByCompany(ctx context.Context, companyID string) ([]*Expense, error) {
	return s.list(ctx,
		`select id, company_id, supplier, booked_at, amount_excl_cents, btw_rate, category
		 from expenses where company_id=$1 order by booked_at asc`,
		companyID)
}

func (s *pgExpenses) ListByCompanyYear(ctx context.Context, companyID string, year int) ([]*Expense, error) {
	return s.list(ctx,
		`select id, company_id, supplier, booked_at, amount_excl_cents, btw_rate, category
		 from expenses where company_id=$1 and extract(year from booked_at)=$2 order by booked_at asc`,
		companyID, year)
}

func (s *pgExpenses) list(ctx context.Context, query string, args ...any) ([]*Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Expense
	for rows.Next() {
		var (
			e    Expense
			rate int
		)
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Supplier, &e.Date, &e.AmountExclCents, &rate, &e.Category); err != nil {
			return nil, err
		}
		e.Rate = BTWRate(rate)
		out = append(out, &e)
	}
	return out, rows.Err()
}
