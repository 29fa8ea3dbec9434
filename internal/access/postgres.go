package access

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

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

func (s *PGStore) Users(ctx context.Context) UserStore { return &pgUsers{db: s.db} }
func (s *PGStore) Companies(ctx context.Context) CompanyStore { return &pgCompanies{db: s.db} }
func (s *PGStore) Invites(ctx context.Context) InviteStore { return &pgInvites{db: s.db} }
func (s *PGStore) Grants(ctx context.Context) GrantStore { return &pgGrants{db: s.db} }

func encodePerms(perms PermissionSet) []byte {
	data, _ := json.Marshal(perms.Keys())
	return data
}

func decodePerms(data []byte) PermissionSet {
	var keys []string
	_ = json.Unmarshal(data, &keys)
	set, err := ParsePermissions(keys)
	if err != nil {
		return PermissionSet{}
	}
	return set
}

// User store ----------------------------------------------------------

type pgUsers struct{ db *sql.DB }

func (s *pgUsers) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, name, role, password_hash, status) values($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Email, u.Name, string(u.Role), u.PasswordHash, u.Status,
	)
	return err
}

func (s *pgUsers) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, name, role, password_hash, status, created_at, updated_at from users where id=$1`, id)
	return scanUser(row)
}

func (s *pgUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, name, role, password_hash, status, created_at, updated_at from users where email=$1`,
		NormalizeEmail(email))
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

// Company store -------------------------------------------------------

type pgCompanies struct{ db *sql.DB }

func (s *pgCompanies) Create(ctx context.Context, c *Company) error {
	_, err := s.db.ExecContext(ctx,
		`insert into companies(id, name, kvk, btw_number) values($1,$2,$3,$4)`,
		c.ID, c.Name, c.KVK, c.BTWNumber,
	)
	return err
}

func (s *pgCompanies) Find(ctx context.Context, id string) (*Company, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, kvk, btw_number, created_at, updated_at from companies where id=$1`, id)
	var c Company
	if err := row.Scan(&c.ID, &c.Name, &c.KVK, &c.BTWNumber, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Invite store --------------------------------------------------------

type pgInvites struct{ db *sql.DB }

func (s *pgInvites) Create(ctx context.Context, inv *AccountantInvite) error {
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into accountant_invites(id, company_id, invited_email, token_hash, status, permissions)
		 values($1,$2,$3,$4,$5,$6)`,
		inv.ID, inv.CompanyID, inv.InvitedEmail, inv.TokenHash, string(inv.Status), encodePerms(inv.Permissions),
	)
	return err
}

func (s *pgInvites) Rotate(ctx context.Context, id, tokenHash string, perms PermissionSet) error {
	res, err := s.db.ExecContext(ctx,
		`update accountant_invites set token_hash=$2, permissions=$3 where id=$1 and status='pending'`,
		id, tokenHash, encodePerms(perms),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgInvites) FindByCompanyEmail(ctx context.Context, companyID, email string) (*AccountantInvite, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, company_id, invited_email, coalesce(accountant_user_id,''), coalesce(token_hash,''), status, permissions, created_at, accepted_at
		 from accountant_invites where company_id=$1 and invited_email=$2`,
		companyID, email)
	return scanInviteFrom(row)
}

func (s *pgInvites) FindPendingByTokenHash(ctx context.Context, tokenHash string) (*AccountantInvite, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, company_id, invited_email, coalesce(accountant_user_id,''), coalesce(token_hash,''), status, permissions, created_at, accepted_at
		 from accountant_invites where token_hash=$1 and status='pending'`,
		tokenHash)
	return scanInviteFrom(row)
}

// Accept relies on a conditional update: only a row still pending with a
// matching token hash is flipped. Concurrent accepts race on that
// predicate and exactly one wins.
func (s *pgInvites) Accept(ctx context.Context, tokenHash, accountantUserID string) (*AccountantInvite, error) {
	row := s.db.QueryRowContext(ctx,
		`update accountant_invites
		 set status='active', accountant_user_id=$2, token_hash=null, accepted_at=now()
		 where token_hash=$1 and status='pending'
		 returning id, company_id, invited_email, coalesce(accountant_user_id,''), coalesce(token_hash,''), status, permissions, created_at, accepted_at`,
		tokenHash, accountantUserID)
	return scanInviteFrom(row)
}

func (s *pgInvites) ListByCompany(ctx context.Context, companyID string) ([]*AccountantInvite, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, company_id, invited_email, coalesce(accountant_user_id,''), coalesce(token_hash,''), status, permissions, created_at, accepted_at
		 from accountant_invites where company_id=$1 order by created_at asc`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AccountantInvite
	for rows.Next() {
		inv, err := scanInviteFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInviteFrom(r rowScanner) (*AccountantInvite, error) {
	var (
		inv        AccountantInvite
		status     string
		perms      []byte
		acceptedAt sql.NullTime
	)
	if err := r.Scan(&inv.ID, &inv.CompanyID, &inv.InvitedEmail, &inv.AccountantUserID, &inv.TokenHash, &status, &perms, &inv.CreatedAt, &acceptedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	inv.Status = InviteStatus(status)
	inv.Permissions = decodePerms(perms)
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	return &inv, nil
}

// Grant store ---------------------------------------------------------

type pgGrants struct{ db *sql.DB }

func (s *pgGrants) Upsert(ctx context.Context, g *AccessGrant) error {
	_, err := s.db.ExecContext(ctx,
		`insert into access_grants(company_id, accountant_user_id, status, permissions)
		 values($1,$2,$3,$4)
		 on conflict (company_id, accountant_user_id) do update
		 set status = excluded.status, permissions = excluded.permissions, updated_at = now()`,
		g.CompanyID, g.AccountantUserID, string(g.Status), encodePerms(g.Permissions),
	)
	return err
}

func (s *pgGrants) Find(ctx context.Context, companyID, accountantUserID string) (*AccessGrant, error) {
	row := s.db.QueryRowContext(ctx,
		`select company_id, accountant_user_id, status, permissions, created_at, updated_at
		 from access_grants where company_id=$1 and accountant_user_id=$2`,
		companyID, accountantUserID)
	return scanGrantFrom(row)
}

func (s *pgGrants) ListByAccountant(ctx context.Context, accountantUserID string) ([]*AccessGrant, error) {
	return s.list(ctx,
		`select company_id, accountant_user_id, status, permissions, created_at, updated_at
		 from access_grants where accountant_user_id=$1 order by created_at asc`,
		accountantUserID)
}

func (s *pgGrants) ListByCompany(ctx context.Context, companyID string) ([]*AccessGrant, error) {
	return s.list(ctx,
		`select company_id, accountant_user_id, status, permissions, created_at, updated_at
		 from access_grants where company_id=$1 order by created_at asc`,
		companyID)
}

func (s *pgGrants) list(ctx context.Context, query string, arg any) ([]*AccessGrant, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AccessGrant
	for rows.Next() {
		g, err := scanGrantFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *pgGrants) UpdateStatus(ctx context.Context, companyID, accountantUserID string, status GrantStatus) error {
	res, err := s.db.ExecContext(ctx,
		`update access_grants set status=$3, updated_at=now() where company_id=$1 and accountant_user_id=$2`,
		companyID, accountantUserID, string(status),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGrantFrom(r rowScanner) (*AccessGrant, error) {
	var (
		g      AccessGrant
		status string
		perms  []byte
	)
	if err := r.Scan(&g.CompanyID, &g.AccountantUserID, &status, &perms, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	g.Status = GrantStatus(status)
	g.Permissions = decodePerms(perms)
	return &g, nil
}
