package session

import (
	"context"
	"database/sql"
	"errors"

	"boekie.app/internal/access"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, user_id, kind, active_company_id, created_at, expires_at)
		 values($1,$2,$3,nullif($4,''),$5,$6)`,
		sess.ID, sess.UserID, string(sess.Kind), sess.ActiveCompanyID, sess.CreatedAt, sess.ExpiresAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, kind, coalesce(active_company_id,''), created_at, expires_at
		 from sessions where id=$1`, id)
	var (
		sess Session
		kind string
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &kind, &sess.ActiveCompanyID, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, access.ErrNotFound
		}
		return nil, err
	}
	sess.Kind = Kind(kind)
	return &sess, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from sessions where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) SetActiveCompany(ctx context.Context, id, companyID string) error {
	res, err := s.db.ExecContext(ctx,
		`update sessions set active_company_id=$2 where id=$1 and kind='delegated'`, id, companyID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) ClearActiveCompany(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update sessions set active_company_id=null where id=$1 and kind='delegated'`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return access.ErrNotFound
	}
	return nil
}
