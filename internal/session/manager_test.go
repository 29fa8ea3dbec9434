package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boekie.app/internal/access"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, opts ...Option) (*Manager, *access.MemStore) {
	t.Helper()
	store := access.NewMemStore()
	acc, err := access.NewService(store)
	if err != nil {
		t.Fatalf("access.NewService: %v", err)
	}
	mgr, err := NewManager(NewMemStore(), acc, testKey, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr, store
}

func seedUser(t *testing.T, store *access.MemStore, id, email string, role access.Role) {
	t.Helper()
	hash, err := access.HashPassword("geheim123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	err = store.Users(context.Background()).Create(context.Background(), &access.User{
		ID:           id,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		Status:       access.UserStatusActive,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func requestWithCookie(name, value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: name, Value: value})
	return r
}

func TestLoginAndResolvePrimary(t *testing.T) {
	mgr, store := newTestManager(t)
	seedUser(t, store, "u1", "jan@example.com", access.RoleZZP)

	token, sess, err := mgr.Login(context.Background(), "Jan@Example.com", "geheim123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Kind != KindPrimary {
		t.Fatalf("expected primary session, got %s", sess.Kind)
	}

	p, resolved, err := mgr.Resolve(context.Background(), requestWithCookie(PrimaryCookie, token))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.UserID != "u1" || p.Role != access.RoleZZP || p.Delegated {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if resolved.ID != sess.ID {
		t.Fatalf("resolved wrong session")
	}
}

func TestLoginBadCredentials(t *testing.T) {
	mgr, store := newTestManager(t)
	seedUser(t, store, "u1", "jan@example.com", access.RoleZZP)

	cases := []struct{ email, password string }{
		{"jan@example.com", "wrong"},
		{"nobody@example.com", "geheim123"},
		{"", ""},
	}
	for _, c := range cases {
		if _, _, err := mgr.Login(context.Background(), c.email, c.password); !errors.Is(err, access.ErrUnauthenticated) {
			t.Fatalf("login(%q): expected ErrUnauthenticated, got %v", c.email, err)
		}
	}
}

func TestLoginDelegatedRequiresAccountantRole(t *testing.T) {
	mgr, store := newTestManager(t)
	seedUser(t, store, "u1", "owner@example.com", access.RoleZZP)
	seedUser(t, store, "a1", "acct@example.com", access.RoleAccountantView)

	if _, _, err := mgr.LoginDelegated(context.Background(), "owner@example.com", "geheim123"); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("owner must not open a delegated session, got %v", err)
	}

	_, sess, err := mgr.LoginDelegated(context.Background(), "acct@example.com", "geheim123")
	if err != nil {
		t.Fatalf("LoginDelegated: %v", err)
	}
	if sess.Kind != KindDelegated || sess.ActiveCompanyID != "" {
		t.Fatalf("delegated session must start without a selection: %+v", sess)
	}
}

func TestDelegatedCookieTakesPrecedence(t *testing.T) {
	mgr, store := newTestManager(t)
	seedUser(t, store, "a1", "acct@example.com", access.RoleAccountantEdit)

	primaryToken, _, err := mgr.Login(context.Background(), "acct@example.com", "geheim123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	delegatedToken, _, err := mgr.LoginDelegated(context.Background(), "acct@example.com", "geheim123")
	if err != nil {
		t.Fatalf("LoginDelegated: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: PrimaryCookie, Value: primaryToken})
	r.AddCookie(&http.Cookie{Name: DelegatedCookie, Value: delegatedToken})

	p, sess, err := mgr.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !p.Delegated || sess.Kind != KindDelegated {
		t.Fatalf("delegated cookie must win, got principal=%+v kind=%s", p, sess.Kind)
	}
}

func TestCookieKindCannotBeSwapped(t *testing.T) {
	mgr, store := newTestManager(t)
	seedUser(t, store, "a1", "acct@example.com", access.RoleAccountantView)

	primaryToken, _, err := mgr.Login(context.Background(), "acct@example.com", "geheim123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// A primary envelope presented in the delegated cookie is rejected.
	_, _, err = mgr.Resolve(context.Background(), requestWithCookie(DelegatedCookie, primaryToken))
	if !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveExpiredSession(t *testing.T) {
	current := time.Now()
	mgr, store := newTestManager(t, WithClock(func() time.Time { return current }), WithTTL(time.Hour))
	seedUser(t, store, "u1", "jan@example.com", access.RoleZZP)

	token, _, err := mgr.Login(context.Background(), "jan@example.com", "geheim123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, _, err := mgr.Resolve(context.Background(), requestWithCookie(PrimaryCookie, token)); !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired session, got %v", err)
	}
}

func TestResolveTamperedEnvelope(t *testing.T) {
	mgr, store := newTestManager(t)
	seedUser(t, store, "u1", "jan@example.com", access.RoleZZP)

	token, _, err := mgr.Login(context.Background(), "jan@example.com", "geheim123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, _, err := mgr.Resolve(context.Background(), requestWithCookie(PrimaryCookie, tampered)); !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for tampered token, got %v", err)
	}
}

func TestSwitchActiveCompany(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()
	seedUser(t, store, "a1", "acct@example.com", access.RoleAccountantEdit)

	if err := store.Grants(ctx).Upsert(ctx, &access.AccessGrant{
		CompanyID:        "u1",
		AccountantUserID: "a1",
		Status:           access.GrantActive,
		Permissions:      access.FullAccess(),
	}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	token, sess, err := mgr.LoginDelegated(ctx, "acct@example.com", "geheim123")
	if err != nil {
		t.Fatalf("LoginDelegated: %v", err)
	}
	p, sess, err := mgr.Resolve(ctx, requestWithCookie(DelegatedCookie, token))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// No grant for u2: switch is refused.
	if err := mgr.SwitchActiveCompany(ctx, p, sess, "u2"); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for ungranted switch, got %v", err)
	}

	if err := mgr.SwitchActiveCompany(ctx, p, sess, "u1"); err != nil {
		t.Fatalf("SwitchActiveCompany: %v", err)
	}

	_, resolved, err := mgr.Resolve(ctx, requestWithCookie(DelegatedCookie, token))
	if err != nil {
		t.Fatalf("Resolve after switch: %v", err)
	}
	if resolved.ActiveCompanyID != "u1" {
		t.Fatalf("active company not recorded: %+v", resolved)
	}

	if err := mgr.ClearActiveCompany(ctx, resolved); err != nil {
		t.Fatalf("ClearActiveCompany: %v", err)
	}
	_, resolved, err = mgr.Resolve(ctx, requestWithCookie(DelegatedCookie, token))
	if err != nil {
		t.Fatalf("Resolve after clear: %v", err)
	}
	if resolved.ActiveCompanyID != "" {
		t.Fatalf("active company not cleared: %+v", resolved)
	}
}

func TestSwitchOnPrimarySessionForbidden(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()
	seedUser(t, store, "u1", "jan@example.com", access.RoleZZP)

	token, _, err := mgr.Login(ctx, "jan@example.com", "geheim123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	p, sess, err := mgr.Resolve(ctx, requestWithCookie(PrimaryCookie, token))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := mgr.SwitchActiveCompany(ctx, p, sess, "u1"); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()
	seedUser(t, store, "u1", "jan@example.com", access.RoleZZP)

	token, sess, err := mgr.Login(ctx, "jan@example.com", "geheim123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := mgr.Logout(ctx, sess); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := mgr.Resolve(ctx, requestWithCookie(PrimaryCookie, token)); !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after logout, got %v", err)
	}
}
