package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"boekie.app/internal/access"
	"boekie.app/internal/ids"
)

// Cookie names for the two session kinds.
const (
	PrimaryCookie   = "boekie_session"
	DelegatedCookie = "boekie_accountant_session"
)

const defaultSessionTTL = 12 * time.Hour

// Manager issues and resolves sessions.
type Manager struct {
	sessions   Store
	access     *access.Service
	signingKey []byte
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// Option configures Manager behavior.
type Option func(*Manager)

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithInsecureCookies disables the Secure cookie attribute for local dev.
func WithInsecureCookies() Option {
	return func(m *Manager) {
		m.secure = false
	}
}

// NewManager constructs a session manager. The signing key protects the
// cookie envelope only; the server-side record stays authoritative.
func NewManager(sessions Store, acc *access.Service, signingKey []byte, opts ...Option) (*Manager, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if acc == nil {
		return nil, errors.New("access service is required")
	}
	if len(signingKey) < 32 {
		return nil, errors.New("signing key must be at least 32 bytes")
	}
	m := &Manager{
		sessions:   sessions,
		access:     acc,
		signingKey: signingKey,
		ttl:        defaultSessionTTL,
		secure:     true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Login authenticates primary credentials and opens a primary session.
func (m *Manager) Login(ctx context.Context, email, password string) (string, *Session, error) {
	user, err := m.authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	return m.open(ctx, user.ID, KindPrimary)
}

// LoginDelegated authenticates an accountant and opens a delegated
// session. Only accountant-class roles may hold one; the session starts
// with no active company, which authorizes nothing until a switch.
func (m *Manager) LoginDelegated(ctx context.Context, email, password string) (string, *Session, error) {
	user, err := m.authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	if access.Classify(user.Role) != access.ClassAccountant {
		return "", nil, access.ErrForbidden
	}
	return m.open(ctx, user.ID, KindDelegated)
}

func (m *Manager) authenticate(ctx context.Context, email, password string) (*access.User, error) {
	email = access.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, access.ErrUnauthenticated
	}
	user, err := m.access.Store().Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, access.ErrNotFound) {
			return nil, access.ErrUnauthenticated
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.Status != access.UserStatusActive {
		return nil, access.ErrUnauthenticated
	}
	if err := access.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, access.ErrUnauthenticated
	}
	return user, nil
}

func (m *Manager) open(ctx context.Context, userID string, kind Kind) (string, *Session, error) {
	now := m.now().UTC()
	s := &Session{
		ID:        ids.New(),
		UserID:    userID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	token, err := m.signEnvelope(s)
	if err != nil {
		return "", nil, fmt.Errorf("sign session envelope: %w", err)
	}
	return token, s, nil
}

// Resolve turns a request's cookies into a Principal.
//
// Precedence rule: a request carrying the delegated-session cookie is an
// accountant-context request and the delegated session wins; otherwise
// the primary session is used. This is the single rule for the whole
// service; no endpoint gets its own ordering.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (access.Principal, *Session, error) {
	if c, err := r.Cookie(DelegatedCookie); err == nil && c.Value != "" {
		return m.resolveCookie(ctx, c.Value, KindDelegated)
	}
	if c, err := r.Cookie(PrimaryCookie); err == nil && c.Value != "" {
		return m.resolveCookie(ctx, c.Value, KindPrimary)
	}
	return access.Principal{}, nil, access.ErrUnauthenticated
}

func (m *Manager) resolveCookie(ctx context.Context, token string, want Kind) (access.Principal, *Session, error) {
	sid, kind, err := m.parseEnvelope(token)
	if err != nil || kind != want {
		return access.Principal{}, nil, access.ErrUnauthenticated
	}
	s, err := m.sessions.Find(ctx, sid)
	if err != nil {
		if errors.Is(err, access.ErrNotFound) {
			return access.Principal{}, nil, access.ErrUnauthenticated
		}
		return access.Principal{}, nil, fmt.Errorf("find session: %w", err)
	}
	if s.Kind != want || m.now().After(s.ExpiresAt) {
		return access.Principal{}, nil, access.ErrUnauthenticated
	}
	user, err := m.access.Store().Users(ctx).Find(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, access.ErrNotFound) {
			return access.Principal{}, nil, access.ErrUnauthenticated
		}
		return access.Principal{}, nil, fmt.Errorf("find user: %w", err)
	}
	if user.Status != access.UserStatusActive {
		return access.Principal{}, nil, access.ErrUnauthenticated
	}
	p := access.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Delegated: s.Kind == KindDelegated,
	}
	return p, s, nil
}

// SwitchActiveCompany records the delegated session's active client
// company after verifying an active grant through the tenant resolver.
func (m *Manager) SwitchActiveCompany(ctx context.Context, p access.Principal, s *Session, companyID string) error {
	if s == nil || s.Kind != KindDelegated {
		return access.ErrForbidden
	}
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return fmt.Errorf("%w: company id is required", access.ErrInvalidInput)
	}
	if _, err := m.access.Resolve(ctx, p, companyID); err != nil {
		return err
	}
	if err := m.sessions.SetActiveCompany(ctx, s.ID, companyID); err != nil {
		return fmt.Errorf("set active company: %w", err)
	}
	s.ActiveCompanyID = companyID
	return nil
}

// ClearActiveCompany reverts a delegated session to no selection.
func (m *Manager) ClearActiveCompany(ctx context.Context, s *Session) error {
	if s == nil || s.Kind != KindDelegated {
		return access.ErrForbidden
	}
	if err := m.sessions.ClearActiveCompany(ctx, s.ID); err != nil {
		return fmt.Errorf("clear active company: %w", err)
	}
	s.ActiveCompanyID = ""
	return nil
}

// Logout removes the session record; the cookie envelope is useless
// afterwards no matter who still holds it.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	if err := m.sessions.Delete(ctx, s.ID); err != nil && !errors.Is(err, access.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Cookie builds the http.Cookie carrying a session envelope.
func (m *Manager) Cookie(kind Kind, token string, expires time.Time) *http.Cookie {
	name := PrimaryCookie
	if kind == KindDelegated {
		name = DelegatedCookie
	}
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds the clearing counterpart of Cookie.
func (m *Manager) ExpiredCookie(kind Kind) *http.Cookie {
	c := m.Cookie(kind, "", time.Unix(0, 0))
	c.MaxAge = -1
	return c
}

func (m *Manager) signEnvelope(s *Session) (string, error) {
	claims := jwt.MapClaims{
		"sid":  s.ID,
		"kind": string(s.Kind),
		"iat":  s.CreatedAt.Unix(),
		"exp":  s.ExpiresAt.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
}

func (m *Manager) parseEnvelope(token string) (sid string, kind Kind, err error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", "", access.ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", access.ErrUnauthenticated
	}
	sid, _ = claims["sid"].(string)
	rawKind, _ := claims["kind"].(string)
	if sid == "" || (rawKind != string(KindPrimary) && rawKind != string(KindDelegated)) {
		return "", "", access.ErrUnauthenticated
	}
	return sid, Kind(rawKind), nil
}
