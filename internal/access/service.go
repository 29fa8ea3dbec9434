package access

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"boekie.app/internal/ids"
	"boekie.app/internal/obs"
)

// Service provides the tenant isolation and delegated-access operations.
// Every decision re-reads grant state; nothing is cached between requests,
// so a revocation is visible on the very next resolution.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the access service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("access store is required")
	}
	svc := &Service{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Store exposes the underlying store for wiring collaborating services.
func (s *Service) Store() Store {
	return s.store
}

// NormalizeEmail lower-cases and trims an address; the empty result maps
// to ErrInvalidInput at the call sites.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Resolve is the authorization decision point. Every downstream data
// operation must call it and filter on the returned CompanyID; a
// client-supplied company id is never trusted directly.
//
// Role class is evaluated first (superadmin, then owner, then delegate),
// so superadmin and owner decisions never touch the grant store. Every
// denial is the same ErrForbidden regardless of cause, so a malicious
// accountant cannot enumerate valid company ids.
func (s *Service) Resolve(ctx context.Context, p Principal, requestedCompanyID string) (TenantContext, error) {
	requestedCompanyID = strings.TrimSpace(requestedCompanyID)

	switch Classify(p.Role) {
	case ClassSuperadmin:
		if requestedCompanyID == "" {
			obs.ObserveAuthzDecision("superadmin_no_selection")
			return s.tenantContext(p, p.UserID, FullAccess()), nil
		}
		obs.ObserveAuthzDecision("superadmin_explicit")
		return s.tenantContext(p, requestedCompanyID, FullAccess()), nil

	case ClassOwner:
		if requestedCompanyID == "" || requestedCompanyID == p.UserID {
			obs.ObserveAuthzDecision("owner_self")
			return s.tenantContext(p, p.UserID, FullAccess()), nil
		}
		obs.ObserveAuthzDecision("owner_forbidden")
		return TenantContext{}, ErrForbidden

	case ClassAccountant:
		if requestedCompanyID == "" {
			obs.ObserveAuthzDecision("delegate_forbidden")
			return TenantContext{}, ErrForbidden
		}
		grant, err := s.store.Grants(ctx).Find(ctx, requestedCompanyID, p.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				obs.ObserveAuthzDecision("delegate_forbidden")
				return TenantContext{}, ErrForbidden
			}
			return TenantContext{}, fmt.Errorf("find grant: %w", err)
		}
		if grant.Status != GrantActive {
			obs.ObserveAuthzDecision("delegate_forbidden")
			return TenantContext{}, ErrForbidden
		}
		obs.ObserveAuthzDecision("delegate_granted")
		return s.tenantContext(p, requestedCompanyID, grant.Permissions), nil

	default:
		obs.ObserveAuthzDecision("unknown_role")
		return TenantContext{}, ErrForbidden
	}
}

func (s *Service) tenantContext(p Principal, companyID string, perms PermissionSet) TenantContext {
	return TenantContext{
		CompanyID:           companyID,
		UserID:              companyID,
		AuthenticatedUserID: p.UserID,
		Role:                p.Role,
		Permissions:         perms,
	}
}

// CreatedInvite is the result of CreateInvite. Token is the plaintext
// bearer token, exposed exactly once for out-of-band delivery.
type CreatedInvite struct {
	Token  string
	Invite AccountantInvite
}

// CreateInvite validates and normalizes the target email, then issues or
// rotates a pending invite. Re-inviting an active pairing fails with
// ErrAlreadyAccepted; re-inviting a pending one rotates the token, so the
// previous token stops working and exactly one pending record remains.
func (s *Service) CreateInvite(ctx context.Context, companyID, invitedEmail string, permissions []string) (CreatedInvite, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return CreatedInvite{}, fmt.Errorf("%w: company id is required", ErrInvalidInput)
	}
	email := NormalizeEmail(invitedEmail)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return CreatedInvite{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	perms, err := ParsePermissions(permissions)
	if err != nil {
		return CreatedInvite{}, fmt.Errorf("%w: unsupported permission set", ErrInvalidInput)
	}

	token, tokenHash, err := newInviteToken()
	if err != nil {
		return CreatedInvite{}, fmt.Errorf("generate token: %w", err)
	}

	invites := s.store.Invites(ctx)
	existing, err := invites.FindByCompanyEmail(ctx, companyID, email)
	switch {
	case err == nil && existing.Status == InviteActive:
		return CreatedInvite{}, ErrAlreadyAccepted
	case err == nil && existing.Status == InvitePending:
		if err := invites.Rotate(ctx, existing.ID, tokenHash, perms); err != nil {
			return CreatedInvite{}, fmt.Errorf("rotate invite: %w", err)
		}
		inv := *existing
		inv.TokenHash = tokenHash
		inv.Permissions = perms
		return CreatedInvite{Token: token, Invite: inv}, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return CreatedInvite{}, fmt.Errorf("find invite: %w", err)
	}

	inv := AccountantInvite{
		ID:           ids.New(),
		CompanyID:    companyID,
		InvitedEmail: email,
		TokenHash:    tokenHash,
		Status:       InvitePending,
		Permissions:  perms,
		CreatedAt:    s.now().UTC(),
	}
	if err := invites.Create(ctx, &inv); err != nil {
		return CreatedInvite{}, fmt.Errorf("create invite: %w", err)
	}
	return CreatedInvite{Token: token, Invite: inv}, nil
}

// AcceptInvite consumes a bearer token and establishes the access grant.
// The token is single-use: the status flip and token clear are one
// conditional write, so a replay or a concurrent second accept fails with
// ErrInvalidToken. The accepting account's email must match the invite.
func (s *Service) AcceptInvite(ctx context.Context, token, acceptingUserID, acceptingEmail string) (AccessGrant, error) {
	token = strings.TrimSpace(token)
	acceptingUserID = strings.TrimSpace(acceptingUserID)
	if token == "" || acceptingUserID == "" {
		return AccessGrant{}, ErrInvalidToken
	}
	tokenHash := HashToken(token)

	invites := s.store.Invites(ctx)
	inv, err := invites.FindPendingByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AccessGrant{}, ErrInvalidToken
		}
		return AccessGrant{}, fmt.Errorf("find invite: %w", err)
	}
	if inv.InvitedEmail != NormalizeEmail(acceptingEmail) {
		return AccessGrant{}, ErrEmailMismatch
	}

	accepted, err := invites.Accept(ctx, tokenHash, acceptingUserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AccessGrant{}, ErrInvalidToken
		}
		return AccessGrant{}, fmt.Errorf("accept invite: %w", err)
	}

	grant := AccessGrant{
		CompanyID:        accepted.CompanyID,
		AccountantUserID: acceptingUserID,
		Status:           GrantActive,
		Permissions:      accepted.Permissions,
		CreatedAt:        s.now().UTC(),
		UpdatedAt:        s.now().UTC(),
	}
	if err := s.store.Grants(ctx).Upsert(ctx, &grant); err != nil {
		return AccessGrant{}, fmt.Errorf("upsert grant: %w", err)
	}
	return grant, nil
}

// ListForAccountant returns the companies where the accountant holds an
// active grant, with display names for the client picker.
func (s *Service) ListForAccountant(ctx context.Context, accountantUserID string) ([]ClientCompany, error) {
	grants, err := s.store.Grants(ctx).ListByAccountant(ctx, accountantUserID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	companies := s.store.Companies(ctx)
	out := make([]ClientCompany, 0, len(grants))
	for _, g := range grants {
		if g.Status != GrantActive {
			continue
		}
		name := ""
		if c, err := companies.Find(ctx, g.CompanyID); err == nil {
			name = c.Name
		}
		out = append(out, ClientCompany{
			CompanyID:   g.CompanyID,
			CompanyName: name,
			Permissions: g.Permissions,
		})
	}
	return out, nil
}

// ListForCompany returns every grant for the owner's review, any status.
func (s *Service) ListForCompany(ctx context.Context, companyID string) ([]*AccessGrant, error) {
	grants, err := s.store.Grants(ctx).ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

// ListInvitesForCompany returns the company's invites, any status.
func (s *Service) ListInvitesForCompany(ctx context.Context, companyID string) ([]*AccountantInvite, error) {
	invs, err := s.store.Invites(ctx).ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return invs, nil
}

// AccessFor returns the grant for the pairing, or ErrNotFound. A grant
// existing is not itself authorization; callers must check the status.
func (s *Service) AccessFor(ctx context.Context, accountantUserID, companyID string) (*AccessGrant, error) {
	grant, err := s.store.Grants(ctx).Find(ctx, companyID, accountantUserID)
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// Revoke flips a grant to revoked. The next resolution for the pairing is
// denied; there is no grace period.
func (s *Service) Revoke(ctx context.Context, companyID, accountantUserID string) error {
	if err := s.store.Grants(ctx).UpdateStatus(ctx, companyID, accountantUserID, GrantRevoked); err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	return nil
}

// HashToken derives the stored form of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newInviteToken() (token, tokenHash string, err error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(secret)
	return token, HashToken(token), nil
}
