package access

import "context"

// Store describes persistence operations required by the access subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Companies(ctx context.Context) CompanyStore
	Invites(ctx context.Context) InviteStore
	Grants(ctx context.Context) GrantStore
}

// UserStore manages accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// CompanyStore manages tenant profiles.
type CompanyStore interface {
	Create(ctx context.Context, c *Company) error
	Find(ctx context.Context, id string) (*Company, error)
}

// InviteStore manages the accountant invite lifecycle.
type InviteStore interface {
	Create(ctx context.Context, inv *AccountantInvite) error
	// Rotate replaces the token hash and permissions of a pending invite,
	// keeping it the single live pending record for its (company, email).
	Rotate(ctx context.Context, id, tokenHash string, perms PermissionSet) error
	FindByCompanyEmail(ctx context.Context, companyID, email string) (*AccountantInvite, error)
	FindPendingByTokenHash(ctx context.Context, tokenHash string) (*AccountantInvite, error)
	// Accept atomically flips a pending invite to active, binds the
	// accepting user and clears the token hash. The status check and the
	// flip are one conditional write: of two concurrent accepts exactly
	// one observes the pending row. Returns ErrInvalidToken when the
	// conditional write matches nothing.
	Accept(ctx context.Context, tokenHash, accountantUserID string) (*AccountantInvite, error)
	ListByCompany(ctx context.Context, companyID string) ([]*AccountantInvite, error)
}

// GrantStore manages durable accountant-company grants.
type GrantStore interface {
	// Upsert creates the grant or reactivates an existing (possibly
	// revoked) pairing with the given permissions.
	Upsert(ctx context.Context, g *AccessGrant) error
	Find(ctx context.Context, companyID, accountantUserID string) (*AccessGrant, error)
	ListByAccountant(ctx context.Context, accountantUserID string) ([]*AccessGrant, error)
	ListByCompany(ctx context.Context, companyID string) ([]*AccessGrant, error)
	UpdateStatus(ctx context.Context, companyID, accountantUserID string, status GrantStatus) error
}
