package access

import (
	"sort"
	"strings"
	"time"
)

// Role is the persisted account role. The set is closed.
type Role string

const (
	RoleCompanyAdmin   Role = "company_admin"
	RoleZZP            Role = "zzp"
	RoleStaff          Role = "staff"
	RoleSuperadmin     Role = "superadmin"
	RoleAccountantView Role = "accountant_view"
	RoleAccountantEdit Role = "accountant_edit"
)

// RoleClass collapses the persisted roles into the three classes the
// tenant resolver actually branches on. There is no persisted
// "accountant" role; staff and both accountant roles act as delegates.
type RoleClass int

const (
	ClassUnknown RoleClass = iota
	ClassOwner
	ClassAccountant
	ClassSuperadmin
)

// Classify maps a persisted role onto its resolver class.
func Classify(r Role) RoleClass {
	switch r {
	case RoleCompanyAdmin, RoleZZP:
		return ClassOwner
	case RoleStaff, RoleAccountantView, RoleAccountantEdit:
		return ClassAccountant
	case RoleSuperadmin:
		return ClassSuperadmin
	default:
		return ClassUnknown
	}
}

func (c RoleClass) String() string {
	switch c {
	case ClassOwner:
		return "owner"
	case ClassAccountant:
		return "accountant"
	case ClassSuperadmin:
		return "superadmin"
	default:
		return "unknown"
	}
}

// Permission is a capability an accountant can be granted on a client company.
type Permission string

const (
	PermRead   Permission = "read"
	PermEdit   Permission = "edit"
	PermExport Permission = "export"
	PermVAT    Permission = "vat"
)

// PermissionSet is a set over the closed permission alphabet.
type PermissionSet map[Permission]struct{}

// FullAccess returns a set containing every permission.
func FullAccess() PermissionSet {
	return PermissionSet{PermRead: {}, PermEdit: {}, PermExport: {}, PermVAT: {}}
}

// ParsePermissions builds a set from raw strings, rejecting unknown keys.
func ParsePermissions(keys []string) (PermissionSet, error) {
	if len(keys) == 0 {
		return nil, ErrInvalidInput
	}
	set := make(PermissionSet, len(keys))
	for _, k := range keys {
		p := Permission(strings.TrimSpace(strings.ToLower(k)))
		switch p {
		case PermRead, PermEdit, PermExport, PermVAT:
			set[p] = struct{}{}
		default:
			return nil, ErrInvalidInput
		}
	}
	return set, nil
}

// Has reports set membership.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Keys returns the sorted string form, used for storage and transport.
func (s PermissionSet) Keys() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

// User is an authenticated account. Owner accounts double as the tenant
// key: a company's data set is keyed by its owning user's id.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Company holds the tenant profile. ID equals the owning user's id.
type Company struct {
	ID        string
	Name      string
	KVK       string
	BTWNumber string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Principal is the resolved identity for one request. It is built fresh
// from session state and threaded through context; it is never persisted
// and never mutated after construction.
type Principal struct {
	UserID    string
	Email     string
	Role      Role
	Delegated bool
}

// InviteStatus tracks the accountant invite lifecycle. Invites are never
// hard-deleted, only status-transitioned.
type InviteStatus string

const (
	InvitePending InviteStatus = "pending"
	InviteActive  InviteStatus = "active"
)

// AccountantInvite is a pending or resolved invitation from a company to
// an accountant email. Only the token hash is stored; the plaintext is
// returned once at creation and never again.
type AccountantInvite struct {
	ID               string
	CompanyID        string
	InvitedEmail     string
	AccountantUserID string
	TokenHash        string
	Status           InviteStatus
	Permissions      PermissionSet
	CreatedAt        time.Time
	AcceptedAt       *time.Time
}

// GrantStatus tracks a grant's lifecycle.
type GrantStatus string

const (
	GrantActive  GrantStatus = "active"
	GrantRevoked GrantStatus = "revoked"
)

// AccessGrant is the durable record permitting one accountant access to
// one company. A revoked grant never authorizes access.
type AccessGrant struct {
	CompanyID        string
	AccountantUserID string
	Status           GrantStatus
	Permissions      PermissionSet
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ClientCompany is a grant joined with the company profile, for the
// accountant's client picker.
type ClientCompany struct {
	CompanyID   string
	CompanyName string
	Permissions PermissionSet
}

// TenantContext is the authorization decision for one request. CompanyID
// is the only company id downstream queries may filter on. UserID equals
// CompanyID because the owning user id is the tenant's key.
type TenantContext struct {
	CompanyID           string
	UserID              string
	AuthenticatedUserID string
	Role                Role
	Permissions         PermissionSet
}
