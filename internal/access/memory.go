package access

import (
	"context"
	"sync"
	"time"

	"boekie.app/internal/ids"
)

// MemStore implements Store with in-process concurrency safety. It backs
// tests and the DSN-less dev mode of cmd/api.
type MemStore struct {
	mu        sync.RWMutex
	users     map[string]*User
	usersByE  map[string]string
	companies map[string]*Company
	invites   map[string]*AccountantInvite
	grants    map[string]*AccessGrant // key: companyID + "/" + accountantUserID
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:     make(map[string]*User),
		usersByE:  make(map[string]string),
		companies: make(map[string]*Company),
		invites:   make(map[string]*AccountantInvite),
		grants:    make(map[string]*AccessGrant),
	}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Users(ctx context.Context) UserStore { return (*memUsers)(m) }
func (m *MemStore) Companies(ctx context.Context) CompanyStore { return (*memCompanies)(m) }
func (m *MemStore) Invites(ctx context.Context) InviteStore { return (*memInvites)(m) }
func (m *MemStore) Grants(ctx context.Context) GrantStore { return (*memGrants)(m) }

func grantKey(companyID, accountantUserID string) string {
	return companyID + "/" + accountantUserID
}

// Users ---------------------------------------------------------------

type memUsers MemStore

func (m *memUsers) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	if _, ok := m.usersByE[u.Email]; ok {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[u.ID] = &cp
	m.usersByE[u.Email] = u.ID
	return nil
}

func (m *memUsers) Find(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByE[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

// Companies -----------------------------------------------------------

type memCompanies MemStore

func (m *memCompanies) Create(ctx context.Context, c *Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.companies[c.ID]; ok {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	m.companies[c.ID] = &cp
	return nil
}

func (m *memCompanies) Find(ctx context.Context, id string) (*Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Invites -------------------------------------------------------------

type memInvites MemStore

func (m *memInvites) Create(ctx context.Context, inv *AccountantInvite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	cp := *inv
	m.invites[inv.ID] = &cp
	return nil
}

func (m *memInvites) Rotate(ctx context.Context, id, tokenHash string, perms PermissionSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[id]
	if !ok || inv.Status != InvitePending {
		return ErrNotFound
	}
	inv.TokenHash = tokenHash
	inv.Permissions = perms
	return nil
}

func (m *memInvites) FindByCompanyEmail(ctx context.Context, companyID, email string) (*AccountantInvite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invites {
		if inv.CompanyID == companyID && inv.InvitedEmail == email {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memInvites) FindPendingByTokenHash(ctx context.Context, tokenHash string) (*AccountantInvite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invites {
		if inv.Status == InvitePending && inv.TokenHash == tokenHash {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memInvites) Accept(ctx context.Context, tokenHash, accountantUserID string) (*AccountantInvite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invites {
		if inv.Status == InvitePending && inv.TokenHash == tokenHash {
			now := time.Now().UTC()
			inv.Status = InviteActive
			inv.AccountantUserID = accountantUserID
			inv.TokenHash = ""
			inv.AcceptedAt = &now
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memInvites) ListByCompany(ctx context.Context, companyID string) ([]*AccountantInvite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*AccountantInvite
	for _, inv := range m.invites {
		if inv.CompanyID == companyID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Grants --------------------------------------------------------------

type memGrants MemStore

func (m *memGrants) Upsert(ctx context.Context, g *AccessGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := grantKey(g.CompanyID, g.AccountantUserID)
	if existing, ok := m.grants[key]; ok {
		existing.Status = g.Status
		existing.Permissions = g.Permissions
		existing.UpdatedAt = time.Now().UTC()
		return nil
	}
	cp := *g
	m.grants[key] = &cp
	return nil
}

func (m *memGrants) Find(ctx context.Context, companyID, accountantUserID string) (*AccessGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grants[grantKey(companyID, accountantUserID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memGrants) ListByAccountant(ctx context.Context, accountantUserID string) ([]*AccessGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*AccessGrant
	for _, g := range m.grants {
		if g.AccountantUserID == accountantUserID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memGrants) ListByCompany(ctx context.Context, companyID string) ([]*AccessGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*AccessGrant
	for _, g := range m.grants {
		if g.CompanyID == companyID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memGrants) UpdateStatus(ctx context.Context, companyID, accountantUserID string, status GrantStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[grantKey(companyID, accountantUserID)]
	if !ok {
		return ErrNotFound
	}
	g.Status = status
	g.UpdatedAt = time.Now().UTC()
	return nil
}
