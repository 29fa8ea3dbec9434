package httpapi

import (
	"net/http"
	"time"

	"boekie.app/internal/access"
	"boekie.app/internal/audit"
	"boekie.app/internal/session"
)

// requireOwnerContext resolves the tenant and insists the caller acts as
// the company itself, not as a delegate. Used for invite and grant
// administration.
func (a *API) requireOwnerContext(r *http.Request) (access.TenantContext, error) {
	tc, err := a.resolveTenant(r)
	if err != nil {
		return access.TenantContext{}, err
	}
	switch access.Classify(tc.Role) {
	case access.ClassOwner, access.ClassSuperadmin:
		return tc, nil
	default:
		return access.TenantContext{}, access.ErrForbidden
	}
}

type createInviteRequest struct {
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
}

type inviteResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Status      string   `json:"status"`
	Permissions []string `json:"permissions"`
	CreatedAt   string   `json:"created_at"`
}

func inviteView(inv *access.AccountantInvite) inviteResponse {
	return inviteResponse{
		ID:          inv.ID,
		Email:       inv.InvitedEmail,
		Status:      string(inv.Status),
		Permissions: inv.Permissions.Keys(),
		CreatedAt:   inv.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (a *API) handleInvites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createInvite(w, r)
	case http.MethodGet:
		a.listInvites(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createInvite(w http.ResponseWriter, r *http.Request) {
	tc, err := a.requireOwnerContext(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	var req createInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.access.CreateInvite(r.Context(), tc.CompanyID, req.Email, req.Permissions)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	_ = audit.LogEvent(access.ContextWithTenant(r.Context(), tc), "invite.created", map[string]any{
		"invite_id": created.Invite.ID,
	})
	// The plaintext token appears here once; only its hash survives.
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":  created.Token,
		"invite": inviteView(&created.Invite),
	})
}

func (a *API) listInvites(w http.ResponseWriter, r *http.Request) {
	tc, err := a.requireOwnerContext(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	invites, err := a.access.ListInvitesForCompany(r.Context(), tc.CompanyID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	out := make([]inviteResponse, 0, len(invites))
	for _, inv := range invites {
		out = append(out, inviteView(inv))
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": out})
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

func (a *API) handleInviteAccept(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		a.mapError(w, r, access.ErrUnauthenticated)
		return
	}
	var req acceptInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	grant, err := a.access.AcceptInvite(r.Context(), req.Token, p.UserID, p.Email)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "invite.accepted", map[string]any{
		"company_id": grant.CompanyID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id":  grant.CompanyID,
		"permissions": grant.Permissions.Keys(),
	})
}

type clientResponse struct {
	CompanyID   string   `json:"company_id"`
	CompanyName string   `json:"company_name"`
	Permissions []string `json:"permissions"`
}

// handleClients returns the accountant's client picker: companies with an
// active grant only. Listing here is informational; each request is still
// authorized independently by the tenant resolver.
func (a *API) handleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		a.mapError(w, r, access.ErrUnauthenticated)
		return
	}
	if access.Classify(p.Role) != access.ClassAccountant {
		a.mapError(w, r, access.ErrForbidden)
		return
	}
	clients, err := a.access.ListForAccountant(r.Context(), p.UserID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientResponse{
			CompanyID:   c.CompanyID,
			CompanyName: c.CompanyName,
			Permissions: c.Permissions.Keys(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": out})
}

type switchCompanyRequest struct {
	CompanyID string `json:"company_id"`
}

func (a *API) handleActiveCompany(w http.ResponseWriter, r *http.Request) {
	p, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		a.mapError(w, r, access.ErrUnauthenticated)
		return
	}
	s, ok := sessionFromContext(r.Context())
	if !ok || s.Kind != session.KindDelegated {
		a.mapError(w, r, access.ErrForbidden)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req switchCompanyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.sessions.SwitchActiveCompany(r.Context(), p, s, req.CompanyID); err != nil {
			a.mapError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "company.switched", map[string]any{
			"company_id": req.CompanyID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"active_company_id": req.CompanyID})
	case http.MethodDelete:
		if err := a.sessions.ClearActiveCompany(r.Context(), s); err != nil {
			a.mapError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"active_company_id": ""})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

type grantResponse struct {
	AccountantUserID string   `json:"accountant_user_id"`
	Status           string   `json:"status"`
	Permissions      []string `json:"permissions"`
	UpdatedAt        string   `json:"updated_at"`
}

func (a *API) handleCompanyGrants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, err := a.requireOwnerContext(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	grants, err := a.access.ListForCompany(r.Context(), tc.CompanyID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantResponse{
			AccountantUserID: g.AccountantUserID,
			Status:           string(g.Status),
			Permissions:      g.Permissions.Keys(),
			UpdatedAt:        g.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": out})
}

type revokeRequest struct {
	AccountantUserID string `json:"accountant_user_id"`
}

func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	tc, err := a.requireOwnerContext(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	var req revokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.access.Revoke(r.Context(), tc.CompanyID, req.AccountantUserID); err != nil {
		a.mapError(w, r, err)
		return
	}
	_ = audit.LogEvent(access.ContextWithTenant(r.Context(), tc), "grant.revoked", map[string]any{
		"accountant_user_id": req.AccountantUserID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}
