package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"boekie.app/internal/access"
	"boekie.app/internal/finance"
	"boekie.app/internal/obs"
	"boekie.app/internal/session"
)

// ReadyProbe is a simple readiness check (e.g. a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sessions *session.Manager
	access   *access.Service
	finance  *finance.Service

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, sessions *session.Manager, acc *access.Service, fin *finance.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		sessions:   sessions,
		access:     acc,
		finance:    fin,
		rateBurst:  20,
		ratePerSec: 10,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// sessions
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/accountant/login", a.handleAccountantLogin)

	// invites and grants
	a.mux.HandleFunc("/v1/accountant/invites", a.handleInvites)
	a.mux.HandleFunc("/v1/accountant/invites/accept", a.handleInviteAccept)
	a.mux.HandleFunc("/v1/accountant/clients", a.handleClients)
	a.mux.HandleFunc("/v1/accountant/active-company", a.handleActiveCompany)
	a.mux.HandleFunc("/v1/company/grants", a.handleCompanyGrants)
	a.mux.HandleFunc("/v1/company/grants/revoke", a.handleRevoke)

	// tenant-scoped finance reads
	a.mux.HandleFunc("/v1/invoices", a.handleInvoices)
	a.mux.HandleFunc("/v1/expenses", a.handleExpenses)
	a.mux.HandleFunc("/v1/btw/summary", a.handleBTWSummary)
	a.mux.HandleFunc("/v1/export", a.handleExport)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = obs.Instrument(h)
	return RequestID(h)
}

// --- health handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "boekie-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "boekie-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- tenant resolution ---

// resolveTenant computes the effective company id for this request. An
// explicit ?company_id= wins; a delegated session falls back to its
// active company. The resolver's output is the only company id handlers
// may query with.
func (a *API) resolveTenant(r *http.Request) (access.TenantContext, error) {
	p, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		return access.TenantContext{}, access.ErrUnauthenticated
	}
	requested := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if requested == "" {
		if s, ok := sessionFromContext(r.Context()); ok && s.Kind == session.KindDelegated {
			requested = s.ActiveCompanyID
		}
	}
	return a.access.Resolve(r.Context(), p, requested)
}

func requirePermission(tc access.TenantContext, perm access.Permission) error {
	if !tc.Permissions.Has(perm) {
		return access.ErrForbidden
	}
	return nil
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	body := map[string]any{"error": msg}
	if rid := requestIDFrom(r.Context()); rid != "" {
		body["request_id"] = rid
	}
	writeJSON(w, code, body)
}

// mapError translates the access taxonomy into HTTP denials. Forbidden is
// one uniform response regardless of cause.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, access.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, access.ErrInvalidToken):
		writeError(w, r, http.StatusBadRequest, "invalid or used token")
	case errors.Is(err, access.ErrEmailMismatch):
		writeError(w, r, http.StatusForbidden, "invite is addressed to a different email")
	case errors.Is(err, access.ErrAlreadyAccepted):
		writeError(w, r, http.StatusConflict, "invite already accepted")
	case errors.Is(err, access.ErrInvalidInput), errors.Is(err, finance.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrNotFound), errors.Is(err, finance.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	default:
		obs.LogEvent("error", "internal error", map[string]any{
			"request_id": requestIDFrom(r.Context()),
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
