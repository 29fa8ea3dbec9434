package httpapi

import (
	"net/http"
	"time"

	"boekie.app/internal/access"
	"boekie.app/internal/audit"
	"boekie.app/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	ExpiresAt string `json:"expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, session.KindPrimary)
}

// handleAccountantLogin opens a delegated session. Only accountant-class
// accounts may hold one; the session starts without a client selection.
func (a *API) handleAccountantLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, session.KindDelegated)
}

func (a *API) login(w http.ResponseWriter, r *http.Request, kind session.Kind) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var (
		token string
		s     *session.Session
		err   error
	)
	if kind == session.KindDelegated {
		token, s, err = a.sessions.LoginDelegated(r.Context(), req.Email, req.Password)
	} else {
		token, s, err = a.sessions.Login(r.Context(), req.Email, req.Password)
	}
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	http.SetCookie(w, a.sessions.Cookie(s.Kind, token, s.ExpiresAt))
	_ = audit.LogEvent(r.Context(), "session.login", map[string]any{
		"session_kind": string(s.Kind),
		"user_id":      s.UserID,
	})
	writeJSON(w, http.StatusOK, sessionResponse{
		UserID:    s.UserID,
		Kind:      string(s.Kind),
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	s, ok := sessionFromContext(r.Context())
	if !ok {
		a.mapError(w, r, access.ErrUnauthenticated)
		return
	}
	if err := a.sessions.Logout(r.Context(), s); err != nil {
		a.mapError(w, r, err)
		return
	}
	http.SetCookie(w, a.sessions.ExpiredCookie(s.Kind))
	_ = audit.LogEvent(r.Context(), "session.logout", map[string]any{
		"session_kind": string(s.Kind),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}
