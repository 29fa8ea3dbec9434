package httpapi

import (
	"context"
	"net/http"

	"boekie.app/internal/access"
	"boekie.app/internal/session"
)

var publicPaths = map[string]bool{
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/v1/info":              true,
	"/v1/auth/login":       true,
	"/v1/accountant/login": true,
}

func sessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(ctxKeySession).(*session.Session)
	return s, ok
}

// withAuth resolves the session cookie into a principal for every
// non-public path. Unauthenticated requests stop here.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		p, s, err := a.sessions.Resolve(r.Context(), r)
		if err != nil {
			a.mapError(w, r, err)
			return
		}
		ctx := access.ContextWithPrincipal(r.Context(), p)
		ctx = context.WithValue(ctx, ctxKeySession, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
