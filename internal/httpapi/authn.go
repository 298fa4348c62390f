package httpapi

import (
	"net/http"
	"strings"

	"lekha.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// resolvePrincipal authenticates a request: a bearer header wins over the
// access cookie, and either must carry a valid access token.
func (a *API) resolvePrincipal(r *http.Request) (auth.Principal, error) {
	token := bearerToken(r.Header.Get(authHeader))
	if token == "" {
		c, err := r.Cookie(AccessCookie)
		if err != nil || c.Value == "" {
			return auth.Principal{}, auth.ErrInvalidToken
		}
		token = c.Value
	}
	subject, err := a.tokens.Validate(token, auth.TokenAccess)
	if err != nil {
		return auth.Principal{}, err
	}
	return a.users.Resolve(r.Context(), subject)
}

// withUser authenticates the request and stores the principal in the
// request context; unauthenticated callers get 401.
func (a *API) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.resolvePrincipal(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="lekha"`)
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), p)))
	})
}

// withAdmin additionally gates on the staff or superuser role.
func (a *API) withAdmin(next http.Handler) http.Handler {
	return a.withUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok || !p.IsAdmin() {
			writeError(w, r, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// principal reads the context entry placed by withUser. Handlers behind
// the guard can assume it is present; the error answer covers misuse.
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	}
	return p, ok
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}
