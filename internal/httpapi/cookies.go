package httpapi

import (
	"net/http"

	"lekha.org/internal/auth"
)

// Session cookie names shared by both surfaces.
const (
	AccessCookie  = "lekha_access"
	RefreshCookie = "lekha_refresh"
)

// Refresh cookie scopes. The access cookie is host-wide so any guarded
// endpoint accepts either session; the refresh cookie is pinned to its
// surface's auth prefix so a public session cannot reach the admin
// refresh endpoint with a usable token.
const (
	publicRefreshPath = "/api/auth/"
	adminRefreshPath  = "/api/admin/auth/"
)

// CookiePolicy writes and clears the session cookies for one surface.
type CookiePolicy struct {
	RefreshPath string
	Secure      bool
}

// PublicCookies scopes the refresh token to the public auth endpoints.
func PublicCookies(secure bool) CookiePolicy {
	return CookiePolicy{RefreshPath: publicRefreshPath, Secure: secure}
}

// AdminCookies scopes the refresh token to the admin auth endpoints.
func AdminCookies(secure bool) CookiePolicy {
	return CookiePolicy{RefreshPath: adminRefreshPath, Secure: secure}
}

// Attach sets both session cookies from a freshly issued pair.
func (p CookiePolicy) Attach(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     p.RefreshPath,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires both cookies at their scoped paths. Clearing an absent
// cookie is fine.
func (p CookiePolicy) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     p.RefreshPath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
