package httpapi

import (
	"net/http"
)

func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	user, ok := a.checkCredentials(w, r)
	if !ok {
		return
	}
	if !user.IsStaff && !user.IsSuperuser {
		// Valid credentials, wrong surface: no cookies leave the server.
		writeError(w, r, http.StatusForbidden, "admin access required")
		return
	}
	a.issueSession(w, r, user.ID, a.adminCookies)
}

func (a *API) handleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.refreshSession(w, r, a.adminCookies, true)
}

func (a *API) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.adminCookies.Clear(w)
	writeJSON(w, http.StatusOK, okDetail)
}

func (a *API) handleAdminMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           p.ID,
		"username":     p.Username,
		"email":        p.Email,
		"is_staff":     p.IsStaff,
		"is_superuser": p.IsSuperuser,
	})
}

func (a *API) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	stats, err := a.registry.Overview(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
