package httpapi

import (
	"errors"
	"net/http"

	"lekha.org/internal/auth"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

var okDetail = map[string]string{"detail": "ok"}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrConflict):
			writeError(w, r, http.StatusConflict, "username or email already taken")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// A fresh account gets a session right away.
	pair, err := a.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.publicCookies.Attach(w, pair)
	writeJSON(w, http.StatusCreated, okDetail)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	user, ok := a.checkCredentials(w, r)
	if !ok {
		return
	}
	a.issueSession(w, r, user.ID, a.publicCookies)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.refreshSession(w, r, a.publicCookies, false)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.publicCookies.Clear(w)
	writeJSON(w, http.StatusOK, okDetail)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       p.ID,
		"username": p.Username,
		"email":    p.Email,
	})
}

// checkCredentials decodes a login body and verifies it, answering the
// error response itself on failure.
func (a *API) checkCredentials(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return nil, false
	}
	user, err := a.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return nil, false
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return user, true
}

func (a *API) issueSession(w http.ResponseWriter, r *http.Request, subjectID string, cookies CookiePolicy) {
	pair, err := a.tokens.Issue(subjectID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	cookies.Attach(w, pair)
	writeJSON(w, http.StatusOK, okDetail)
}

// refreshSession rotates a session from the scoped refresh cookie. Admin
// surfaces re-check the role so a demoted account cannot keep refreshing
// into admin sessions.
func (a *API) refreshSession(w http.ResponseWriter, r *http.Request, cookies CookiePolicy, wantAdmin bool) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil || c.Value == "" {
		writeError(w, r, http.StatusUnauthorized, "refresh token required")
		return
	}
	subject, err := a.tokens.Validate(c.Value, auth.TokenRefresh)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if wantAdmin {
		p, err := a.users.Resolve(r.Context(), subject)
		if err != nil || !p.IsAdmin() {
			writeError(w, r, http.StatusForbidden, "admin access required")
			return
		}
	}
	pair, err := a.tokens.Refresh(c.Value)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	cookies.Attach(w, pair)
	writeJSON(w, http.StatusOK, okDetail)
}
