package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lekha.org/internal/auth"
)

func TestWithUserStoresPrincipalInContext(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.registerSession(t, "alice", "alice@lekha.org", "pw123")

	var got auth.Principal
	var found bool
	handler := env.api.withUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = auth.PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !found {
		t.Fatal("expected principal in request context")
	}
	if got.Username != "alice" {
		t.Fatalf("unexpected principal: %+v", got)
	}

	// Anonymous callers never reach the wrapped handler.
	found = false
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if found {
		t.Fatal("handler must not run for anonymous callers")
	}
}

func TestWithAdminRejectsNonStaffPrincipal(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.registerSession(t, "alice", "alice@lekha.org", "pw123")

	called := false
	handler := env.api.withAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if called {
		t.Fatal("handler must not run for non-staff principals")
	}
}
