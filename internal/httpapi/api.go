package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"lekha.org/internal/auth"
	"lekha.org/internal/infer"
	"lekha.org/internal/obs"
	"lekha.org/internal/registry"
)

// Request bodies above this limit are rejected; model uploads dominate.
const maxBodyBytes = 64 << 20

// ReadyProbe reports whether the backing store answers.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the API's construction knobs.
type Options struct {
	Version      string
	CookieSecure bool
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	users    *auth.Service
	tokens   *auth.Tokens
	registry *registry.Service
	engine   *infer.Engine

	publicCookies CookiePolicy
	adminCookies  CookiePolicy
}

// New wires every route onto a fresh mux.
func New(users *auth.Service, tokens *auth.Tokens, reg *registry.Service, engine *infer.Engine, rp ReadyProbe, opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		readyProbe:    rp,
		version:       opts.Version,
		users:         users,
		tokens:        tokens,
		registry:      reg,
		engine:        engine,
		publicCookies: PublicCookies(opts.CookieSecure),
		adminCookies:  AdminCookies(opts.CookieSecure),
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// public surface
	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.Handle("/api/auth/me", a.withUser(http.HandlerFunc(a.handleMe)))
	a.mux.Handle("/api/infer", a.withUser(http.HandlerFunc(a.handleInfer)))

	// admin surface
	a.mux.HandleFunc("/api/admin/auth/login", a.handleAdminLogin)
	a.mux.HandleFunc("/api/admin/auth/refresh", a.handleAdminRefresh)
	a.mux.Handle("/api/admin/auth/logout", a.withAdmin(http.HandlerFunc(a.handleAdminLogout)))
	a.mux.Handle("/api/admin/auth/me", a.withAdmin(http.HandlerFunc(a.handleAdminMe)))
	a.mux.Handle("/api/admin/overview", a.withAdmin(http.HandlerFunc(a.handleOverview)))
	a.mux.Handle("/api/admin/models", a.withAdmin(http.HandlerFunc(a.handleModels)))
	a.mux.Handle("/api/admin/models/", a.withAdmin(http.HandlerFunc(a.handleModelByID)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = MaxBodyBytes(h, maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "lekha-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
