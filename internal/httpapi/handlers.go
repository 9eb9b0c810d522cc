package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"oitm.org/internal/action"
	"oitm.org/internal/audit"
	"oitm.org/internal/auth"
	"oitm.org/internal/obs"
	"oitm.org/internal/session"
)

const maxBodyBytes = 1 << 20

// Verifier checks session credentials.
type Verifier interface {
	Verify(raw string) (auth.Identity, error)
}

// Backend performs actions against the API on behalf of a user.
type Backend interface {
	Perform(ctx context.Context, token string, rec action.Record) error
	Ping(ctx context.Context) error
}

// Options wires the API's collaborators.
type Options struct {
	Verifier  Verifier
	Backend   Backend
	Cookies   session.CookieOptions
	LoginPath string
	Version   string

	// TrustedProxies lists peers whose X-Forwarded-For is believed when
	// keying the rate limiter. Empty means the socket address is used.
	TrustedProxies []netip.Prefix
}

// API is the frontend's HTTP layer.
type API struct {
	verifier   Verifier
	backend    Backend
	cookies    *session.Manager
	loginPath  string
	version    string
	rateBurst  int
	ratePerSec int
	proxies    []netip.Prefix
}

// New validates opts and returns an API.
func New(opts Options) (*API, error) {
	if opts.Verifier == nil {
		return nil, errors.New("httpapi: verifier is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("httpapi: backend is required")
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	if !strings.HasPrefix(loginPath, "/") {
		return nil, errors.New("httpapi: login path must start with /")
	}
	return &API{
		verifier:   opts.Verifier,
		backend:    opts.Backend,
		cookies:    session.NewManager(opts.Cookies),
		loginPath:  loginPath,
		version:    opts.Version,
		rateBurst:  40,
		ratePerSec: 20,
		proxies:    append([]netip.Prefix(nil), opts.TrustedProxies...),
	}, nil
}

// SetRateLimit overrides the per-IP token bucket. Call before Handler.
func (a *API) SetRateLimit(burst, perSecond int) {
	if burst > 0 && perSecond > 0 {
		a.rateBurst, a.ratePerSec = burst, perSecond
	}
}

// Handler builds the middleware chain and routes. Every request passes the
// auth gate and then the replay stage before reaching a route.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, LoggingJSON, SecurityHeaders)
	r.Use(func(next http.Handler) http.Handler {
		return RateLimit(next, a.rateBurst, a.ratePerSec, a.proxies...)
	})
	r.Use(func(next http.Handler) http.Handler {
		return MaxBodyBytes(next, maxBodyBytes)
	})
	r.Use(obs.Instrument)
	r.Use(a.authGate, a.replay)

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Get(a.loginPath, a.Login)
	r.Get("/whoami", a.WhoAmI)
	r.Post("/actions/{verb}/{kind}/{id}", a.handleAction)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "page not found")
	})
	return r
}

// Healthz reports liveness and the running version. It never calls the
// backend.
func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "oitm-web",
		"version": a.version,
	})
}

// Ready answers 200 once the backend responds to a ping, 503 otherwise.
func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.backend.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Login stands in for the login page rendered by the UI. It reports where
// the user goes once the backend has issued a token.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	returnTo, ok := a.cookies.Read(r, session.ReturnToCookie)
	if !ok {
		returnTo = "/"
	}
	_, pending := a.cookies.Read(r, session.ActionCookie)
	writeJSON(w, http.StatusOK, map[string]any{
		"page":           "login",
		"return_to":      returnTo,
		"pending_action": pending,
	})
}

// WhoAmI shows what downstream page handlers see of the session.
func (a *API) WhoAmI(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          id.LoginName,
		"user_id":       id.UserID,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":      msg,
		"request_id": audit.RequestIDFromContext(r.Context()),
	})
}
