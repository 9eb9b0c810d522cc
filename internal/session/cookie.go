package session

import (
	"net/http"
	"time"
)

// Cookie names shared with the UI and the login flow.
const (
	TokenCookie     = "token"
	UserCookie      = "user"
	ActionCookie    = "redirect_action"
	ReturnToCookie  = "redirect_to"
	IdentityMaxAge  = time.Hour
	PendingMaxAge   = 6 * time.Hour
	defaultBasePath = "/"
)

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Path     string
	Domain   string
	HttpOnly bool
}

// normalize fills in defaults. SameSite and Secure are not configurable.
func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = defaultBasePath
	}
	return o
}

// Manager reads and writes the session cookies on one request/response pair.
type Manager struct {
	opts CookieOptions
}

// NewManager returns a manager that applies opts to every cookie it writes.
func NewManager(opts CookieOptions) *Manager {
	return &Manager{opts: opts.normalize()}
}

// Read returns the value of the named cookie. An empty value counts as absent.
func (m *Manager) Read(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// SetIdentity writes the plain identity mirror for downstream handlers.
func (m *Manager) SetIdentity(w http.ResponseWriter, loginName string) {
	m.set(w, UserCookie, loginName, IdentityMaxAge)
}

// SetPendingAction stores an encoded deferred action, replacing any previous one.
func (m *Manager) SetPendingAction(w http.ResponseWriter, encoded string) {
	m.set(w, ActionCookie, encoded, PendingMaxAge)
}

// SetReturnTo records where the login page should send the user afterwards.
func (m *Manager) SetReturnTo(w http.ResponseWriter, path string) {
	m.set(w, ReturnToCookie, path, PendingMaxAge)
}

// Clear removes the named cookie from the client.
func (m *Manager) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     m.opts.Path,
		Domain:   m.opts.Domain,
		MaxAge:   -1,
		HttpOnly: m.opts.HttpOnly,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *Manager) set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.opts.Path,
		Domain:   m.opts.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: m.opts.HttpOnly,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
