package httpapi

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"oitm.org/internal/auth"
	"oitm.org/internal/backend"
)

var testSecret = []byte("test-secret")

type backendCall struct {
	Method string
	Path   string
	Auth   string
}

// fakeBackend records every call and answers with a fixed status.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []backendCall
	status int
	block  chan struct{}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	b.mu.Lock()
	b.calls = append(b.calls, backendCall{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")})
	status := b.status
	block := b.block
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}
	w.WriteHeader(status)
}

func (b *fakeBackend) Calls() []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]backendCall, len(b.calls))
	copy(out, b.calls)
	return out
}

type harness struct {
	api     *API
	handler http.Handler
	backend *fakeBackend
	apiURL  string
	issuer  *auth.Issuer
}

func newHarness(t *testing.T, status int) *harness {
	t.Helper()
	return newHarnessWithBackend(t, &fakeBackend{status: status})
}

func newHarnessWithBackend(t *testing.T, fb *fakeBackend) *harness {
	t.Helper()

	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	client, err := backend.New(srv.URL, backend.WithTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	verifier, err := auth.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	issuer, err := auth.NewIssuer(testSecret)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	api, err := New(Options{Verifier: verifier, Backend: client, Version: "test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	api.SetRateLimit(1000, 1000)

	return &harness{
		api:     api,
		handler: api.Handler(),
		backend: fb,
		apiURL:  srv.URL,
		issuer:  issuer,
	}
}

func (h *harness) token(t *testing.T, login string) string {
	t.Helper()
	tok, err := h.issuer.GenerateToken(auth.Identity{LoginName: login, UserID: "id-" + login}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func (h *harness) do(t *testing.T, method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func cookie(name, value string) *http.Cookie {
	return &http.Cookie{Name: name, Value: value}
}

func responseCookie(rr *httptest.ResponseRecorder, name string) (*http.Cookie, bool) {
	var found *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found, found != nil
}

func assertCleared(t *testing.T, rr *httptest.ResponseRecorder, name string) {
	t.Helper()
	c, ok := responseCookie(rr, name)
	if !ok {
		t.Fatalf("expected %s cookie to be cleared, no Set-Cookie found", name)
	}
	if c.MaxAge >= 0 || c.Value != "" {
		t.Fatalf("expected %s cookie to be cleared, got value=%q max-age=%d", name, c.Value, c.MaxAge)
	}
	if c.Path != "/" || !c.Secure || c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("%s: unexpected attributes path=%q secure=%v samesite=%v", name, c.Path, c.Secure, c.SameSite)
	}
}

func assertNoCookie(t *testing.T, rr *httptest.ResponseRecorder, name string) {
	t.Helper()
	if c, ok := responseCookie(rr, name); ok {
		t.Fatalf("unexpected Set-Cookie for %s: %v", name, c)
	}
}

func assertRedirect(t *testing.T, rr *httptest.ResponseRecorder, code int, location string) {
	t.Helper()
	if rr.Code != code {
		t.Fatalf("expected status %d, got %d", code, rr.Code)
	}
	if got := rr.Header().Get("Location"); got != location {
		t.Fatalf("expected Location %q, got %q", location, got)
	}
}
