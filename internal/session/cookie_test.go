package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func cookieByName(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func assertStrictSecure(t *testing.T, c *http.Cookie) {
	t.Helper()
	if c.Path != "/" {
		t.Fatalf("%s: expected path /, got %q", c.Name, c.Path)
	}
	if !c.Secure {
		t.Fatalf("%s: expected Secure", c.Name)
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("%s: expected SameSite=Strict, got %v", c.Name, c.SameSite)
	}
}

func TestSetIdentity(t *testing.T) {
	m := NewManager(CookieOptions{})
	rr := httptest.NewRecorder()
	m.SetIdentity(rr, "alice")

	c := cookieByName(t, rr, UserCookie)
	if c.Value != "alice" {
		t.Fatalf("unexpected value: %q", c.Value)
	}
	if c.MaxAge != 3600 {
		t.Fatalf("expected max-age 3600, got %d", c.MaxAge)
	}
	assertStrictSecure(t, c)
}

func TestSetPendingActionKeepsSpaces(t *testing.T) {
	m := NewManager(CookieOptions{})
	rr := httptest.NewRecorder()
	m.SetPendingAction(rr, "like summary 78")

	c := cookieByName(t, rr, ActionCookie)
	if c.Value != "like summary 78" {
		t.Fatalf("unexpected value: %q", c.Value)
	}
	if c.MaxAge != int(PendingMaxAge.Seconds()) {
		t.Fatalf("unexpected max-age: %d", c.MaxAge)
	}
	assertStrictSecure(t, c)
}

func TestClear(t *testing.T) {
	m := NewManager(CookieOptions{})
	rr := httptest.NewRecorder()
	m.Clear(rr, TokenCookie)

	c := cookieByName(t, rr, TokenCookie)
	if c.MaxAge >= 0 {
		t.Fatalf("expected negative max-age, got %d", c.MaxAge)
	}
	if c.Value != "" {
		t.Fatalf("expected empty value, got %q", c.Value)
	}
	assertStrictSecure(t, c)
}

func TestRead(t *testing.T) {
	m := NewManager(CookieOptions{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ActionCookie, Value: "copy link 5"})
	req.AddCookie(&http.Cookie{Name: UserCookie, Value: ""})

	if v, ok := m.Read(req, ActionCookie); !ok || v != "copy link 5" {
		t.Fatalf("unexpected read: %q ok=%v", v, ok)
	}
	if _, ok := m.Read(req, UserCookie); ok {
		t.Fatal("empty cookie should read as absent")
	}
	if _, ok := m.Read(req, TokenCookie); ok {
		t.Fatal("missing cookie should read as absent")
	}
}
