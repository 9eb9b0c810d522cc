package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
)

var testSecret = []byte("test-secret")

func newTestVerifier(t *testing.T, opts ...Option) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewIssuer(testSecret)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, err := issuer.GenerateToken(Identity{LoginName: "alice", UserID: "7"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	got, err := newTestVerifier(t).Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if diff := cmp.Diff(Identity{LoginName: "alice", UserID: "7"}, got); diff != "" {
		t.Fatalf("identity mismatch (-want +got):\n%s", diff)
	}
}

func TestVerifyAcceptsTokenWithoutExpiry(t *testing.T) {
	token := signClaims(t, jwt.SigningMethodHS256, testSecret, Claims{LoginName: "bob", UserID: "2"})

	got, err := newTestVerifier(t).Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.LoginName != "bob" {
		t.Fatalf("unexpected login name: %q", got.LoginName)
	}

	if _, err := newTestVerifier(t, WithExpiryRequired()).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken when expiry is required, got %v", err)
	}
}

func TestVerifyRejectsInvalidCredentials(t *testing.T) {
	now := time.Now()
	valid := func(c Claims) Claims {
		if c.LoginName == "" {
			c.LoginName = "alice"
		}
		return c
	}

	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "whitespace", token: "   "},
		{name: "garbage", token: "not-a-jwt"},
		{name: "three garbage segments", token: "a.b.c"},
		{name: "bad base64 payload", token: "eyJhbGciOiJIUzI1NiJ9.%%%.sig"},
		{
			name:  "wrong secret",
			token: signClaims(t, jwt.SigningMethodHS256, []byte("other-secret"), valid(Claims{})),
		},
		{
			name:  "wrong algorithm",
			token: signClaims(t, jwt.SigningMethodHS384, testSecret, valid(Claims{})),
		},
		{
			name:  "unsigned",
			token: signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid(Claims{})),
		},
		{
			name: "expired",
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, valid(Claims{
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour))},
			})),
		},
		{
			name: "not yet valid",
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, valid(Claims{
				RegisteredClaims: jwt.RegisteredClaims{NotBefore: jwt.NewNumericDate(now.Add(time.Hour))},
			})),
		},
		{
			name:  "missing login name",
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, Claims{UserID: "1"}),
		},
		{
			name:  "blank login name",
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, Claims{LoginName: "   "}),
		},
	}
	for _, login := range []string{"bo;b", "al\"ice", "jos\u00e9", " carol", "carol ", "a,b", "a\\b", "tab\tname"} {
		cases = append(cases, struct {
			name  string
			token string
		}{
			name:  "login name " + login,
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, Claims{LoginName: login}),
		})
	}

	v := newTestVerifier(t)
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			id, err := v.Verify(tc.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
			if id != (Identity{}) {
				t.Fatalf("expected zero identity, got %+v", id)
			}
		})
	}
}

func TestVerifyHonoursClock(t *testing.T) {
	issuer, err := NewIssuer(testSecret)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, err := issuer.GenerateToken(Identity{LoginName: "carol"}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	later := func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := newTestVerifier(t, WithClock(later)).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestConstructorsRequireSecret(t *testing.T) {
	if _, err := NewVerifier(nil); err == nil {
		t.Fatal("expected error for empty verifier secret")
	}
	if _, err := NewIssuer(nil); err == nil {
		t.Fatal("expected error for empty issuer secret")
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	issuer, err := NewIssuer(testSecret)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	if _, err := issuer.GenerateToken(Identity{}, time.Hour); err == nil {
		t.Fatal("expected error for empty login name")
	}
	if _, err := issuer.GenerateToken(Identity{LoginName: "a b"}, time.Hour); err == nil {
		t.Fatal("expected error for login name with space")
	}
	if _, err := issuer.GenerateToken(Identity{LoginName: "jos\u00e9"}, time.Hour); err == nil {
		t.Fatal("expected error for non-ASCII login name")
	}
	if _, err := issuer.GenerateToken(Identity{LoginName: "alice"}, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestValidLoginName(t *testing.T) {
	cases := map[string]bool{
		"alice":           true,
		"carol.d":         true,
		"user_42":         true,
		"o'brien":         true,
		"a+b@example.org": true,
		"~!#$%&*()[]{}<>": true,
		"":                false,
		"bo;b":            false,
		"al\"ice":         false,
		"a,b":             false,
		"a\\b":            false,
		"jos\u00e9":       false,
		" carol":          false,
		"carol\n":         false,
		"del\x7f":         false,
	}
	for name, want := range cases {
		if got := ValidLoginName(name); got != want {
			t.Fatalf("ValidLoginName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestVerifyKeepsLoginNameVerbatim(t *testing.T) {
	v := newTestVerifier(t)
	for _, login := range []string{"o'brien", "a+b@example.org", "~!#$%&*()[]{}<>"} {
		token := signClaims(t, jwt.SigningMethodHS256, testSecret, Claims{LoginName: login})
		got, err := v.Verify(token)
		if err != nil {
			t.Fatalf("%q: Verify: %v", login, err)
		}
		if got.LoginName != login {
			t.Fatalf("login name changed: want %q, got %q", login, got.LoginName)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := IdentityFromContext(ctx); ok {
		t.Fatal("unexpected identity on empty context")
	}
	if _, ok := TokenFromContext(ctx); ok {
		t.Fatal("unexpected token on empty context")
	}

	ctx = ContextWithIdentity(ctx, Identity{LoginName: "dave", UserID: "4"})
	ctx = ContextWithToken(ctx, "raw-token")

	id, ok := IdentityFromContext(ctx)
	if !ok || id.LoginName != "dave" || id.UserID != "4" {
		t.Fatalf("unexpected identity: %+v ok=%v", id, ok)
	}
	tok, ok := TokenFromContext(ctx)
	if !ok || tok != "raw-token" {
		t.Fatalf("unexpected token: %q ok=%v", tok, ok)
	}
	if got := ContextWithToken(context.Background(), ""); got.Value(tokenContextKey{}) != nil {
		t.Fatal("empty token should not be stored")
	}
}
