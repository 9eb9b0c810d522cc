package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultLeeway = 5 * time.Second

// Claims mirrors what the backend puts into session credentials.
type Claims struct {
	LoginName string `json:"login_name"`
	UserID    string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified subject of a session credential.
type Identity struct {
	LoginName string
	UserID    string
}

// Verifier checks HS256 session credentials against a shared secret.
type Verifier struct {
	secret        []byte
	leeway        time.Duration
	requireExpiry bool
	now           func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLeeway sets the allowed clock skew for exp/nbf/iat checks.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) {
		if d >= 0 {
			v.leeway = d
		}
	}
}

// WithExpiryRequired rejects credentials that carry no exp claim.
func WithExpiryRequired() Option {
	return func(v *Verifier) { v.requireExpiry = true }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier builds a verifier bound to secret.
func NewVerifier(secret []byte, opts ...Option) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errMissingSecret
	}
	v := &Verifier{
		secret: append([]byte(nil), secret...),
		leeway: defaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify validates raw and returns the identity it carries. It has no side
// effects and returns ErrInvalidToken for anything short of a fully valid
// credential.
func (v *Verifier) Verify(raw string) (id Identity, err error) {
	defer func() {
		// fail closed on any decoder fault
		if recover() != nil {
			id, err = Identity{}, ErrInvalidToken
		}
	}()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.requireExpiry {
		parserOpts = append(parserOpts, jwt.WithExpirationRequired())
	}

	parsed, err := jwt.NewParser(parserOpts...).ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	// the login name is mirrored into the user cookie byte for byte
	if !ValidLoginName(claims.LoginName) {
		return Identity{}, ErrInvalidToken
	}
	return Identity{LoginName: claims.LoginName, UserID: strings.TrimSpace(claims.UserID)}, nil
}

// ValidLoginName reports whether name can be stored in a cookie unchanged:
// printable ASCII without whitespace, quotes, semicolons, commas or
// backslashes.
func ValidLoginName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e {
			return false
		}
		switch c {
		case '"', ';', ',', '\\':
			return false
		}
	}
	return true
}

// Issuer signs session credentials. Production credentials come from the
// backend at login; the issuer exists for local tooling and fixtures.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer builds an issuer bound to secret.
func NewIssuer(secret []byte) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errMissingSecret
	}
	return &Issuer{secret: append([]byte(nil), secret...), now: time.Now}, nil
}

// GenerateToken signs a credential for id that expires after ttl.
func (i *Issuer) GenerateToken(id Identity, ttl time.Duration) (string, error) {
	login := id.LoginName
	if login == "" {
		return "", errors.New("login name is required")
	}
	if !ValidLoginName(login) {
		return "", fmt.Errorf("login name %q is not cookie-safe", login)
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}

	now := i.now().UTC()
	claims := Claims{
		LoginName: login,
		UserID:    strings.TrimSpace(id.UserID),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
