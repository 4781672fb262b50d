// Package serviceauth authenticates inbound API callers.
package serviceauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// BearerHeader is the standard HTTP Authorization header.
	BearerHeader = "Authorization"
	// UpgraderSecretHeader carries the shared secret used by the
	// notify_failed_station_upgrade endpoint, which is called by the
	// upgrader process rather than an authenticated end user.
	UpgraderSecretHeader = "X-Upgrader-Secret"

	// DefaultTokenExpiry bounds how long an issued bearer token is valid.
	DefaultTokenExpiry = 1 * time.Hour
)

type contextKey string

const actorIDKey contextKey = "actor_id"

// WithActorID returns a copy of ctx carrying the authenticated caller's ID.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

// ActorID extracts the authenticated caller's ID from ctx, or "" if absent.
func ActorID(ctx context.Context) string {
	if v, ok := ctx.Value(actorIDKey).(string); ok {
		return v
	}
	return ""
}

// Claims are the JWT claims issued to and expected from API callers.
type Claims struct {
	ActorID string `json:"actor_id"`
	jwt.RegisteredClaims
}

// TokenIssuer issues HMAC-signed bearer tokens for a given actor.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewTokenIssuer creates a TokenIssuer signing with secret.
func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &TokenIssuer{secret: []byte(secret), expiry: expiry}
}

// Issue returns a signed bearer token for actorID.
func (t *TokenIssuer) Issue(actorID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		ActorID: actorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
			Issuer:    "station",
			Subject:   actorID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verifier validates bearer tokens issued by a TokenIssuer with the same
// secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier checking signatures against secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// ErrInvalidToken is returned for any malformed, expired, or unsigned token.
var ErrInvalidToken = errors.New("serviceauth: invalid bearer token")

// Verify parses and validates a raw bearer token, returning the actor ID.
func (v *Verifier) Verify(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ActorID == "" {
		return "", ErrInvalidToken
	}
	return claims.ActorID, nil
}

// Middleware authenticates every request using the Authorization: Bearer
// header, rejecting unauthenticated requests with 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r.Header.Get(BearerHeader))
		if raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		actorID, err := v.Verify(raw)
		if err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		r = r.WithContext(WithActorID(r.Context(), actorID))
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// UpgraderAuth checks the shared secret used exclusively by the
// notify_failed_station_upgrade endpoint, which the upgrader process calls
// without a user session.
type UpgraderAuth struct {
	secret string
}

// NewUpgraderAuth creates an UpgraderAuth comparing against secret in
// constant time.
func NewUpgraderAuth(secret string) *UpgraderAuth {
	return &UpgraderAuth{secret: secret}
}

// Check reports whether the request carries the correct shared secret.
func (a *UpgraderAuth) Check(r *http.Request) bool {
	if a.secret == "" {
		return false
	}
	got := r.Header.Get(UpgraderSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.secret)) == 1
}

// Middleware rejects requests lacking the correct upgrader shared secret.
func (a *UpgraderAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Check(r) {
			http.Error(w, "invalid upgrader secret", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
