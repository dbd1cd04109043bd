package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/koustreak/tablegate/internal/errs"
)

// Claims holds the session cookie's JWT claims. ID (jti) names the
// session so that logout can revoke it before it expires.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Tokens issues and validates signed session tokens and keeps the list of
// revoked sessions until they would have expired anyway.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

// NewTokens returns a token issuer signing with secret (HS256).
func NewTokens(secret []byte, ttl time.Duration) (*Tokens, error) {
	if len(secret) < 16 {
		return nil, errs.New(errs.ErrKindInvalidInput, "session secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "session ttl must be > 0")
	}
	return &Tokens{
		secret:  secret,
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}, nil
}

// TTL is the lifetime of issued tokens.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue creates a token for username with role.
func (t *Tokens) Issue(username, role string) (string, *Claims, error) {
	now := t.now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, errs.Wrap(errs.ErrKindUnknown, "failed to sign session", err)
	}
	return signed, claims, nil
}

// Validate parses token and checks signature, expiry and revocation.
func (t *Tokens) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, errs.New(errs.ErrKindUnauthenticated, "no session")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tk *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnauthenticated, "invalid session", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, errs.New(errs.ErrKindUnauthenticated, "invalid session")
	}

	t.mu.Lock()
	_, revoked := t.revoked[claims.ID]
	t.mu.Unlock()
	if revoked {
		return nil, errs.New(errs.ErrKindUnauthenticated, "session ended")
	}
	return claims, nil
}

// Revoke ends the session described by claims.
func (t *Tokens) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	exp := t.now().Add(t.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	t.mu.Lock()
	t.revoked[claims.ID] = exp
	t.mu.Unlock()
}

// Prune forgets revoked sessions that have expired and returns how many
// remain.
func (t *Tokens) Prune() int {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, exp := range t.revoked {
		if now.After(exp) {
			delete(t.revoked, id)
		}
	}
	return len(t.revoked)
}

// RunCleanup prunes the revocation list every interval until ctx is done.
func (t *Tokens) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Prune()
		}
	}
}
