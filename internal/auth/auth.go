// Package auth is the gate in front of every data route: cookie sessions
// signed as JWTs, a YAML credential file with bcrypt hashes, a casbin
// per-table policy and a login rate limiter.
package auth

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/metrics"
)

// Config configures the gate.
type Config struct {
	UsersFile       string
	PolicyFile      string // empty: embedded default policy
	SessionSecret   string
	SessionTTL      time.Duration
	CookieName      string
	CookieSecure    bool
	SuccessRedirect string
	LoginPerMinute  int
	LoginBurst      int
}

// DefaultConfig returns the gate defaults. SessionSecret and UsersFile
// have none.
func DefaultConfig() *Config {
	return &Config{
		SessionTTL:      8 * time.Hour,
		CookieName:      "tablegate_session",
		SuccessRedirect: "/dashboard",
		LoginPerMinute:  10,
		LoginBurst:      5,
	}
}

// Identity is the authenticated caller.
type Identity struct {
	Username string
	Role     string
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by the session middleware.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// Gate authenticates and authorizes requests.
type Gate struct {
	cfg     *Config
	users   *Users
	tokens  *Tokens
	policy  *Policy
	limiter *Limiter
	log     *logger.Logger
}

// New loads the users file and policy described by cfg.
func New(cfg *Config, log *logger.Logger) (*Gate, error) {
	if cfg.UsersFile == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "auth users_file is required")
	}
	users, err := LoadUsers(cfg.UsersFile)
	if err != nil {
		return nil, err
	}
	return NewGate(cfg, users, log)
}

// NewGate builds a gate over an already loaded credential store.
func NewGate(cfg *Config, users *Users, log *logger.Logger) (*Gate, error) {
	tokens, err := NewTokens([]byte(cfg.SessionSecret), cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	policy, err := NewPolicy(cfg.PolicyFile, users.All())
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Gate{
		cfg:     cfg,
		users:   users,
		tokens:  tokens,
		policy:  policy,
		limiter: NewLimiter(cfg.LoginPerMinute, cfg.LoginBurst, 15*time.Minute),
		log:     log,
	}, nil
}

// Config returns the gate configuration.
func (g *Gate) Config() *Config { return g.cfg }

// Run performs periodic housekeeping until ctx is done.
func (g *Gate) Run(ctx context.Context) {
	go g.limiter.RunCleanup(ctx, time.Minute)
	g.tokens.RunCleanup(ctx, time.Minute)
}

// Login verifies the credentials of a caller at addr and returns a
// session cookie.
func (g *Gate) Login(addr, username, password string) (*http.Cookie, error) {
	if !g.limiter.Allow(addr) {
		metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
		return nil, errs.New(errs.ErrKindRateLimited, "too many login attempts")
	}

	u, err := g.users.Verify(username, password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		g.log.With().Str("user", username).Str("addr", addr).Logger().Warn("login rejected")
		return nil, err
	}

	token, claims, err := g.tokens.Issue(u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	metrics.LoginAttempts.WithLabelValues("accepted").Inc()
	g.log.With().Str("user", u.Username).Str("session", claims.ID).Logger().Info("login")

	return g.cookie(token, claims.ExpiresAt.Time), nil
}

// Logout revokes the session carried by r, if any, and returns a cookie
// that clears it in the browser.
func (g *Gate) Logout(r *http.Request) *http.Cookie {
	if c, err := r.Cookie(g.cfg.CookieName); err == nil {
		if claims, err := g.tokens.Validate(c.Value); err == nil {
			g.tokens.Revoke(claims)
			g.log.With().Str("user", claims.Subject).Str("session", claims.ID).Logger().Info("logout")
		}
	}
	c := g.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	return c
}

func (g *Gate) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   g.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Authenticate returns the identity carried by r's session cookie.
func (g *Gate) Authenticate(r *http.Request) (*Identity, error) {
	c, err := r.Cookie(g.cfg.CookieName)
	if err != nil {
		return nil, errs.New(errs.ErrKindUnauthenticated, "no session")
	}
	claims, err := g.tokens.Validate(c.Value)
	if err != nil {
		return nil, err
	}
	return &Identity{Username: claims.Subject, Role: claims.Role}, nil
}

// Authorize checks that id may perform action on table.
func (g *Gate) Authorize(id *Identity, table, action string) error {
	if id == nil {
		return errs.New(errs.ErrKindUnauthenticated, "no session")
	}
	return g.policy.Authorize(id.Username, table, action)
}

// CanRead reports whether id may read table. Evaluation errors deny.
func (g *Gate) CanRead(id *Identity, table string) bool {
	if id == nil {
		return false
	}
	ok, err := g.policy.Allowed(id.Username, table, ActionRead)
	return err == nil && ok
}

// RequireSession rejects requests without a valid session before they
// reach next: JSON clients get 401, browsers are sent to /login.
func (g *Gate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authenticate(r)
		if err != nil {
			if WantsJSON(r) {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// WantsJSON reports whether the client asked for JSON rather than HTML.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// ClientAddr is the remote host of r without the port.
func ClientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
