// Package auth guards the state write path with a single operator
// password and signed, time limited session cookies.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"

	"github.com/wufe/catears-dashboard/internal/clock"
)

const CookieName = "catears_session"

// ErrMisconfigured is wrapped by NewGate errors caused by missing or
// unparseable secrets.
var ErrMisconfigured = errors.New("auth: gate misconfigured")

type GateConfig struct {
	// Secret signs session tokens.
	Secret string
	// PasswordHash is a HashPassword result.
	PasswordHash string
	// Username, when set, must match at login. Any non-empty username is
	// accepted otherwise.
	Username     string
	TTL          time.Duration
	SecureCookie bool
	Clock        clock.Clock
	// MaxRevoked bounds the revocation list.
	MaxRevoked int
}

type Gate struct {
	signer   *Signer
	hash     []byte
	username string
	ttl      time.Duration
	secure   bool
	clock    clock.Clock
	revoked  gcache.Cache
}

func NewGate(cfg GateConfig) (*Gate, error) {
	var errs []error
	signer, err := NewSigner(cfg.Secret)
	if err != nil {
		errs = append(errs, err)
	}
	hash, err := ParseHash(cfg.PasswordHash)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrMisconfigured, errors.Join(errs...))
	}

	if cfg.TTL <= 0 {
		cfg.TTL = SessionTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.MaxRevoked <= 0 {
		cfg.MaxRevoked = 1024
	}

	return &Gate{
		signer:   signer,
		hash:     hash,
		username: cfg.Username,
		ttl:      cfg.TTL,
		secure:   cfg.SecureCookie,
		clock:    cfg.Clock,
		revoked:  gcache.New(cfg.MaxRevoked).LRU().Clock(cfg.Clock).Build(),
	}, nil
}

// Login checks the credentials and mints a new session token.
func (g *Gate) Login(username, password string) (string, Session, error) {
	// the hash is always compared so a wrong username costs the same
	passwordErr := verifyPassword(g.hash, password)
	if username == "" || (g.username != "" && username != g.username) || passwordErr != nil {
		return "", Session{}, ErrInvalidCredentials
	}

	now := g.clock.Now()
	session := Session{
		ID:        uuid.NewString(),
		Username:  username,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(g.ttl).Unix(),
	}
	token, err := g.signer.Mint(session)
	if err != nil {
		return "", Session{}, err
	}
	return token, session, nil
}

// Verify checks a raw token.
func (g *Gate) Verify(token string) (Session, error) {
	session, err := g.signer.VerifyAt(token, g.clock.Now())
	if err != nil {
		return Session{}, err
	}
	// Get, unlike Has, checks expiry against the gate's clock.
	if _, err := g.revoked.Get(session.ID); err == nil {
		return Session{}, ErrRevoked
	}
	return session, nil
}

// Authorize verifies the session cookie carried by r.
func (g *Gate) Authorize(r *http.Request) (Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, ErrNoSession
	}
	return g.Verify(cookie.Value)
}

// Logout revokes the session carried by r, if any, until it would have
// expired anyway.
func (g *Gate) Logout(r *http.Request) {
	session, err := g.Authorize(r)
	if err != nil {
		return
	}
	remaining := session.Expires().Sub(g.clock.Now())
	if remaining <= 0 {
		return
	}
	_ = g.revoked.SetWithExpire(session.ID, struct{}{}, remaining)
}

func (g *Gate) SetCookie(w http.ResponseWriter, token string, session Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.Expires(),
		MaxAge:   int(g.ttl / time.Second),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (g *Gate) ClearCookie(w http.ResponseWriter) {
	ExpireCookie(w, g.secure)
}

// ExpireCookie tells the browser to drop the session cookie. It works
// without a Gate so logout succeeds even on a misconfigured server.
func ExpireCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
