// Package admin implements the administrative console's trust domain: a
// server-validated, cookie-backed session carrying an authenticated
// superuser principal. It is fully independent of the API bearer domain;
// the two use different secrets and different validation code paths, so
// neither artifact can be replayed against the other.
package admin

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-users"
)

// SessionSecret signs/encrypts admin session cookies. Distinct type from
// users.TokenSecret so the two secrets cannot be swapped at a call site.
type SessionSecret string

// String redacts the secret so it cannot leak through format verbs.
func (s SessionSecret) String() string { return "[redacted]" }

// GoString redacts the secret in %#v output as well.
func (s SessionSecret) GoString() string { return "admin.SessionSecret([redacted])" }

// CookieEncryptionKey derives the 32-byte key the cookie encryption
// middleware expects from the session secret.
func (s SessionSecret) CookieEncryptionKey() string {
	sum := sha256.Sum256([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

const (
	// DefaultCookieName is the admin session cookie.
	DefaultCookieName = "admin-session"
	// DefaultSessionLifetime bounds a session; only re-login refreshes it.
	DefaultSessionLifetime = 24 * time.Hour

	sessionKeyUserID        = "admin_user_id"
	sessionKeyAuthenticated = "admin_authenticated"
)

// ErrUnauthenticated means the handle carries no trusted admin session.
// Callers redirect to the login view; no structured error leaves the domain.
var ErrUnauthenticated = goerrors.New("admin session unauthenticated", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("ADMIN_UNAUTHENTICATED")

// errLoginFailed is the single generic login failure. Unknown account,
// missing superuser bit, and wrong password are indistinguishable.
var errLoginFailed = goerrors.New("authentication failed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("ADMIN_LOGIN_FAILED")

// Config holds the adapter's knobs.
type Config struct {
	Secret     SessionSecret
	CookieName string
	Lifetime   time.Duration
}

// Auth is the session store adapter for the admin console. Sessions move
// between two states per handle: anonymous and authenticated. Every
// Authenticate call re-validates the principal against the user store; a
// vanished or demoted user tears the session down.
type Auth struct {
	store     *session.Store
	users     users.UserStore
	hasher    *users.PasswordHasher
	logger    users.Logger
	dummyHash string
}

// New builds the adapter. The backing session storage defaults to fiber's
// in-memory store; production wiring injects a shared storage through
// fiber's Storage interface.
func New(cfg Config, store users.UserStore, hasher *users.PasswordHasher, storage fiber.Storage) *Auth {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}

	sessions := session.New(session.Config{
		Expiration:     lifetime,
		KeyLookup:      "cookie:" + cookieName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		Storage:        storage,
	})

	return &Auth{
		store:     sessions,
		users:     store,
		hasher:    hasher,
		logger:    users.NewDefaultLogger(),
		dummyHash: hasher.DummyHash(),
	}
}

// WithLogger overrides the adapter logger.
func (a *Auth) WithLogger(logger users.Logger) *Auth {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Login verifies email+password against the store and, when the account is
// a superuser with a valid password, moves the request's session handle to
// the authenticated state. All failure cases return the same generic error
// and run a bcrypt comparison so they share a timing profile.
func (a *Auth) Login(c *fiber.Ctx, email, password string) error {
	ctx := c.UserContext()

	a.logger.Info("Admin login attempt", "email", users.NormalizeEmail(email))

	user, err := a.users.FindByEmail(ctx, users.NormalizeEmail(email))
	if err != nil && !goerrors.IsNotFound(err) {
		return err
	}
	if user == nil {
		a.hasher.Verify(password, a.dummyHash)
		return errLoginFailed
	}

	if !user.IsActive || !user.IsSuperuser {
		a.hasher.Verify(password, a.dummyHash)
		return errLoginFailed
	}

	valid, _ := a.hasher.Verify(password, user.PasswordHash)
	if !valid {
		return errLoginFailed
	}

	sess, err := a.store.Get(c)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open session")
	}

	sess.Set(sessionKeyUserID, user.ID)
	sess.Set(sessionKeyAuthenticated, true)

	if err := sess.Save(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save session")
	}

	return nil
}

// Authenticate re-validates the request's session handle. Both session keys
// must be present and consistent, and the referenced user must still exist
// with the superuser bit set; otherwise the session is cleared and the
// handle returns to anonymous.
func (a *Auth) Authenticate(c *fiber.Ctx) (*users.User, error) {
	sess, err := a.store.Get(c)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open session")
	}

	userID, _ := sess.Get(sessionKeyUserID).(int64)
	authenticated, _ := sess.Get(sessionKeyAuthenticated).(bool)

	if userID == 0 || !authenticated {
		return nil, ErrUnauthenticated
	}

	user, err := a.revalidate(c.UserContext(), userID)
	if err != nil {
		// Only a rejected principal tears the session down; a store outage
		// leaves the handle intact for the next attempt.
		if goerrors.Is(err, ErrUnauthenticated) {
			if destroyErr := sess.Destroy(); destroyErr != nil {
				a.logger.Warn("failed to clear stale admin session", "error", destroyErr)
			}
		}
		return nil, err
	}

	return user, nil
}

// Logout clears the session; the handle returns to anonymous.
func (a *Auth) Logout(c *fiber.Ctx) error {
	sess, err := a.store.Get(c)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open session")
	}

	if err := sess.Destroy(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to destroy session")
	}

	return nil
}

func (a *Auth) revalidate(ctx context.Context, userID int64) (*users.User, error) {
	user, err := a.users.FindByID(ctx, userID)
	if err != nil && !goerrors.IsNotFound(err) {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}

	if !user.IsActive || !user.IsSuperuser {
		return nil, ErrUnauthenticated
	}

	return user, nil
}
