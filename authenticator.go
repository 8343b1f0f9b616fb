package users

import (
	"context"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// BearerToken is the artifact returned by a successful API login.
type BearerToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Auther authenticates API clients: it verifies credentials against the
// user store, upgrades stale hashes transparently, and mints bearer tokens.
type Auther struct {
	store        UserStore
	hasher       *PasswordHasher
	tokens       *TokenService
	activitySink ActivitySink
	logger       Logger
	dummyHash    string
}

// NewAuthenticator returns a new Auther.
func NewAuthenticator(store UserStore, hasher *PasswordHasher, tokens *TokenService) *Auther {
	return &Auther{
		store:        store,
		hasher:       hasher,
		tokens:       tokens,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		dummyHash:    hasher.DummyHash(),
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures the sink lifecycle events are emitted to.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the token service backing this authenticator.
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// Login verifies email+password and mints a bearer token. Unknown accounts,
// inactive accounts, and wrong passwords all fail with the same generic
// ErrAuthenticationFailed; a dummy hash comparison keeps the miss paths on
// the same timing profile as a real mismatch. Store failures other than a
// lookup miss propagate unchanged.
func (s *Auther) Login(ctx context.Context, email, password string) (*BearerToken, error) {
	email = NormalizeEmail(email)

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil && !goerrors.IsNotFound(err) {
		return nil, err
	}
	if user == nil {
		s.hasher.Verify(password, s.dummyHash)
		return nil, s.loginFailure(ctx, email, 0)
	}

	if !user.IsActive {
		s.hasher.Verify(password, s.dummyHash)
		return nil, s.loginFailure(ctx, email, user.ID)
	}

	valid, rehashNeeded := s.hasher.Verify(password, user.PasswordHash)
	if !valid {
		return nil, s.loginFailure(ctx, email, user.ID)
	}

	if rehashNeeded {
		s.rehash(ctx, user, password)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.logger.Error("login token issuance failed", "error", err)
		return nil, err
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: strconv.FormatInt(user.ID, 10), Type: "user"},
		UserID:    user.ID,
		Metadata:  map[string]any{"email": email},
	})

	return &BearerToken{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// CurrentUser resolves a presented bearer token to its active user. Any
// token rejection or a missing/inactive account yields an auth failure; the
// caller treats the request as anonymous.
func (s *Auther) CurrentUser(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Validate(token, TokenPurposeAccess)
	if err != nil {
		return nil, err
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil && !goerrors.IsNotFound(err) {
		return nil, err
	}
	if user == nil {
		return nil, ErrAuthenticationFailed
	}

	if !user.IsActive {
		return nil, ErrAuthenticationFailed
	}

	return user, nil
}

// rehash recomputes the stored hash under current parameters. The upgrade
// is best effort and never blocks the login that triggered it.
func (s *Auther) rehash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("rehash-on-verify hash failed", "user_id", user.ID, "error", err)
		return
	}

	if err := s.store.SetPasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.Warn("rehash-on-verify persist failed", "user_id", user.ID, "error", err)
		return
	}

	user.PasswordHash = hash
	s.logger.Debug("upgraded password hash", "user_id", user.ID)
}

func (s *Auther) loginFailure(ctx context.Context, email string, userID int64) error {
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		UserID:    userID,
		Metadata:  map[string]any{"email": email},
	})
	return ErrAuthenticationFailed
}
