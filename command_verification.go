package users

import (
	"context"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultVerificationTokenLifetime bounds email verification tokens.
const DefaultVerificationTokenLifetime = 24 * time.Hour

// RequestVerificationMessage asks for an email verification token.
type RequestVerificationMessage struct {
	Email string `json:"email"`
}

func (e RequestVerificationMessage) Type() string { return "user.verification.request" }

// ConfirmVerificationMessage confirms ownership with the emailed token.
type ConfirmVerificationMessage struct {
	Token string `json:"token"`
}

func (e ConfirmVerificationMessage) Type() string { return "user.verification.confirm" }

// VerificationHandler issues and confirms email verification tokens. The
// request path is silent for unknown, inactive, and already verified
// accounts so it cannot be used to probe the user table.
type VerificationHandler struct {
	store    UserStore
	tokens   *TokenService
	lifetime time.Duration
	activity ActivitySink
	logger   Logger
}

// NewVerificationHandler creates a handler with sane defaults.
func NewVerificationHandler(store UserStore, tokens *TokenService) *VerificationHandler {
	return &VerificationHandler{
		store:    store,
		tokens:   tokens,
		lifetime: DefaultVerificationTokenLifetime,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithLifetime overrides the verification token lifetime.
func (h *VerificationHandler) WithLifetime(d time.Duration) *VerificationHandler {
	if d > 0 {
		h.lifetime = d
	}
	return h
}

// WithActivitySink sets the sink used to emit verification events.
func (h *VerificationHandler) WithActivitySink(sink ActivitySink) *VerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerificationHandler) WithLogger(logger Logger) *VerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Request issues a verification token bound to the account's current email
// and hands it to observers through the activity event.
func (h *VerificationHandler) Request(ctx context.Context, event RequestVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification request",
		)
	default:
	}

	email := NormalizeEmail(event.Email)

	user, err := h.store.FindByEmail(ctx, email)
	if err != nil && !goerrors.IsNotFound(err) {
		return err
	}
	if user == nil || !user.IsActive || user.IsVerified {
		h.logger.Debug("verification requested for ineligible account")
		return nil
	}

	token, expiresAt, err := h.tokens.IssueVerification(user.ID, user.Email, h.lifetime)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue verification token")
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventVerificationRequested,
		Actor:     ActorRef{ID: strconv.FormatInt(user.ID, 10), Type: "user"},
		UserID:    user.ID,
		Metadata: map[string]any{
			"email":      user.Email,
			"token":      token,
			"expires_at": expiresAt,
		},
	})

	return nil
}

// Confirm validates the token and flips the verified flag. The token must
// reference an existing account whose email still matches the claim.
func (h *VerificationHandler) Confirm(ctx context.Context, event ConfirmVerificationMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification confirm",
		)
	default:
	}

	claims, err := h.tokens.Validate(event.Token, TokenPurposeVerify)
	if err != nil {
		return nil, err
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := h.store.FindByID(ctx, id)
	if err != nil && !goerrors.IsNotFound(err) {
		return nil, err
	}
	if user == nil {
		return nil, ErrTokenMalformed
	}

	if claims.Email == "" || claims.Email != user.Email {
		return nil, ErrTokenMalformed
	}

	if user.IsVerified {
		return nil, ErrUserAlreadyVerified
	}

	user.IsVerified = true
	updated, err := h.store.Update(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verified flag")
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserVerified,
		Actor:     ActorRef{ID: strconv.FormatInt(updated.ID, 10), Type: "user"},
		UserID:    updated.ID,
		Metadata:  map[string]any{"email": updated.Email},
	})

	return updated, nil
}
