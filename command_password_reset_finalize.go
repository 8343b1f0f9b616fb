package users

import (
	"context"
	"strconv"

	goerrors "github.com/goliatone/go-errors"
)

// FinalizePasswordResetMessage completes a reset with the emailed token.
type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

// FinalizePasswordResetHandler validates the reset token, re-runs the
// password policy against the new password, and replaces the stored hash.
// Reset tokens carry a fingerprint of the hash current at issuance, so a
// token is implicitly spent the moment the password changes.
type FinalizePasswordResetHandler struct {
	store    UserStore
	tokens   *TokenService
	policy   *PasswordPolicy
	hasher   *PasswordHasher
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(store UserStore, tokens *TokenService, policy *PasswordPolicy, hasher *PasswordHasher) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		store:    store,
		tokens:   tokens,
		policy:   policy,
		hasher:   hasher,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	claims, err := h.tokens.Validate(event.Token, TokenPurposeReset)
	if err != nil {
		return err
	}

	id, err := claims.UserID()
	if err != nil {
		return err
	}

	user, err := h.store.FindByID(ctx, id)
	if err != nil && !goerrors.IsNotFound(err) {
		return err
	}
	if user == nil {
		return ErrTokenMalformed
	}

	if !user.IsActive {
		return ErrTokenMalformed
	}

	// A fingerprint mismatch means the password changed after issuance:
	// the token has been used already or superseded.
	if claims.Fingerprint != HashFingerprint(user.PasswordHash) {
		return ErrTokenMalformed
	}

	if err := h.policy.Validate(event.Password, user.Email); err != nil {
		return err
	}

	hash, err := h.hasher.Hash(event.Password)
	if err != nil {
		return err
	}

	if err := h.store.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetCompleted,
		Actor:     ActorRef{ID: strconv.FormatInt(user.ID, 10), Type: "user"},
		UserID:    user.ID,
		Metadata:  map[string]any{"email": user.Email},
	})

	return nil
}
