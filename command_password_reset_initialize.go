package users

import (
	"context"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultResetTokenLifetime bounds password reset tokens.
const DefaultResetTokenLifetime = 24 * time.Hour

// InitializePasswordResetMessage starts a password reset for an email.
type InitializePasswordResetMessage struct {
	Email string `json:"email"`
}

func (e InitializePasswordResetMessage) Type() string { return "user.password_reset.initialize" }

// InitializePasswordResetHandler issues a single-use, time-bounded reset
// token. The token reaches the account owner through the activity event; an
// out-of-scope notification observer delivers it. Unknown and inactive
// accounts succeed silently so the operation cannot enumerate accounts.
type InitializePasswordResetHandler struct {
	store    UserStore
	tokens   *TokenService
	lifetime time.Duration
	activity ActivitySink
	logger   Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(store UserStore, tokens *TokenService) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		store:    store,
		tokens:   tokens,
		lifetime: DefaultResetTokenLifetime,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithLifetime overrides the reset token lifetime.
func (h *InitializePasswordResetHandler) WithLifetime(d time.Duration) *InitializePasswordResetHandler {
	if d > 0 {
		h.lifetime = d
	}
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	email := NormalizeEmail(event.Email)

	user, err := h.store.FindByEmail(ctx, email)
	if err != nil && !goerrors.IsNotFound(err) {
		return err
	}
	if user == nil || !user.IsActive {
		h.logger.Debug("password reset requested for ineligible account")
		return nil
	}

	token, expiresAt, err := h.tokens.IssueReset(user.ID, user.PasswordHash, h.lifetime)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue reset token")
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor:     ActorRef{ID: strconv.FormatInt(user.ID, 10), Type: "user"},
		UserID:    user.ID,
		Metadata: map[string]any{
			"email":      email,
			"token":      token,
			"expires_at": expiresAt,
		},
	})

	return nil
}
