package users

import (
	"context"
	"strconv"

	goerrors "github.com/goliatone/go-errors"
)

// RegisterUserMessage carries the registration input.
type RegisterUserMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Timezone string `json:"timezone"`
	// Superuser and Verified are only set by trusted callers such as the
	// bootstrap command; the HTTP surface never forwards them.
	Superuser bool `json:"-"`
	Verified  bool `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates accounts: policy check, hash, insert, event.
type RegisterUserHandler struct {
	store    UserStore
	policy   *PasswordPolicy
	hasher   *PasswordHasher
	activity ActivitySink
	logger   Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(store UserStore, policy *PasswordPolicy, hasher *PasswordHasher) *RegisterUserHandler {
	return &RegisterUserHandler{
		store:    store,
		policy:   policy,
		hasher:   hasher,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink registration events are emitted to.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	email := NormalizeEmail(event.Email)

	tz, ok := ParseTimezone(event.Timezone)
	if !ok {
		return nil, goerrors.New("unknown timezone", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"timezone": event.Timezone})
	}

	if err := h.policy.Validate(event.Password, email); err != nil {
		return nil, err
	}

	hash, err := h.hasher.Hash(event.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  event.Superuser,
		IsVerified:   event.Verified,
		Timezone:     tz,
	}

	created, err := h.store.Create(ctx, user)
	if err != nil {
		// Conflicts (duplicate email) pass through distinctly; everything
		// else is a persistence failure.
		if IsConflict(err) {
			return nil, err
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	h.logger.Info("user registered", "user_id", created.ID)

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{ID: strconv.FormatInt(created.ID, 10), Type: "user"},
		UserID:    created.ID,
		Metadata: map[string]any{
			"email":    created.Email,
			"timezone": string(created.Timezone),
		},
	})

	return created, nil
}
