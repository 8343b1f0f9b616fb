package users

import (
	"context"
	"strconv"

	goerrors "github.com/goliatone/go-errors"
)

// UpdateProfileMessage carries the allowed-field changes for one account.
// Nil pointers mean "leave unchanged".
type UpdateProfileMessage struct {
	UserID   int64   `json:"user_id"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

func (e UpdateProfileMessage) Type() string { return "user.update" }

// UpdateProfileHandler applies profile changes. Password changes go through
// the same policy and hashing pipeline as registration. The emitted event
// carries a diff of changed fields; secret values are elided.
type UpdateProfileHandler struct {
	store    UserStore
	policy   *PasswordPolicy
	hasher   *PasswordHasher
	activity ActivitySink
	logger   Logger
}

// NewUpdateProfileHandler creates a handler with sane defaults.
func NewUpdateProfileHandler(store UserStore, policy *PasswordPolicy, hasher *PasswordHasher) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		store:    store,
		policy:   policy,
		hasher:   hasher,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit update events.
func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) (*User, error) {
	user, err := h.store.FindByID(ctx, event.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	diff := map[string]any{}

	if event.Email != nil {
		email := NormalizeEmail(*event.Email)
		if email != user.Email {
			diff["email"] = email
			user.Email = email
			// Changing the address voids the previous verification.
			if user.IsVerified {
				user.IsVerified = false
				diff["is_verified"] = false
			}
		}
	}

	if event.Timezone != nil {
		tz, ok := ParseTimezone(*event.Timezone)
		if !ok {
			return nil, goerrors.New("unknown timezone", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithMetadata(map[string]any{"timezone": *event.Timezone})
		}
		if tz != user.Timezone {
			diff["timezone"] = string(tz)
			user.Timezone = tz
		}
	}

	if event.Password != nil {
		if err := h.policy.Validate(*event.Password, user.Email); err != nil {
			return nil, err
		}
		hash, err := h.hasher.Hash(*event.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		// Never the value, only the fact that it changed.
		diff["password"] = "[changed]"
	}

	if len(diff) == 0 {
		return user, nil
	}

	updated, err := h.store.Update(ctx, user)
	if err != nil {
		if IsConflict(err) {
			return nil, err
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not update user")
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserUpdated,
		Actor:     ActorRef{ID: strconv.FormatInt(updated.ID, 10), Type: "user"},
		UserID:    updated.ID,
		Metadata:  map[string]any{"changes": diff},
	})

	return updated, nil
}
