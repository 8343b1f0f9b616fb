package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newResetFixture(store users.UserStore) (*users.InitializePasswordResetHandler, *users.FinalizePasswordResetHandler, *users.TokenService, *users.PasswordHasher, *recordingSink) {
	tokens := users.NewTokenService(testSecret, time.Hour, "test-issuer", testLogger{})
	hasher := users.NewPasswordHasher(bcrypt.MinCost)
	sink := &recordingSink{}

	initialize := users.NewInitializePasswordResetHandler(store, tokens).
		WithActivitySink(sink).
		WithLogger(testLogger{})
	finalize := users.NewFinalizePasswordResetHandler(store, tokens, users.DefaultPasswordPolicy(), hasher).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	return initialize, finalize, tokens, hasher, sink
}

func TestInitializePasswordResetHandler_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("emits a reset token for an active account", func(t *testing.T) {
		store := &MockUserStore{}
		initialize, _, tokens, hasher, sink := newResetFixture(store)
		user := activeUser(t, hasher, "password123")

		store.On("FindByEmail", mock.Anything, "user@example.com").Return(user, nil)

		err := initialize.Execute(ctx, users.InitializePasswordResetMessage{Email: "user@example.com"})
		require.NoError(t, err)

		require.Len(t, sink.events, 1)
		event := sink.events[0]
		assert.Equal(t, users.ActivityEventPasswordResetRequested, event.EventType)

		token, ok := event.Metadata["token"].(string)
		require.True(t, ok)

		claims, err := tokens.Validate(token, users.TokenPurposeReset)
		require.NoError(t, err)
		assert.Equal(t, users.HashFingerprint(user.PasswordHash), claims.Fingerprint)
	})

	t.Run("unknown account succeeds silently", func(t *testing.T) {
		store := &MockUserStore{}
		initialize, _, _, _, sink := newResetFixture(store)

		store.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, users.ErrUserNotFound)

		err := initialize.Execute(ctx, users.InitializePasswordResetMessage{Email: "nobody@example.com"})
		assert.NoError(t, err)
		assert.Empty(t, sink.events)
	})

	t.Run("store outage surfaces instead of a silent success", func(t *testing.T) {
		store := &MockUserStore{}
		initialize, _, _, _, sink := newResetFixture(store)

		store.On("FindByEmail", mock.Anything, "user@example.com").Return(nil, errStoreDown)

		err := initialize.Execute(ctx, users.InitializePasswordResetMessage{Email: "user@example.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, errStoreDown)
		assert.Empty(t, sink.events)
	})

	t.Run("inactive account succeeds silently", func(t *testing.T) {
		store := &MockUserStore{}
		initialize, _, _, hasher, sink := newResetFixture(store)
		user := activeUser(t, hasher, "password123")
		user.IsActive = false

		store.On("FindByEmail", mock.Anything, "user@example.com").Return(user, nil)

		err := initialize.Execute(ctx, users.InitializePasswordResetMessage{Email: "user@example.com"})
		assert.NoError(t, err)
		assert.Empty(t, sink.events)
	})
}

func TestFinalizePasswordResetHandler_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the password with a valid token", func(t *testing.T) {
		store := &MockUserStore{}
		_, finalize, tokens, hasher, sink := newResetFixture(store)
		user := activeUser(t, hasher, "old-password")

		token, _, err := tokens.IssueReset(user.ID, user.PasswordHash, time.Hour)
		require.NoError(t, err)

		store.On("FindByID", mock.Anything, int64(42)).Return(user, nil)
		store.On("SetPasswordHash", mock.Anything, int64(42), mock.MatchedBy(func(hash string) bool {
			valid, _ := hasher.Verify("new-password", hash)
			return valid
		})).Return(nil)

		err = finalize.Execute(ctx, users.FinalizePasswordResetMessage{
			Token:    token,
			Password: "new-password",
		})
		require.NoError(t, err)

		require.Len(t, sink.events, 1)
		assert.Equal(t, users.ActivityEventPasswordResetCompleted, sink.events[0].EventType)
		store.AssertExpectations(t)
	})

	t.Run("token is spent once the password changes", func(t *testing.T) {
		store := &MockUserStore{}
		_, finalize, tokens, hasher, _ := newResetFixture(store)
		user := activeUser(t, hasher, "old-password")

		token, _, err := tokens.IssueReset(user.ID, user.PasswordHash, time.Hour)
		require.NoError(t, err)

		// simulate completion: the stored hash is no longer the one the
		// token was fingerprinted against
		changed, err := hasher.Hash("new-password")
		require.NoError(t, err)
		user.PasswordHash = changed

		store.On("FindByID", mock.Anything, int64(42)).Return(user, nil)

		err = finalize.Execute(ctx, users.FinalizePasswordResetMessage{
			Token:    token,
			Password: "another-password",
		})
		assert.ErrorIs(t, err, users.ErrTokenMalformed)
		store.AssertNotCalled(t, "SetPasswordHash")
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		store := &MockUserStore{}
		hasher := users.NewPasswordHasher(bcrypt.MinCost)

		issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		past := users.NewTokenService(testSecret, time.Hour, "test-issuer", testLogger{}).
			WithTimeFunc(func() time.Time { return issued })
		user := activeUser(t, hasher, "old-password")

		token, _, err := past.IssueReset(user.ID, user.PasswordHash, time.Minute)
		require.NoError(t, err)

		present := users.NewTokenService(testSecret, time.Hour, "test-issuer", testLogger{}).
			WithTimeFunc(func() time.Time { return issued.Add(2 * time.Minute) })
		finalize := users.NewFinalizePasswordResetHandler(store, present, users.DefaultPasswordPolicy(), hasher).
			WithLogger(testLogger{})

		err = finalize.Execute(ctx, users.FinalizePasswordResetMessage{
			Token:    token,
			Password: "new-password",
		})
		assert.ErrorIs(t, err, users.ErrTokenExpired)
	})

	t.Run("rejects an access token", func(t *testing.T) {
		store := &MockUserStore{}
		_, finalize, tokens, _, _ := newResetFixture(store)

		token, _, err := tokens.Issue(42)
		require.NoError(t, err)

		err = finalize.Execute(ctx, users.FinalizePasswordResetMessage{
			Token:    token,
			Password: "new-password",
		})
		assert.ErrorIs(t, err, users.ErrTokenMalformed)
	})

	t.Run("rejects tokens for deactivated accounts", func(t *testing.T) {
		store := &MockUserStore{}
		_, finalize, tokens, hasher, _ := newResetFixture(store)
		user := activeUser(t, hasher, "old-password")
		user.IsActive = false

		token, _, err := tokens.IssueReset(user.ID, user.PasswordHash, time.Hour)
		require.NoError(t, err)

		store.On("FindByID", mock.Anything, int64(42)).Return(user, nil)

		err = finalize.Execute(ctx, users.FinalizePasswordResetMessage{
			Token:    token,
			Password: "new-password",
		})
		assert.ErrorIs(t, err, users.ErrTokenMalformed)
	})

	t.Run("new password must satisfy the policy", func(t *testing.T) {
		store := &MockUserStore{}
		_, finalize, tokens, hasher, _ := newResetFixture(store)
		user := activeUser(t, hasher, "old-password")

		token, _, err := tokens.IssueReset(user.ID, user.PasswordHash, time.Hour)
		require.NoError(t, err)

		store.On("FindByID", mock.Anything, int64(42)).Return(user, nil)

		err = finalize.Execute(ctx, users.FinalizePasswordResetMessage{
			Token:    token,
			Password: "short",
		})
		assert.True(t, users.IsPolicyViolation(err))
		store.AssertNotCalled(t, "SetPasswordHash")
	})
}
