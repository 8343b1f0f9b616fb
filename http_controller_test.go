package users_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type apiFixture struct {
	app    *fiber.App
	repo   users.Users
	tokens *users.TokenService
	sink   *recordingSink
	redis  *stubRedis
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db := setupTestDB(t)
	repo := users.NewUsersRepository(db)
	hasher := users.NewPasswordHasher(bcrypt.MinCost)
	policy := users.DefaultPasswordPolicy()
	tokens := users.NewTokenService(testSecret, time.Hour, "test-issuer", testLogger{})
	sink := &recordingSink{}
	stub := newStubRedis()

	auther := users.NewAuthenticator(repo, hasher, tokens).
		WithLogger(testLogger{}).
		WithActivitySink(sink)

	controller := users.NewAPIController(
		users.WithControllerLogger(testLogger{}),
		users.WithAuther(auther),
		users.WithLifecycleHandlers(
			users.NewRegisterUserHandler(repo, policy, hasher).WithActivitySink(sink).WithLogger(testLogger{}),
			users.NewInitializePasswordResetHandler(repo, tokens).WithActivitySink(sink).WithLogger(testLogger{}),
			users.NewFinalizePasswordResetHandler(repo, tokens, policy, hasher).WithActivitySink(sink).WithLogger(testLogger{}),
			users.NewVerificationHandler(repo, tokens).WithActivitySink(sink).WithLogger(testLogger{}),
			users.NewUpdateProfileHandler(repo, policy, hasher).WithActivitySink(sink).WithLogger(testLogger{}),
		),
		users.WithCache(users.NewRedisCache(stub)),
		users.WithTaskDispatcher(users.NewRedisDispatcher(stub, "")),
	)

	app := fiber.New()
	users.RegisterAPIRoutes(app.Group("/api/v1"), controller)

	return &apiFixture{app: app, repo: repo, tokens: tokens, sink: sink, redis: stub}
}

func (f *apiFixture) request(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return res
}

func decodeJSON(t *testing.T, res *http.Response, target any) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(target))
}

func (f *apiFixture) registerAndLogin(t *testing.T, email, password string) string {
	t.Helper()

	res := f.request(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = f.request(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var token users.BearerToken
	decodeJSON(t, res, &token)
	require.NotEmpty(t, token.AccessToken)
	return token.AccessToken
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAPI_Register(t *testing.T) {
	t.Run("creates an account", func(t *testing.T) {
		f := newAPIFixture(t)

		res := f.request(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":    "new@example.com",
			"password": "password123",
			"timezone": "America/New_York",
		}, nil)
		assert.Equal(t, http.StatusCreated, res.StatusCode)

		var created users.User
		decodeJSON(t, res, &created)
		assert.Equal(t, "new@example.com", created.Email)
		assert.True(t, created.IsActive)
		assert.False(t, created.IsSuperuser)
		assert.Equal(t, users.TimezoneAmericaNewYork, created.Timezone)
	})

	t.Run("response never carries the hash", func(t *testing.T) {
		f := newAPIFixture(t)

		res := f.request(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":    "safe@example.com",
			"password": "password123",
		}, nil)
		require.Equal(t, http.StatusCreated, res.StatusCode)

		raw, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		res.Body.Close()
		assert.NotContains(t, string(raw), "password")
		assert.NotContains(t, string(raw), "$2a$")
	})

	t.Run("duplicate email returns 409", func(t *testing.T) {
		f := newAPIFixture(t)
		f.registerAndLogin(t, "dup@example.com", "password123")

		res := f.request(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":    "dup@example.com",
			"password": "password123",
		}, nil)
		assert.Equal(t, http.StatusConflict, res.StatusCode)
	})

	t.Run("policy violation returns 400 with the reason", func(t *testing.T) {
		f := newAPIFixture(t)

		res := f.request(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":    "weak@example.com",
			"password": "short",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)

		var body struct {
			Error struct {
				Message  string `json:"message"`
				TextCode string `json:"text_code"`
			} `json:"error"`
		}
		decodeJSON(t, res, &body)
		assert.Equal(t, "Password should be at least 8 characters", body.Error.Message)
	})

	t.Run("malformed email is rejected by payload validation", func(t *testing.T) {
		f := newAPIFixture(t)

		res := f.request(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":    "not-an-email",
			"password": "password123",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestAPI_Login(t *testing.T) {
	t.Run("wrong password and unknown account are indistinguishable", func(t *testing.T) {
		f := newAPIFixture(t)
		f.registerAndLogin(t, "known@example.com", "password123")

		readFailure := func(email string) (int, string) {
			res := f.request(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
				"email":    email,
				"password": "wrong-password",
			}, nil)
			raw, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			res.Body.Close()
			return res.StatusCode, string(raw)
		}

		wrongStatus, wrongBody := readFailure("known@example.com")
		missStatus, missBody := readFailure("unknown@example.com")

		assert.Equal(t, http.StatusUnauthorized, wrongStatus)
		assert.Equal(t, wrongStatus, missStatus)
		assert.Equal(t, wrongBody, missBody)
	})
}

func TestAPI_Me(t *testing.T) {
	t.Run("returns the authenticated user", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.registerAndLogin(t, "me@example.com", "password123")

		res := f.request(t, http.MethodGet, "/api/v1/users/me", nil, bearer(token))
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var me users.User
		decodeJSON(t, res, &me)
		assert.Equal(t, "me@example.com", me.Email)
	})

	t.Run("rejects missing and malformed tokens", func(t *testing.T) {
		f := newAPIFixture(t)

		res := f.request(t, http.MethodGet, "/api/v1/users/me", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

		res = f.request(t, http.MethodGet, "/api/v1/users/me", nil, bearer("garbage"))
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})
}

func TestAPI_UpdateMe(t *testing.T) {
	t.Run("changes the timezone", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.registerAndLogin(t, "tz@example.com", "password123")

		res := f.request(t, http.MethodPatch, "/api/v1/users/me", map[string]string{
			"timezone": "Pacific/Auckland",
		}, bearer(token))
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var updated users.User
		decodeJSON(t, res, &updated)
		assert.Equal(t, users.TimezonePacificAuckland, updated.Timezone)
	})

	t.Run("email change survives a second login", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.registerAndLogin(t, "old@example.com", "password123")

		res := f.request(t, http.MethodPatch, "/api/v1/users/me", map[string]string{
			"email": "renamed@example.com",
		}, bearer(token))
		require.Equal(t, http.StatusOK, res.StatusCode)

		res = f.request(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    "renamed@example.com",
			"password": "password123",
		}, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})
}

func TestAPI_PasswordResetFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAndLogin(t, "reset@example.com", "password123")

	res := f.request(t, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "reset@example.com",
	}, nil)
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	var resetToken string
	for _, event := range f.sink.events {
		if event.EventType == users.ActivityEventPasswordResetRequested {
			resetToken = event.Metadata["token"].(string)
		}
	}
	require.NotEmpty(t, resetToken)

	t.Run("completes the reset and the token is spent", func(t *testing.T) {
		res := f.request(t, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
			"token":    resetToken,
			"password": "changed-password",
		}, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		res = f.request(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    "reset@example.com",
			"password": "changed-password",
		}, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		// replay fails: the stored hash no longer matches the fingerprint
		res = f.request(t, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
			"token":    resetToken,
			"password": "another-password",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("unknown account still gets 202", func(t *testing.T) {
		res := f.request(t, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
			"email": "nobody@example.com",
		}, nil)
		assert.Equal(t, http.StatusAccepted, res.StatusCode)
	})
}

func TestAPI_VerificationFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAndLogin(t, "verify@example.com", "password123")

	res := f.request(t, http.MethodPost, "/api/v1/auth/request-verify-token", map[string]string{
		"email": "verify@example.com",
	}, nil)
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	var verifyToken string
	for _, event := range f.sink.events {
		if event.EventType == users.ActivityEventVerificationRequested {
			verifyToken = event.Metadata["token"].(string)
		}
	}
	require.NotEmpty(t, verifyToken)

	res = f.request(t, http.MethodPost, "/api/v1/auth/verify", map[string]string{
		"token": verifyToken,
	}, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var verified users.User
	decodeJSON(t, res, &verified)
	assert.True(t, verified.IsVerified)

	t.Run("second confirm reports already verified", func(t *testing.T) {
		res := f.request(t, http.MethodPost, "/api/v1/auth/verify", map[string]string{
			"token": verifyToken,
		}, nil)
		assert.Equal(t, http.StatusConflict, res.StatusCode)
	})
}

func TestAPI_Liveness(t *testing.T) {
	f := newAPIFixture(t)
	token := f.registerAndLogin(t, "ops@example.com", "password123")

	t.Run("ping", func(t *testing.T) {
		res := f.request(t, http.MethodGet, "/api/v1/ping", nil, bearer(token))
		require.Equal(t, http.StatusOK, res.StatusCode)

		raw, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, "pong", string(raw))
	})

	t.Run("ping requires auth", func(t *testing.T) {
		res := f.request(t, http.MethodGet, "/api/v1/ping", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("ping_redis round trips through the cache", func(t *testing.T) {
		res := f.request(t, http.MethodGet, "/api/v1/ping_redis", nil, bearer(token))
		require.Equal(t, http.StatusOK, res.StatusCode)

		raw, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, "pong from redis server", string(raw))
	})

	t.Run("helloworld enqueues a task", func(t *testing.T) {
		res := f.request(t, http.MethodPost, "/api/v1/celery/helloworld", nil, bearer(token))
		require.Equal(t, http.StatusOK, res.StatusCode)

		var body struct {
			TaskID string `json:"task_id"`
			Status string `json:"status"`
		}
		decodeJSON(t, res, &body)
		assert.NotEmpty(t, body.TaskID)
		assert.Len(t, f.redis.lists[users.DefaultTaskQueue], 1)
	})
}

func TestFormatValidationErrorToMap(t *testing.T) {
	err := users.LoginPayload{}.Validate()
	require.Error(t, err)

	fields := users.FormatValidationErrorToMap(err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")

	t.Run("non validation errors collapse to payload", func(t *testing.T) {
		fields := users.FormatValidationErrorToMap(fmt.Errorf("boom"))
		assert.Equal(t, "boom", fields["payload"])
	})

	t.Run("nil error yields empty map", func(t *testing.T) {
		assert.Empty(t, users.FormatValidationErrorToMap(nil))
	})
}
