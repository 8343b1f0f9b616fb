package users

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenSecret signs API bearer tokens. It is a distinct type from the admin
// session secret so the two can never be passed in each other's place.
type TokenSecret string

// String redacts the secret so it cannot leak through format verbs.
func (s TokenSecret) String() string { return "[redacted]" }

// GoString redacts the secret in %#v output as well.
func (s TokenSecret) GoString() string { return "users.TokenSecret([redacted])" }

// Bytes exposes the raw key material for signing.
func (s TokenSecret) Bytes() []byte { return []byte(s) }

// UserStore is the narrow persistence surface the auth core consumes. The
// backing service enforces email uniqueness and per-row consistency.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	SetPasswordHash(ctx context.Context, id int64, hash string) error
}

// UserLister enumerates accounts. Only console surfaces need it, so it is
// split from UserStore rather than forcing every store to implement it.
type UserLister interface {
	List(ctx context.Context) ([]*User, error)
}

// Cache is an ephemeral key-value collaborator. It has no authentication
// relevance; the liveness endpoints exercise it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// TaskDispatcher submits fire-and-forget background jobs and returns the
// job id assigned to the submission.
type TaskDispatcher interface {
	Submit(ctx context.Context, taskName string) (string, error)
}

// NewDefaultLogger returns the stdout fallback logger used when callers do
// not inject their own.
func NewDefaultLogger() Logger { return defLogger{} }

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] USERS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] USERS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] USERS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] USERS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
