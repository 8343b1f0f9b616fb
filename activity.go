package users

import (
	"context"
	"time"
)

// ActivityEventType enumerates the lifecycle events the core emits.
type ActivityEventType string

const (
	ActivityEventUserRegistered         ActivityEventType = "user.registered"
	ActivityEventLoginSuccess           ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure           ActivityEventType = "auth.login.failure"
	ActivityEventPasswordResetRequested ActivityEventType = "auth.password.reset.requested"
	ActivityEventPasswordResetCompleted ActivityEventType = "auth.password.reset.completed"
	ActivityEventVerificationRequested  ActivityEventType = "user.verification.requested"
	ActivityEventUserVerified           ActivityEventType = "user.verified"
	ActivityEventUserUpdated            ActivityEventType = "user.updated"
)

// ActorRef identifies who caused an event: the user themselves, an admin,
// or the system.
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

// ActivityEvent captures audit-friendly information about a lifecycle
// operation. Metadata never contains plaintext passwords or stored hashes.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     int64
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// The emitting operation does not know its observers; any number of sinks
// can be fanned out with ActivityBroadcast.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// ActivityBroadcast fans one event out to every sink. Sinks run in order;
// the first error is returned after all sinks ran.
func ActivityBroadcast(sinks ...ActivitySink) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		var first error
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink record error: %v", err)
	}
}
