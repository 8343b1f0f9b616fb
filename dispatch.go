package users

import (
	"context"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTaskQueue is the redis list background workers consume from.
const DefaultTaskQueue = "tasks"

type taskEnvelope struct {
	ID         string    `json:"id"`
	Task       string    `json:"task"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RedisDispatcher submits fire-and-forget jobs by pushing envelopes onto a
// redis list. Delivery is at-least-once from the caller's point of view;
// execution semantics belong to the worker fleet.
type RedisDispatcher struct {
	client redisCommands
	queue  string
}

var _ TaskDispatcher = (*RedisDispatcher)(nil)

// NewRedisDispatcher wraps an injected redis client. An empty queue name
// falls back to DefaultTaskQueue.
func NewRedisDispatcher(client redisCommands, queue string) *RedisDispatcher {
	if queue == "" {
		queue = DefaultTaskQueue
	}
	return &RedisDispatcher{client: client, queue: queue}
}

// Submit enqueues taskName and returns the job id assigned to it.
func (d *RedisDispatcher) Submit(ctx context.Context, taskName string) (string, error) {
	if taskName == "" {
		return "", goerrors.New("task name is required", goerrors.CategoryBadInput)
	}

	envelope := taskEnvelope{
		ID:         uuid.NewString(),
		Task:       taskName,
		EnqueuedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode task envelope")
	}

	if err := d.client.LPush(ctx, d.queue, payload).Err(); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "task enqueue failed")
	}

	return envelope.ID, nil
}
