package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Enqueuer submits processing tasks onto the queue.
type Enqueuer struct {
	client *asynq.Client
	queue  string
}

// NewEnqueuer creates a task client for the named queue.
func NewEnqueuer(redisURL, queueName string) (*Enqueuer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(redisOpt), queue: queueName}, nil
}

// Enqueue submits one document for processing and returns the task ID.
func (e *Enqueuer) Enqueue(ctx context.Context, payload ProcessPayload) (string, error) {
	task, err := NewProcessTask(payload)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queue), asynq.MaxRetry(0))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return info.ID, nil
}

// Close closes the underlying Redis connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
