package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scandoc/scandoc/internal/logging"
)

// statusKeyPrefix namespaces per-job status hashes in Redis.
const statusKeyPrefix = "scandoc:jobs:"

// statusTTL keeps finished job status around long enough for pollers.
const statusTTL = 24 * time.Hour

// StatusPublisher mirrors job progress into a Redis hash so API consumers
// can poll status without touching the database.
type StatusPublisher struct {
	client *redis.Client
	logger *logging.Logger
}

// NewStatusPublisher connects to Redis at redisURL.
func NewStatusPublisher(redisURL string, logger *logging.Logger) (*StatusPublisher, error) {
	if logger == nil {
		logger = logging.NewLogger("status")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return &StatusPublisher{client: redis.NewClient(opt), logger: logger}, nil
}

// Publish writes the status and any extra fields onto the job's hash.
// Publishing is best effort; a Redis hiccup must not fail the job.
func (p *StatusPublisher) Publish(ctx context.Context, jobID, status string, fields map[string]interface{}) {
	key := statusKeyPrefix + jobID

	values := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		values[k] = v
	}

	pipe := p.client.Pipeline()
	pipe.HSet(ctx, key, values)
	pipe.Expire(ctx, key, statusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Warn("status publish failed", "job", jobID, "status", status, "error", err.Error())
	}
}

// Close closes the Redis connection.
func (p *StatusPublisher) Close() error {
	return p.client.Close()
}
