/**
 * Queue Consumer
 *
 * Pulls document:process tasks off the Redis-backed queue, runs them
 * through the processor and persists the outcome.
 */

package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	scanerrors "github.com/scandoc/scandoc/internal/errors"
	"github.com/scandoc/scandoc/internal/logging"
	"github.com/scandoc/scandoc/internal/processor"
	"github.com/scandoc/scandoc/internal/profile"
	"github.com/scandoc/scandoc/internal/storage"
)

// Consumer runs the asynq server and dispatches processing tasks.
type Consumer struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	processor  *processor.Processor
	aggregator *processor.Aggregator
	store      *storage.Manager
	status     *StatusPublisher
	defaults   profile.Profile
	logger     *logging.Logger
}

// ConsumerConfig holds the configuration for NewConsumer.
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Processor   *processor.Processor
	Aggregator  *processor.Aggregator
	Store       *storage.Manager
	Status      *StatusPublisher
	// DefaultProfile is the worker's environment-derived profile; payloads
	// layer on top of it. Falls back to the balanced profile when unset.
	DefaultProfile profile.Profile
	Logger         *logging.Logger
}

// NewConsumer creates a queue consumer bound to the named queue.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("consumer")
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = processor.NewAggregator()
	}
	if cfg.DefaultProfile.Language == "" {
		cfg.DefaultProfile = profile.Balanced()
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.QueueName: 1},
	})

	c := &Consumer{
		server:     server,
		mux:        asynq.NewServeMux(),
		processor:  cfg.Processor,
		aggregator: cfg.Aggregator,
		store:      cfg.Store,
		status:     cfg.Status,
		defaults:   cfg.DefaultProfile,
		logger:     cfg.Logger,
	}
	c.mux.HandleFunc(TaskTypeProcessDocument, c.handleProcessDocument)
	return c, nil
}

// Run blocks serving tasks until Shutdown is called.
func (c *Consumer) Run() error {
	return c.server.Run(c.mux)
}

// Shutdown drains in-flight tasks and stops the server.
func (c *Consumer) Shutdown() {
	c.server.Shutdown()
}

func (c *Consumer) handleProcessDocument(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseProcessPayload(task)
	if err != nil {
		// A malformed payload will never parse on retry.
		c.logger.Error("rejecting malformed task", "error", err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	prof, err := payload.BuildProfile(c.defaults)
	if err != nil {
		c.publishStatus(ctx, payload.JobID, "failed", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	c.logger.Info("task received",
		"job", payload.JobID,
		"document", payload.DocumentPath,
		"profile", prof.Level.String())
	c.publishStatus(ctx, payload.JobID, "processing", nil)

	result, err := c.processor.Process(ctx, payload.DocumentPath, prof)
	if err != nil {
		c.publishStatus(ctx, payload.JobID, "failed", map[string]interface{}{
			"error":      err.Error(),
			"error_code": string(scanerrors.CodeOf(err)),
		})
		if c.store != nil {
			if serr := c.store.RecordFailure(ctx, payload.JobID, result.DocumentName, err); serr != nil {
				c.logger.Error("failed to record job failure", "job", payload.JobID, "error", serr.Error())
			}
		}
		// Rasterization and preflight failures are deterministic.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	plain := c.aggregator.PlainText(result)
	markdown := c.aggregator.Markdown(result)

	if c.store != nil {
		if _, err := c.store.PersistResult(ctx, payload.JobID, result, plain, markdown); err != nil {
			c.publishStatus(ctx, payload.JobID, "failed", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
	}

	c.publishStatus(ctx, payload.JobID, string(result.Status), map[string]interface{}{
		"confidence": fmt.Sprintf("%.2f", result.Confidence),
		"pages":      result.PageCount(),
		"attempts":   result.Attempts,
		"profile":    result.Profile.Level.String(),
	})
	return nil
}

func (c *Consumer) publishStatus(ctx context.Context, jobID, status string, fields map[string]interface{}) {
	if c.status == nil {
		return
	}
	c.status.Publish(ctx, jobID, status, fields)
}
