package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client enqueues sync work onto the task queue.
type Client struct {
	client *asynq.Client
	log    zerolog.Logger
}

func NewClient(redisOpt asynq.RedisClientOpt, log zerolog.Logger) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

// EnqueueSync queues one sync pass for the given connection. The uniqueness
// window stops a backlog of identical jobs from piling up when syncs are
// triggered faster than they complete.
func (c *Client) EnqueueSync(ctx context.Context, userID, tenantID string) error {
	task, err := NewSyncTenantTask(userID, tenantID)
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Unique(5*time.Minute),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			c.log.Debug().
				Str("tenantID", tenantID).
				Msg("sync already queued, skipping")
			return nil
		}
		return errors.Wrapf(err, "enqueueing sync for tenant %s", tenantID)
	}

	c.log.Info().
		Str("taskID", info.ID).
		Str("queue", info.Queue).
		Str("tenantID", tenantID).
		Msg("sync queued")

	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
