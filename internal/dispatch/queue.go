package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const QueueKey = "queue:generate"

// ErrQueueEmpty is returned by Pop when no job arrived within the poll timeout.
var ErrQueueEmpty = errors.New("generation queue is empty")

// Queue is a Redis list of pending generation jobs. Trigger pushes; the
// worker pops.
type Queue struct {
	rdb         *redis.Client
	pollTimeout time.Duration
}

var _ Trigger = (*Queue)(nil)

func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb, pollTimeout: time.Second}
}

func (q *Queue) Trigger(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, QueueKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Pop waits up to the poll timeout for the oldest job.
func (q *Queue) Pop(ctx context.Context) (Job, error) {
	result, err := q.rdb.BRPop(ctx, q.pollTimeout, QueueKey).Result()
	if err == redis.Nil {
		return Job{}, ErrQueueEmpty
	}
	if err != nil {
		return Job{}, err
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

// Len reports how many jobs are waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, QueueKey).Result()
}
