package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultQueueKey = "media:refresh"

type refreshJob struct {
	NoteIDs []int64 `json:"note_ids"`
}

// Queue is the Redis-backed hand-off between the merge path and the media
// refresh worker. Merges enqueue note ids after their transaction commits so
// reference extraction never holds a database transaction open.
type Queue struct {
	client *redis.Client
	key    string
}

// NewQueue connects to Redis and verifies the connection.
func NewQueue(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Queue{client: client, key: defaultQueueKey}, nil
}

// NewQueueWithClient creates a queue from an existing Redis client.
func NewQueueWithClient(client *redis.Client) *Queue {
	return &Queue{client: client, key: defaultQueueKey}
}

// Enqueue pushes one refresh job covering the given notes.
func (q *Queue) Enqueue(ctx context.Context, noteIDs []int64) error {
	if len(noteIDs) == 0 {
		return nil
	}
	payload, err := json.Marshal(refreshJob{NoteIDs: noteIDs})
	if err != nil {
		return fmt.Errorf("marshal refresh job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue refresh job: %w", err)
	}
	return nil
}

// Len reports the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Worker drains the queue and rebuilds media references.
type Worker struct {
	queue     *Queue
	refresher *Refresher
}

func NewWorker(queue *Queue, refresher *Refresher) *Worker {
	return &Worker{queue: queue, refresher: refresher}
}

// Run blocks on the queue until ctx is cancelled. Failed jobs are logged and
// dropped rather than requeued so a poisoned job cannot wedge the worker.
func (w *Worker) Run(ctx context.Context) {
	for {
		if err := w.runOne(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("media: refresh worker: %v", err)
		}
	}
}

func (w *Worker) runOne(ctx context.Context) error {
	values, err := w.queue.client.BRPop(ctx, 5*time.Second, w.queue.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pop refresh job: %w", err)
	}
	// BRPop returns [key, value].
	if len(values) != 2 {
		return fmt.Errorf("pop refresh job: unexpected reply of %d values", len(values))
	}

	var job refreshJob
	if err := json.Unmarshal([]byte(values[1]), &job); err != nil {
		return fmt.Errorf("decode refresh job: %w", err)
	}
	if err := w.refresher.RefreshNotes(ctx, job.NoteIDs); err != nil {
		return fmt.Errorf("refresh notes: %w", err)
	}
	return nil
}
