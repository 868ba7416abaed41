// Package activeset tracks which jobs currently have a live render worker.
// The set lives in Redis so the orchestrator and the worker processes it
// spawns all see the same state across the process boundary.
package activeset

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const setKey = "stylecast:active_jobs"

type Set struct {
	client *redis.Client
}

func New(redisURL string) (*Set, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Set{client: client}, nil
}

func (s *Set) Close() error {
	return s.client.Close()
}

func (s *Set) Add(ctx context.Context, jobID string) error {
	return s.client.SAdd(ctx, setKey, jobID).Err()
}

func (s *Set) Remove(ctx context.Context, jobID string) error {
	return s.client.SRem(ctx, setKey, jobID).Err()
}

func (s *Set) Size(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, setKey).Result()
}

func (s *Set) Contains(ctx context.Context, jobID string) (bool, error) {
	return s.client.SIsMember(ctx, setKey, jobID).Result()
}

// Clear empties the set. Run at startup together with the stale-job sweep:
// any entry left over belongs to a worker that no longer exists.
func (s *Set) Clear(ctx context.Context) error {
	return s.client.Del(ctx, setKey).Err()
}
