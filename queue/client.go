// Package queue provides the Redis-backed scan job queue: a client for
// enqueuing and popping jobs, and a worker that drains the queue and runs
// scans.
package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client defines the interface for the Redis-backed scan queue.
type Client interface {
	// Enqueue adds a job to the end of the scan queue (LPUSH).
	Enqueue(ctx context.Context, job Job) error

	// Pop removes and returns a job from the front of the scan queue
	// (BRPOP). Blocks until a job is available or the context is
	// cancelled.
	Pop(ctx context.Context) (*Job, error)

	// Ping verifies connectivity to the queue backend.
	Ping(ctx context.Context) error

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// Queue is the list key jobs are pushed onto. Defaults to DefaultQueue.
	Queue string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations.
	// Pop uses blocking reads, so this also bounds one BRPOP cycle.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisClient implements Client using go-redis/v9.
type RedisClient struct {
	client *redis.Client
	queue  string
}

// NewRedisClient creates a Redis queue client and verifies connectivity.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Queue == "" {
		opts.Queue = DefaultQueue
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client, queue: opts.Queue}, nil
}

// NewRedisClientFromRedis wraps an existing go-redis client. Tests use this
// to run the queue against miniredis.
func NewRedisClientFromRedis(client *redis.Client, queue string) *RedisClient {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RedisClient{client: client, queue: queue}
}

// Enqueue adds a job to the end of the scan queue.
func (c *RedisClient) Enqueue(ctx context.Context, job Job) error {
	if err := job.IsValid(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := c.client.LPush(ctx, c.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", c.queue, err)
	}

	return nil
}

// Pop removes and returns a job from the front of the scan queue.
// Blocks until a job is available or the context is cancelled. A nil job
// with nil error means the blocking read timed out; callers loop.
func (c *RedisClient) Pop(ctx context.Context) (*Job, error) {
	// BRPOP returns [queue_name, value] or redis.Nil on timeout
	result, err := c.client.BRPop(ctx, time.Second, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", c.queue, err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// Ping verifies connectivity to Redis.
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
