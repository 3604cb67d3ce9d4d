// Package redis mirrors task status into Redis so pollers can read it without
// touching the database once a task has left the orchestrator's memory.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bananaslides/internal/config"
	"bananaslides/internal/domain"
	"bananaslides/internal/port"
)

// StatusMirror implements port.StatusCache on Redis.
type StatusMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStatusMirror connects to Redis and verifies the connection.
func NewStatusMirror(cfg *config.RedisConfig) (*StatusMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "banana:"
	}
	return &StatusMirror{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

func (m *StatusMirror) key(id uuid.UUID) string {
	return m.prefix + "task:" + id.String()
}

// Put stores the task snapshot. Layout analyses are only kept while the task
// awaits verification.
func (m *StatusMirror) Put(ctx context.Context, task *domain.ConversionTask) error {
	snapshot := *task
	if task.Status != domain.TaskAwaitingVerification {
		snapshot.Analyses = nil
	}
	data, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", task.ID, err)
	}
	if err := m.client.Set(ctx, m.key(task.ID), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns port.ErrCacheMiss when the task is not mirrored.
func (m *StatusMirror) Get(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error) {
	data, err := m.client.Get(ctx, m.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var task domain.ConversionTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", id, err)
	}
	return &task, nil
}

// Ping reports whether Redis is reachable.
func (m *StatusMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (m *StatusMirror) Close() error {
	return m.client.Close()
}
