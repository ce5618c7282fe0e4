// Package redis implements store.Store using Redis. Checkpoints are
// stored as JSON blobs keyed by workflow id, with a Set tracking ids
// for enumeration.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/concord"
	"github.com/xraph/concord/state"
	"github.com/xraph/concord/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements store.Store backed by Redis.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis
// client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// SaveState persists a checkpoint, replacing any previous one.
func (s *Store) SaveState(ctx context.Context, ws *state.WorkflowState) error {
	wID := ws.WorkflowID.String()

	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("concord/redis: marshal state: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, workflowKey(wID), data, 0)
	pipe.SAdd(ctx, workflowIDsKey, wID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("concord/redis: save state: %w", err)
	}
	return nil
}

// LoadState retrieves a checkpoint by workflow id.
func (s *Store) LoadState(ctx context.Context, workflowID string) (*state.WorkflowState, error) {
	data, err := s.client.Get(ctx, workflowKey(workflowID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, concord.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("concord/redis: load state: %w", err)
	}

	var ws state.WorkflowState
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("concord/redis: unmarshal state: %w", err)
	}
	return &ws, nil
}

// DeleteState removes a checkpoint.
func (s *Store) DeleteState(ctx context.Context, workflowID string) error {
	deleted, err := s.client.Del(ctx, workflowKey(workflowID)).Result()
	if err != nil {
		return fmt.Errorf("concord/redis: delete state: %w", err)
	}
	if deleted == 0 {
		return concord.ErrWorkflowNotFound
	}
	if err := s.client.SRem(ctx, workflowIDsKey, workflowID).Err(); err != nil {
		return fmt.Errorf("concord/redis: delete state index: %w", err)
	}
	return nil
}

// ListStates returns checkpoints matching opts, most recently started
// first. Filtering happens client-side over the id Set.
func (s *Store) ListStates(ctx context.Context, opts store.ListOpts) ([]*state.WorkflowState, error) {
	ids, err := s.client.SMembers(ctx, workflowIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("concord/redis: list states smembers: %w", err)
	}

	var states []*state.WorkflowState
	for _, wID := range ids {
		ws, loadErr := s.LoadState(ctx, wID)
		if loadErr != nil {
			// Id set can lag a concurrent delete.
			continue
		}
		if opts.Status != "" && ws.Status != opts.Status {
			continue
		}
		if opts.ContractID != "" && ws.ContractID != opts.ContractID {
			continue
		}
		states = append(states, ws)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].StartedAt.After(states[j].StartedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(states) {
			return nil, nil
		}
		states = states[opts.Offset:]
	}
	if opts.Limit > 0 && len(states) > opts.Limit {
		states = states[:opts.Limit]
	}
	return states, nil
}
