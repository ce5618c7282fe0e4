// Package memory implements store.Store fully in memory. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/concord"
	"github.com/xraph/concord/state"
	"github.com/xraph/concord/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is an in-memory checkpoint store. States are deep-copied on
// save and load so callers never share memory with the store.
type Store struct {
	mu     sync.RWMutex
	states map[string]*state.WorkflowState
}

// New returns a new empty Store.
func New() *Store {
	return &Store{states: make(map[string]*state.WorkflowState)}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// SaveState stores a deep copy of the checkpoint.
func (m *Store) SaveState(_ context.Context, s *state.WorkflowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[s.WorkflowID.String()] = s.Clone()
	return nil
}

// LoadState returns a deep copy of the checkpoint.
func (m *Store) LoadState(_ context.Context, workflowID string) (*state.WorkflowState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[workflowID]
	if !ok {
		return nil, concord.ErrWorkflowNotFound
	}
	return s.Clone(), nil
}

// DeleteState removes a checkpoint.
func (m *Store) DeleteState(_ context.Context, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[workflowID]; !ok {
		return concord.ErrWorkflowNotFound
	}
	delete(m.states, workflowID)
	return nil
}

// ListStates returns matching checkpoints, most recently started first.
func (m *Store) ListStates(_ context.Context, opts store.ListOpts) ([]*state.WorkflowState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*state.WorkflowState, 0, len(m.states))
	for _, s := range m.states {
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		if opts.ContractID != "" && s.ContractID != opts.ContractID {
			continue
		}
		matched = append(matched, s)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*state.WorkflowState, len(matched))
	for i, s := range matched {
		out[i] = s.Clone()
	}
	return out, nil
}
