// Package store defines the persistence interface for workflow
// checkpoints. The engine saves the full workflow state after every
// stage transition and reloads it on resume. Backends: Postgres,
// Redis, and Memory.
package store

import (
	"context"

	"github.com/xraph/concord/state"
)

// ListOpts filters and pages ListStates results.
type ListOpts struct {
	// Status filters to one workflow status when non-empty.
	Status state.Status
	// ContractID filters to one contract when non-empty.
	ContractID string
	// Limit caps the result count. Zero means no cap.
	Limit int
	// Offset skips results for paging.
	Offset int
}

// Store persists workflow checkpoints keyed by workflow id.
//
// Implementations must treat states as snapshots: a saved state must
// not alias memory the caller can still mutate, and a loaded state must
// not alias store-internal memory.
type Store interface {
	// SaveState persists a checkpoint, replacing any previous
	// checkpoint for the same workflow id.
	SaveState(ctx context.Context, s *state.WorkflowState) error

	// LoadState returns the checkpoint for a workflow id, or
	// concord.ErrWorkflowNotFound.
	LoadState(ctx context.Context, workflowID string) (*state.WorkflowState, error)

	// DeleteState removes a checkpoint. Deleting a missing checkpoint
	// returns concord.ErrWorkflowNotFound.
	DeleteState(ctx context.Context, workflowID string) error

	// ListStates returns checkpoints matching opts, most recently
	// started first.
	ListStates(ctx context.Context, opts ListOpts) ([]*state.WorkflowState, error)

	// Migrate runs schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
