// Package hook defines the lifecycle hook system for Concord. Hooks
// are notified of negotiation lifecycle events (workflow initiated,
// stage completed, conflict detected, etc.) and can react to them.
//
// Each lifecycle hook is a separate interface so hooks opt in only to
// the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/xraph/concord/state"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Workflow lifecycle hooks
// ──────────────────────────────────────────────────

// WorkflowInitiated is called after a negotiation workflow is created
// and persisted.
type WorkflowInitiated interface {
	OnWorkflowInitiated(ctx context.Context, s *state.WorkflowState) error
}

// StageCompleted is called after a stage executes successfully.
type StageCompleted interface {
	OnStageCompleted(ctx context.Context, s *state.WorkflowState, stage string, elapsed time.Duration) error
}

// StageFailed is called when a stage execution returns an error.
type StageFailed interface {
	OnStageFailed(ctx context.Context, s *state.WorkflowState, stage string, err error) error
}

// WorkflowCompleted is called when a workflow reaches the completed
// status.
type WorkflowCompleted interface {
	OnWorkflowCompleted(ctx context.Context, s *state.WorkflowState, elapsed time.Duration) error
}

// WorkflowFailed is called when a workflow reaches the failed status.
type WorkflowFailed interface {
	OnWorkflowFailed(ctx context.Context, s *state.WorkflowState, err error) error
}

// WorkflowSuspended is called when a run suspends without reaching a
// terminal status, leaving a resumable checkpoint.
type WorkflowSuspended interface {
	OnWorkflowSuspended(ctx context.Context, s *state.WorkflowState, reason string) error
}

// ──────────────────────────────────────────────────
// Negotiation lifecycle hooks
// ──────────────────────────────────────────────────

// PartyResponded is called after a party's evaluation is recorded.
type PartyResponded interface {
	OnPartyResponded(ctx context.Context, s *state.WorkflowState, resp *state.PartyResponse) error
}

// ConflictDetected is called once per newly recorded conflict.
type ConflictDetected interface {
	OnConflictDetected(ctx context.Context, s *state.WorkflowState, c *state.ConflictInfo) error
}

// ConflictResolved is called when a conflict moves to the resolved set.
type ConflictResolved interface {
	OnConflictResolved(ctx context.Context, s *state.WorkflowState, conflictID string) error
}

// VersionCreated is called after the merge stage records a new
// document version.
type VersionCreated interface {
	OnVersionCreated(ctx context.Context, s *state.WorkflowState, v *state.DocumentVersion) error
}
