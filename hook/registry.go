package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/concord/state"
)

// Named entry types pair a hook implementation with the hook name
// captured at registration time. This avoids type-asserting back to
// Hook inside the emit methods.
type workflowInitiatedEntry struct {
	name string
	hook WorkflowInitiated
}

type stageCompletedEntry struct {
	name string
	hook StageCompleted
}

type stageFailedEntry struct {
	name string
	hook StageFailed
}

type workflowCompletedEntry struct {
	name string
	hook WorkflowCompleted
}

type workflowFailedEntry struct {
	name string
	hook WorkflowFailed
}

type workflowSuspendedEntry struct {
	name string
	hook WorkflowSuspended
}

type partyRespondedEntry struct {
	name string
	hook PartyResponded
}

type conflictDetectedEntry struct {
	name string
	hook ConflictDetected
}

type conflictResolvedEntry struct {
	name string
	hook ConflictResolved
}

type versionCreatedEntry struct {
	name string
	hook VersionCreated
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. It type-caches hooks at registration time so emit calls iterate
// only over hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	// Type-cached slices for each lifecycle event.
	workflowInitiated []workflowInitiatedEntry
	stageCompleted    []stageCompletedEntry
	stageFailed       []stageFailedEntry
	workflowCompleted []workflowCompletedEntry
	workflowFailed    []workflowFailedEntry
	workflowSuspended []workflowSuspendedEntry
	partyResponded    []partyRespondedEntry
	conflictDetected  []conflictDetectedEntry
	conflictResolved  []conflictResolvedEntry
	versionCreated    []versionCreatedEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if hk, ok := h.(WorkflowInitiated); ok {
		r.workflowInitiated = append(r.workflowInitiated, workflowInitiatedEntry{name, hk})
	}
	if hk, ok := h.(StageCompleted); ok {
		r.stageCompleted = append(r.stageCompleted, stageCompletedEntry{name, hk})
	}
	if hk, ok := h.(StageFailed); ok {
		r.stageFailed = append(r.stageFailed, stageFailedEntry{name, hk})
	}
	if hk, ok := h.(WorkflowCompleted); ok {
		r.workflowCompleted = append(r.workflowCompleted, workflowCompletedEntry{name, hk})
	}
	if hk, ok := h.(WorkflowFailed); ok {
		r.workflowFailed = append(r.workflowFailed, workflowFailedEntry{name, hk})
	}
	if hk, ok := h.(WorkflowSuspended); ok {
		r.workflowSuspended = append(r.workflowSuspended, workflowSuspendedEntry{name, hk})
	}
	if hk, ok := h.(PartyResponded); ok {
		r.partyResponded = append(r.partyResponded, partyRespondedEntry{name, hk})
	}
	if hk, ok := h.(ConflictDetected); ok {
		r.conflictDetected = append(r.conflictDetected, conflictDetectedEntry{name, hk})
	}
	if hk, ok := h.(ConflictResolved); ok {
		r.conflictResolved = append(r.conflictResolved, conflictResolvedEntry{name, hk})
	}
	if hk, ok := h.(VersionCreated); ok {
		r.versionCreated = append(r.versionCreated, versionCreatedEntry{name, hk})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitWorkflowInitiated notifies all hooks that implement WorkflowInitiated.
func (r *Registry) EmitWorkflowInitiated(ctx context.Context, s *state.WorkflowState) {
	for _, e := range r.workflowInitiated {
		if err := e.hook.OnWorkflowInitiated(ctx, s); err != nil {
			r.logHookError("OnWorkflowInitiated", e.name, err)
		}
	}
}

// EmitStageCompleted notifies all hooks that implement StageCompleted.
func (r *Registry) EmitStageCompleted(ctx context.Context, s *state.WorkflowState, stage string, elapsed time.Duration) {
	for _, e := range r.stageCompleted {
		if err := e.hook.OnStageCompleted(ctx, s, stage, elapsed); err != nil {
			r.logHookError("OnStageCompleted", e.name, err)
		}
	}
}

// EmitStageFailed notifies all hooks that implement StageFailed.
func (r *Registry) EmitStageFailed(ctx context.Context, s *state.WorkflowState, stage string, stageErr error) {
	for _, e := range r.stageFailed {
		if err := e.hook.OnStageFailed(ctx, s, stage, stageErr); err != nil {
			r.logHookError("OnStageFailed", e.name, err)
		}
	}
}

// EmitWorkflowCompleted notifies all hooks that implement WorkflowCompleted.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, s *state.WorkflowState, elapsed time.Duration) {
	for _, e := range r.workflowCompleted {
		if err := e.hook.OnWorkflowCompleted(ctx, s, elapsed); err != nil {
			r.logHookError("OnWorkflowCompleted", e.name, err)
		}
	}
}

// EmitWorkflowFailed notifies all hooks that implement WorkflowFailed.
func (r *Registry) EmitWorkflowFailed(ctx context.Context, s *state.WorkflowState, runErr error) {
	for _, e := range r.workflowFailed {
		if err := e.hook.OnWorkflowFailed(ctx, s, runErr); err != nil {
			r.logHookError("OnWorkflowFailed", e.name, err)
		}
	}
}

// EmitWorkflowSuspended notifies all hooks that implement WorkflowSuspended.
func (r *Registry) EmitWorkflowSuspended(ctx context.Context, s *state.WorkflowState, reason string) {
	for _, e := range r.workflowSuspended {
		if err := e.hook.OnWorkflowSuspended(ctx, s, reason); err != nil {
			r.logHookError("OnWorkflowSuspended", e.name, err)
		}
	}
}

// EmitPartyResponded notifies all hooks that implement PartyResponded.
func (r *Registry) EmitPartyResponded(ctx context.Context, s *state.WorkflowState, resp *state.PartyResponse) {
	for _, e := range r.partyResponded {
		if err := e.hook.OnPartyResponded(ctx, s, resp); err != nil {
			r.logHookError("OnPartyResponded", e.name, err)
		}
	}
}

// EmitConflictDetected notifies all hooks that implement ConflictDetected.
func (r *Registry) EmitConflictDetected(ctx context.Context, s *state.WorkflowState, c *state.ConflictInfo) {
	for _, e := range r.conflictDetected {
		if err := e.hook.OnConflictDetected(ctx, s, c); err != nil {
			r.logHookError("OnConflictDetected", e.name, err)
		}
	}
}

// EmitConflictResolved notifies all hooks that implement ConflictResolved.
func (r *Registry) EmitConflictResolved(ctx context.Context, s *state.WorkflowState, conflictID string) {
	for _, e := range r.conflictResolved {
		if err := e.hook.OnConflictResolved(ctx, s, conflictID); err != nil {
			r.logHookError("OnConflictResolved", e.name, err)
		}
	}
}

// EmitVersionCreated notifies all hooks that implement VersionCreated.
func (r *Registry) EmitVersionCreated(ctx context.Context, s *state.WorkflowState, v *state.DocumentVersion) {
	for _, e := range r.versionCreated {
		if err := e.hook.OnVersionCreated(ctx, s, v); err != nil {
			r.logHookError("OnVersionCreated", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the run.
func (r *Registry) logHookError(event, hookName string, err error) {
	r.logger.Warn("lifecycle hook error",
		slog.String("event", event),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}
