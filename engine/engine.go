// Package engine implements the negotiation orchestrator: it drives a
// workflow through its stages, checkpoints state after every
// transition, and halts at a terminal status or a resumable suspension
// point.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/concord"
	"github.com/xraph/concord/backoff"
	"github.com/xraph/concord/compliance"
	"github.com/xraph/concord/conflict"
	"github.com/xraph/concord/document"
	"github.com/xraph/concord/hook"
	"github.com/xraph/concord/middleware"
	"github.com/xraph/concord/notify"
	"github.com/xraph/concord/party"
	"github.com/xraph/concord/reasoning"
	"github.com/xraph/concord/routing"
	"github.com/xraph/concord/state"
	"github.com/xraph/concord/store"
)

// maxTransitions bounds one drive loop invocation. A run that exceeds
// it suspends with a resumable checkpoint instead of spinning.
const maxTransitions = 256

// Engine orchestrates negotiation workflows.
type Engine struct {
	store    store.Store
	svc      reasoning.Service
	checker  compliance.Checker
	merger   document.Merger
	hooks    *hook.Registry
	chain    middleware.Middleware
	backoff  backoff.Strategy
	notifier *notify.Service
	logger   *slog.Logger
	cfg      concord.Config
	rules    routing.Rules

	coordinator *party.Coordinator
	conflicts   *conflict.Manager
}

// New builds an engine. A store is required; every other collaborator
// has a working default.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		cfg:    concord.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		return nil, concord.ErrNoStore
	}
	if e.svc == nil {
		e.svc = reasoning.NewRuleBased()
	}
	if e.checker == nil {
		e.checker = compliance.NewKeywordChecker()
	}
	if e.merger == nil {
		e.merger = document.NewClauseMerger()
	}
	if e.hooks == nil {
		e.hooks = hook.NewRegistry(e.logger)
	}
	if e.chain == nil {
		e.chain = middleware.Chain(
			middleware.Recover(e.logger),
			middleware.Logging(e.logger),
		)
	}
	if e.backoff == nil {
		b, err := backoff.Parse(e.cfg.RetryBackoff, e.cfg.RetryInitialDelay, e.cfg.RetryMaxDelay)
		if err != nil {
			return nil, err
		}
		e.backoff = b
	}
	if e.notifier == nil {
		e.notifier = notify.NewService(e.logger, notify.NewLogSink(e.logger))
	}
	// Rules always derive from the final config; an explicitly set
	// review policy survives the rebuild.
	policy := e.rules.Policy
	e.rules = routing.RulesFromConfig(e.cfg)
	if policy != nil {
		e.rules.Policy = policy
	}

	e.coordinator = party.NewCoordinator(e.svc, e.cfg.MaxReviewRounds, party.WithLogger(e.logger))
	e.conflicts = conflict.NewManager(e.svc, e.logger)

	return e, nil
}

// InitiateRequest describes a new negotiation.
type InitiateRequest struct {
	ContractID       string
	Parties          []state.PartyConfig
	ProposedChanges  state.ChangeSet
	OriginalDocument string
}

// Initiate creates a workflow, checkpoints it, notifies the parties,
// and drives it until it reaches a terminal status or suspends.
func (e *Engine) Initiate(ctx context.Context, req InitiateRequest) (*state.WorkflowState, error) {
	if len(req.Parties) == 0 {
		return nil, concord.ErrNoParties
	}
	if len(req.ProposedChanges) == 0 {
		return nil, concord.ErrNoChanges
	}

	s := state.New(req.ContractID, req.Parties, req.ProposedChanges, req.OriginalDocument)
	if err := e.store.SaveState(ctx, s); err != nil {
		return nil, fmt.Errorf("engine: checkpoint new workflow: %w", err)
	}

	e.hooks.EmitWorkflowInitiated(ctx, s)
	e.logger.InfoContext(ctx, "workflow initiated",
		"workflow_id", s.WorkflowID.String(),
		"contract_id", s.ContractID,
		"parties", len(s.Parties),
	)

	return e.drive(ctx, s)
}

// ResumeUpdates carries externally supplied state applied before a
// resumed run continues routing.
type ResumeUpdates struct {
	// PartyResponses overrides party decisions, e.g. a human decision
	// recorded out of band. Applied in order, latest wins per party.
	PartyResponses []state.PartyResponse
}

// Resume reloads a workflow from its last checkpoint, applies the
// optional updates, and continues driving it from the persisted status.
// Party agents are rebuilt from the party configs carried in the
// checkpoint.
func (e *Engine) Resume(ctx context.Context, workflowID string, updates *ResumeUpdates) (*state.WorkflowState, error) {
	s, err := e.store.LoadState(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if s.Status.Terminal() {
		return nil, fmt.Errorf("engine: resume %s: %w", workflowID, concord.ErrWorkflowTerminal)
	}

	if updates != nil {
		for _, r := range updates.PartyResponses {
			s.SetPartyResponse(r)
		}
	}

	e.logger.InfoContext(ctx, "workflow resumed",
		"workflow_id", workflowID,
		"status", string(s.Status),
		"round", s.ReviewRounds,
	)
	return e.drive(ctx, s)
}

// Cancel fails a non-terminal workflow with an operator-cancelled
// error record and checkpoints it.
func (e *Engine) Cancel(ctx context.Context, workflowID string) error {
	s, err := e.store.LoadState(ctx, workflowID)
	if err != nil {
		return err
	}
	if s.Status.Terminal() {
		return fmt.Errorf("engine: cancel %s: %w", workflowID, concord.ErrWorkflowTerminal)
	}

	s.RecordError("cancel", concord.KindFatal, "cancelled by operator")
	s.PendingError = false
	s.UpdateStatus(state.StatusFailed)
	e.hooks.EmitWorkflowFailed(ctx, s, errors.New("cancelled by operator"))
	e.notifyAll(ctx, s, notify.EventWorkflowFailed, "negotiation cancelled")

	return e.store.SaveState(ctx, s)
}

// List returns workflows matching opts.
func (e *Engine) List(ctx context.Context, opts store.ListOpts) ([]*state.WorkflowState, error) {
	return e.store.ListStates(ctx, opts)
}

// drive advances the workflow until it reaches a terminal status, a
// suspension point, or the transition cap. State is checkpointed after
// every stage execution. Stages run under the workflow deadline, so an
// expiring timeout cancels in-flight party evaluations; checkpoints and
// failure records use the caller's context so the terminal state is
// persisted even after the deadline.
func (e *Engine) drive(ctx context.Context, s *state.WorkflowState) (*state.WorkflowState, error) {
	var deadline time.Time
	runCtx := ctx
	if e.cfg.Timeout > 0 {
		deadline = s.StartedAt.Add(e.cfg.Timeout)
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	prevStage := routing.Stage("")
	for range maxTransitions {
		if s.Status.Terminal() {
			return s, nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return e.failDeadline(ctx, s)
		}

		// Fatal or budget-exhausted errors never reach a stage; the
		// routing engine only retries transient errors inside budget.
		if s.PendingError && !routing.NeedsErrorHandling(s, e.cfg.MaxRetries) {
			last := s.LastError()
			s.PendingError = false
			e.fail(ctx, s, errors.New(last.Message))
			if err := e.store.SaveState(ctx, s); err != nil {
				return s, fmt.Errorf("engine: checkpoint: %w", err)
			}
			return s, nil
		}

		stage := routing.Decide(s, e.rules)

		changed, err := e.executeStage(runCtx, s, stage)
		if err != nil {
			// The workflow deadline expiring mid-stage is a timeout
			// failure, not a caller cancellation. A cancelled party
			// round wrote nothing, so the checkpoint stays consistent.
			if errors.Is(err, context.DeadlineExceeded) && runCtx.Err() != nil && ctx.Err() == nil {
				return e.failDeadline(ctx, s)
			}
			return s, err
		}
		if err := e.store.SaveState(ctx, s); err != nil {
			return s, fmt.Errorf("engine: checkpoint: %w", err)
		}

		// Coordinator livelock guard: a coordinator pass that changed
		// nothing and routes straight back to the coordinator cannot
		// make progress. Suspend with a resumable checkpoint.
		if stage == routing.StageCoordinator && prevStage == routing.StageCoordinator && !changed {
			e.suspend(ctx, s, "coordinator made no progress")
			return s, nil
		}
		prevStage = stage
	}

	e.suspend(ctx, s, "transition budget exhausted")
	return s, nil
}

// failDeadline records the workflow timeout, fails the run, and
// checkpoints the terminal state.
func (e *Engine) failDeadline(ctx context.Context, s *state.WorkflowState) (*state.WorkflowState, error) {
	s.RecordError("engine", concord.KindTimeout,
		fmt.Sprintf("workflow deadline exceeded after %s", e.cfg.Timeout))
	s.PendingError = false
	e.fail(ctx, s, errors.New("workflow deadline exceeded"))
	if err := e.store.SaveState(ctx, s); err != nil {
		return s, fmt.Errorf("engine: checkpoint: %w", err)
	}
	return s, nil
}

func (e *Engine) fail(ctx context.Context, s *state.WorkflowState, cause error) {
	s.UpdateStatus(state.StatusFailed)
	e.hooks.EmitWorkflowFailed(ctx, s, cause)
	e.notifyAll(ctx, s, notify.EventWorkflowFailed, "negotiation failed: "+cause.Error())
	e.logger.ErrorContext(ctx, "workflow failed",
		"workflow_id", s.WorkflowID.String(),
		"error", cause.Error(),
	)
}

func (e *Engine) suspend(ctx context.Context, s *state.WorkflowState, reason string) {
	e.hooks.EmitWorkflowSuspended(ctx, s, reason)
	e.logger.WarnContext(ctx, "workflow suspended",
		"workflow_id", s.WorkflowID.String(),
		"status", string(s.Status),
		"reason", reason,
	)
}

// notifyAll sends one event per party.
func (e *Engine) notifyAll(ctx context.Context, s *state.WorkflowState, t notify.EventType, subject string) {
	for _, p := range s.Parties {
		e.notifier.Notify(ctx, notify.Event{
			WorkflowID: s.WorkflowID.String(),
			Type:       t,
			Party:      p,
			Subject:    subject,
		})
	}
}

// setStatus transitions the workflow status and emits a status-change
// notification when it actually changes.
func (e *Engine) setStatus(ctx context.Context, s *state.WorkflowState, status state.Status) bool {
	if s.Status == status {
		return false
	}
	from := s.Status
	s.UpdateStatus(status)
	e.notifier.Notify(ctx, notify.Event{
		WorkflowID: s.WorkflowID.String(),
		Type:       notify.EventStatusChanged,
		Subject:    fmt.Sprintf("status %s -> %s", from, status),
	})
	return true
}
