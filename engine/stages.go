package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/concord"
	"github.com/xraph/concord/compliance"
	"github.com/xraph/concord/conflict"
	"github.com/xraph/concord/document"
	"github.com/xraph/concord/id"
	"github.com/xraph/concord/middleware"
	"github.com/xraph/concord/notify"
	"github.com/xraph/concord/routing"
	"github.com/xraph/concord/state"
)

// executeStage runs one stage through the middleware chain, logs the
// execution, and converts stage failures into recorded error state.
// Context cancellation is the only error it propagates; everything else
// is dispositioned by the routing engine on the next transition.
func (e *Engine) executeStage(ctx context.Context, s *state.WorkflowState, stage routing.Stage) (bool, error) {
	info := middleware.StageInfo{
		WorkflowID: s.WorkflowID.String(),
		Stage:      string(stage),
		Round:      s.ReviewRounds,
		RetryCount: s.RetryCount,
	}

	var changed bool
	start := time.Now()
	err := e.chain(ctx, info, func(ctx context.Context) error {
		var stageErr error
		changed, stageErr = e.runStage(ctx, s, stage)
		return stageErr
	})
	elapsed := time.Since(start)

	note := ""
	if err != nil {
		note = err.Error()
	}
	s.LogExecution(string(stage), s.ReviewRounds, elapsed, err == nil, note)

	if err != nil {
		e.hooks.EmitStageFailed(ctx, s, string(stage), err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return changed, err
		}

		switch {
		case errors.Is(err, concord.ErrMaxRoundsExceeded):
			// Convergence failure was already recorded at the source.
		case errors.Is(err, concord.ErrMalformedResolution):
			s.RecordError(string(stage), concord.KindReasoningOutput, err.Error())
		default:
			s.RecordError(string(stage), concord.Classify(err.Error()), err.Error())
		}
		return changed, nil
	}

	e.hooks.EmitStageCompleted(ctx, s, string(stage), elapsed)
	return changed, nil
}

func (e *Engine) runStage(ctx context.Context, s *state.WorkflowState, stage routing.Stage) (bool, error) {
	switch stage {
	case routing.StageCoordinator:
		return e.stageCoordinator(ctx, s)
	case routing.StagePartyReview:
		return e.stagePartyReview(ctx, s)
	case routing.StageConflictResolution:
		return e.stageConflictResolution(ctx, s)
	case routing.StageLegalReview:
		return e.stageLegalReview(ctx, s)
	case routing.StageVersionControl:
		return e.stageVersionControl(ctx, s)
	case routing.StageFinalApproval:
		return e.stageFinalApproval(ctx, s)
	case routing.StageCompletion:
		return e.stageCompletion(ctx, s)
	case routing.StageErrorHandling:
		return e.stageErrorHandling(ctx, s)
	default:
		return false, fmt.Errorf("engine: unknown stage %q", stage)
	}
}

// stageCoordinator re-evaluates an ambiguous state: it dispatches the
// initial notifications, promotes consensus, or derives conflicts from
// settled dissent.
func (e *Engine) stageCoordinator(ctx context.Context, s *state.WorkflowState) (bool, error) {
	switch {
	case s.Status == state.StatusInitiated:
		e.notifyAll(ctx, s, notify.EventProposalDispatched, "amendment proposed for review")
		return e.setStatus(ctx, s, state.StatusPartiesNotified), nil

	case s.ConsensusReached():
		return e.setStatus(ctx, s, state.StatusConsensusBuilding), nil

	default:
		if created := e.detectConflicts(ctx, s); created > 0 {
			e.setStatus(ctx, s, state.StatusConflictsDetected)
			return true, nil
		}
		if len(s.PendingParties()) > 0 {
			return e.setStatus(ctx, s, state.StatusUnderReview), nil
		}
		return false, nil
	}
}

// stagePartyReview runs one concurrent review round and derives
// conflicts from the fresh responses.
func (e *Engine) stagePartyReview(ctx context.Context, s *state.WorkflowState) (bool, error) {
	// Re-entry guard for resumed runs: the upcoming round may already
	// be checkpointed.
	if !s.MarkProcessed(string(routing.StagePartyReview), s.ReviewRounds+1) {
		return false, nil
	}

	if s.Status == state.StatusInitiated {
		e.notifyAll(ctx, s, notify.EventProposalDispatched, "amendment proposed for review")
		e.setStatus(ctx, s, state.StatusPartiesNotified)
	}
	e.setStatus(ctx, s, state.StatusUnderReview)
	if err := e.coordinator.Review(ctx, s); err != nil {
		return true, err
	}

	for _, p := range s.Parties {
		if r := s.PartyResponses[p]; r != nil && r.Round == s.ReviewRounds {
			e.hooks.EmitPartyResponded(ctx, s, r)
		}
	}

	if created := e.detectConflicts(ctx, s); created > 0 {
		e.setStatus(ctx, s, state.StatusConflictsDetected)
	} else if s.ConsensusReached() {
		e.setStatus(ctx, s, state.StatusConsensusBuilding)
	}
	return true, nil
}

// detectConflicts runs idempotent detection and emits hooks and
// notifications for the newly created tail.
func (e *Engine) detectConflicts(ctx context.Context, s *state.WorkflowState) int {
	before := len(s.Conflicts)
	created := e.conflicts.Detect(ctx, s)
	for i := before; i < len(s.Conflicts); i++ {
		c := &s.Conflicts[i]
		e.hooks.EmitConflictDetected(ctx, s, c)
		for _, p := range c.AffectedParties {
			e.notifier.Notify(ctx, notify.Event{
				WorkflowID: s.WorkflowID.String(),
				Type:       notify.EventConflictDetected,
				Party:      p,
				Subject:    c.Description,
			})
		}
	}
	return created
}

// stageConflictResolution mediates all active conflicts at once. A
// mediation round that resolves nothing consumes a review round, so
// persistent conflicts eventually exhaust the budget instead of
// spinning.
func (e *Engine) stageConflictResolution(ctx context.Context, s *state.WorkflowState) (bool, error) {
	e.setStatus(ctx, s, state.StatusConflictResolution)

	res, err := e.conflicts.Resolve(ctx, s)
	if err != nil {
		return true, err
	}

	switch res.Outcome {
	case conflict.OutcomeSkipped:
		return false, nil

	case conflict.OutcomeFailed:
		s.ReviewRounds++
		if s.ReviewRounds > e.cfg.MaxReviewRounds {
			msg := fmt.Sprintf("maximum review rounds exceeded (%d > %d)", s.ReviewRounds, e.cfg.MaxReviewRounds)
			s.RecordError(string(routing.StageConflictResolution), concord.KindConvergence, msg)
		}
		return true, nil

	default:
		for _, cid := range res.Resolved {
			e.hooks.EmitConflictResolved(ctx, s, cid)
			e.notifier.Notify(ctx, notify.Event{
				WorkflowID: s.WorkflowID.String(),
				Type:       notify.EventConflictResolved,
				Subject:    "conflict resolved: " + cid,
			})
		}
		// The mediated revision voids any earlier compliance verdict.
		s.LegalReviewStatus = state.LegalReviewPending
		s.ComplianceViolations = nil

		for _, p := range s.Parties {
			if r := s.PartyResponses[p]; r != nil && r.Decision == state.DecisionPendingReReview {
				e.notifier.Notify(ctx, notify.Event{
					WorkflowID: s.WorkflowID.String(),
					Type:       notify.EventReReviewRequested,
					Party:      p,
					Subject:    "revised proposal requires re-review",
				})
			}
		}
		return true, nil
	}
}

// stageLegalReview runs the compliance check over the agreed proposal.
// A non-compliant verdict synthesizes a status conflict so the workflow
// routes back through mediation.
func (e *Engine) stageLegalReview(ctx context.Context, s *state.WorkflowState) (bool, error) {
	e.setStatus(ctx, s, state.StatusLegalReview)

	review, err := e.checker.Check(ctx, compliance.Request{
		ProposedChanges:  s.ProposedChanges,
		OriginalDocument: s.OriginalDocument,
		Jurisdiction:     e.cfg.Jurisdiction,
		ContractType:     e.cfg.ContractType,
		Regulations:      e.cfg.Regulations,
	})
	if err != nil {
		return true, err
	}

	if review.Verdict == compliance.VerdictCompliant {
		s.LegalReviewStatus = state.LegalReviewApproved
		s.ComplianceViolations = nil
		s.Touch()
		return true, nil
	}

	s.LegalReviewStatus = state.LegalReviewRequiresChanges
	s.ComplianceViolations = append([]string(nil), review.Violations...)

	before := len(s.Conflicts)
	e.conflicts.DetectCompliance(ctx, s, review.Violations)
	for i := before; i < len(s.Conflicts); i++ {
		e.hooks.EmitConflictDetected(ctx, s, &s.Conflicts[i])
	}
	e.setStatus(ctx, s, state.StatusConflictsDetected)
	return true, nil
}

// stageVersionControl merges the approved changes into a new immutable
// document version.
func (e *Engine) stageVersionControl(ctx context.Context, s *state.WorkflowState) (bool, error) {
	if !s.MarkProcessed(string(routing.StageVersionControl), len(s.DocumentVersions)+1) {
		return false, nil
	}

	e.setStatus(ctx, s, state.StatusVersionControl)

	approved := s.ApprovedChanges()
	merged, err := e.merger.Merge(ctx, s.OriginalDocument, approved, e.cfg.MergeStrategy)
	if err != nil {
		return true, err
	}

	var parent id.VersionID
	if v := s.LatestVersion(); v != nil {
		parent = v.ID
	}
	ver := document.NewVersion(merged,
		fmt.Sprintf("merged %d approved change set(s)", len(approved)), parent)
	s.AddVersion(ver)
	e.hooks.EmitVersionCreated(ctx, s, &ver)

	e.setStatus(ctx, s, state.StatusFinalApproval)
	return true, nil
}

// stageFinalApproval re-validates the completion criteria against the
// merged document before the workflow is allowed to complete.
func (e *Engine) stageFinalApproval(ctx context.Context, s *state.WorkflowState) (bool, error) {
	if s.FinalDocument != "" && s.ConsensusReached() && !s.HasActiveConflicts() {
		return e.setStatus(ctx, s, state.StatusApproved), nil
	}
	return false, nil
}

// stageCompletion finalizes the workflow.
func (e *Engine) stageCompletion(ctx context.Context, s *state.WorkflowState) (bool, error) {
	if !s.MarkProcessed(string(routing.StageCompletion), 0) {
		return false, nil
	}

	e.setStatus(ctx, s, state.StatusCompleted)
	e.hooks.EmitWorkflowCompleted(ctx, s, time.Since(s.StartedAt))
	e.notifyAll(ctx, s, notify.EventWorkflowCompleted, "negotiation completed")
	return true, nil
}

// stageErrorHandling consumes one retry: it waits out the backoff delay
// and clears the pending error so the failed stage can run again.
func (e *Engine) stageErrorHandling(ctx context.Context, s *state.WorkflowState) (bool, error) {
	s.RetryCount++
	delay := e.backoff.Delay(s.RetryCount)

	e.logger.WarnContext(ctx, "retrying after error",
		"workflow_id", s.WorkflowID.String(),
		"attempt", s.RetryCount,
		"delay", delay.String(),
		"error", s.LastError().Message,
	)

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case <-timer.C:
		}
	}

	s.PendingError = false
	s.Touch()
	return true, nil
}
