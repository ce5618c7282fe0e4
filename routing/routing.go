// Package routing implements the condition engine: pure predicates
// over workflow state composed into one decision function with a fixed
// priority order. Predicates never mutate state; the decision function
// returns the first matching stage.
package routing

import (
	"github.com/xraph/concord"
	"github.com/xraph/concord/state"
)

// Stage names a workflow stage the orchestrator can execute next.
type Stage string

const (
	StageCoordinator        Stage = "coordinator"
	StagePartyReview        Stage = "party_review"
	StageConflictResolution Stage = "conflict_resolution"
	StageLegalReview        Stage = "legal_review"
	StageVersionControl     Stage = "version_control"
	StageFinalApproval      Stage = "final_approval"
	StageCompletion         Stage = "completion"
	StageErrorHandling      Stage = "error_handling"
)

// Rules carries the configuration slice the decision function needs.
type Rules struct {
	MaxRetries         int
	RequireLegalReview bool
	Policy             ReviewPolicy
}

// RulesFromConfig derives routing rules from the workflow config, with
// the keyword policy as the default content heuristic.
func RulesFromConfig(cfg concord.Config) Rules {
	return Rules{
		MaxRetries:         cfg.MaxRetries,
		RequireLegalReview: cfg.RequireLegalReview,
		Policy:             DefaultPolicy(),
	}
}

// Decide evaluates the routing predicates in priority order and
// returns the first matching stage. The order is the contract:
//
//  1. pending retryable error with retry budget left  → error_handling
//  2. completion criteria met                         → completion
//     (final-approval pass still outstanding          → final_approval)
//  3. active conflicts                                → conflict_resolution
//  4. consensus reached, legal review outstanding     → legal_review
//  5. consensus reached, approved changes to merge    → version_control
//  6. parties pending                                 → party_review
//  7. anything else                                   → coordinator
func Decide(s *state.WorkflowState, rules Rules) Stage {
	if NeedsErrorHandling(s, rules.MaxRetries) {
		return StageErrorHandling
	}
	if CompletionReady(s, rules.RequireLegalReview) {
		if s.Status == state.StatusApproved {
			return StageCompletion
		}
		return StageFinalApproval
	}
	if s.HasActiveConflicts() {
		return StageConflictResolution
	}
	if NeedsLegalReview(s, rules) {
		return StageLegalReview
	}
	if VersionControlReady(s, rules.RequireLegalReview) {
		return StageVersionControl
	}
	if PartiesPending(s) {
		return StagePartyReview
	}
	return StageCoordinator
}

// NeedsErrorHandling reports whether the last recorded error is still
// pending, retryable, and inside the retry budget. Errors outside the
// budget fall through to the coordinator, which fails the workflow.
func NeedsErrorHandling(s *state.WorkflowState, maxRetries int) bool {
	if !s.PendingError {
		return false
	}
	last := s.LastError()
	if last == nil {
		return false
	}
	return concord.Retryable(last.Kind) && s.RetryCount < maxRetries
}

// CompletionReady reports whether the workflow has produced a final
// document under full consensus with no active conflicts and a
// satisfied legal review. The final-approval pass is sequenced by
// Decide, not here.
func CompletionReady(s *state.WorkflowState, requireLegal bool) bool {
	return s.FinalDocument != "" &&
		s.ConsensusReached() &&
		!s.HasActiveConflicts() &&
		legalSatisfied(s, requireLegal)
}

// NeedsLegalReview reports whether a compliance pass is due: consensus
// reached, review not yet performed, and either the configuration or
// the content heuristics demand one.
func NeedsLegalReview(s *state.WorkflowState, rules Rules) bool {
	if !s.ConsensusReached() || s.HasActiveConflicts() {
		return false
	}
	if s.LegalReviewStatus != state.LegalReviewPending {
		return false
	}
	if rules.RequireLegalReview {
		return true
	}
	return rules.Policy != nil && rules.Policy.Requires(s)
}

// VersionControlReady reports whether approved changes are waiting to
// be merged: consensus reached, no active conflicts, legal review
// satisfied, approved change set non-empty, and no final document yet.
func VersionControlReady(s *state.WorkflowState, requireLegal bool) bool {
	return s.FinalDocument == "" &&
		s.ConsensusReached() &&
		!s.HasActiveConflicts() &&
		legalSatisfied(s, requireLegal) &&
		len(s.ApprovedChanges()) > 0
}

// PartiesPending reports whether any party still owes a settled
// response to the current proposal.
func PartiesPending(s *state.WorkflowState) bool {
	return len(s.PendingParties()) > 0
}

// legalSatisfied: an approved review always satisfies; a pending review
// satisfies only when no review is required and the content heuristics
// were not triggered at legal-review routing time.
func legalSatisfied(s *state.WorkflowState, required bool) bool {
	switch s.LegalReviewStatus {
	case state.LegalReviewApproved:
		return true
	case state.LegalReviewPending:
		return !required
	default:
		return false
	}
}
