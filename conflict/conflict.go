// Package conflict implements the conflict lifecycle: detection of
// disagreements from settled party responses, global mediation of all
// active conflicts, and per-conflict validation of the mediated
// resolution.
package conflict

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/concord"
	"github.com/xraph/concord/reasoning"
	"github.com/xraph/concord/state"
)

// Outcome summarizes one resolution attempt.
type Outcome string

const (
	// OutcomeResolved means every active conflict was resolved.
	OutcomeResolved Outcome = "resolved"
	// OutcomePartial means some but not all conflicts were resolved.
	OutcomePartial Outcome = "partial"
	// OutcomeSkipped means there was nothing to resolve.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means mediation produced a revision but validation
	// accepted none of it; the conflicts remain active.
	OutcomeFailed Outcome = "failed"
)

// Result reports what a resolution attempt did.
type Result struct {
	Outcome   Outcome
	Resolved  []string
	Remaining int
	Rationale string
}

// Manager owns conflict detection and resolution for a workflow.
type Manager struct {
	svc    reasoning.Service
	logger *slog.Logger
}

// NewManager builds a conflict manager around a reasoning service.
func NewManager(svc reasoning.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{svc: svc, logger: logger}
}

// Detect derives conflicts from settled party responses. A rejection
// becomes an unacceptable_terms conflict; a requested_changes response
// becomes a counter_proposal conflict. Detection is idempotent: a party
// already named in an active conflict is skipped, so re-running the
// stage on unchanged state appends nothing. Returns the number of
// conflicts created.
func (m *Manager) Detect(ctx context.Context, s *state.WorkflowState) int {
	created := 0
	for _, p := range s.Parties {
		r, ok := s.PartyResponses[p]
		if !ok || r.Decision.Pending() || r.Decision == state.DecisionApproved {
			continue
		}
		if s.PartyHasActiveConflict(p) {
			continue
		}

		c := state.ConflictInfo{
			AffectedParties: []string{p},
			AffectedClauses: r.CounterProposal.Clauses(),
			Severity:        severityOf(r),
		}
		switch r.Decision {
		case state.DecisionRejected:
			c.Type = state.ConflictUnacceptableTerms
			c.Description = fmt.Sprintf("%s rejected the proposal: %s", p, r.Rationale)
		case state.DecisionRequestedChanges:
			c.Type = state.ConflictCounterProposal
			c.Description = fmt.Sprintf("%s requested changes: %s", p, r.Rationale)
		}

		s.AddConflict(c)
		created++

		m.logger.InfoContext(ctx, "conflict detected",
			"workflow_id", s.WorkflowID.String(),
			"party", p,
			"type", c.Type,
			"severity", c.Severity,
		)
	}
	return created
}

// DetectCompliance records a status_conflict for a failed compliance
// review, so routing sends the workflow back through mediation.
func (m *Manager) DetectCompliance(ctx context.Context, s *state.WorkflowState, violations []string) {
	clauses := violations
	if len(clauses) == 0 {
		clauses = []string{"general"}
	}
	s.AddConflict(state.ConflictInfo{
		Type:            state.ConflictStatus,
		Description:     fmt.Sprintf("compliance review found %d violation(s)", len(violations)),
		AffectedParties: append([]string(nil), s.Parties...),
		AffectedClauses: clauses,
		Severity:        state.SeverityHigh,
	})
	m.logger.WarnContext(ctx, "compliance conflict recorded",
		"workflow_id", s.WorkflowID.String(),
		"violations", len(violations),
	)
}

// Resolve runs one mediation round over every active conflict: one
// global Mediate call produces a revised proposal, then each conflict
// is validated against it individually. Validated conflicts move to the
// resolved set; if any resolution is accepted the revised changes
// replace the proposal wholesale and previously approving parties named
// by the mediation are reset to pending_re_review. Unvalidated
// conflicts stay active for a later round, subject to the round limit.
func (m *Manager) Resolve(ctx context.Context, s *state.WorkflowState) (Result, error) {
	if !s.HasActiveConflicts() {
		return Result{Outcome: OutcomeSkipped}, nil
	}

	active := make([]state.ConflictInfo, 0, len(s.ActiveConflicts))
	for _, cid := range s.ActiveConflicts {
		if c := s.ConflictByID(cid); c != nil {
			c.Resolution = state.ResolutionInProgress
			active = append(active, c.Clone())
		}
	}

	med, err := m.svc.Mediate(ctx, reasoning.MediateRequest{
		Conflicts:        active,
		ProposedChanges:  s.ProposedChanges.Clone(),
		PartyPositions:   s.PartyResponses,
		OriginalDocument: s.OriginalDocument,
	})
	if err != nil {
		return Result{}, fmt.Errorf("mediate %d conflict(s): %w", len(active), err)
	}
	if med == nil || len(med.RevisedChanges) == 0 {
		// Malformed mediation output is fatal for this call.
		return Result{}, fmt.Errorf("mediation returned no revised changes: %w", concord.ErrMalformedResolution)
	}

	var resolved []string
	for _, c := range active {
		v, err := m.svc.Validate(ctx, reasoning.ValidateRequest{
			Conflict:       c,
			RevisedChanges: med.RevisedChanges,
		})
		if err != nil {
			return Result{}, fmt.Errorf("validate conflict %s: %w", c.ID.String(), err)
		}
		if v.Resolved {
			s.ResolveConflict(c.ID.String())
			resolved = append(resolved, c.ID.String())
		} else {
			// A rejected resolution goes back to unresolved for the
			// next mediation round.
			if cc := s.ConflictByID(c.ID.String()); cc != nil {
				cc.Resolution = state.ResolutionUnresolved
			}
			m.logger.InfoContext(ctx, "resolution rejected by validation",
				"workflow_id", s.WorkflowID.String(),
				"conflict_id", c.ID.String(),
				"rationale", v.Rationale,
			)
		}
	}

	res := Result{
		Resolved:  resolved,
		Remaining: len(s.ActiveConflicts),
		Rationale: med.Rationale,
	}
	switch {
	case len(resolved) == 0:
		res.Outcome = OutcomeFailed
		return res, nil
	case res.Remaining > 0:
		res.Outcome = OutcomePartial
	default:
		res.Outcome = OutcomeResolved
	}

	// Accepted resolution: the revision becomes the proposal. Parties
	// whose objection was just resolved, and approving parties the
	// mediation invalidates, are cleared for re-review.
	s.ProposedChanges = med.RevisedChanges.Clone()

	reReview := make(map[string]bool)
	for _, p := range med.RequiresReApproval {
		reReview[p] = true
	}
	for _, cid := range resolved {
		if c := s.ConflictByID(cid); c != nil {
			for _, p := range c.AffectedParties {
				reReview[p] = true
			}
		}
	}
	for _, p := range s.Parties {
		if !reReview[p] {
			continue
		}
		if r, ok := s.PartyResponses[p]; ok && !r.Decision.Pending() {
			s.SetPartyResponse(state.PartyResponse{
				PartyID:      p,
				Organization: r.Organization,
				Decision:     state.DecisionPendingReReview,
				Rationale:    "proposal revised by mediation",
				Round:        r.Round,
			})
		}
	}

	m.logger.InfoContext(ctx, "mediation applied",
		"workflow_id", s.WorkflowID.String(),
		"resolved", len(resolved),
		"remaining", res.Remaining,
		"re_review", med.RequiresReApproval,
	)
	return res, nil
}

func severityOf(r *state.PartyResponse) state.Severity {
	if r.RiskSummary != nil {
		return state.ParseSeverity(string(r.RiskSummary.OverallLevel))
	}
	return state.SeverityMedium
}
