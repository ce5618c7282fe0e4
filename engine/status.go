package engine

import (
	"context"
	"time"

	"github.com/xraph/concord/state"
)

// StatusReport is a read-only summary of a workflow's progress.
type StatusReport struct {
	WorkflowID   string       `json:"workflow_id"`
	ContractID   string       `json:"contract_id"`
	Status       state.Status `json:"status"`
	Progress     float64      `json:"progress"`
	ReviewRounds int          `json:"review_rounds"`
	RetryCount   int          `json:"retry_count"`

	// PartyDecisions maps every party to its current decision; parties
	// without a response are reported as pending.
	PartyDecisions map[string]state.Decision `json:"party_decisions"`
	PendingParties []string                  `json:"pending_parties"`

	ActiveConflicts   int                 `json:"active_conflicts"`
	ResolvedConflicts int                 `json:"resolved_conflicts"`
	Errors            []state.ErrorRecord `json:"errors,omitempty"`
	CurrentVersion    string              `json:"current_version,omitempty"`
	StartedAt         time.Time           `json:"started_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
}

// Status loads a workflow checkpoint and summarizes it.
func (e *Engine) Status(ctx context.Context, workflowID string) (*StatusReport, error) {
	s, err := e.store.LoadState(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		WorkflowID:        s.WorkflowID.String(),
		ContractID:        s.ContractID,
		Status:            s.Status,
		Progress:          s.Progress(),
		ReviewRounds:      s.ReviewRounds,
		RetryCount:        s.RetryCount,
		PartyDecisions:    make(map[string]state.Decision, len(s.Parties)),
		PendingParties:    s.PendingParties(),
		ActiveConflicts:   len(s.ActiveConflicts),
		ResolvedConflicts: len(s.ResolvedConflicts),
		Errors:            append([]state.ErrorRecord(nil), s.Errors...),
		StartedAt:         s.StartedAt,
		CompletedAt:       s.CompletedAt,
	}
	for _, p := range s.Parties {
		if r, ok := s.PartyResponses[p]; ok {
			report.PartyDecisions[p] = r.Decision
		} else {
			report.PartyDecisions[p] = state.DecisionPending
		}
	}
	if !s.CurrentVersion.IsNil() {
		report.CurrentVersion = s.CurrentVersion.String()
	}
	return report, nil
}
