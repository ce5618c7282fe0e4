// Package reasoning defines the contract with the external reasoning
// service that evaluates proposals on behalf of parties, mediates
// conflicts, and validates mediated resolutions. The engine depends
// only on this interface; implementations live with the caller.
package reasoning

import (
	"context"

	"github.com/xraph/concord/state"
)

// Service is the reasoning collaborator. All calls honor context
// cancellation; a call that cannot produce a well-formed result returns
// an error rather than a partial result.
type Service interface {
	// Evaluate produces one party's position on the current proposal.
	Evaluate(ctx context.Context, req EvaluateRequest) (*Evaluation, error)

	// Mediate proposes one revised set of terms addressing every active
	// conflict at once.
	Mediate(ctx context.Context, req MediateRequest) (*Mediation, error)

	// Validate judges whether a revised proposal actually resolves a
	// single conflict.
	Validate(ctx context.Context, req ValidateRequest) (*Validation, error)
}

// EvaluateRequest carries everything one party needs to take a
// position. Policy is read-only; implementations must not mutate it.
type EvaluateRequest struct {
	Party            state.PartyConfig
	ProposedChanges  state.ChangeSet
	OriginalDocument string
	Round            int
}

// Evaluation is a party's position on the proposal.
type Evaluation struct {
	Decision        state.Decision
	Rationale       string
	CounterProposal *state.CounterProposal
	RiskSummary     *state.RiskSummary
}

// MediateRequest asks for one revised proposal covering all active
// conflicts.
type MediateRequest struct {
	Conflicts        []state.ConflictInfo
	ProposedChanges  state.ChangeSet
	PartyPositions   map[string]*state.PartyResponse
	OriginalDocument string
}

// Mediation is the mediator's output: a revised change set plus the
// reasoning behind it. An empty RevisedChanges map is malformed output.
type Mediation struct {
	RevisedChanges state.ChangeSet
	Rationale      string
	// RequiresReApproval lists parties whose earlier approval the
	// mediation invalidates.
	RequiresReApproval []string
}

// ValidateRequest asks whether the revised changes resolve one
// specific conflict.
type ValidateRequest struct {
	Conflict       state.ConflictInfo
	RevisedChanges state.ChangeSet
}

// Validation is the per-conflict verdict on a mediation.
type Validation struct {
	Resolved  bool
	Rationale string
}
