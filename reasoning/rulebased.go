package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/concord/state"
)

// RuleBased is a deterministic Service driven entirely by party
// policies. It evaluates proposals against prohibited and required
// clauses and mediates by conceding contested clauses. It is the
// default service for tests and for deployments without an external
// reasoning backend.
type RuleBased struct{}

// NewRuleBased returns a policy-driven reasoning service.
func NewRuleBased() *RuleBased { return &RuleBased{} }

// Evaluate implements Service. Prohibited clauses reject the proposal,
// missing required clauses produce a counter-proposal, anything else
// approves.
func (r *RuleBased) Evaluate(ctx context.Context, req EvaluateRequest) (*Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	policy := req.Party.Policy

	for clause := range req.ProposedChanges {
		for _, prohibited := range policy.ProhibitedClauses {
			if strings.EqualFold(clause, prohibited) {
				return &Evaluation{
					Decision:  state.DecisionRejected,
					Rationale: fmt.Sprintf("clause %q is prohibited by %s policy", clause, req.Party.ID),
					RiskSummary: &state.RiskSummary{
						OverallLevel: state.SeverityHigh,
						Notes:        "prohibited clause present",
					},
				}, nil
			}
		}
	}

	var missing []state.Modification
	for _, required := range policy.RequiredClauses {
		if _, ok := req.ProposedChanges[required]; !ok {
			missing = append(missing, state.Modification{
				Clause:        required,
				ProposedText:  "to be drafted",
				Justification: fmt.Sprintf("required by %s policy", req.Party.ID),
			})
		}
	}
	if len(missing) > 0 {
		return &Evaluation{
			Decision:        state.DecisionRequestedChanges,
			Rationale:       "required clauses missing from the proposal",
			CounterProposal: &state.CounterProposal{Modifications: missing},
		}, nil
	}

	return &Evaluation{
		Decision:    state.DecisionApproved,
		Rationale:   "proposal satisfies policy constraints",
		RiskSummary: &state.RiskSummary{OverallLevel: policyRisk(policy)},
	}, nil
}

// Mediate implements Service by conceding every contested clause:
// the revised proposal is the current one with the conflicts' affected
// clauses removed. Parties whose approval predates the revision are
// listed for re-approval.
func (r *RuleBased) Mediate(ctx context.Context, req MediateRequest) (*Mediation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	revised := req.ProposedChanges.Clone()
	if revised == nil {
		revised = state.ChangeSet{}
	}
	for _, c := range req.Conflicts {
		for _, clause := range c.AffectedClauses {
			if clause == "general" {
				continue
			}
			delete(revised, clause)
		}
	}
	if len(revised) == 0 {
		// Full concession would empty the proposal; keep it and let
		// per-conflict validation reject the resolution instead.
		revised = req.ProposedChanges.Clone()
	}

	var reapprove []string
	for party, resp := range req.PartyPositions {
		if resp != nil && resp.Decision == state.DecisionApproved {
			reapprove = append(reapprove, party)
		}
	}

	return &Mediation{
		RevisedChanges:     revised,
		Rationale:          "contested clauses withdrawn from the proposal",
		RequiresReApproval: reapprove,
	}, nil
}

// Validate implements Service. A conflict is resolved when none of its
// affected clauses survive in the revised change set. Conflicts scoped
// to "general" are resolved by any revision.
func (r *RuleBased) Validate(ctx context.Context, req ValidateRequest) (*Validation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, clause := range req.Conflict.AffectedClauses {
		if clause == "general" {
			continue
		}
		if _, ok := req.RevisedChanges[clause]; ok {
			return &Validation{
				Resolved:  false,
				Rationale: fmt.Sprintf("contested clause %q still present in revision", clause),
			}, nil
		}
	}
	return &Validation{Resolved: true, Rationale: "contested clauses no longer in the proposal"}, nil
}

func policyRisk(p state.PartyPolicy) state.Severity {
	if p.RiskTolerance != "" {
		return p.RiskTolerance
	}
	return state.SeverityLow
}
