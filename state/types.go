package state

import (
	"time"

	"github.com/xraph/concord"
	"github.com/xraph/concord/id"
)

// ChangeSet maps clause names to proposed replacement text.
type ChangeSet map[string]string

// Clone returns a deep copy of the change set.
func (c ChangeSet) Clone() ChangeSet {
	if c == nil {
		return nil
	}
	out := make(ChangeSet, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Modification is a single clause-level edit inside a counter-proposal.
type Modification struct {
	Clause        string `json:"clause"`
	CurrentText   string `json:"current_text,omitempty"`
	ProposedText  string `json:"proposed_text"`
	Justification string `json:"justification,omitempty"`
}

// CounterProposal carries the alternative terms a party attaches to a
// requested_changes decision.
type CounterProposal struct {
	Modifications []Modification `json:"modifications"`
	Conditions    []string       `json:"conditions,omitempty"`
}

// Clauses returns the clause names touched by the counter-proposal, or
// ["general"] when the proposal names none.
func (cp *CounterProposal) Clauses() []string {
	if cp == nil || len(cp.Modifications) == 0 {
		return []string{"general"}
	}
	clauses := make([]string, 0, len(cp.Modifications))
	for _, m := range cp.Modifications {
		if m.Clause != "" {
			clauses = append(clauses, m.Clause)
		}
	}
	if len(clauses) == 0 {
		return []string{"general"}
	}
	return clauses
}

// Changes flattens the counter-proposal into a ChangeSet keyed by clause.
func (cp *CounterProposal) Changes() ChangeSet {
	if cp == nil {
		return nil
	}
	out := make(ChangeSet, len(cp.Modifications))
	for _, m := range cp.Modifications {
		if m.Clause != "" {
			out[m.Clause] = m.ProposedText
		}
	}
	return out
}

// RiskSummary is a party's risk assessment of the proposal.
type RiskSummary struct {
	OverallLevel Severity `json:"overall_level"`
	Notes        string   `json:"notes,omitempty"`
}

// PartyResponse records a party's evaluation of the current proposal.
type PartyResponse struct {
	PartyID         string           `json:"party_id"`
	Organization    string           `json:"organization,omitempty"`
	Decision        Decision         `json:"decision"`
	Rationale       string           `json:"rationale,omitempty"`
	CounterProposal *CounterProposal `json:"counter_proposal,omitempty"`
	RiskSummary     *RiskSummary     `json:"risk_summary,omitempty"`
	Round           int              `json:"round"`
	Timestamp       time.Time        `json:"timestamp"`
}

// Clone returns a deep copy of the response.
func (r *PartyResponse) Clone() *PartyResponse {
	if r == nil {
		return nil
	}
	out := *r
	if r.CounterProposal != nil {
		cp := CounterProposal{
			Modifications: append([]Modification(nil), r.CounterProposal.Modifications...),
			Conditions:    append([]string(nil), r.CounterProposal.Conditions...),
		}
		out.CounterProposal = &cp
	}
	if r.RiskSummary != nil {
		rs := *r.RiskSummary
		out.RiskSummary = &rs
	}
	return &out
}

// ConflictInfo records a disagreement between parties, or between a
// party and the compliance review.
type ConflictInfo struct {
	ID                    id.ConflictID    `json:"id"`
	Type                  ConflictType     `json:"type"`
	Description           string           `json:"description"`
	AffectedParties       []string         `json:"affected_parties"`
	AffectedClauses       []string         `json:"affected_clauses"`
	Severity              Severity         `json:"severity"`
	ResolutionSuggestions []string         `json:"resolution_suggestions,omitempty"`
	Resolution            ResolutionStatus `json:"resolution"`
	CreatedAt             time.Time        `json:"created_at"`
}

// Clone returns a deep copy of the conflict record.
func (c *ConflictInfo) Clone() ConflictInfo {
	out := *c
	out.AffectedParties = append([]string(nil), c.AffectedParties...)
	out.AffectedClauses = append([]string(nil), c.AffectedClauses...)
	out.ResolutionSuggestions = append([]string(nil), c.ResolutionSuggestions...)
	return out
}

// DocumentVersion is an immutable snapshot of the contract document.
type DocumentVersion struct {
	ID             id.VersionID `json:"id"`
	Content        string       `json:"content"`
	ContentHash    string       `json:"content_hash"`
	Author         string       `json:"author"`
	ChangesSummary string       `json:"changes_summary,omitempty"`
	ParentVersion  id.VersionID `json:"parent_version,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ErrorRecord is a structured entry in the workflow error log.
type ErrorRecord struct {
	Source    string            `json:"source"`
	Kind      concord.ErrorKind `json:"kind"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

// ExecutionRecord logs one stage execution.
type ExecutionRecord struct {
	Stage     string        `json:"stage"`
	Round     int           `json:"round"`
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Success   bool          `json:"success"`
	Note      string        `json:"note,omitempty"`
}

// PartyPolicy configures how a party agent evaluates proposals. It is
// persisted with the workflow state so a resumed run can rebuild its
// agents from the checkpoint alone.
type PartyPolicy struct {
	RiskTolerance     Severity `json:"risk_tolerance,omitempty"`
	BudgetLimit       float64  `json:"budget_limit,omitempty"`
	ProhibitedClauses []string `json:"prohibited_clauses,omitempty"`
	RequiredClauses   []string `json:"required_clauses,omitempty"`
	Priorities        []string `json:"priorities,omitempty"`
}

// PartyConfig identifies a negotiating party and its evaluation policy.
type PartyConfig struct {
	ID           string      `json:"id"`
	Organization string      `json:"organization"`
	Role         string      `json:"role,omitempty"`
	Policy       PartyPolicy `json:"policy"`
}

// Clone returns a deep copy of the party config.
func (p PartyConfig) Clone() PartyConfig {
	out := p
	out.Policy.ProhibitedClauses = append([]string(nil), p.Policy.ProhibitedClauses...)
	out.Policy.RequiredClauses = append([]string(nil), p.Policy.RequiredClauses...)
	out.Policy.Priorities = append([]string(nil), p.Policy.Priorities...)
	return out
}

// ApprovedChange pairs a party with the changes it contributed to the
// approved set.
type ApprovedChange struct {
	Party   string    `json:"party"`
	Changes ChangeSet `json:"changes"`
}
