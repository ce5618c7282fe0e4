package routing

import (
	"strings"

	"github.com/xraph/concord/state"
)

// ReviewPolicy decides whether the content of a proposal demands a
// legal review even when the configuration does not force one.
type ReviewPolicy interface {
	Requires(s *state.WorkflowState) bool
}

// KeywordPolicy flags proposals touching high-risk legal terms or
// financial amounts, and complex negotiations (three or more parties
// proposing three or more changes).
type KeywordPolicy struct {
	// Keywords matched case-insensitively against clause names and
	// proposed text.
	Keywords []string
	// FinancialMarkers flag monetary content.
	FinancialMarkers []string
	// MinParties and MinChanges together define the complexity trigger.
	MinParties int
	MinChanges int
}

// DefaultPolicy returns the standard keyword policy.
func DefaultPolicy() *KeywordPolicy {
	return &KeywordPolicy{
		Keywords: []string{
			"liability",
			"indemnification",
			"indemnity",
			"termination",
			"intellectual property",
			"confidentiality",
			"non-compete",
			"arbitration",
			"governing law",
			"force majeure",
			"warranty",
			"damages",
		},
		FinancialMarkers: []string{"$", "payment", "fee", "penalty", "compensation"},
		MinParties:       3,
		MinChanges:       3,
	}
}

// Requires implements ReviewPolicy.
func (p *KeywordPolicy) Requires(s *state.WorkflowState) bool {
	if len(s.Parties) >= p.MinParties && len(s.ProposedChanges) >= p.MinChanges {
		return true
	}
	for clause, text := range s.ProposedChanges {
		if p.flagged(clause) || p.flagged(text) {
			return true
		}
	}
	return false
}

func (p *KeywordPolicy) flagged(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range p.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, m := range p.FinancialMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
