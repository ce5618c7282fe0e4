// Package compliance implements the legal review stage: a checker
// judges the agreed proposal against jurisdiction rules and flags
// violations for the conflict lifecycle to route back through
// mediation.
package compliance

import (
	"context"
	"strings"

	"github.com/xraph/concord/state"
)

// Verdict is the outcome of a compliance review.
type Verdict string

const (
	VerdictCompliant    Verdict = "compliant"
	VerdictNonCompliant Verdict = "non_compliant"
	// VerdictRequiresReview flags a proposal a human reviewer must judge.
	// The engine routes it through the same conflict path as a
	// non-compliant verdict.
	VerdictRequiresReview Verdict = "requires_review"
)

// Review is the checker's report on a proposal.
type Review struct {
	Verdict    Verdict
	Violations []string
	Notes      string
}

// Request carries the material under review.
type Request struct {
	ProposedChanges  state.ChangeSet
	OriginalDocument string
	Jurisdiction     string
	ContractType     string
	Regulations      []string
}

// Checker reviews a proposal for regulatory and legal problems.
type Checker interface {
	Check(ctx context.Context, req Request) (*Review, error)
}

// KeywordChecker flags clauses whose text carries terms that are
// unenforceable or restricted in common jurisdictions. It is a
// deterministic stand-in for an external legal review service.
type KeywordChecker struct {
	// Restricted maps a lowercase marker to the violation it signals.
	Restricted map[string]string
}

// NewKeywordChecker returns a checker with the default marker set.
func NewKeywordChecker() *KeywordChecker {
	return &KeywordChecker{
		Restricted: map[string]string{
			"unlimited liability":  "unlimited liability clauses are unenforceable",
			"perpetual":            "perpetual obligations require explicit review",
			"waive all rights":     "blanket rights waivers are unenforceable",
			"unilateral amendment": "unilateral amendment rights are restricted",
			"no notice":            "termination without notice is restricted",
		},
	}
}

// Check implements Checker.
func (k *KeywordChecker) Check(ctx context.Context, req Request) (*Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var violations []string
	for clause, text := range req.ProposedChanges {
		lower := strings.ToLower(text)
		for marker, violation := range k.Restricted {
			if strings.Contains(lower, marker) {
				violations = append(violations, clause+": "+violation)
			}
		}
	}

	if len(violations) > 0 {
		return &Review{Verdict: VerdictNonCompliant, Violations: violations}, nil
	}
	return &Review{Verdict: VerdictCompliant, Notes: "no restricted terms found"}, nil
}
