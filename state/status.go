package state

// Status is the lifecycle status of a negotiation workflow. It is the
// single source of truth for routing decisions.
type Status string

const (
	// StatusInitiated means the workflow was created but parties have not
	// been notified yet.
	StatusInitiated Status = "initiated"
	// StatusPartiesNotified means all parties have been notified of the
	// proposal.
	StatusPartiesNotified Status = "parties_notified"
	// StatusUnderReview means parties are evaluating the proposal.
	StatusUnderReview Status = "under_review"
	// StatusConflictsDetected means at least one party disagreed and a
	// conflict was recorded.
	StatusConflictsDetected Status = "conflicts_detected"
	// StatusConflictResolution means active conflicts are being mediated.
	StatusConflictResolution Status = "conflict_resolution"
	// StatusConsensusBuilding means every party approved the current
	// proposal and the workflow is converging on a final document.
	StatusConsensusBuilding Status = "consensus_building"
	// StatusLegalReview means the proposal is under compliance review.
	StatusLegalReview Status = "legal_review"
	// StatusVersionControl means approved changes are being merged into
	// a new document version.
	StatusVersionControl Status = "version_control"
	// StatusFinalApproval means the merged document awaits final
	// validation.
	StatusFinalApproval Status = "final_approval"
	// StatusApproved means final validation passed.
	StatusApproved Status = "approved"
	// StatusCompleted means the workflow finished successfully. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means the workflow failed terminally.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Decision is a party's latest position on the proposal.
type Decision string

const (
	DecisionApproved         Decision = "approved"
	DecisionRejected         Decision = "rejected"
	DecisionRequestedChanges Decision = "requested_changes"
	// DecisionPending is the initial state of a response slot before the
	// party has evaluated the proposal.
	DecisionPending Decision = "pending"
	// DecisionPendingReReview tags a party whose approval was cleared by
	// a conflict resolution; the next round re-evaluates only them.
	// Distinct from the initial pending.
	DecisionPendingReReview Decision = "pending_re_review"
	// DecisionError tags a response recorded for a failed evaluation.
	DecisionError Decision = "error"
)

// Pending reports whether the decision leaves the party awaiting
// (re-)evaluation. Approved, rejected and requested_changes are settled
// positions; everything else re-dispatches.
func (d Decision) Pending() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionRequestedChanges:
		return false
	default:
		return true
	}
}

// Severity grades conflicts and risk assessments.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ParseSeverity maps a free-form risk level onto a Severity, defaulting
// to medium for anything unrecognized.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s)
	default:
		return SeverityMedium
	}
}

// ConflictType tags the origin of a recorded conflict.
type ConflictType string

const (
	// ConflictUnacceptableTerms records an outright rejection.
	ConflictUnacceptableTerms ConflictType = "unacceptable_terms"
	// ConflictCounterProposal records a requested-changes position.
	ConflictCounterProposal ConflictType = "counter_proposal"
	// ConflictStatus records contradictory positions or a failed
	// compliance review.
	ConflictStatus ConflictType = "status_conflict"
	// ConflictOther covers everything else.
	ConflictOther ConflictType = "other"
)

// ResolutionStatus is the lifecycle of a conflict. The only legal
// transition is unresolved → resolved (optionally via in_progress);
// resolved conflicts never reopen.
type ResolutionStatus string

const (
	ResolutionUnresolved ResolutionStatus = "unresolved"
	ResolutionInProgress ResolutionStatus = "in_progress"
	ResolutionResolved   ResolutionStatus = "resolved"
)

// LegalReviewStatus tracks the compliance review outcome.
type LegalReviewStatus string

const (
	LegalReviewPending         LegalReviewStatus = "pending"
	LegalReviewApproved        LegalReviewStatus = "approved"
	LegalReviewRequiresChanges LegalReviewStatus = "requires_changes"
)
