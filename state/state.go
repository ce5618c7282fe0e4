// Package state defines the negotiation workflow state model: the
// aggregate checkpointed between stage executions, its status machine,
// and the derived queries the routing engine and coordinator rely on.
package state

import (
	"fmt"
	"time"

	"github.com/xraph/concord"
	"github.com/xraph/concord/id"
)

// WorkflowState is the full, self-contained state of one negotiation
// workflow. It carries everything needed to resume a run from a
// checkpoint, including the party configurations.
type WorkflowState struct {
	concord.Entity

	WorkflowID  id.WorkflowID  `json:"workflow_id"`
	AmendmentID id.AmendmentID `json:"amendment_id"`
	ContractID  string         `json:"contract_id"`

	Status       Status `json:"status"`
	ReviewRounds int    `json:"review_rounds"`

	Parties        []string                  `json:"parties"`
	PartyConfigs   []PartyConfig             `json:"party_configs"`
	PartyResponses map[string]*PartyResponse `json:"party_responses"`

	OriginalDocument string    `json:"original_document"`
	ProposedChanges  ChangeSet `json:"proposed_changes"`
	FinalDocument    string    `json:"final_document,omitempty"`

	Conflicts         []ConflictInfo `json:"conflicts"`
	ActiveConflicts   []string       `json:"active_conflicts"`
	ResolvedConflicts []string       `json:"resolved_conflicts"`

	DocumentVersions []DocumentVersion `json:"document_versions"`
	CurrentVersion   id.VersionID      `json:"current_version,omitempty"`

	LegalReviewStatus    LegalReviewStatus `json:"legal_review_status"`
	ComplianceViolations []string          `json:"compliance_violations,omitempty"`

	Errors     []ErrorRecord `json:"errors"`
	RetryCount int           `json:"retry_count"`
	// PendingError is set when a stage fails and cleared once the error
	// handling stage has dispositioned the failure.
	PendingError bool `json:"pending_error,omitempty"`

	ExecutionHistory []ExecutionRecord `json:"execution_history"`
	// Processed guards against double execution of a (stage, round) pair
	// when a run is resumed from a checkpoint taken mid-stage.
	Processed map[string]bool `json:"processed,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a fresh workflow state in the initiated status.
func New(contractID string, parties []PartyConfig, changes ChangeSet, originalDocument string) *WorkflowState {
	names := make([]string, len(parties))
	configs := make([]PartyConfig, len(parties))
	for i, p := range parties {
		names[i] = p.ID
		configs[i] = p.Clone()
	}

	return &WorkflowState{
		Entity:            concord.NewEntity(),
		WorkflowID:        id.NewWorkflowID(),
		AmendmentID:       id.NewAmendmentID(),
		ContractID:        contractID,
		Status:            StatusInitiated,
		Parties:           names,
		PartyConfigs:      configs,
		PartyResponses:    make(map[string]*PartyResponse),
		OriginalDocument:  originalDocument,
		ProposedChanges:   changes.Clone(),
		LegalReviewStatus: LegalReviewPending,
		Processed:         make(map[string]bool),
		StartedAt:         time.Now(),
	}
}

// UpdateStatus transitions the workflow to a new status and refreshes
// the updated timestamp. Transitions out of a terminal status are
// ignored.
func (s *WorkflowState) UpdateStatus(status Status) {
	if s.Status.Terminal() {
		return
	}
	s.Status = status
	if status.Terminal() {
		now := time.Now()
		s.CompletedAt = &now
	}
	s.Touch()
}

// SetPartyResponse records or replaces a party's response. Later
// responses from the same party overwrite earlier ones.
func (s *WorkflowState) SetPartyResponse(r PartyResponse) {
	if s.PartyResponses == nil {
		s.PartyResponses = make(map[string]*PartyResponse)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	s.PartyResponses[r.PartyID] = &r
	s.Touch()
}

// PendingParties returns, in the original party order, every party
// without a settled response to the current proposal. A cleared or
// errored response counts as pending.
func (s *WorkflowState) PendingParties() []string {
	var pending []string
	for _, p := range s.Parties {
		r, ok := s.PartyResponses[p]
		if !ok || r.Decision.Pending() {
			pending = append(pending, p)
		}
	}
	return pending
}

// ConsensusReached reports whether every party has approved the current
// proposal. Vacuously false with no parties.
func (s *WorkflowState) ConsensusReached() bool {
	if len(s.Parties) == 0 {
		return false
	}
	for _, p := range s.Parties {
		r, ok := s.PartyResponses[p]
		if !ok || r.Decision != DecisionApproved {
			return false
		}
	}
	return true
}

// AddConflict records a new conflict and marks it active.
func (s *WorkflowState) AddConflict(c ConflictInfo) {
	if c.ID.IsNil() {
		c.ID = id.NewConflictID()
	}
	if c.Resolution == "" {
		c.Resolution = ResolutionUnresolved
	}
	if c.Severity == "" {
		c.Severity = SeverityMedium
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.Conflicts = append(s.Conflicts, c)
	s.ActiveConflicts = append(s.ActiveConflicts, c.ID.String())
	s.Touch()
}

// ConflictByID returns a pointer into the conflict list, or nil.
func (s *WorkflowState) ConflictByID(conflictID string) *ConflictInfo {
	for i := range s.Conflicts {
		if s.Conflicts[i].ID.String() == conflictID {
			return &s.Conflicts[i]
		}
	}
	return nil
}

// ResolveConflict moves a conflict from the active set to the resolved
// set. Resolution is one-way: resolving an already resolved or unknown
// conflict is a no-op and returns false.
func (s *WorkflowState) ResolveConflict(conflictID string) bool {
	c := s.ConflictByID(conflictID)
	if c == nil || c.Resolution == ResolutionResolved {
		return false
	}
	c.Resolution = ResolutionResolved
	for i, activeID := range s.ActiveConflicts {
		if activeID == conflictID {
			s.ActiveConflicts = append(s.ActiveConflicts[:i], s.ActiveConflicts[i+1:]...)
			break
		}
	}
	s.ResolvedConflicts = append(s.ResolvedConflicts, conflictID)
	s.Touch()
	return true
}

// HasActiveConflicts reports whether any conflict is still awaiting
// resolution.
func (s *WorkflowState) HasActiveConflicts() bool {
	return len(s.ActiveConflicts) > 0
}

// PartyHasActiveConflict reports whether the given party is named in
// any active conflict. Conflict detection uses this to stay idempotent:
// a party already covered by an active conflict is not re-processed.
func (s *WorkflowState) PartyHasActiveConflict(party string) bool {
	for _, activeID := range s.ActiveConflicts {
		c := s.ConflictByID(activeID)
		if c == nil {
			continue
		}
		for _, p := range c.AffectedParties {
			if p == party {
				return true
			}
		}
	}
	return false
}

// ApprovedChanges collects the change set agreed by consensus: the
// base proposal plus the counter-proposal modifications of every
// approving party.
func (s *WorkflowState) ApprovedChanges() []ApprovedChange {
	var out []ApprovedChange
	if len(s.ProposedChanges) > 0 {
		out = append(out, ApprovedChange{Party: "proposal", Changes: s.ProposedChanges.Clone()})
	}
	for _, p := range s.Parties {
		r, ok := s.PartyResponses[p]
		if !ok || r.Decision != DecisionApproved || r.CounterProposal == nil {
			continue
		}
		if changes := r.CounterProposal.Changes(); len(changes) > 0 {
			out = append(out, ApprovedChange{Party: p, Changes: changes})
		}
	}
	return out
}

// RecordError appends a structured error record. Consecutive duplicates
// from the same source are collapsed into one entry.
func (s *WorkflowState) RecordError(source string, kind concord.ErrorKind, message string) {
	if n := len(s.Errors); n > 0 {
		last := s.Errors[n-1]
		if last.Source == source && last.Message == message {
			s.PendingError = true
			return
		}
	}
	s.Errors = append(s.Errors, ErrorRecord{
		Source:    source,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	})
	s.PendingError = true
	s.Touch()
}

// LastError returns the most recent error record, or nil.
func (s *WorkflowState) LastError() *ErrorRecord {
	if len(s.Errors) == 0 {
		return nil
	}
	return &s.Errors[len(s.Errors)-1]
}

// MarkProcessed records that a (stage, round) pair has executed.
// Returns false if it was already marked, signalling a resumed run to
// skip re-execution.
func (s *WorkflowState) MarkProcessed(stage string, round int) bool {
	key := fmt.Sprintf("%s:%d", stage, round)
	if s.Processed == nil {
		s.Processed = make(map[string]bool)
	}
	if s.Processed[key] {
		return false
	}
	s.Processed[key] = true
	return true
}

// LogExecution appends a stage execution record.
func (s *WorkflowState) LogExecution(stage string, round int, elapsed time.Duration, success bool, note string) {
	s.ExecutionHistory = append(s.ExecutionHistory, ExecutionRecord{
		Stage:     stage,
		Round:     round,
		Timestamp: time.Now(),
		Elapsed:   elapsed,
		Success:   success,
		Note:      note,
	})
	s.Touch()
}

// LatestVersion returns the most recent document version, or nil.
func (s *WorkflowState) LatestVersion() *DocumentVersion {
	if len(s.DocumentVersions) == 0 {
		return nil
	}
	return &s.DocumentVersions[len(s.DocumentVersions)-1]
}

// AddVersion appends a document version and advances the current
// version pointer.
func (s *WorkflowState) AddVersion(v DocumentVersion) {
	s.DocumentVersions = append(s.DocumentVersions, v)
	s.CurrentVersion = v.ID
	s.FinalDocument = v.Content
	s.Touch()
}

// Progress estimates workflow completion as a fraction in [0, 1],
// derived from the current status.
func (s *WorkflowState) Progress() float64 {
	switch s.Status {
	case StatusInitiated:
		return 0.05
	case StatusPartiesNotified:
		return 0.15
	case StatusUnderReview:
		return 0.35
	case StatusConflictsDetected, StatusConflictResolution:
		return 0.50
	case StatusConsensusBuilding:
		return 0.65
	case StatusLegalReview:
		return 0.75
	case StatusVersionControl:
		return 0.85
	case StatusFinalApproval, StatusApproved:
		return 0.95
	case StatusCompleted, StatusFailed:
		return 1.0
	default:
		return 0.0
	}
}

// Clone returns a deep copy of the workflow state. Stores snapshot
// states on save and load so callers never share mutable memory with
// the persistence layer.
func (s *WorkflowState) Clone() *WorkflowState {
	out := *s

	out.Parties = append([]string(nil), s.Parties...)
	out.PartyConfigs = make([]PartyConfig, len(s.PartyConfigs))
	for i, p := range s.PartyConfigs {
		out.PartyConfigs[i] = p.Clone()
	}
	out.PartyResponses = make(map[string]*PartyResponse, len(s.PartyResponses))
	for k, v := range s.PartyResponses {
		out.PartyResponses[k] = v.Clone()
	}
	out.ProposedChanges = s.ProposedChanges.Clone()

	out.Conflicts = make([]ConflictInfo, len(s.Conflicts))
	for i := range s.Conflicts {
		out.Conflicts[i] = s.Conflicts[i].Clone()
	}
	out.ActiveConflicts = append([]string(nil), s.ActiveConflicts...)
	out.ResolvedConflicts = append([]string(nil), s.ResolvedConflicts...)

	out.DocumentVersions = append([]DocumentVersion(nil), s.DocumentVersions...)
	out.ComplianceViolations = append([]string(nil), s.ComplianceViolations...)
	out.Errors = append([]ErrorRecord(nil), s.Errors...)
	out.ExecutionHistory = append([]ExecutionRecord(nil), s.ExecutionHistory...)

	out.Processed = make(map[string]bool, len(s.Processed))
	for k, v := range s.Processed {
		out.Processed[k] = v
	}

	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
