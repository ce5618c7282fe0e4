package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/concord"
	"github.com/xraph/concord/backoff"
	"github.com/xraph/concord/hook"
	"github.com/xraph/concord/notify"
	"github.com/xraph/concord/reasoning"
	"github.com/xraph/concord/state"
	"github.com/xraph/concord/store"
	"github.com/xraph/concord/store/memory"
)

// evalStep scripts one Evaluate call for one party. Once a party's
// steps are exhausted it approves everything.
type evalStep struct {
	decision  state.Decision
	rationale string
	counter   *state.CounterProposal
	risk      *state.RiskSummary
	err       error
}

type scriptedService struct {
	mu    sync.Mutex
	steps map[string][]evalStep
	calls map[string]int

	mediation    *reasoning.Mediation
	mediateErr   error
	mediateCalls int
	resolves     bool
}

func (s *scriptedService) Evaluate(ctx context.Context, req reasoning.EvaluateRequest) (*reasoning.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	n := s.calls[req.Party.ID]
	s.calls[req.Party.ID] = n + 1

	queue := s.steps[req.Party.ID]
	if n >= len(queue) {
		return &reasoning.Evaluation{Decision: state.DecisionApproved, Rationale: "terms acceptable"}, nil
	}
	step := queue[n]
	if step.err != nil {
		return nil, step.err
	}
	return &reasoning.Evaluation{
		Decision:        step.decision,
		Rationale:       step.rationale,
		CounterProposal: step.counter,
		RiskSummary:     step.risk,
	}, nil
}

func (s *scriptedService) Mediate(ctx context.Context, _ reasoning.MediateRequest) (*reasoning.Mediation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mediateCalls++
	if s.mediateErr != nil {
		return nil, s.mediateErr
	}
	if s.mediation == nil {
		return nil, errors.New("no mediation scripted")
	}
	return s.mediation, nil
}

func (s *scriptedService) Validate(ctx context.Context, _ reasoning.ValidateRequest) (*reasoning.Validation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &reasoning.Validation{Resolved: s.resolves, Rationale: "scripted"}, nil
}

func (s *scriptedService) callCount(party string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[party]
}

func (s *scriptedService) mediations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mediateCalls
}

var _ reasoning.Service = (*scriptedService)(nil)

// recordingHooks captures lifecycle events for assertions.
type recordingHooks struct {
	mu        sync.Mutex
	suspended []string
	completed int
	failed    int
	conflicts int
}

func (h *recordingHooks) Name() string { return "recording" }

func (h *recordingHooks) OnWorkflowSuspended(_ context.Context, _ *state.WorkflowState, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.suspended = append(h.suspended, reason)
	return nil
}

func (h *recordingHooks) OnWorkflowCompleted(_ context.Context, _ *state.WorkflowState, _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed++
	return nil
}

func (h *recordingHooks) OnWorkflowFailed(_ context.Context, _ *state.WorkflowState, _ error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed++
	return nil
}

func (h *recordingHooks) OnConflictDetected(_ context.Context, _ *state.WorkflowState, _ *state.ConflictInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conflicts++
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoParties() []state.PartyConfig {
	return []state.PartyConfig{
		{ID: "alice", Organization: "Acme Corp"},
		{ID: "bob", Organization: "Bolt Ltd"},
	}
}

func threeParties() []state.PartyConfig {
	return append(twoParties(), state.PartyConfig{ID: "carol", Organization: "Crest LLC"})
}

func newTestEngine(t *testing.T, svc reasoning.Service, opts ...Option) (*Engine, *memory.Store, *notify.Recorder, *recordingHooks) {
	t.Helper()

	st := memory.New()
	rec := notify.NewRecorder()
	hooks := &recordingHooks{}
	registry := hook.NewRegistry(quietLogger())
	registry.Register(hooks)

	base := []Option{
		WithStore(st),
		WithReasoning(svc),
		WithLogger(quietLogger()),
		WithNotifier(notify.NewService(quietLogger(), rec)),
		WithHooks(registry),
		WithBackoff(backoff.NewConstant(0)),
	}
	e, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e, st, rec, hooks
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New()
	if !errors.Is(err, concord.ErrNoStore) {
		t.Fatalf("New() error = %v, want ErrNoStore", err)
	}
}

func TestInitiateValidation(t *testing.T) {
	e, _, _, _ := newTestEngine(t, &scriptedService{})
	ctx := context.Background()

	_, err := e.Initiate(ctx, InitiateRequest{
		ContractID:      "contract-1",
		ProposedChanges: state.ChangeSet{"term": "net 30"},
	})
	if !errors.Is(err, concord.ErrNoParties) {
		t.Fatalf("Initiate without parties error = %v, want ErrNoParties", err)
	}

	_, err = e.Initiate(ctx, InitiateRequest{
		ContractID: "contract-1",
		Parties:    twoParties(),
	})
	if !errors.Is(err, concord.ErrNoChanges) {
		t.Fatalf("Initiate without changes error = %v, want ErrNoChanges", err)
	}
}

func TestInitiateCompletesOnConsensus(t *testing.T) {
	svc := &scriptedService{}
	e, st, rec, hooks := newTestEngine(t, svc)
	ctx := context.Background()

	s, err := e.Initiate(ctx, InitiateRequest{
		ContractID:       "contract-1",
		Parties:          twoParties(),
		ProposedChanges:  state.ChangeSet{"delivery_terms": "delivery within 30 days"},
		OriginalDocument: "SERVICE AGREEMENT\n\ndelivery_terms: delivery within 60 days",
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if s.Status != state.StatusCompleted {
		t.Fatalf("status = %s, want %s", s.Status, state.StatusCompleted)
	}
	if s.CompletedAt == nil {
		t.Error("CompletedAt not set on completion")
	}
	if s.ReviewRounds != 1 {
		t.Errorf("ReviewRounds = %d, want 1", s.ReviewRounds)
	}
	if len(s.DocumentVersions) != 1 {
		t.Fatalf("DocumentVersions = %d, want 1", len(s.DocumentVersions))
	}

	v := s.DocumentVersions[0]
	if v.Author != "system_merge" {
		t.Errorf("version author = %q, want system_merge", v.Author)
	}
	if len(v.ContentHash) != 64 {
		t.Errorf("content hash length = %d, want 64", len(v.ContentHash))
	}
	if s.FinalDocument != v.Content {
		t.Error("FinalDocument does not match the merged version content")
	}
	if s.CurrentVersion != v.ID {
		t.Error("CurrentVersion does not point at the merged version")
	}
	if s.LegalReviewStatus != state.LegalReviewApproved {
		t.Errorf("legal review status = %s, want approved", s.LegalReviewStatus)
	}
	if hooks.completed != 1 {
		t.Errorf("completed hook fired %d times, want 1", hooks.completed)
	}

	if got := rec.ByType(notify.EventWorkflowCompleted); len(got) != 2 {
		t.Errorf("completion notifications = %d, want one per party", len(got))
	}

	// Terminal state must be checkpointed.
	persisted, err := st.LoadState(ctx, s.WorkflowID.String())
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if persisted.Status != state.StatusCompleted {
		t.Errorf("persisted status = %s, want %s", persisted.Status, state.StatusCompleted)
	}
}

func TestRejectionExhaustsReviewRounds(t *testing.T) {
	svc := &scriptedService{
		steps: map[string][]evalStep{
			"bob": {
				{
					decision:  state.DecisionRejected,
					rationale: "liability cap unacceptable",
					risk:      &state.RiskSummary{OverallLevel: state.SeverityHigh},
				},
			},
		},
		mediation: &reasoning.Mediation{
			RevisedChanges: state.ChangeSet{"liability": "capped at fees paid"},
			Rationale:      "split the difference",
		},
		resolves: false,
	}

	cfg := concord.DefaultConfig()
	cfg.MaxReviewRounds = 1
	e, _, _, hooks := newTestEngine(t, svc, WithConfig(cfg))

	s, err := e.Initiate(context.Background(), InitiateRequest{
		ContractID:      "contract-2",
		Parties:         threeParties(),
		ProposedChanges: state.ChangeSet{"liability": "uncapped"},
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if s.Status != state.StatusFailed {
		t.Fatalf("status = %s, want %s", s.Status, state.StatusFailed)
	}
	if len(s.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(s.Conflicts))
	}

	c := s.Conflicts[0]
	if c.Type != state.ConflictUnacceptableTerms {
		t.Errorf("conflict type = %s, want %s", c.Type, state.ConflictUnacceptableTerms)
	}
	if len(c.AffectedParties) != 1 || c.AffectedParties[0] != "bob" {
		t.Errorf("affected parties = %v, want [bob]", c.AffectedParties)
	}
	if c.Severity != state.SeverityHigh {
		t.Errorf("severity = %s, want high", c.Severity)
	}
	if !s.HasActiveConflicts() {
		t.Error("failed mediation should leave the conflict active")
	}

	last := s.LastError()
	if last == nil {
		t.Fatal("no error recorded")
	}
	if last.Kind != concord.KindConvergence {
		t.Errorf("error kind = %s, want convergence", last.Kind)
	}
	if want := "maximum review rounds exceeded"; !strings.Contains(last.Message, want) {
		t.Errorf("error message = %q, want substring %q", last.Message, want)
	}
	if hooks.failed != 1 {
		t.Errorf("failed hook fired %d times, want 1", hooks.failed)
	}
}

func TestMediationTriggersReReview(t *testing.T) {
	svc := &scriptedService{
		steps: map[string][]evalStep{
			"bob": {
				{
					decision:  state.DecisionRequestedChanges,
					rationale: "payment window too short",
					counter: &state.CounterProposal{
						Modifications: []state.Modification{
							{Clause: "payment_terms", ProposedText: "net 60"},
						},
					},
				},
			},
		},
		mediation: &reasoning.Mediation{
			RevisedChanges: state.ChangeSet{"payment_terms": "net 45"},
			Rationale:      "met in the middle",
		},
		resolves: true,
	}

	e, _, rec, _ := newTestEngine(t, svc)

	s, err := e.Initiate(context.Background(), InitiateRequest{
		ContractID:      "contract-3",
		Parties:         threeParties(),
		ProposedChanges: state.ChangeSet{"payment_terms": "net 30"},
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if s.Status != state.StatusCompleted {
		t.Fatalf("status = %s, want %s", s.Status, state.StatusCompleted)
	}
	if got := s.ProposedChanges["payment_terms"]; got != "net 45" {
		t.Errorf("mediated proposal = %q, want the revised terms", got)
	}
	if len(s.ResolvedConflicts) != 1 || s.HasActiveConflicts() {
		t.Errorf("resolved = %d, active = %d; want 1 resolved and none active",
			len(s.ResolvedConflicts), len(s.ActiveConflicts))
	}
	if svc.mediations() != 1 {
		t.Errorf("mediate calls = %d, want 1", svc.mediations())
	}

	// Only the dissenting party re-reviews; the approvals stand.
	if got := svc.callCount("bob"); got != 2 {
		t.Errorf("bob evaluated %d times, want 2", got)
	}
	for _, p := range []string{"alice", "carol"} {
		if got := svc.callCount(p); got != 1 {
			t.Errorf("%s evaluated %d times, want 1", p, got)
		}
	}
	if got := rec.ByType(notify.EventReReviewRequested); len(got) != 1 || got[0].Party != "bob" {
		t.Errorf("re-review notifications = %v, want exactly one for bob", got)
	}
	if !strings.Contains(s.FinalDocument, "net 45") {
		t.Error("final document does not carry the mediated terms")
	}
}

func TestComplianceViolationRoutesThroughMediation(t *testing.T) {
	svc := &scriptedService{
		mediation: &reasoning.Mediation{
			RevisedChanges: state.ChangeSet{"term": "five year obligation"},
			Rationale:      "bounded the obligation",
		},
		resolves: true,
	}

	e, _, _, hooks := newTestEngine(t, svc)

	s, err := e.Initiate(context.Background(), InitiateRequest{
		ContractID:      "contract-4",
		Parties:         twoParties(),
		ProposedChanges: state.ChangeSet{"term": "perpetual obligation to indemnify"},
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if s.Status != state.StatusCompleted {
		t.Fatalf("status = %s, want %s", s.Status, state.StatusCompleted)
	}
	if hooks.conflicts != 1 {
		t.Errorf("conflict hooks = %d, want 1 compliance conflict", hooks.conflicts)
	}
	if len(s.Conflicts) != 1 || s.Conflicts[0].Type != state.ConflictStatus {
		t.Fatalf("conflicts = %+v, want one status conflict", s.Conflicts)
	}
	if len(s.Conflicts[0].AffectedParties) != 2 {
		t.Errorf("compliance conflict affects %d parties, want all", len(s.Conflicts[0].AffectedParties))
	}
	if s.LegalReviewStatus != state.LegalReviewApproved {
		t.Errorf("legal review status = %s, want approved after the revision", s.LegalReviewStatus)
	}
	if len(s.ComplianceViolations) != 0 {
		t.Errorf("compliance violations = %v, want cleared", s.ComplianceViolations)
	}
	// Every party re-reviewed the revised terms.
	for _, p := range []string{"alice", "bob"} {
		if got := svc.callCount(p); got != 2 {
			t.Errorf("%s evaluated %d times, want 2", p, got)
		}
	}
}

func TestTransientEvaluationErrorRetries(t *testing.T) {
	svc := &scriptedService{
		steps: map[string][]evalStep{
			"bob": {
				{err: errors.New("connection reset by peer")},
			},
		},
	}

	e, _, _, _ := newTestEngine(t, svc)

	s, err := e.Initiate(context.Background(), InitiateRequest{
		ContractID:      "contract-5",
		Parties:         twoParties(),
		ProposedChanges: state.ChangeSet{"delivery_terms": "delivery within 30 days"},
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if s.Status != state.StatusCompleted {
		t.Fatalf("status = %s, want %s after retry", s.Status, state.StatusCompleted)
	}
	if s.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", s.RetryCount)
	}
	if s.PendingError {
		t.Error("PendingError still set after successful retry")
	}
	if last := s.LastError(); last == nil || last.Kind != concord.KindTransient {
		t.Errorf("last error = %+v, want a transient record", last)
	}
	if got := svc.callCount("bob"); got != 2 {
		t.Errorf("bob evaluated %d times, want 2", got)
	}
	if got := svc.callCount("alice"); got != 1 {
		t.Errorf("alice evaluated %d times, want 1", got)
	}
}

func TestFatalEvaluationErrorFailsWorkflow(t *testing.T) {
	svc := &scriptedService{
		steps: map[string][]evalStep{
			"alice": {
				{err: errors.New("malformed policy document")},
				{err: errors.New("malformed policy document")},
			},
		},
	}

	e, _, _, hooks := newTestEngine(t, svc)

	s, err := e.Initiate(context.Background(), InitiateRequest{
		ContractID:      "contract-6",
		Parties:         twoParties(),
		ProposedChanges: state.ChangeSet{"delivery_terms": "delivery within 30 days"},
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if s.Status != state.StatusFailed {
		t.Fatalf("status = %s, want %s", s.Status, state.StatusFailed)
	}
	if s.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 for a fatal error", s.RetryCount)
	}
	if last := s.LastError(); last == nil || last.Kind != concord.KindFatal {
		t.Errorf("last error = %+v, want a fatal record", last)
	}
	if hooks.failed != 1 {
		t.Errorf("failed hook fired %d times, want 1", hooks.failed)
	}
}

func TestWorkflowDeadline(t *testing.T) {
	svc := &scriptedService{}
	cfg := concord.DefaultConfig()
	cfg.Timeout = time.Nanosecond
	e, _, _, _ := newTestEngine(t, svc, WithConfig(cfg))

	s, err := e.Initiate(context.Background(), InitiateRequest{
		ContractID:      "contract-7",
		Parties:         twoParties(),
		ProposedChanges: state.ChangeSet{"delivery_terms": "delivery within 30 days"},
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if s.Status != state.StatusFailed {
		t.Fatalf("status = %s, want %s", s.Status, state.StatusFailed)
	}
	if last := s.LastError(); last == nil || last.Kind != concord.KindTimeout {
		t.Errorf("last error = %+v, want a timeout record", last)
	}
	if got := svc.callCount("alice") + svc.callCount("bob"); got != 0 {
		t.Errorf("evaluations after deadline = %d, want 0", got)
	}
}

// stallingService blocks every evaluation until the context is
// cancelled, standing in for a hung reasoning backend.
type stallingService struct {
	scriptedService
}

func (s *stallingService) Evaluate(ctx context.Context, _ reasoning.EvaluateRequest) (*reasoning.Evaluation, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, errors.New("evaluator stall elapsed without cancellation")
	}
}

func TestDeadlineCancelsInFlightEvaluations(t *testing.T) {
	svc := &stallingService{}
	cfg := concord.DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	e, st, _, _ := newTestEngine(t, svc, WithConfig(cfg))

	start := time.Now()
	s, err := e.Initiate(context.Background(), InitiateRequest{
		ContractID:      "contract-13",
		Parties:         twoParties(),
		ProposedChanges: state.ChangeSet{"delivery_terms": "delivery within 30 days"},
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("deadline did not cancel in-flight evaluations; run took %s", elapsed)
	}
	if s.Status != state.StatusFailed {
		t.Fatalf("status = %s, want %s", s.Status, state.StatusFailed)
	}
	if last := s.LastError(); last == nil || last.Kind != concord.KindTimeout {
		t.Errorf("last error = %+v, want a timeout record", last)
	}
	// A cancelled review round writes no responses.
	if len(s.PartyResponses) != 0 {
		t.Errorf("party responses = %d, want none from the cancelled round", len(s.PartyResponses))
	}

	// The terminal state is checkpointed despite the expired deadline.
	persisted, err := st.LoadState(context.Background(), s.WorkflowID.String())
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if persisted.Status != state.StatusFailed {
		t.Errorf("persisted status = %s, want %s", persisted.Status, state.StatusFailed)
	}
}

func TestResumeContinuesFromCheckpoint(t *testing.T) {
	svc := &scriptedService{}
	e, st, _, _ := newTestEngine(t, svc)
	ctx := context.Background()

	s := state.New("contract-8", twoParties(), state.ChangeSet{"delivery_terms": "net 30"}, "original text")
	s.UpdateStatus(state.StatusUnderReview)
	s.ReviewRounds = 1
	s.SetPartyResponse(state.PartyResponse{PartyID: "alice", Decision: state.DecisionApproved, Round: 1})
	if err := st.SaveState(ctx, s); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	got, err := e.Resume(ctx, s.WorkflowID.String(), nil)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status != state.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, state.StatusCompleted)
	}
	// Only the party still pending at the checkpoint is evaluated.
	if calls := svc.callCount("alice"); calls != 0 {
		t.Errorf("alice evaluated %d times after resume, want 0", calls)
	}
	if calls := svc.callCount("bob"); calls != 1 {
		t.Errorf("bob evaluated %d times after resume, want 1", calls)
	}
}

func TestResumeAppliesExternalResponses(t *testing.T) {
	svc := &scriptedService{}
	e, st, _, _ := newTestEngine(t, svc)
	ctx := context.Background()

	s := state.New("contract-12", twoParties(), state.ChangeSet{"delivery_terms": "net 30"}, "original text")
	s.UpdateStatus(state.StatusUnderReview)
	s.ReviewRounds = 1
	s.SetPartyResponse(state.PartyResponse{PartyID: "alice", Decision: state.DecisionApproved, Round: 1})
	if err := st.SaveState(ctx, s); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	// Bob's decision arrives out of band; no agent evaluation runs.
	got, err := e.Resume(ctx, s.WorkflowID.String(), &ResumeUpdates{
		PartyResponses: []state.PartyResponse{
			{PartyID: "bob", Decision: state.DecisionApproved, Rationale: "signed off by counsel", Round: 1},
		},
	})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status != state.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, state.StatusCompleted)
	}
	if calls := svc.callCount("bob"); calls != 0 {
		t.Errorf("bob evaluated %d times, want 0 with an external response", calls)
	}
}

func TestResumeMissingWorkflow(t *testing.T) {
	e, _, _, _ := newTestEngine(t, &scriptedService{})
	_, err := e.Resume(context.Background(), "neg_missing", nil)
	if !errors.Is(err, concord.ErrWorkflowNotFound) {
		t.Fatalf("Resume() error = %v, want ErrWorkflowNotFound", err)
	}
}

func TestCancel(t *testing.T) {
	e, st, _, hooks := newTestEngine(t, &scriptedService{})
	ctx := context.Background()

	s := state.New("contract-9", twoParties(), state.ChangeSet{"term": "net 30"}, "")
	if err := st.SaveState(ctx, s); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	if err := e.Cancel(ctx, s.WorkflowID.String()); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	got, err := st.LoadState(ctx, s.WorkflowID.String())
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if got.Status != state.StatusFailed {
		t.Errorf("status = %s, want %s", got.Status, state.StatusFailed)
	}
	if last := got.LastError(); last == nil || last.Message != "cancelled by operator" {
		t.Errorf("last error = %+v, want operator cancellation", last)
	}
	if hooks.failed != 1 {
		t.Errorf("failed hook fired %d times, want 1", hooks.failed)
	}

	if _, err := e.Resume(ctx, s.WorkflowID.String(), nil); !errors.Is(err, concord.ErrWorkflowTerminal) {
		t.Errorf("Resume() after cancel error = %v, want ErrWorkflowTerminal", err)
	}
	if err := e.Cancel(ctx, s.WorkflowID.String()); !errors.Is(err, concord.ErrWorkflowTerminal) {
		t.Errorf("second Cancel() error = %v, want ErrWorkflowTerminal", err)
	}
}

func TestCoordinatorLivelockSuspends(t *testing.T) {
	e, st, _, hooks := newTestEngine(t, &scriptedService{})
	ctx := context.Background()

	// Consensus with nothing left to merge: no proposal, no counter
	// changes, legal review already settled. No stage can make progress.
	s := state.New("contract-10", []state.PartyConfig{{ID: "alice"}}, nil, "")
	s.LegalReviewStatus = state.LegalReviewApproved
	s.SetPartyResponse(state.PartyResponse{PartyID: "alice", Decision: state.DecisionApproved, Round: 1})
	if err := st.SaveState(ctx, s); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	got, err := e.Resume(ctx, s.WorkflowID.String(), nil)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status.Terminal() {
		t.Fatalf("status = %s, want a resumable non-terminal status", got.Status)
	}
	if len(hooks.suspended) != 1 {
		t.Fatalf("suspend hook fired %d times, want 1", len(hooks.suspended))
	}
	if want := "no progress"; !strings.Contains(hooks.suspended[0], want) {
		t.Errorf("suspend reason = %q, want substring %q", hooks.suspended[0], want)
	}
}

func TestStatusReport(t *testing.T) {
	svc := &scriptedService{}
	e, _, _, _ := newTestEngine(t, svc)
	ctx := context.Background()

	s, err := e.Initiate(ctx, InitiateRequest{
		ContractID:      "contract-11",
		Parties:         twoParties(),
		ProposedChanges: state.ChangeSet{"delivery_terms": "delivery within 30 days"},
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	report, err := e.Status(ctx, s.WorkflowID.String())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if report.Status != state.StatusCompleted {
		t.Errorf("report status = %s, want %s", report.Status, state.StatusCompleted)
	}
	if report.Progress != 1.0 {
		t.Errorf("progress = %v, want 1.0", report.Progress)
	}
	if report.ContractID != "contract-11" {
		t.Errorf("contract id = %q, want contract-11", report.ContractID)
	}
	if report.CurrentVersion == "" {
		t.Error("report has no current version")
	}
	if report.CompletedAt == nil {
		t.Error("report has no completion time")
	}
	if len(report.PendingParties) != 0 {
		t.Errorf("pending parties = %v, want none", report.PendingParties)
	}
	for _, p := range []string{"alice", "bob"} {
		if d := report.PartyDecisions[p]; d != state.DecisionApproved {
			t.Errorf("decision for %s = %s, want approved", p, d)
		}
	}

	if _, err := e.Status(ctx, "neg_missing"); !errors.Is(err, concord.ErrWorkflowNotFound) {
		t.Errorf("Status() for missing workflow error = %v, want ErrWorkflowNotFound", err)
	}
}

func TestListFiltersByContract(t *testing.T) {
	svc := &scriptedService{}
	e, _, _, _ := newTestEngine(t, svc)
	ctx := context.Background()

	for _, contract := range []string{"contract-a", "contract-b"} {
		if _, err := e.Initiate(ctx, InitiateRequest{
			ContractID:      contract,
			Parties:         twoParties(),
			ProposedChanges: state.ChangeSet{"delivery_terms": "delivery within 30 days"},
		}); err != nil {
			t.Fatalf("Initiate(%s) error = %v", contract, err)
		}
	}

	got, err := e.List(ctx, store.ListOpts{ContractID: "contract-a"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].ContractID != "contract-a" {
		t.Fatalf("List() = %d results, want exactly the contract-a workflow", len(got))
	}

	completed, err := e.List(ctx, store.ListOpts{Status: state.StatusCompleted})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(completed) != 2 {
		t.Errorf("completed workflows = %d, want 2", len(completed))
	}
}
