// Package party implements the party evaluation coordinator: concurrent
// fan-out of proposal evaluations to every pending party, with partial
// failure isolation and a hard review round limit.
package party

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/concord"
	"github.com/xraph/concord/reasoning"
	"github.com/xraph/concord/state"
)

// Agent evaluates proposals on behalf of one party. Agents are built
// from the party configs persisted in the workflow state, so a resumed
// run reconstructs them from the checkpoint alone.
type Agent struct {
	config state.PartyConfig
	svc    reasoning.Service
}

// NewAgent builds an agent for one party.
func NewAgent(cfg state.PartyConfig, svc reasoning.Service) *Agent {
	return &Agent{config: cfg, svc: svc}
}

// ID returns the party identifier this agent acts for.
func (a *Agent) ID() string { return a.config.ID }

// Evaluate asks the reasoning service for this party's position. The
// policy is passed read-only; the agent never mutates it.
func (a *Agent) Evaluate(ctx context.Context, changes state.ChangeSet, original string, round int) (*state.PartyResponse, error) {
	eval, err := a.svc.Evaluate(ctx, reasoning.EvaluateRequest{
		Party:            a.config,
		ProposedChanges:  changes,
		OriginalDocument: original,
		Round:            round,
	})
	if err != nil {
		return nil, fmt.Errorf("party %s: evaluate: %w", a.config.ID, err)
	}

	return &state.PartyResponse{
		PartyID:         a.config.ID,
		Organization:    a.config.Organization,
		Decision:        eval.Decision,
		Rationale:       eval.Rationale,
		CounterProposal: eval.CounterProposal,
		RiskSummary:     eval.RiskSummary,
		Round:           round,
		Timestamp:       time.Now(),
	}, nil
}

// Coordinator fans evaluation requests out to pending parties.
type Coordinator struct {
	svc       reasoning.Service
	logger    *slog.Logger
	maxRounds int
	limit     int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithConcurrencyLimit caps concurrent evaluations. Zero or negative
// means unlimited.
func WithConcurrencyLimit(n int) Option {
	return func(c *Coordinator) { c.limit = n }
}

// NewCoordinator builds a coordinator. maxRounds is the review round
// budget; the review stage executes at most maxRounds+1 times, the last
// execution only recording the round-limit failure.
func NewCoordinator(svc reasoning.Service, maxRounds int, opts ...Option) *Coordinator {
	c := &Coordinator{
		svc:       svc,
		logger:    slog.Default(),
		maxRounds: maxRounds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Review runs one review round: every pending party is evaluated
// concurrently and the results are applied to the state by this
// goroutine alone. One party's failure never aborts the others; failed
// evaluations are recorded as error-tagged responses plus one aggregate
// entry in the error log. A cancelled context writes nothing.
//
// Review increments the round counter before dispatching; if the
// counter exceeds the budget it records a convergence error and returns
// ErrMaxRoundsExceeded without contacting any party.
func (c *Coordinator) Review(ctx context.Context, s *state.WorkflowState) error {
	pending := s.PendingParties()
	if len(pending) == 0 {
		return nil
	}

	s.ReviewRounds++
	if s.ReviewRounds > c.maxRounds {
		msg := fmt.Sprintf("maximum review rounds exceeded (%d > %d)", s.ReviewRounds, c.maxRounds)
		s.RecordError("party_review", concord.KindConvergence, msg)
		return fmt.Errorf("%s: %w", msg, concord.ErrMaxRoundsExceeded)
	}

	c.logger.InfoContext(ctx, "review round dispatch",
		"workflow_id", s.WorkflowID.String(),
		"round", s.ReviewRounds,
		"pending", pending,
	)

	agents := make([]*Agent, len(pending))
	for i, name := range pending {
		agents[i] = NewAgent(c.configFor(s, name), c.svc)
	}

	// Each goroutine owns one slot; the fan-in below is the single
	// writer to the shared state.
	results := make([]*state.PartyResponse, len(pending))
	failures := make([]error, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	if c.limit > 0 {
		g.SetLimit(c.limit)
	}
	round := s.ReviewRounds
	changes := s.ProposedChanges.Clone()
	original := s.OriginalDocument

	for i, agent := range agents {
		g.Go(func() error {
			resp, err := agent.Evaluate(gctx, changes, original, round)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures[i] = err
				results[i] = &state.PartyResponse{
					PartyID:   agent.ID(),
					Decision:  state.DecisionError,
					Rationale: err.Error(),
					Round:     round,
					Timestamp: time.Now(),
				}
				return nil
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Cancellation aborts the whole round without touching state.
		return fmt.Errorf("party review round %d: %w", round, err)
	}

	var failed []string
	for i, r := range results {
		if r == nil {
			continue
		}
		s.SetPartyResponse(*r)
		if failures[i] != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", pending[i], failures[i]))
		}
	}

	if len(failed) > 0 {
		msg := fmt.Sprintf("%d of %d evaluations failed: %s", len(failed), len(pending), strings.Join(failed, "; "))
		s.RecordError("party_review", concord.Classify(msg), msg)
		c.logger.WarnContext(ctx, "review round had failures",
			"workflow_id", s.WorkflowID.String(),
			"round", round,
			"failed", len(failed),
		)
	}
	return nil
}

func (c *Coordinator) configFor(s *state.WorkflowState, name string) state.PartyConfig {
	for _, cfg := range s.PartyConfigs {
		if cfg.ID == name {
			return cfg
		}
	}
	return state.PartyConfig{ID: name}
}
