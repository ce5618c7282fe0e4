// Package notify delivers negotiation events to interested parties.
// Delivery is best-effort: a failing sink is logged and never blocks
// or fails the workflow.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/concord/id"
)

// EventType classifies a notification event.
type EventType string

const (
	EventProposalDispatched EventType = "proposal_dispatched"
	EventStatusChanged      EventType = "status_changed"
	EventConflictDetected   EventType = "conflict_detected"
	EventConflictResolved   EventType = "conflict_resolved"
	EventReReviewRequested  EventType = "re_review_requested"
	EventWorkflowCompleted  EventType = "workflow_completed"
	EventWorkflowFailed     EventType = "workflow_failed"
)

// Event is one notification to one recipient. An empty Party addresses
// all parties of the workflow.
type Event struct {
	ID         id.EventID `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Type       EventType  `json:"type"`
	Party      string     `json:"party,omitempty"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Sink delivers events over one transport.
type Sink interface {
	Send(ctx context.Context, evt Event) error
}

// Service fans events out to all configured sinks, best-effort.
type Service struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewService builds a notification service over the given sinks.
func NewService(logger *slog.Logger, sinks ...Sink) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sinks: sinks, logger: logger}
}

// Notify assigns the event an id and timestamp and hands it to every
// sink. Sink errors are logged and swallowed.
func (s *Service) Notify(ctx context.Context, evt Event) {
	if evt.ID.IsNil() {
		evt.ID = id.NewEventID()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now()
	}

	for _, sink := range s.sinks {
		if err := sink.Send(ctx, evt); err != nil {
			s.logger.Warn("notification delivery failed",
				slog.String("event_id", evt.ID.String()),
				slog.String("type", string(evt.Type)),
				slog.String("party", evt.Party),
				slog.String("error", err.Error()),
			)
		}
	}
}

// LogSink writes notifications to a structured logger. It is the
// default sink for deployments without an outbound transport.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink builds a logging sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Send implements Sink.
func (l *LogSink) Send(ctx context.Context, evt Event) error {
	l.logger.InfoContext(ctx, "notification",
		slog.String("event_id", evt.ID.String()),
		slog.String("workflow_id", evt.WorkflowID),
		slog.String("type", string(evt.Type)),
		slog.String("party", evt.Party),
		slog.String("subject", evt.Subject),
	)
	return nil
}

// Recorder is an in-memory sink that retains every event it receives.
// Intended for tests and local inspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder builds an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Send implements Sink.
func (r *Recorder) Send(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ByType returns recorded events of one type.
func (r *Recorder) ByType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
