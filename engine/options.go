package engine

import (
	"log/slog"

	"github.com/xraph/concord"
	"github.com/xraph/concord/backoff"
	"github.com/xraph/concord/compliance"
	"github.com/xraph/concord/document"
	"github.com/xraph/concord/hook"
	"github.com/xraph/concord/middleware"
	"github.com/xraph/concord/notify"
	"github.com/xraph/concord/reasoning"
	"github.com/xraph/concord/routing"
	"github.com/xraph/concord/store"
)

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the checkpoint store. Required.
func WithStore(st store.Store) Option {
	return func(e *Engine) { e.store = st }
}

// WithReasoning sets the reasoning service. Defaults to the
// policy-driven rule-based service.
func WithReasoning(svc reasoning.Service) Option {
	return func(e *Engine) { e.svc = svc }
}

// WithCompliance sets the legal review checker. Defaults to the
// keyword checker.
func WithCompliance(c compliance.Checker) Option {
	return func(e *Engine) { e.checker = c }
}

// WithMerger sets the document merger. Defaults to the clause merger.
func WithMerger(m document.Merger) Option {
	return func(e *Engine) { e.merger = m }
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(r *hook.Registry) Option {
	return func(e *Engine) { e.hooks = r }
}

// WithMiddleware sets the stage middleware chain, outermost first.
// Defaults to Recover and Logging.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) { e.chain = middleware.Chain(mws...) }
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) { e.backoff = b }
}

// WithNotifier sets the notification service.
func WithNotifier(n *notify.Service) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithConfig sets the workflow configuration.
func WithConfig(cfg concord.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
		e.rules = routing.RulesFromConfig(cfg)
	}
}

// WithReviewPolicy overrides the content heuristic that triggers a
// legal review when the configuration does not force one.
func WithReviewPolicy(p routing.ReviewPolicy) Option {
	return func(e *Engine) { e.rules.Policy = p }
}
