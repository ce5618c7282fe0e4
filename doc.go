// Package concord provides a multi-party negotiation orchestration engine
// for Go. It coordinates independent parties evaluating a proposed set of
// document changes, surfaces disagreements as structured conflicts, mediates
// conflicts into revised proposals, and repeats the cycle until consensus,
// a hard round limit, or a fatal error is reached.
//
// Concord is designed as a library, not a service. Import it, configure a
// checkpoint store and a reasoning service, and drive negotiations through
// the engine package.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithStore(memory.New()),
//	    engine.WithReasoning(svc),
//	)
//	if err != nil {
//	    return err
//	}
//	final, err := eng.Initiate(ctx, engine.InitiateRequest{...})
//
// # Architecture
//
// Concord follows a composable collaborator pattern: the reasoning service,
// compliance checker, document merger, checkpoint store, and notification
// sinks each define their own interface, and the engine consumes them
// without knowing the implementations.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package concord
