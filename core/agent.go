package core

import "context"

// Agent is the polymorphic unit of work in the workflow graph.
//
// CanHandle must be a pure predicate over the state: no mutation, no I/O.
// It is consulted both by initial routing and by orchestrated step planning.
//
// Execute performs the agent's work and returns the delta to apply. Domain
// failures (missing input, collaborator errors) are reported by setting
// Delta.ErrorState, not by returning an error; a returned error is reserved
// for unexpected conditions and is converted to an error state by the
// engine, so no failure crosses the agent boundary as a panic or raw error.
type Agent interface {
	// ID returns the unique agent identifier used in routing and audit logs.
	ID() string

	// Type classifies the agent for registry lookups.
	Type() AgentType

	// Description is a short human-readable capability summary.
	Description() string

	CanHandle(s *WorkflowState) bool
	Execute(ctx context.Context, s *WorkflowState) (*Delta, error)
}
