// Package engine runs molecular workflows over a registry of agents.
//
// The engine is a small graph: a routing node picks the first capable agent,
// each agent node applies its state patch, and a finalize node stamps
// completion before the result is projected for the client. Workflows are
// tracked while running and can be inspected or cancelled by id.
package engine
