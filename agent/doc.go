// Package agent implements the four workflow agents: conversation (dialogue
// and intent extraction), search (PDB structure resolution), analysis
// (structural computation) and orchestration (multi-step plan execution).
// Each agent is a pure-predicate CanHandle plus an Execute that returns a
// core.Delta; the intent vocabulary shared by their routing heuristics lives
// in intent.go.
package agent
