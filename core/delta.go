package core

import "time"

// Delta is the explicit patch type an agent returns instead of a mutated
// state. Zero-valued fields leave the corresponding state field untouched;
// slice fields append, map fields merge per key. Apply enforces the state
// invariants, so a buggy agent cannot clear the error marker, shrink the
// audit trail or re-stamp the completion time.
type Delta struct {
	// CurrentAgent is stamped unconditionally when non-empty; every agent
	// sets it to its own id.
	CurrentAgent string

	// NextAgent is advisory routing. A nil pointer leaves the field
	// unchanged; a pointer to "" explicitly clears it.
	NextAgent *string

	Messages              []Message
	VisualizationCommands []VisualizationCommand
	Handoffs              []Handoff

	Context         map[string]any
	MolecularData   map[string]any
	SearchResults   map[string]any
	AnalysisResults map[string]any

	// ErrorState marks the run as failed. Ignored when the state already
	// carries an error: the first error wins and is never overwritten.
	ErrorState string

	// CompletedAt stamps completion. Ignored when already set, so a
	// second finalize is a no-op.
	CompletedAt *time.Time
}

// NextAgentTo is a convenience for populating Delta.NextAgent.
func NextAgentTo(id string) *string { return &id }

// Apply merges the delta over the given state and returns the successor
// state. The input state is never modified.
func (d *Delta) Apply(s *WorkflowState) *WorkflowState {
	n := s.Clone()

	if d.CurrentAgent != "" {
		n.CurrentAgent = d.CurrentAgent
	}
	if d.NextAgent != nil {
		n.NextAgent = *d.NextAgent
	}

	n.Messages = append(n.Messages, d.Messages...)
	n.VisualizationCommands = append(n.VisualizationCommands, d.VisualizationCommands...)
	n.AgentHandoffs = append(n.AgentHandoffs, d.Handoffs...)

	mergeInto(n.Context, d.Context)
	mergeInto(n.MolecularData, d.MolecularData)
	mergeInto(n.SearchResults, d.SearchResults)
	mergeInto(n.AnalysisResults, d.AnalysisResults)

	if d.ErrorState != "" && n.ErrorState == "" {
		n.ErrorState = d.ErrorState
	}
	if d.CompletedAt != nil && n.CompletedAt.IsZero() {
		n.CompletedAt = *d.CompletedAt
	}

	return n
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
