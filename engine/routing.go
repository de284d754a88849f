package engine

import (
	"github.com/santosrai/bioai/core"
)

// Graph node names. Agent nodes are named by agent id.
const (
	NodeRouteRequest = "route_request"
	NodeFinalize     = core.FinalizeNode
	NodeEnd          = "end"
)

// routingPriority orders the capability scan at the routing node. More
// specialized agents are asked first so a complex request is not swallowed
// by the conversational catch-all.
var routingPriority = []string{
	core.AgentIDOrchestration,
	core.AgentIDSearch,
	core.AgentIDAnalysis,
	core.AgentIDConversation,
}

// route picks the agent node for the current state. The conversation agent
// is the fallback when no specialized agent claims the request.
func (e *Engine) route(s *core.WorkflowState) (string, bool) {
	for _, id := range routingPriority {
		a, ok := e.registry.Get(id)
		if !ok {
			continue
		}
		if a.CanHandle(s) {
			return id, true
		}
	}

	// agents registered outside the built-in set still get a chance
	if a, ok := e.registry.FindCapableAgent(s); ok {
		return a.ID(), true
	}
	if _, ok := e.registry.Get(core.AgentIDConversation); ok {
		return core.AgentIDConversation, true
	}
	return "", false
}

// nextNode decides where to go after an agent node. Errors and completed
// workflows go straight to finalize; an explicit hand-off target is followed
// when it names a registered agent. The hand-off marker is consumed so a
// stale target cannot loop the graph.
func (e *Engine) nextNode(s *core.WorkflowState) string {
	if s.ErrorState != "" {
		return NodeFinalize
	}

	if s.NextAgent != "" {
		target := s.NextAgent
		s.NextAgent = ""
		if _, ok := e.registry.Get(target); ok {
			return target
		}
		e.opts.Logger.Warn("hand-off to unknown agent ignored", "workflow_id", s.WorkflowID, "target", target)
	}

	return NodeFinalize
}

// finalize stamps the terminal node and completion time. Already-completed
// workflows keep their original timestamp.
func finalize(s *core.WorkflowState) *core.WorkflowState {
	n := s.Clone()
	n.CurrentAgent = core.FinalizeNode
	if n.CompletedAt.IsZero() {
		n.CompletedAt = nowFn()
	}
	return n
}
