package core

import "fmt"

// Registry maps agent ids to instances and agent types to id lists. Lookup
// order is registration order, which makes FindCapableAgent's first-match
// tie-break deterministic. The registry is built once at startup and is
// read-only afterwards, so it needs no locking.
type Registry struct {
	order  []string
	byID   map[string]Agent
	byType map[AgentType][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   map[string]Agent{},
		byType: map[AgentType][]string{},
	}
}

// Register adds an agent. Registering a duplicate id is a programming error.
func (r *Registry) Register(a Agent) error {
	id := a.ID()
	if id == "" {
		return fmt.Errorf("agent has empty id")
	}
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("agent %q already registered", id)
	}
	r.order = append(r.order, id)
	r.byID[id] = a
	r.byType[a.Type()] = append(r.byType[a.Type()], id)
	return nil
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (Agent, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// OfType returns all agents of the given type in registration order.
func (r *Registry) OfType(t AgentType) []Agent {
	ids := r.byType[t]
	agents := make([]Agent, 0, len(ids))
	for _, id := range ids {
		agents = append(agents, r.byID[id])
	}
	return agents
}

// IDs returns every registered agent id in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// FindCapableAgent scans agents in registration order and returns the first
// whose CanHandle accepts the state.
func (r *Registry) FindCapableAgent(s *WorkflowState) (Agent, bool) {
	for _, id := range r.order {
		if a := r.byID[id]; a.CanHandle(s) {
			return a, true
		}
	}
	return nil, false
}
