package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Agent identifiers used throughout the workflow graph. Registration order in
// the registry follows this order, and routing tie-breaks depend on it.
const (
	AgentIDConversation  = "conversation_agent"
	AgentIDSearch        = "pdb_search_agent"
	AgentIDAnalysis      = "molecular_analysis_agent"
	AgentIDOrchestration = "orchestration_agent"

	// FinalizeNode is the terminal graph node; it is stamped as the
	// current agent when a workflow finishes.
	FinalizeNode = "finalize_response"
)

// AgentType classifies agents by capability for registry lookups.
type AgentType string

const (
	// AgentTypeConversation handles general dialogue and intent extraction.
	AgentTypeConversation AgentType = "conversation"
	// AgentTypeSearch resolves structure identifiers against the PDB.
	AgentTypeSearch AgentType = "search"
	// AgentTypeAnalysis runs structural analysis over resolved structures.
	AgentTypeAnalysis AgentType = "analysis"
	// AgentTypeOrchestration plans and drives multi-step workflows.
	AgentTypeOrchestration AgentType = "orchestration"
)

// Message is a single role-tagged conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// Handoff records one agent delegating further processing to another.
// Handoffs form an append-only audit trail on the workflow state.
type Handoff struct {
	From       string    `json:"from_agent"`
	To         string    `json:"to_agent"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// VisualizationCommand is an action descriptor surfaced to the caller,
// typically instructing the frontend to load a structure into the viewer.
type VisualizationCommand struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Result      map[string]any `json:"result"`
	Timestamp   int64          `json:"timestamp"`
	Duration    int64          `json:"duration"`
	Success     bool           `json:"success"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// WorkflowState is the shared record threaded through every node of a
// workflow run. It is passed by replacement: each node receives the current
// state and the engine produces a new one by applying the node's Delta.
// WorkflowID and Parameters are immutable after creation; Messages,
// AgentHandoffs and VisualizationCommands only ever grow.
type WorkflowState struct {
	WorkflowID   string `json:"workflow_id"`
	WorkflowType string `json:"workflow_type"`

	Messages []Message `json:"messages"`

	CurrentAgent string `json:"current_agent"`
	NextAgent    string `json:"next_agent,omitempty"`

	// Context is the open-ended bag agents accumulate intent analysis,
	// routing decisions and plans into. Keys are additive; later writes
	// merge per key, never replace the whole bag.
	Context    map[string]any `json:"context"`
	Parameters map[string]any `json:"parameters"`

	// Per-domain result bags, keyed by the agent id that produced each
	// entry plus a few "latest" convenience keys.
	MolecularData   map[string]any `json:"molecular_data"`
	SearchResults   map[string]any `json:"search_results"`
	AnalysisResults map[string]any `json:"analysis_results"`

	VisualizationCommands []VisualizationCommand `json:"visualization_commands"`
	AgentHandoffs         []Handoff              `json:"agent_handoffs"`

	// ErrorState is the terminal-error marker. Once set it is never
	// cleared within the same run and the engine routes to finalize.
	ErrorState string `json:"error_state,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// NewWorkflowState creates the initial state for a run. If workflowID is
// empty a new identifier is generated. If parameters carry a string
// "message", it is seeded as the first user turn.
func NewWorkflowState(workflowID, workflowType string, parameters map[string]any) *WorkflowState {
	if workflowID == "" {
		workflowID = uuid.NewString()
	}
	if parameters == nil {
		parameters = map[string]any{}
	}

	s := &WorkflowState{
		WorkflowID:      workflowID,
		WorkflowType:    workflowType,
		Messages:        []Message{},
		Context:         map[string]any{},
		Parameters:      parameters,
		MolecularData:   map[string]any{},
		SearchResults:   map[string]any{},
		AnalysisResults: map[string]any{},
		StartedAt:       time.Now(),
	}

	if msg, ok := parameters["message"].(string); ok && strings.TrimSpace(msg) != "" {
		s.Messages = append(s.Messages, NewMessage("user", msg))
	}

	return s
}

// Clone returns a copy safe to apply a Delta to. Maps are copied one level
// deep; nested values are shared, which is safe because agents treat
// received state as read-only.
func (s *WorkflowState) Clone() *WorkflowState {
	n := *s
	n.Messages = append([]Message(nil), s.Messages...)
	n.VisualizationCommands = append([]VisualizationCommand(nil), s.VisualizationCommands...)
	n.AgentHandoffs = append([]Handoff(nil), s.AgentHandoffs...)
	n.Context = copyMap(s.Context)
	n.Parameters = copyMap(s.Parameters)
	n.MolecularData = copyMap(s.MolecularData)
	n.SearchResults = copyMap(s.SearchResults)
	n.AnalysisResults = copyMap(s.AnalysisResults)
	return &n
}

// LatestUserMessage returns the content of the most recent user turn, or the
// "message" parameter when no user turn exists yet.
func (s *WorkflowState) LatestUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == "user" {
			return s.Messages[i].Content
		}
	}
	if msg, ok := s.Parameters["message"].(string); ok {
		return msg
	}
	return ""
}

// LatestAssistantMessage returns the content of the most recent assistant
// turn, or the empty string.
func (s *WorkflowState) LatestAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == "assistant" {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Completed reports whether the completion timestamp has been stamped.
func (s *WorkflowState) Completed() bool {
	return !s.CompletedAt.IsZero()
}

func copyMap(m map[string]any) map[string]any {
	n := make(map[string]any, len(m))
	for k, v := range m {
		n[k] = v
	}
	return n
}
