package engine

import (
	"fmt"

	"github.com/santosrai/bioai/core"
)

// defaultResponse is shown when no agent produced an assistant turn.
const defaultResponse = "I'm BioAI, your molecular analysis assistant! I can help you with protein analysis, PDB database searches, and molecular structure comparisons. How can I assist you today?"

// Canned follow-up suggestions.
var (
	defaultFollowUps = []string{
		"Can you analyze a specific protein structure?",
		"How can I search for proteins in the PDB database?",
		"Tell me about molecular analysis capabilities",
	}

	failedFollowUps = []string{
		"Please try again with different parameters",
		"Check the logs for more details",
		"Contact support if the issue persists",
	}

	analysisFollowUps = []string{
		"Can you explain these results in more detail?",
		"How do these properties affect protein function?",
		"Compare this with other similar structures",
	}
)

// Result is the client-facing projection of a finished workflow.
type Result struct {
	WorkflowID         string                      `json:"workflowId"`
	Response           string                      `json:"response"`
	Actions            []core.VisualizationCommand `json:"actions"`
	NewContext         map[string]any              `json:"newContext"`
	SuggestedFollowUps []string                    `json:"suggestedFollowUps"`
	Metadata           map[string]any              `json:"metadata"`
	Status             string                      `json:"status"`
}

// ProjectResult flattens a finalized workflow state into the transport
// shape consumed by clients.
func ProjectResult(s *core.WorkflowState) *Result {
	status := "completed"
	confidence := 0.9
	if s.ErrorState != "" {
		status = "failed"
		confidence = 0.1
	}

	response := s.LatestAssistantMessage()
	if response == "" {
		response = defaultResponse
	}

	actions := s.VisualizationCommands
	if actions == nil {
		actions = []core.VisualizationCommand{}
	}

	var durationMs int64
	if !s.CompletedAt.IsZero() {
		durationMs = s.CompletedAt.Sub(s.StartedAt).Milliseconds()
	}

	return &Result{
		WorkflowID: s.WorkflowID,
		Response:   response,
		Actions:    actions,
		NewContext: map[string]any{
			"conversation_context": s.Context,
			"molecular_data":       s.MolecularData,
			"search_results":       s.SearchResults,
			"analysis_results":     s.AnalysisResults,
		},
		SuggestedFollowUps: followUps(s, status),
		Metadata: map[string]any{
			"tokensUsed":    tokensUsed(s, response),
			"duration":      durationMs,
			"toolsInvoked":  toolsInvoked(s),
			"confidence":    confidence,
			"sources":       sources(s),
			"workflowType":  s.WorkflowType,
			"agentHandoffs": len(s.AgentHandoffs),
		},
		Status: status,
	}
}

// followUps picks three suggestions matched to what the workflow produced.
func followUps(s *core.WorkflowState, status string) []string {
	if status == "failed" {
		return append([]string(nil), failedFollowUps...)
	}

	if id := primaryStructureID(s); id != "" {
		return []string{
			fmt.Sprintf("Analyze the structure of %s", id),
			fmt.Sprintf("Compare %s with similar proteins", id),
			fmt.Sprintf("Show binding sites in %s", id),
		}
	}

	if len(s.AnalysisResults) > 0 {
		return append([]string(nil), analysisFollowUps...)
	}
	return append([]string(nil), defaultFollowUps...)
}

func primaryStructureID(s *core.WorkflowState) string {
	if id, ok := s.MolecularData["pdb_id"].(string); ok {
		return id
	}
	return ""
}

// tokensUsed sums reported model usage, estimating from response length
// when no agent reported any.
func tokensUsed(s *core.WorkflowState, response string) int {
	if meta, ok := s.Context["ai_response"].(map[string]any); ok {
		switch n := meta["tokens_used"].(type) {
		case int:
			if n > 0 {
				return n
			}
		case float64:
			if n > 0 {
				return int(n)
			}
		}
	}
	return len(response) / 4
}

// toolsInvoked lists the agents that took part in the run.
func toolsInvoked(s *core.WorkflowState) []string {
	seen := map[string]bool{}
	tools := []string{}

	add := func(id string) {
		if id == "" || id == core.FinalizeNode || seen[id] {
			return
		}
		seen[id] = true
		tools = append(tools, id)
	}

	for _, h := range s.AgentHandoffs {
		add(h.From)
		add(h.To)
	}
	add(s.CurrentAgent)
	return tools
}

// sources lists the PDB entries the answer is based on.
func sources(s *core.WorkflowState) []string {
	seen := map[string]bool{}
	out := []string{}

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, "PDB:"+id)
	}

	add(primaryStructureID(s))
	if records, ok := s.SearchResults["structures_found"].([]map[string]any); ok {
		for _, r := range records {
			if id, ok := r["pdb_id"].(string); ok {
				add(id)
			}
		}
	}

	if meta, ok := s.Context["ai_response"].(map[string]any); ok {
		if name, ok := meta["model"].(string); ok && name != "" {
			out = append(out, "model:"+name)
		}
	}
	return out
}
