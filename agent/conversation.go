package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/santosrai/bioai/core"
	"github.com/santosrai/bioai/logging"
	"github.com/santosrai/bioai/model"
)

// defaultSystemPrompt frames the assistant for general dialogue.
const defaultSystemPrompt = `You are BioAI, an expert AI assistant specialized in molecular biology, biochemistry, and protein analysis.

You have access to powerful scientific tools including:
- Protein structure analysis
- Real-time PDB (Protein Data Bank) database search
- Molecular structure comparison capabilities

You should:
1. Provide helpful, accurate scientific information
2. Offer to analyze specific proteins/molecules when relevant
3. Ask clarifying questions to better help with scientific tasks
4. Be conversational and engaging while maintaining scientific accuracy

If users ask about molecular analysis, protein structures, PDB IDs, or related topics, offer to use your scientific tools to help them.`

// fallbackResponse is returned when the completion service is unavailable
// or fails.
const fallbackResponse = "I'm BioAI, your molecular analysis assistant! I can help you with protein analysis, PDB database searches, and molecular structure comparisons. How can I assist you today?"

// historyWindow bounds how many recent turns are sent to the model.
const historyWindow = 4

// Hand-off reasons recorded in the audit trail.
const (
	reasonStructureRequest = "PDB structure request detected"
	reasonAnalysisRequest  = "Molecular analysis request detected"
)

// ConversationOptions configures the conversation agent.
type ConversationOptions struct {
	Logger       logging.Logger
	SystemPrompt string
}

// ConversationAgent handles general dialogue. It extracts intent from the
// latest user turn and either hands off to a specialized agent or answers
// directly through the text-completion collaborator.
type ConversationAgent struct {
	model model.Model
	opts  ConversationOptions
}

// NewConversationAgent creates the conversation agent. The model may be nil
// for setups without a completion backend; execution then degrades to the
// fallback response.
func NewConversationAgent(m model.Model, optFns ...func(o *ConversationOptions)) *ConversationAgent {
	opts := ConversationOptions{
		Logger:       logging.NoOpLogger{},
		SystemPrompt: defaultSystemPrompt,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ConversationAgent{model: m, opts: opts}
}

// ID returns the agent identifier.
func (a *ConversationAgent) ID() string { return core.AgentIDConversation }

// Type returns the agent type.
func (a *ConversationAgent) Type() core.AgentType { return core.AgentTypeConversation }

// Description returns the capability summary.
func (a *ConversationAgent) Description() string {
	return "Handles general conversation, intent extraction and routing to specialized agents"
}

// CanHandle accepts any state whose latest turn is a user message, plus
// explicit conversation workflows. It is the catch-all default.
func (a *ConversationAgent) CanHandle(s *core.WorkflowState) bool {
	if len(s.Messages) == 0 {
		return true
	}
	if s.Messages[len(s.Messages)-1].Role == "user" {
		return true
	}
	return s.WorkflowType == "conversation_processing"
}

// Execute analyzes intent and either records a hand-off or generates a
// direct reply.
func (a *ConversationAgent) Execute(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
	userMessage := s.LatestUserMessage()
	a.opts.Logger.Info("processing conversation", "workflow_id", s.WorkflowID, "message_len", len(userMessage))

	intent := AnalyzeIntent(userMessage)

	if target, reason, confidence, ok := a.domainRouting(intent); ok {
		a.opts.Logger.Info("routing to specialized agent", "workflow_id", s.WorkflowID, "target", target, "reason", reason)
		return &core.Delta{
			CurrentAgent: a.ID(),
			NextAgent:    core.NextAgentTo(target),
			Handoffs: []core.Handoff{{
				From:       a.ID(),
				To:         target,
				Reason:     reason,
				Confidence: confidence,
				Timestamp:  time.Now(),
			}},
			Context: map[string]any{
				"intent_analysis": intent,
				"routing_decision": map[string]any{
					"target_agent": target,
					"reason":       reason,
					"confidence":   confidence,
				},
			},
		}, nil
	}

	content, meta := a.generateResponse(ctx, s, userMessage)
	now := time.Now()

	return &core.Delta{
		CurrentAgent: a.ID(),
		Messages:     []core.Message{core.NewMessage("assistant", content)},
		Context: map[string]any{
			"intent_analysis": intent,
			"ai_response":     meta,
		},
		CompletedAt: &now,
	}, nil
}

func (a *ConversationAgent) domainRouting(intent IntentAnalysis) (target, reason string, confidence float64, ok bool) {
	switch {
	case len(intent.PDBIndicators) > 0:
		return core.AgentIDSearch, reasonStructureRequest, 0.9, true
	case len(intent.AnalysisKeywords) > 0:
		return core.AgentIDAnalysis, reasonAnalysisRequest, 0.8, true
	}
	return "", "", 0, false
}

// logModelCall emits the structured model-call record when the configured
// logger carries the workflow helpers.
func (a *ConversationAgent) logModelCall(workflowID string, tokens int, dur time.Duration, err error) {
	wl, ok := a.opts.Logger.(*logging.WorkflowLogger)
	if !ok {
		return
	}
	wl.WithWorkflow(workflowID).WithAgent(a.ID()).LogModelCall(a.model.Name(), tokens, dur, err == nil, err)
}

// generateResponse calls the completion collaborator with a bounded window
// of recent turns. Failures degrade to the fixed fallback string; they
// never escape the agent boundary.
func (a *ConversationAgent) generateResponse(ctx context.Context, s *core.WorkflowState, userMessage string) (string, map[string]any) {
	if a.model == nil {
		return fallbackResponse, map[string]any{"type": "fallback", "error": "conversation model not initialized"}
	}

	req := model.Request{System: a.opts.SystemPrompt}

	window := s.Messages
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	for _, msg := range window {
		req.Messages = append(req.Messages, model.Message{Role: msg.Role, Content: msg.Content})
	}
	if len(req.Messages) == 0 {
		req.Messages = append(req.Messages, model.Message{Role: "user", Content: userMessage})
	}

	start := time.Now()
	resp, err := a.model.Complete(ctx, req)
	if err != nil {
		a.opts.Logger.Error("response generation failed", "workflow_id", s.WorkflowID, "error", err)
		a.logModelCall(s.WorkflowID, 0, time.Since(start), err)
		return fallbackResponse, map[string]any{"type": "fallback", "error": err.Error()}
	}

	tokens := resp.TokensUsed
	if tokens == 0 {
		// rough estimate when the provider reports no usage
		tokens = len(resp.Content) / 4
	}
	a.logModelCall(s.WorkflowID, tokens, time.Since(start), nil)

	return resp.Content, map[string]any{
		"type":          "conversation",
		"model":         a.model.Name(),
		"tokens_used":   tokens,
		"response_time": fmt.Sprintf("%.3fs", time.Since(start).Seconds()),
	}
}
