package agent

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/santosrai/bioai/core"
	"github.com/santosrai/bioai/logging"
	"github.com/santosrai/bioai/model"
)

func conversationState(message string) *core.WorkflowState {
	return core.NewWorkflowState("wf-1", "conversation_processing", map[string]any{
		"message": message,
	})
}

func TestConversationAgentCanHandle(t *testing.T) {
	a := NewConversationAgent(nil)

	assert.True(t, a.CanHandle(conversationState("hello")))

	empty := core.NewWorkflowState("wf-2", "conversation_processing", nil)
	assert.True(t, a.CanHandle(empty))

	// latest turn by an assistant, non-conversation workflow
	s := core.NewWorkflowState("wf-3", "pdb_search_workflow", map[string]any{"message": "hi"})
	s.Messages = append(s.Messages, core.NewMessage("assistant", "done"))
	assert.False(t, a.CanHandle(s))
}

func TestConversationAgentRoutesStructureRequests(t *testing.T) {
	a := NewConversationAgent(nil)

	delta, err := a.Execute(context.Background(), conversationState("show me the structure of 1ABC"))
	require.NoError(t, err)

	require.NotNil(t, delta.NextAgent)
	assert.Equal(t, core.AgentIDSearch, *delta.NextAgent)
	assert.Equal(t, core.AgentIDConversation, delta.CurrentAgent)
	require.Len(t, delta.Handoffs, 1)
	assert.Equal(t, "PDB structure request detected", delta.Handoffs[0].Reason)
	assert.InDelta(t, 0.9, delta.Handoffs[0].Confidence, 0.001)
	assert.Nil(t, delta.CompletedAt)
	assert.Empty(t, delta.Messages)
}

func TestConversationAgentRoutesAnalysisRequests(t *testing.T) {
	a := NewConversationAgent(nil)

	delta, err := a.Execute(context.Background(), conversationState("analyze the hydrogen bonds please"))
	require.NoError(t, err)

	require.NotNil(t, delta.NextAgent)
	assert.Equal(t, core.AgentIDAnalysis, *delta.NextAgent)
	require.Len(t, delta.Handoffs, 1)
	assert.Equal(t, "Molecular analysis request detected", delta.Handoffs[0].Reason)
	assert.InDelta(t, 0.8, delta.Handoffs[0].Confidence, 0.001)
}

func TestConversationAgentGeneratesResponse(t *testing.T) {
	m := &model.MockModel{}
	m.On("Name").Return("mock-model")
	m.On("Complete", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return len(req.Messages) == 1 && req.Messages[0].Content == "what is a protein?" && req.System != ""
	})).Return(&model.Response{Content: "Proteins are molecular machines.", TokensUsed: 42}, nil)

	a := NewConversationAgent(m)

	delta, err := a.Execute(context.Background(), conversationState("what is a protein?"))
	require.NoError(t, err)

	assert.Nil(t, delta.NextAgent)
	require.Len(t, delta.Messages, 1)
	assert.Equal(t, "assistant", delta.Messages[0].Role)
	assert.Equal(t, "Proteins are molecular machines.", delta.Messages[0].Content)
	require.NotNil(t, delta.CompletedAt)

	meta, ok := delta.Context["ai_response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "mock-model", meta["model"])
	assert.Equal(t, 42, meta["tokens_used"])

	m.AssertExpectations(t)
}

func TestConversationAgentWindowsHistory(t *testing.T) {
	m := &model.MockModel{}
	m.On("Name").Return("mock-model")
	m.On("Complete", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return len(req.Messages) == historyWindow
	})).Return(&model.Response{Content: "ok"}, nil)

	s := conversationState("first question")
	for i := 0; i < 5; i++ {
		s.Messages = append(s.Messages, core.NewMessage("assistant", "reply"))
		s.Messages = append(s.Messages, core.NewMessage("user", "again?"))
	}

	a := NewConversationAgent(m)
	_, err := a.Execute(context.Background(), s)
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestConversationAgentFallsBackOnModelError(t *testing.T) {
	m := &model.MockModel{}
	m.On("Name").Return("mock-model")
	m.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	a := NewConversationAgent(m)

	delta, err := a.Execute(context.Background(), conversationState("tell me a fun fact"))
	require.NoError(t, err)

	require.Len(t, delta.Messages, 1)
	assert.Contains(t, delta.Messages[0].Content, "molecular analysis assistant")
	meta := delta.Context["ai_response"].(map[string]any)
	assert.Equal(t, "fallback", meta["type"])
	assert.Empty(t, delta.ErrorState)
}

func TestConversationAgentLogsModelCalls(t *testing.T) {
	m := &model.MockModel{}
	m.On("Name").Return("mock-model")
	m.On("Complete", mock.Anything, mock.Anything).Return(&model.Response{Content: "ok", TokensUsed: 7}, nil)

	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LogLevelInfo,
		Format: "json",
		Output: &buf,
	})

	a := NewConversationAgent(m, func(o *ConversationOptions) {
		o.Logger = logger
	})

	_, err := a.Execute(context.Background(), conversationState("what is a protein?"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Model call completed")
	assert.Contains(t, out, `"model":"mock-model"`)
	assert.Contains(t, out, `"token_count":7`)
	assert.Contains(t, out, `"workflow_id":"wf-1"`)
}

func TestConversationAgentWithoutModel(t *testing.T) {
	a := NewConversationAgent(nil)

	delta, err := a.Execute(context.Background(), conversationState("tell me about enzymes"))
	require.NoError(t, err)

	require.Len(t, delta.Messages, 1)
	assert.Equal(t, fallbackResponse, delta.Messages[0].Content)
}
