package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santosrai/bioai/core"
)

type scriptedAgent struct {
	id        string
	typ       core.AgentType
	canHandle func(s *core.WorkflowState) bool
	execute   func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error)
}

func (a *scriptedAgent) ID() string { return a.id }

func (a *scriptedAgent) Type() core.AgentType { return a.typ }

func (a *scriptedAgent) Description() string { return "scripted" }

func (a *scriptedAgent) CanHandle(s *core.WorkflowState) bool { return a.canHandle(s) }
func (a *scriptedAgent) Execute(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
	return a.execute(ctx, s)
}

func always(s *core.WorkflowState) bool { return true }

func newPipelineRegistry(t *testing.T, agents ...core.Agent) *core.Registry {
	t.Helper()
	r := core.NewRegistry()
	for _, a := range agents {
		require.NoError(t, r.Register(a))
	}
	return r
}

func orchestrationState(message string) *core.WorkflowState {
	return core.NewWorkflowState("wf-1", "complex_analysis", map[string]any{
		"message": message,
	})
}

func TestOrchestrationAgentCanHandle(t *testing.T) {
	a := NewOrchestrationAgent(core.NewRegistry())

	assert.True(t, a.CanHandle(orchestrationState("anything")))

	s := core.NewWorkflowState("wf-2", "agent_execution", map[string]any{"message": "complete analysis of 1ABC please"})
	assert.True(t, a.CanHandle(s))

	s = core.NewWorkflowState("wf-3", "agent_execution", map[string]any{"message": "hello there"})
	assert.False(t, a.CanHandle(s))

	s = core.NewWorkflowState("wf-4", "agent_execution", map[string]any{"message": "hello"})
	s.Context["orchestrated_workflow"] = true
	assert.True(t, a.CanHandle(s))
}

func TestOrchestrationAgentRunsPipeline(t *testing.T) {
	search := &scriptedAgent{
		id: core.AgentIDSearch, typ: core.AgentTypeSearch, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return &core.Delta{
				SearchResults: map[string]any{"structures_found": []map[string]any{{"pdb_id": "1ABC"}}, "result_count": 1},
				MolecularData: map[string]any{"structure_data": testPDBData(), "structure_id": "1ABC"},
			}, nil
		},
	}

	var analysisSawStructure bool
	analysis := &scriptedAgent{
		id: core.AgentIDAnalysis, typ: core.AgentTypeAnalysis, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			// earlier step results must be visible here
			analysisSawStructure = s.MolecularData["structure_id"] == "1ABC"
			return &core.Delta{
				AnalysisResults: map[string]any{core.AgentIDAnalysis: map[string]any{"status": "success"}},
				MolecularData:   map[string]any{"analysis_summary": "3 residues"},
			}, nil
		},
	}

	conversation := &scriptedAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			now := time.Now()
			next := core.AgentIDSearch
			return &core.Delta{
				Messages:    []core.Message{core.NewMessage("assistant", "Here are your results.")},
				NextAgent:   &next,
				CompletedAt: &now,
			}, nil
		},
	}

	a := NewOrchestrationAgent(newPipelineRegistry(t, search, analysis, conversation))

	delta, err := a.Execute(context.Background(), orchestrationState("complete analysis of 1ABC"))
	require.NoError(t, err)

	assert.True(t, analysisSawStructure)
	assert.Equal(t, core.AgentIDOrchestration, delta.CurrentAgent)

	// workers may not steer the outer workflow
	require.NotNil(t, delta.NextAgent)
	assert.Equal(t, "", *delta.NextAgent)
	require.NotNil(t, delta.CompletedAt)

	results, ok := delta.Context["workflow_results"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, results["total_steps"])
	assert.Equal(t, 3, results["successful_steps"])
	assert.Equal(t, 0, results["failed_steps"])
	assert.Equal(t, true, results["workflow_success"])
	assert.ElementsMatch(t, []string{core.AgentIDSearch, core.AgentIDAnalysis, core.AgentIDConversation},
		results["agents_involved"])

	assert.Equal(t, true, delta.Context["orchestrated_workflow"])
	assert.NotNil(t, delta.AnalysisResults["orchestration_summary"])

	// step results plus the final summary message
	require.Len(t, delta.Messages, 2)
	assert.Contains(t, delta.Messages[1].Content, "**Workflow Completed Successfully**")
}

func TestOrchestrationAgentSkipsIncapableSteps(t *testing.T) {
	search := &scriptedAgent{
		id: core.AgentIDSearch, typ: core.AgentTypeSearch, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return &core.Delta{SearchResults: map[string]any{"result_count": 0}}, nil
		},
	}
	analysis := &scriptedAgent{
		id: core.AgentIDAnalysis, typ: core.AgentTypeAnalysis,
		canHandle: func(s *core.WorkflowState) bool { return false },
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			t.Fatal("must not run")
			return nil, nil
		},
	}
	conversation := &scriptedAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return &core.Delta{Messages: []core.Message{core.NewMessage("assistant", "nothing found")}}, nil
		},
	}

	a := NewOrchestrationAgent(newPipelineRegistry(t, search, analysis, conversation))

	delta, err := a.Execute(context.Background(), orchestrationState("full analysis of my protein"))
	require.NoError(t, err)

	results := delta.Context["workflow_results"].(map[string]any)
	assert.Equal(t, 2, results["total_steps"])
	assert.Equal(t, 2, results["successful_steps"])
}

func TestOrchestrationAgentRecordsMissingAgent(t *testing.T) {
	conversation := &scriptedAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return &core.Delta{Messages: []core.Message{core.NewMessage("assistant", "partial results")}}, nil
		},
	}

	a := NewOrchestrationAgent(newPipelineRegistry(t, conversation))

	delta, err := a.Execute(context.Background(), orchestrationState("complete analysis of 1ABC"))
	require.NoError(t, err)

	results := delta.Context["workflow_results"].(map[string]any)
	assert.Equal(t, 3, results["total_steps"])
	assert.Equal(t, 2, results["failed_steps"])
	assert.Equal(t, false, results["workflow_success"])
	assert.Contains(t, delta.Messages[len(delta.Messages)-1].Content, "**Workflow Completed With Errors**")
}

func TestOrchestrationAgentContinuesAfterStepError(t *testing.T) {
	search := &scriptedAgent{
		id: core.AgentIDSearch, typ: core.AgentTypeSearch, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return nil, errors.New("search backend down")
		},
	}
	analysis := &scriptedAgent{
		id: core.AgentIDAnalysis, typ: core.AgentTypeAnalysis, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return &core.Delta{AnalysisResults: map[string]any{core.AgentIDAnalysis: map[string]any{}}}, nil
		},
	}
	conversation := &scriptedAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return &core.Delta{Messages: []core.Message{core.NewMessage("assistant", "done")}}, nil
		},
	}

	a := NewOrchestrationAgent(newPipelineRegistry(t, search, analysis, conversation))

	delta, err := a.Execute(context.Background(), orchestrationState("complete analysis of 1ABC"))
	require.NoError(t, err)

	results := delta.Context["workflow_results"].(map[string]any)
	assert.Equal(t, 3, results["total_steps"])
	assert.Equal(t, 1, results["failed_steps"])
	assert.Equal(t, 2, results["successful_steps"])
}

func TestOrchestrationAgentRunsInteractiveSearchPlan(t *testing.T) {
	var calls []string
	conversation := &scriptedAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			calls = append(calls, "conversation")
			return &core.Delta{Messages: []core.Message{core.NewMessage("assistant", "on it")}}, nil
		},
	}
	search := &scriptedAgent{
		id: core.AgentIDSearch, typ: core.AgentTypeSearch, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			calls = append(calls, "search")
			return &core.Delta{SearchResults: map[string]any{"result_count": 1}}, nil
		},
	}

	a := NewOrchestrationAgent(newPipelineRegistry(t, conversation, search))

	delta, err := a.Execute(context.Background(), orchestrationState("find the hemoglobin structure"))
	require.NoError(t, err)

	plan, ok := delta.Context["workflow_plan"].(workflowPlan)
	require.True(t, ok)
	assert.Equal(t, "interactive_search", plan.Name)
	assert.Equal(t, []string{"conversation", "search", "conversation"}, calls)

	results := delta.Context["workflow_results"].(map[string]any)
	assert.Equal(t, 3, results["total_steps"])
	assert.Equal(t, 3, results["successful_steps"])
	assert.Empty(t, delta.ErrorState)
}

func TestOrchestrationAgentCustomPlan(t *testing.T) {
	var calls []string
	conversation := &scriptedAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation, canHandle: always,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			calls = append(calls, "conversation")
			return &core.Delta{Messages: []core.Message{core.NewMessage("assistant", "hello")}}, nil
		},
	}

	a := NewOrchestrationAgent(newPipelineRegistry(t, conversation))

	s := core.NewWorkflowState("wf-1", "multi_agent_workflow", map[string]any{"message": "tell me a joke"})
	delta, err := a.Execute(context.Background(), s)
	require.NoError(t, err)

	plan, ok := delta.Context["workflow_plan"].(workflowPlan)
	require.True(t, ok)
	assert.Equal(t, "custom_workflow", plan.Name)
	assert.Equal(t, []string{"conversation", "conversation"}, calls)
}
