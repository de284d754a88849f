package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/santosrai/bioai/agent"
	"github.com/santosrai/bioai/core"
	"github.com/santosrai/bioai/eventlog"
	"github.com/santosrai/bioai/logging"
)

type stubAgent struct {
	id        string
	typ       core.AgentType
	canHandle func(s *core.WorkflowState) bool
	execute   func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error)
}

func (a *stubAgent) ID() string { return a.id }

func (a *stubAgent) Type() core.AgentType { return a.typ }

func (a *stubAgent) Description() string { return "stub" }
func (a *stubAgent) CanHandle(s *core.WorkflowState) bool {
	if a.canHandle == nil {
		return true
	}
	return a.canHandle(s)
}
func (a *stubAgent) Execute(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
	return a.execute(ctx, s)
}

func replyingAgent(id string, typ core.AgentType, reply string) *stubAgent {
	return &stubAgent{
		id: id, typ: typ,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			now := time.Now()
			return &core.Delta{
				CurrentAgent: id,
				Messages:     []core.Message{core.NewMessage("assistant", reply)},
				CompletedAt:  &now,
			}, nil
		},
	}
}

func newEngine(t *testing.T, agents ...core.Agent) *Engine {
	t.Helper()
	r := core.NewRegistry()
	for _, a := range agents {
		require.NoError(t, r.Register(a))
	}
	return New(r)
}

func params(message string) map[string]any {
	return map[string]any{"message": message}
}

func TestEngineRunsSingleAgentWorkflow(t *testing.T) {
	e := newEngine(t, replyingAgent(core.AgentIDConversation, core.AgentTypeConversation, "Hello!"))

	result, err := e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
	require.NoError(t, err)

	assert.Equal(t, "wf-1", result.WorkflowID)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "Hello!", result.Response)
	assert.Equal(t, []string{core.AgentIDConversation}, result.Metadata["toolsInvoked"])
}

func TestEngineRoutesToSpecializedAgentFirst(t *testing.T) {
	var ran []string

	search := &stubAgent{
		id: core.AgentIDSearch, typ: core.AgentTypeSearch,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			ran = append(ran, core.AgentIDSearch)
			now := time.Now()
			return &core.Delta{CurrentAgent: core.AgentIDSearch, CompletedAt: &now,
				Messages: []core.Message{core.NewMessage("assistant", "found it")}}, nil
		},
	}
	conversation := &stubAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			ran = append(ran, core.AgentIDConversation)
			now := time.Now()
			return &core.Delta{CompletedAt: &now}, nil
		},
	}

	// registration order must not matter; priority does
	e := newEngine(t, conversation, search)

	_, err := e.Execute(context.Background(), "wf-1", "agent_execution", params("show me 1ABC"))
	require.NoError(t, err)
	assert.Equal(t, []string{core.AgentIDSearch}, ran)
}

func TestEngineOrchestrationOutranksSearch(t *testing.T) {
	now := time.Now()

	orchestration := &agent.MockAgent{}
	orchestration.On("ID").Return(core.AgentIDOrchestration)
	orchestration.On("Type").Return(core.AgentTypeOrchestration)
	orchestration.On("CanHandle", mock.Anything).Return(true)
	orchestration.On("Execute", mock.Anything, mock.Anything).Return(&core.Delta{
		CurrentAgent: core.AgentIDOrchestration,
		Messages:     []core.Message{core.NewMessage("assistant", "workflow complete")},
		CompletedAt:  &now,
	}, nil)

	search := &agent.MockAgent{}
	search.On("ID").Return(core.AgentIDSearch)
	search.On("Type").Return(core.AgentTypeSearch)
	search.On("CanHandle", mock.Anything).Return(true)

	e := newEngine(t, search, orchestration)

	result, err := e.Execute(context.Background(), "wf-1", "agent_execution",
		params("run a complete analysis of 1ABC"))
	require.NoError(t, err)

	assert.Equal(t, []string{core.AgentIDOrchestration}, result.Metadata["toolsInvoked"])
	search.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	orchestration.AssertExpectations(t)
}

func TestEngineLogsAgentAndWorkflowRuns(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LogLevelInfo,
		Format: "json",
		Output: &buf,
	})

	r := core.NewRegistry()
	require.NoError(t, r.Register(replyingAgent(core.AgentIDConversation, core.AgentTypeConversation, "Hello!")))
	e := New(r, func(o *Options) { o.Logger = logger })

	_, err := e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Agent execution completed")
	assert.Contains(t, out, "Workflow execution completed")
	assert.Contains(t, out, `"workflow_id":"wf-1"`)
}

func TestEngineFollowsHandoffs(t *testing.T) {
	conversation := &stubAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return &core.Delta{
				CurrentAgent: core.AgentIDConversation,
				NextAgent:    core.NextAgentTo(core.AgentIDSearch),
				Handoffs: []core.Handoff{{
					From: core.AgentIDConversation, To: core.AgentIDSearch,
					Reason: "PDB structure request detected", Confidence: 0.9, Timestamp: time.Now(),
				}},
			}, nil
		},
	}
	search := &stubAgent{
		id: core.AgentIDSearch, typ: core.AgentTypeSearch,
		canHandle: func(s *core.WorkflowState) bool { return false }, // reached via hand-off only
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			now := time.Now()
			return &core.Delta{
				CurrentAgent:  core.AgentIDSearch,
				Messages:      []core.Message{core.NewMessage("assistant", "**Structure Found: 1GZX**")},
				MolecularData: map[string]any{"pdb_id": "1GZX"},
				CompletedAt:   &now,
			}, nil
		},
	}

	e := newEngine(t, conversation, search)

	result, err := e.Execute(context.Background(), "wf-1", "agent_execution", params("show me hemoglobin"))
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	assert.Contains(t, result.Response, "Structure Found")
	assert.Equal(t, []string{core.AgentIDConversation, core.AgentIDSearch}, result.Metadata["toolsInvoked"])
	assert.Equal(t, []string{"PDB:1GZX"}, result.Metadata["sources"])
	assert.Equal(t, "Analyze the structure of 1GZX", result.SuggestedFollowUps[0])
}

func TestEngineConvertsAgentErrorToFailure(t *testing.T) {
	boom := &stubAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return nil, errors.New("backend unavailable")
		},
	}

	e := newEngine(t, boom)

	result, err := e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
	require.NoError(t, err)

	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, failedFollowUps, result.SuggestedFollowUps)
	assert.Equal(t, 0.1, result.Metadata["confidence"])
}

func TestEngineEnforcesHopCap(t *testing.T) {
	looper := &stubAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return &core.Delta{NextAgent: core.NextAgentTo(core.AgentIDConversation)}, nil
		},
	}

	r := core.NewRegistry()
	require.NoError(t, r.Register(looper))
	e := New(r, func(o *Options) { o.MaxHops = 3 })

	result, err := e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
	require.NoError(t, err)

	assert.Equal(t, "failed", result.Status)
}

func TestEngineIgnoresUnknownHandoffTarget(t *testing.T) {
	conversation := &stubAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			return &core.Delta{
				Messages:  []core.Message{core.NewMessage("assistant", "done")},
				NextAgent: core.NextAgentTo("structure_comparison_agent"),
			}, nil
		},
	}

	e := newEngine(t, conversation)

	result, err := e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
	require.NoError(t, err)

	// unknown target falls through to finalize instead of failing
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "done", result.Response)
}

func TestEngineWithoutCapableAgent(t *testing.T) {
	e := newEngine(t)

	result, err := e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
	require.NoError(t, err)

	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, defaultResponse, result.Response)
}

func TestEngineStatusAndStop(t *testing.T) {
	started := make(chan struct{})
	blocking := &stubAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	e := newEngine(t, blocking)

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
		done <- outcome{result, err}
	}()

	<-started

	status, err := e.Status("wf-1")
	require.NoError(t, err)
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, "wf-1", status.WorkflowID)

	require.NoError(t, e.Stop(context.Background(), "wf-1"))

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, "failed", out.result.Status)

	_, err = e.Status("wf-1")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	err = e.Stop(context.Background(), "wf-1")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestEngineRejectsDuplicateWorkflowID(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := &stubAgent{
		id: core.AgentIDConversation, typ: core.AgentTypeConversation,
		execute: func(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
			close(started)
			<-release
			now := time.Now()
			return &core.Delta{CompletedAt: &now}, nil
		},
	}

	e := newEngine(t, blocking)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
	}()

	<-started
	_, err := e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
	assert.Error(t, err)

	close(release)
	<-done
}

func TestEngineRecordsEvents(t *testing.T) {
	rec := &capturingRecorder{}

	r := core.NewRegistry()
	require.NoError(t, r.Register(replyingAgent(core.AgentIDConversation, core.AgentTypeConversation, "hi")))
	e := New(r, func(o *Options) { o.Recorder = rec })

	_, err := e.Execute(context.Background(), "wf-1", "conversation_processing", params("hi"))
	require.NoError(t, err)

	kinds := rec.kinds()
	assert.Equal(t, eventlog.KindWorkflowStarted, kinds[0])
	assert.Contains(t, kinds, eventlog.KindAgentCompleted)
	assert.Equal(t, eventlog.KindWorkflowFinished, kinds[len(kinds)-1])
}

type capturingRecorder struct {
	events []eventlog.Event
}

func (c *capturingRecorder) Record(_ context.Context, ev eventlog.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *capturingRecorder) History(_ context.Context, workflowID string) ([]eventlog.Event, error) {
	var out []eventlog.Event
	for _, ev := range c.events {
		if ev.WorkflowID == workflowID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (c *capturingRecorder) kinds() []string {
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Kind)
	}
	return out
}
