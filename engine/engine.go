package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/santosrai/bioai/core"
	"github.com/santosrai/bioai/eventlog"
	"github.com/santosrai/bioai/logging"
)

// nowFn is swapped in tests.
var nowFn = time.Now

// DefaultMaxHops bounds agent-to-agent hand-offs within one workflow run.
const DefaultMaxHops = 8

// ErrWorkflowNotFound is returned by Status and Stop for unknown ids.
var ErrWorkflowNotFound = fmt.Errorf("workflow not found")

// Options configures the engine.
type Options struct {
	Logger   logging.Logger
	Recorder eventlog.Recorder

	// MaxHops caps agent node visits per run.
	MaxHops int
}

// activeWorkflow tracks one in-flight run.
type activeWorkflow struct {
	cancel    context.CancelFunc
	startedAt time.Time

	mu           sync.Mutex
	currentAgent string
	step         int
	agentsRun    []string
	errorState   string
}

func (w *activeWorkflow) update(agent string, errState string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentAgent = agent
	w.step++
	w.agentsRun = append(w.agentsRun, agent)
	if errState != "" {
		w.errorState = errState
	}
}

// Status is a point-in-time snapshot of a running workflow.
type Status struct {
	WorkflowID   string         `json:"workflow_id"`
	CurrentAgent string         `json:"current_agent"`
	StartedAt    time.Time      `json:"started_at"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	Progress     map[string]any `json:"progress"`
}

// Engine executes workflows over the registered agents.
type Engine struct {
	registry *core.Registry
	opts     Options

	mu     sync.Mutex
	active map[string]*activeWorkflow
}

// New creates an engine over a registry of agents.
func New(registry *core.Registry, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger:   logging.NoOpLogger{},
		Recorder: eventlog.NoOpRecorder{},
		MaxHops:  DefaultMaxHops,
	}

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}

	return &Engine{
		registry: registry,
		opts:     opts,
		active:   map[string]*activeWorkflow{},
	}
}

// Execute runs one workflow to completion and returns the projected result.
// A generated workflow id is used when workflowID is empty. The run can be
// cancelled through ctx or Stop.
func (e *Engine) Execute(ctx context.Context, workflowID, workflowType string, parameters map[string]any) (*Result, error) {
	s := core.NewWorkflowState(workflowID, workflowType, parameters)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := &activeWorkflow{cancel: cancel, startedAt: s.StartedAt}

	e.mu.Lock()
	if _, exists := e.active[s.WorkflowID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("workflow %q already running", s.WorkflowID)
	}
	e.active[s.WorkflowID] = tracker
	e.mu.Unlock()
	activeWorkflows.Inc()

	defer func() {
		e.mu.Lock()
		delete(e.active, s.WorkflowID)
		e.mu.Unlock()
		activeWorkflows.Dec()
	}()

	e.opts.Logger.Info("workflow started", "workflow_id", s.WorkflowID, "workflow_type", workflowType)
	e.record(ctx, eventlog.Event{WorkflowID: s.WorkflowID, Kind: eventlog.KindWorkflowStarted,
		Detail: map[string]any{"workflow_type": workflowType}})

	wl := e.workflowLogger(s.WorkflowID)
	final := e.run(ctx, s, tracker, wl)

	status := "completed"
	kind := eventlog.KindWorkflowFinished
	if final.ErrorState != "" {
		status = "failed"
		kind = eventlog.KindWorkflowFailed
	}
	duration := nowFn().Sub(final.StartedAt)

	workflowsTotal.WithLabelValues(status).Inc()
	workflowDuration.Observe(duration.Seconds())
	e.record(ctx, eventlog.Event{WorkflowID: s.WorkflowID, Kind: kind,
		Detail: map[string]any{"status": status, "duration_ms": duration.Milliseconds()}})
	e.opts.Logger.Info("workflow finished", "workflow_id", s.WorkflowID, "status", status,
		"duration", duration.String())
	if wl != nil {
		var runErr error
		if final.ErrorState != "" {
			runErr = errors.New(final.ErrorState)
		}
		tracker.mu.Lock()
		hops := tracker.step
		tracker.mu.Unlock()
		wl.LogWorkflowRun(workflowType, hops, duration, runErr == nil, runErr)
	}

	result := ProjectResult(final)

	// finalize overwrote current_agent, so the tracker is the authority on
	// which agents actually ran
	tracker.mu.Lock()
	result.Metadata["toolsInvoked"] = dedup(tracker.agentsRun)
	tracker.mu.Unlock()

	return result, nil
}

func dedup(ids []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// workflowLogger scopes the structured logger to one run. It returns nil
// when the configured Logger does not carry the workflow helpers.
func (e *Engine) workflowLogger(workflowID string) *logging.WorkflowLogger {
	if wl, ok := e.opts.Logger.(*logging.WorkflowLogger); ok {
		return wl.WithWorkflow(workflowID)
	}
	return nil
}

// run walks the graph until the end node.
func (e *Engine) run(ctx context.Context, s *core.WorkflowState, tracker *activeWorkflow, wl *logging.WorkflowLogger) *core.WorkflowState {
	node := NodeRouteRequest
	hops := 0

	for node != NodeEnd {
		if err := ctx.Err(); err != nil && node != NodeFinalize {
			if s.ErrorState == "" {
				s.ErrorState = fmt.Sprintf("workflow cancelled: %v", err)
			}
			node = NodeFinalize
		}
		e.record(ctx, eventlog.Event{WorkflowID: s.WorkflowID, Kind: eventlog.KindNodeEntered, Node: node})

		switch node {
		case NodeRouteRequest:
			target, ok := e.route(s)
			if !ok {
				s.ErrorState = "no capable agent registered for this request"
				node = NodeFinalize
				continue
			}
			e.opts.Logger.Debug("request routed", "workflow_id", s.WorkflowID, "agent", target)
			node = target

		case NodeFinalize:
			s = finalize(s)
			node = NodeEnd

		default:
			hops++
			if hops > e.opts.MaxHops {
				s.ErrorState = fmt.Sprintf("maximum agent hops exceeded (%d)", e.opts.MaxHops)
				node = NodeFinalize
				continue
			}
			s = e.runAgent(ctx, node, s, tracker, wl)
			node = e.nextNode(s)
		}
	}

	return s
}

// runAgent executes one agent node and applies its patch. An error return
// from the agent becomes the workflow's error state.
func (e *Engine) runAgent(ctx context.Context, agentID string, s *core.WorkflowState, tracker *activeWorkflow, wl *logging.WorkflowLogger) *core.WorkflowState {
	a, ok := e.registry.Get(agentID)
	if !ok {
		s.ErrorState = fmt.Sprintf("agent %q not registered", agentID)
		return s
	}

	start := nowFn()
	delta, err := a.Execute(ctx, s)
	elapsed := nowFn().Sub(start)

	if err != nil {
		e.opts.Logger.Error("agent execution failed", "workflow_id", s.WorkflowID, "agent", agentID, "error", err)
		if wl != nil {
			wl.LogAgentRun(agentID, elapsed, false, err)
		}
		agentExecutions.WithLabelValues(agentID, "error").Inc()
		s.ErrorState = fmt.Sprintf("agent %s failed: %v", agentID, err)
		s.CurrentAgent = agentID
		tracker.update(agentID, s.ErrorState)
		return s
	}

	n := delta.Apply(s)
	if n.CurrentAgent == s.CurrentAgent && delta.CurrentAgent == "" {
		n.CurrentAgent = agentID
	}

	status := "ok"
	if n.ErrorState != "" {
		status = "error"
	}
	agentExecutions.WithLabelValues(agentID, status).Inc()
	tracker.update(agentID, n.ErrorState)
	if wl != nil {
		wl.LogAgentRun(agentID, elapsed, status == "ok", nil)
	}

	e.record(ctx, eventlog.Event{WorkflowID: s.WorkflowID, Kind: eventlog.KindAgentCompleted,
		Agent: agentID, Detail: map[string]any{"duration_ms": elapsed.Milliseconds(), "status": status}})
	e.opts.Logger.Debug("agent completed", "workflow_id", s.WorkflowID, "agent", agentID,
		"duration", elapsed.String(), "status", status)

	return n
}

// Status reports progress for an in-flight workflow.
func (e *Engine) Status(workflowID string) (*Status, error) {
	e.mu.Lock()
	tracker, ok := e.active[workflowID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	status := "running"
	if tracker.errorState != "" {
		status = "error"
	}

	return &Status{
		WorkflowID:   workflowID,
		CurrentAgent: tracker.currentAgent,
		StartedAt:    tracker.startedAt,
		Status:       status,
		Error:        tracker.errorState,
		Progress: map[string]any{
			"agents_completed": append([]string(nil), tracker.agentsRun...),
			"current_step":     tracker.step,
		},
	}, nil
}

// Stop cancels an in-flight workflow. The run still passes through finalize
// and yields a failed result to its caller.
func (e *Engine) Stop(ctx context.Context, workflowID string) error {
	e.mu.Lock()
	tracker, ok := e.active[workflowID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	tracker.cancel()
	e.record(ctx, eventlog.Event{WorkflowID: workflowID, Kind: eventlog.KindWorkflowStopped})
	e.opts.Logger.Info("workflow stopped", "workflow_id", workflowID)
	return nil
}

// ActiveWorkflows lists the ids of currently running workflows.
func (e *Engine) ActiveWorkflows() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) record(ctx context.Context, ev eventlog.Event) {
	// events must still be written after the workflow is cancelled
	if err := e.opts.Recorder.Record(context.WithoutCancel(ctx), ev); err != nil {
		e.opts.Logger.Warn("event recording failed", "workflow_id", ev.WorkflowID, "kind", ev.Kind, "error", err)
	}
}
