package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/santosrai/bioai/core"
	"github.com/santosrai/bioai/logging"
)

// planStep is one unit of work in an orchestrated plan.
type planStep struct {
	AgentID  string `json:"agent"`
	Purpose  string `json:"purpose"`
	Parallel bool   `json:"parallel,omitempty"`
}

// workflowPlan names an ordered pipeline of agents plus the phrases that
// select it.
type workflowPlan struct {
	Name     string     `json:"name"`
	Steps    []planStep `json:"steps"`
	triggers []string
}

// Built-in plans, checked in order against the user message.
var builtinPlans = []workflowPlan{
	{
		Name: "structure_analysis_pipeline",
		Steps: []planStep{
			{AgentID: core.AgentIDSearch, Purpose: "locate_structure"},
			{AgentID: core.AgentIDAnalysis, Purpose: "comprehensive_analysis"},
			{AgentID: core.AgentIDConversation, Purpose: "result_presentation"},
		},
		triggers: []string{"analyze structure", "complete analysis", "full analysis"},
	},
	{
		Name: "structure_comparison",
		Steps: []planStep{
			{AgentID: core.AgentIDSearch, Purpose: "locate_structures"},
			{AgentID: core.AgentIDAnalysis, Purpose: "comparative_analysis", Parallel: true},
			{AgentID: core.AgentIDConversation, Purpose: "result_presentation"},
		},
		triggers: []string{"compare structures", "structure comparison", "compare proteins"},
	},
	{
		Name: "interactive_search",
		Steps: []planStep{
			{AgentID: core.AgentIDConversation, Purpose: "intent_extraction"},
			{AgentID: core.AgentIDSearch, Purpose: "locate_structure"},
			{AgentID: core.AgentIDConversation, Purpose: "result_presentation"},
		},
		triggers: []string{"search", "find", "show", "display"},
	},
}

// complexRequestPatterns mark a message as multi-step even when no plan
// trigger matches exactly.
var complexRequestPatterns = []string{
	"analyze and compare", "complete analysis of", "full analysis",
	"detailed analysis", "analyze multiple", "compare and analyze",
}

// OrchestrationOptions configures the orchestration agent.
type OrchestrationOptions struct {
	Logger logging.Logger
}

// OrchestrationAgent coordinates multi-step workflows: it selects or builds
// a plan, runs the other agents in sequence and aggregates their results
// into one combined state patch.
type OrchestrationAgent struct {
	registry *core.Registry
	opts     OrchestrationOptions
}

// NewOrchestrationAgent creates the orchestration agent over a registry of
// worker agents.
func NewOrchestrationAgent(registry *core.Registry, optFns ...func(o *OrchestrationOptions)) *OrchestrationAgent {
	opts := OrchestrationOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &OrchestrationAgent{registry: registry, opts: opts}
}

// ID returns the agent identifier.
func (a *OrchestrationAgent) ID() string { return core.AgentIDOrchestration }

// Type returns the agent type.
func (a *OrchestrationAgent) Type() core.AgentType { return core.AgentTypeOrchestration }

// Description returns the capability summary.
func (a *OrchestrationAgent) Description() string {
	return "Plans and runs multi-agent pipelines for complex analysis and comparison requests"
}

// CanHandle accepts explicit orchestration workflows, plan trigger phrases
// and complex multi-step requests.
func (a *OrchestrationAgent) CanHandle(s *core.WorkflowState) bool {
	if orchestrated, _ := s.Context["orchestrated_workflow"].(bool); orchestrated {
		return true
	}
	if s.NextAgent == a.ID() {
		return true
	}
	if s.WorkflowType == "complex_analysis" || s.WorkflowType == "multi_agent_workflow" {
		return true
	}

	message := strings.ToLower(s.LatestUserMessage())
	if message == "" {
		return false
	}
	for _, plan := range builtinPlans {
		if plan.Name != "interactive_search" && containsAny(message, plan.triggers) {
			return true
		}
	}
	return containsAny(message, complexRequestPatterns)
}

// Execute selects a plan, runs its steps sequentially and returns the
// aggregated patch. Individual step failures are recorded and do not stop
// the pipeline.
func (a *OrchestrationAgent) Execute(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
	message := strings.ToLower(s.LatestUserMessage())
	plan := a.selectPlan(s, message)
	a.opts.Logger.Info("orchestrating workflow", "workflow_id", s.WorkflowID, "plan", plan.Name, "steps", len(plan.Steps))

	started := time.Now()
	combined := &core.Delta{CurrentAgent: a.ID()}

	// cur tracks the evolving state so later steps see earlier results.
	cur := s.Clone()
	cur.Context["orchestrated_workflow"] = true

	var records []map[string]any
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			combined.ErrorState = fmt.Sprintf("orchestration cancelled: %v", err)
			break
		}

		record := map[string]any{
			"step":      i + 1,
			"agent":     step.AgentID,
			"purpose":   step.Purpose,
			"timestamp": time.Now().Unix(),
		}

		worker, ok := a.registry.Get(step.AgentID)
		if !ok {
			record["success"] = false
			record["duration"] = 0.0
			record["error"] = fmt.Sprintf("agent %q not registered", step.AgentID)
			records = append(records, record)
			continue
		}
		if !worker.CanHandle(cur) {
			a.opts.Logger.Debug("skipping step", "plan", plan.Name, "step", i+1, "agent", step.AgentID)
			continue
		}

		stepStart := time.Now()
		delta, err := worker.Execute(ctx, cur)
		record["duration"] = time.Since(stepStart).Seconds()

		if err != nil {
			a.opts.Logger.Error("orchestrated step failed", "plan", plan.Name, "agent", step.AgentID, "error", err)
			record["success"] = false
			record["error"] = err.Error()
			records = append(records, record)
			continue
		}

		record["success"] = delta.ErrorState == ""
		if delta.ErrorState != "" {
			record["error"] = delta.ErrorState
		}
		records = append(records, record)

		sub := stripControlFields(delta)
		cur = sub.Apply(cur)
		mergeDelta(combined, sub)
	}

	now := time.Now()
	totalDuration := now.Sub(started).Seconds()
	results := aggregateResults(records, totalDuration, cur)

	if combined.Context == nil {
		combined.Context = map[string]any{}
	}
	combined.Context["orchestrated_workflow"] = true
	combined.Context["workflow_plan"] = plan
	combined.Context["workflow_results"] = results

	if combined.AnalysisResults == nil {
		combined.AnalysisResults = map[string]any{}
	}
	combined.AnalysisResults["orchestration_summary"] = results

	combined.Messages = append(combined.Messages, core.NewMessage("assistant", orchestrationSummary(plan, results)))
	combined.NextAgent = core.NextAgentTo("")
	combined.CompletedAt = &now

	return combined, nil
}

// selectPlan matches the message against built-in plans, falling back to a
// custom plan assembled from intent.
func (a *OrchestrationAgent) selectPlan(s *core.WorkflowState, message string) workflowPlan {
	for _, plan := range builtinPlans {
		if containsAny(message, plan.triggers) {
			return plan
		}
	}
	return a.customPlan(s, message)
}

func (a *OrchestrationAgent) customPlan(s *core.WorkflowState, message string) workflowPlan {
	plan := workflowPlan{Name: "custom_workflow"}

	intent, ok := intentFromState(s)
	if !ok {
		intent = AnalyzeIntent(message)
	}

	if len(ExtractPDBIDs(s.LatestUserMessage())) > 0 ||
		containsAny(message, []string{"structure", "protein", "pdb", "show", "display", "load"}) {
		plan.Steps = append(plan.Steps, planStep{AgentID: core.AgentIDSearch, Purpose: "locate_structure"})
	}
	if len(intent.AnalysisKeywords) > 0 || containsAny(message, analysisKeywords) {
		plan.Steps = append(plan.Steps, planStep{AgentID: core.AgentIDAnalysis, Purpose: "comprehensive_analysis"})
	}
	if len(plan.Steps) == 0 {
		plan.Steps = append(plan.Steps, planStep{AgentID: core.AgentIDConversation, Purpose: "direct_response"})
	}

	plan.Steps = append(plan.Steps, planStep{AgentID: core.AgentIDConversation, Purpose: "result_presentation"})
	return plan
}

// stripControlFields drops routing and completion fields from a worker's
// patch so the orchestrator keeps control of the outer workflow.
func stripControlFields(d *core.Delta) *core.Delta {
	sub := *d
	sub.CurrentAgent = ""
	sub.NextAgent = nil
	sub.CompletedAt = nil
	return &sub
}

// mergeDelta folds a worker patch into the combined patch. The first error
// state wins.
func mergeDelta(dst, src *core.Delta) {
	dst.Messages = append(dst.Messages, src.Messages...)
	dst.VisualizationCommands = append(dst.VisualizationCommands, src.VisualizationCommands...)
	dst.Handoffs = append(dst.Handoffs, src.Handoffs...)

	dst.Context = mergeBag(dst.Context, src.Context)
	dst.MolecularData = mergeBag(dst.MolecularData, src.MolecularData)
	dst.SearchResults = mergeBag(dst.SearchResults, src.SearchResults)
	dst.AnalysisResults = mergeBag(dst.AnalysisResults, src.AnalysisResults)

	if dst.ErrorState == "" {
		dst.ErrorState = src.ErrorState
	}
}

func mergeBag(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func aggregateResults(records []map[string]any, totalDuration float64, final *core.WorkflowState) map[string]any {
	successful, failed := 0, 0
	agents := []string{}
	seen := map[string]bool{}

	for _, r := range records {
		if ok, _ := r["success"].(bool); ok {
			successful++
		} else {
			failed++
		}
		if id, _ := r["agent"].(string); id != "" && !seen[id] {
			seen[id] = true
			agents = append(agents, id)
		}
	}

	byAgent := map[string]any{}
	for _, id := range agents {
		keyData := map[string]any{}
		switch id {
		case core.AgentIDSearch:
			keyData["structures_found"] = final.SearchResults["structures_found"]
			keyData["result_count"] = final.SearchResults["result_count"]
		case core.AgentIDAnalysis:
			keyData["analysis_summary"] = final.MolecularData["analysis_summary"]
		case core.AgentIDConversation:
			keyData["response"] = final.LatestAssistantMessage()
		}
		byAgent[id] = keyData
	}

	return map[string]any{
		"total_steps":      len(records),
		"successful_steps": successful,
		"failed_steps":     failed,
		"total_duration":   totalDuration,
		"agents_involved":  agents,
		"workflow_success": failed == 0 && successful > 0,
		"results_by_agent": byAgent,
		"step_records":     records,
	}
}

func orchestrationSummary(plan workflowPlan, results map[string]any) string {
	agents, _ := results["agents_involved"].([]string)

	var b strings.Builder
	if ok, _ := results["workflow_success"].(bool); ok {
		b.WriteString("**Workflow Completed Successfully**\n\n")
	} else {
		b.WriteString("**Workflow Completed With Errors**\n\n")
	}
	fmt.Fprintf(&b, "- Plan: %s\n", plan.Name)
	fmt.Fprintf(&b, "- Steps: %v successful, %v failed\n", results["successful_steps"], results["failed_steps"])
	fmt.Fprintf(&b, "- Duration: %.2fs\n", toFloat(results["total_duration"]))
	if len(agents) > 0 {
		fmt.Fprintf(&b, "- Agents: %s\n", strings.Join(agents, ", "))
	}
	return b.String()
}
