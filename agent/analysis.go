package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/santosrai/bioai/core"
	"github.com/santosrai/bioai/logging"
	"github.com/santosrai/bioai/molecular"
)

// analysisRequestKeywords are the triggers for routing a user turn to
// molecular analysis, beyond the shared intent vocabulary.
var analysisRequestKeywords = []string{
	"analyze", "analysis", "binding", "active site", "properties",
	"secondary structure", "hydrogen bonds", "molecular weight",
	"structure", "protein properties",
}

// AnalysisAgentOptions configures the analysis agent.
type AnalysisAgentOptions struct {
	Logger logging.Logger

	// Store downloads structure files when the workflow carries only a
	// PDB id. Optional.
	Store StructureStore
}

// AnalysisAgent runs structural analyses over PDB data already present in
// the workflow, or downloads it by id when a store is wired in.
type AnalysisAgent struct {
	analyzer *molecular.Analyzer
	opts     AnalysisAgentOptions
}

// NewAnalysisAgent creates the analysis agent around a molecular analyzer.
func NewAnalysisAgent(analyzer *molecular.Analyzer, optFns ...func(o *AnalysisAgentOptions)) *AnalysisAgent {
	opts := AnalysisAgentOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &AnalysisAgent{analyzer: analyzer, opts: opts}
}

// ID returns the agent identifier.
func (a *AnalysisAgent) ID() string { return core.AgentIDAnalysis }

// Type returns the agent type.
func (a *AnalysisAgent) Type() core.AgentType { return core.AgentTypeAnalysis }

// Description returns the capability summary.
func (a *AnalysisAgent) Description() string {
	return "Analyzes molecular structures: geometry, secondary structure, hydrogen bonds, sequences and binding sites"
}

// CanHandle accepts dedicated analysis workflows, states that already carry
// structure data, and user turns asking for analysis.
func (a *AnalysisAgent) CanHandle(s *core.WorkflowState) bool {
	if s.WorkflowType == "molecular_analysis_workflow" {
		return true
	}
	if s.MolecularData["structure_data"] != nil || s.MolecularData["pdb_data"] != nil {
		return true
	}
	if containsAny(strings.ToLower(s.LatestUserMessage()), analysisRequestKeywords) {
		return true
	}
	intent, ok := intentFromState(s)
	return ok && intent.PrimaryIntent == IntentAnalysisRequest
}

// Execute locates structure data, runs the analyzer and patches the results
// and a human-readable summary into the workflow.
func (a *AnalysisAgent) Execute(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
	structureID, data := a.locateStructure(ctx, s)
	if data == "" {
		a.opts.Logger.Warn("analysis requested without structure data", "workflow_id", s.WorkflowID)
		now := time.Now()
		return &core.Delta{
			CurrentAgent: a.ID(),
			Messages: []core.Message{core.NewMessage("assistant",
				"I need a structure to analyze. Please load a PDB structure first, for example by id or protein name.")},
			ErrorState:  "no structure data available for analysis",
			CompletedAt: &now,
		}, nil
	}

	typ := a.analysisType(s)
	a.opts.Logger.Info("running molecular analysis", "workflow_id", s.WorkflowID, "structure_id", structureID, "analysis_type", string(typ))

	results, err := a.analyzer.Analyze(ctx, structureID, data, typ)
	if err != nil {
		return nil, fmt.Errorf("molecular analysis: %w", err)
	}

	now := time.Now()
	summary := summarizeResults(structureID, results)

	delta := &core.Delta{
		CurrentAgent: a.ID(),
		Messages: []core.Message{core.NewMessage("assistant",
			fmt.Sprintf("Molecular analysis completed. %s", summary))},
		AnalysisResults: map[string]any{
			a.ID(): results,
		},
		MolecularData: map[string]any{
			"latest_analysis":  results,
			"analysis_summary": summary,
		},
		CompletedAt: &now,
	}

	if status, _ := results["status"].(string); status == molecular.StatusFailed {
		delta.ErrorState = fmt.Sprintf("analysis failed for %s: %v", structureID, results["error"])
	}

	if orchestrated, _ := s.Context["orchestrated_workflow"].(bool); orchestrated {
		delta.NextAgent = core.NextAgentTo(core.AgentIDOrchestration)
	}

	return delta, nil
}

// locateStructure searches the workflow for structure data in priority
// order: molecular data, parameters, search results, then a download by id
// when a store is available.
func (a *AnalysisAgent) locateStructure(ctx context.Context, s *core.WorkflowState) (string, string) {
	id := firstString(
		s.MolecularData["structure_id"],
		s.MolecularData["pdb_id"],
		s.Parameters["pdb_id"],
	)
	if id == "" {
		id = "unknown"
	}

	if data := firstString(
		s.MolecularData["structure_data"],
		s.MolecularData["pdb_data"],
		s.Parameters["structure_data"],
		s.SearchResults["pdb_data"],
	); data != "" {
		return id, data
	}

	if a.opts.Store != nil && id != "unknown" {
		structure, err := a.opts.Store.DownloadStructure(ctx, id)
		if err != nil {
			a.opts.Logger.Warn("structure download failed", "pdb_id", id, "error", err)
			return id, ""
		}
		return structure.PDBID, structure.Data
	}
	return id, ""
}

func (a *AnalysisAgent) analysisType(s *core.WorkflowState) molecular.AnalysisType {
	if t := firstString(s.Parameters["analysis_type"], s.Context["analysis_request"]); t != "" {
		switch molecular.AnalysisType(t) {
		case molecular.AnalysisBasic, molecular.AnalysisComprehensive, molecular.AnalysisCustom:
			return molecular.AnalysisType(t)
		}
	}
	return molecular.AnalysisComprehensive
}

// summarizeResults turns the analyzer's result bag into the key findings
// shown to the user.
func summarizeResults(structureID string, results map[string]any) string {
	var findings []string

	if props, ok := results["basic_properties"].(map[string]any); ok {
		findings = append(findings, fmt.Sprintf("Structure %s has %v chains, %v residues and %v atoms.",
			structureID, props["chain_count"], props["total_residues"], props["total_atoms"]))

		if dims, ok := props["dimensions"].(map[string]any); ok {
			findings = append(findings, fmt.Sprintf("Dimensions: %.1f x %.1f x %.1f Angstroms.",
				toFloat(dims["x"]), toFloat(dims["y"]), toFloat(dims["z"])))
		}
	}

	if ss, ok := results["secondary_structure"].(map[string]any); ok {
		if chains, ok := ss["chains"].(map[string]any); ok {
			for _, chainID := range sortedKeys(chains) {
				chain, ok := chains[chainID].(map[string]any)
				if !ok {
					continue
				}
				helix := toFloat(chain["alpha_helix"])
				sheet := toFloat(chain["beta_sheet"])
				coil := toFloat(chain["coil"])
				total := helix + sheet + coil
				if total == 0 {
					continue
				}
				findings = append(findings, fmt.Sprintf("Chain %s: %.0f%% helix, %.0f%% sheet.",
					chainID, helix/total*100, sheet/total*100))
			}
		}
	}

	if hb, ok := results["hydrogen_bonds"].(map[string]any); ok {
		findings = append(findings, fmt.Sprintf("%v potential hydrogen bonds detected.", hb["total_potential_bonds"]))
	}

	if seq, ok := results["sequence_analysis"].(map[string]any); ok {
		for _, chainID := range sortedKeys(seq) {
			chain, ok := seq[chainID].(map[string]any)
			if !ok {
				continue
			}
			findings = append(findings, fmt.Sprintf("Chain %s sequence: %v residues, %.1f Da.",
				chainID, chain["length"], toFloat(chain["molecular_weight"])))
		}
	}

	if bs, ok := results["binding_sites"].(map[string]any); ok {
		if sites, ok := bs["predicted_sites"].([]map[string]any); ok && len(sites) > 0 {
			findings = append(findings, fmt.Sprintf("%d candidate binding sites predicted; top site merits docking follow-up.", len(sites)))
		}
	}

	if errMsg, ok := results["error"].(string); ok && len(findings) == 0 {
		return errMsg
	}
	if len(findings) == 0 {
		return fmt.Sprintf("No significant findings for structure %s.", structureID)
	}
	return strings.Join(findings, " ")
}

func firstString(vals ...any) string {
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
