package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/santosrai/bioai/core"
	"github.com/santosrai/bioai/logging"
	"github.com/santosrai/bioai/pdb"
)

// StructureStore is the subset of the PDB client the search agent needs.
type StructureStore interface {
	EntryByID(ctx context.Context, pdbID string) (*pdb.Entry, error)
	SearchByKeyword(ctx context.Context, keyword string, optFns ...func(o *pdb.SearchOptions)) (*pdb.SearchResult, error)
	DownloadStructure(ctx context.Context, pdbID string) (*pdb.Structure, error)
}

// downstreamAnalysisKeywords trigger a hand-off to the analysis agent once
// search has produced structures.
var downstreamAnalysisKeywords = []string{
	"analyze", "analysis", "binding", "active site", "properties",
}

// SearchAgentOptions configures the search agent.
type SearchAgentOptions struct {
	Logger logging.Logger

	// MaxResults caps keyword searches.
	MaxResults int
	// DownloadURL is the base for structure file links.
	DownloadURL string
}

// SearchAgent resolves structure requests against the Protein Data Bank.
// It recognizes explicit PDB ids, known protein names and free-text
// keyword queries, and emits visualization commands for the frontend.
type SearchAgent struct {
	store StructureStore
	opts  SearchAgentOptions
}

// NewSearchAgent creates the search agent around a structure store.
func NewSearchAgent(store StructureStore, optFns ...func(o *SearchAgentOptions)) *SearchAgent {
	opts := SearchAgentOptions{
		Logger:      logging.NoOpLogger{},
		MaxResults:  10,
		DownloadURL: "https://files.rcsb.org/download",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &SearchAgent{store: store, opts: opts}
}

// ID returns the agent identifier.
func (a *SearchAgent) ID() string { return core.AgentIDSearch }

// Type returns the agent type.
func (a *SearchAgent) Type() core.AgentType { return core.AgentTypeSearch }

// Description returns the capability summary.
func (a *SearchAgent) Description() string {
	return "Searches the Protein Data Bank by id, protein name or keyword and loads structures for display"
}

// CanHandle accepts dedicated search workflows and any state whose latest
// user turn looks like a structure request.
func (a *SearchAgent) CanHandle(s *core.WorkflowState) bool {
	if s.WorkflowType == "pdb_search_workflow" {
		return true
	}

	raw := s.LatestUserMessage()
	message := strings.ToLower(raw)
	if message == "" {
		return false
	}

	if len(ExtractPDBIDs(raw)) > 0 {
		return true
	}
	if containsAny(message, displayKeywords) && containsAny(message, structureKeywords) {
		return true
	}

	names := DetectProteinNames(message)
	if intent, ok := intentFromState(s); ok && len(names) == 0 {
		for _, ind := range intent.PDBIndicators {
			if _, known := ProteinToPDB[ind]; known {
				names = append(names, ind)
			}
		}
	}
	if len(names) > 0 {
		return containsAny(message, []string{"structure", "show", "display", "view", "load", "protein"})
	}
	return false
}

// foundStructure is one resolved search hit plus how it was found.
type foundStructure struct {
	entry       *pdb.Entry
	searchType  string
	proteinName string
}

// Execute resolves the request and patches search results, molecular data
// and visualization commands into the workflow.
func (a *SearchAgent) Execute(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
	message := s.LatestUserMessage()
	a.opts.Logger.Info("processing structure search", "workflow_id", s.WorkflowID, "message_len", len(message))

	found, err := a.resolve(ctx, s, message)
	if err != nil {
		a.opts.Logger.Error("pdb search failed", "workflow_id", s.WorkflowID, "error", err)
		now := time.Now()
		return &core.Delta{
			CurrentAgent: a.ID(),
			Messages: []core.Message{core.NewMessage("assistant",
				"I ran into a problem while searching the Protein Data Bank. Please try again in a moment.")},
			ErrorState:  fmt.Sprintf("pdb search failed: %v", err),
			CompletedAt: &now,
		}, nil
	}

	now := time.Now()
	delta := &core.Delta{
		CurrentAgent: a.ID(),
		CompletedAt:  &now,
	}

	records := make([]map[string]any, 0, len(found))
	for _, f := range found {
		records = append(records, a.structureRecord(f))
	}
	delta.SearchResults = map[string]any{
		"structures_found": records,
		"result_count":     len(records),
		"search_timestamp": now.Unix(),
	}

	if len(found) > 0 {
		primary := found[0]
		seen := map[string]bool{}
		for _, f := range found {
			if seen[f.entry.PDBID] {
				continue
			}
			seen[f.entry.PDBID] = true
			delta.VisualizationCommands = append(delta.VisualizationCommands, a.visualizationCommand(s, f, now))
		}
		delta.MolecularData = map[string]any{
			"pdb_id":             primary.entry.PDBID,
			"structure_url":      a.structureURL(primary.entry.PDBID),
			"structure_metadata": a.structureRecord(primary),
			"all_structures":     records,
		}

		if a.wantsAnalysis(s, message) {
			a.attachStructureData(ctx, delta, primary.entry.PDBID)
			delta.NextAgent = core.NextAgentTo(core.AgentIDAnalysis)
			delta.Handoffs = []core.Handoff{{
				From:       a.ID(),
				To:         core.AgentIDAnalysis,
				Reason:     "analysis requested on search results",
				Confidence: 0.8,
				Timestamp:  now,
			}}
		}
	}

	delta.Messages = []core.Message{core.NewMessage("assistant", a.responseText(found))}
	return delta, nil
}

// resolve picks the search strategy: explicit ids, known protein names,
// then free-text keywords.
func (a *SearchAgent) resolve(ctx context.Context, s *core.WorkflowState, message string) ([]foundStructure, error) {
	if ids := ExtractPDBIDs(message); len(ids) > 0 {
		return a.resolveByIDs(ctx, ids, "")
	}

	if names := DetectProteinNames(message); len(names) > 0 {
		var out []foundStructure
		for _, name := range names {
			id, ok := ProteinToPDB[name]
			if !ok {
				continue
			}
			hits, err := a.resolveByIDs(ctx, []string{id}, name)
			if err != nil {
				return nil, err
			}
			out = append(out, hits...)
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	keyword := message
	if q, ok := s.Parameters["query"].(string); ok && q != "" {
		keyword = q
	}
	if len(ExtractPDBIDs(keyword)) > 0 {
		// a bare id in the query already failed the explicit path
		keyword = message
	}

	result, err := a.store.SearchByKeyword(ctx, keyword, func(o *pdb.SearchOptions) {
		o.MaxResults = a.opts.MaxResults
	})
	if err != nil {
		return nil, err
	}

	out := make([]foundStructure, 0, len(result.Entries))
	for _, e := range result.Entries {
		out = append(out, foundStructure{entry: e, searchType: "keyword"})
	}
	return out, nil
}

func (a *SearchAgent) resolveByIDs(ctx context.Context, ids []string, proteinName string) ([]foundStructure, error) {
	searchType := "pdb_id"
	if proteinName != "" {
		searchType = "protein_name"
	}

	var out []foundStructure
	for _, id := range ids {
		entry, err := a.store.EntryByID(ctx, id)
		if err != nil {
			if err == pdb.ErrNotFound {
				a.opts.Logger.Warn("pdb id not found", "pdb_id", id)
				continue
			}
			return nil, err
		}
		out = append(out, foundStructure{entry: entry, searchType: searchType, proteinName: proteinName})
	}
	return out, nil
}

// attachStructureData downloads the structure file so the analysis agent
// can run without a second network round trip. Failures are logged and
// skipped; analysis falls back to its own loading path.
func (a *SearchAgent) attachStructureData(ctx context.Context, delta *core.Delta, pdbID string) {
	structure, err := a.store.DownloadStructure(ctx, pdbID)
	if err != nil {
		a.opts.Logger.Warn("structure download failed", "pdb_id", pdbID, "error", err)
		return
	}
	delta.MolecularData["structure_data"] = structure.Data
	delta.MolecularData["structure_id"] = structure.PDBID
}

func (a *SearchAgent) wantsAnalysis(s *core.WorkflowState, message string) bool {
	if containsAny(strings.ToLower(message), downstreamAnalysisKeywords) {
		return true
	}
	intent, ok := intentFromState(s)
	return ok && intent.PrimaryIntent == IntentAnalysisRequest
}

func (a *SearchAgent) structureRecord(f foundStructure) map[string]any {
	record := map[string]any{
		"pdb_id":           f.entry.PDBID,
		"title":            f.entry.Title,
		"resolution":       f.entry.Resolution,
		"experiment_type":  f.entry.ExperimentType,
		"organism":         f.entry.Organisms,
		"release_date":     f.entry.ReleaseDate,
		"molecular_weight": f.entry.MolecularWeight,
		"structure_url":    a.structureURL(f.entry.PDBID),
		"search_type":      f.searchType,
	}
	if f.proteinName != "" {
		record["protein_name"] = f.proteinName
	}
	return record
}

func (a *SearchAgent) visualizationCommand(s *core.WorkflowState, f foundStructure, now time.Time) core.VisualizationCommand {
	description := fmt.Sprintf("Load and display structure (PDB: %s)", f.entry.PDBID)
	if f.proteinName != "" {
		description = fmt.Sprintf("Load and display %s structure (PDB: %s)", f.proteinName, f.entry.PDBID)
	}

	return core.VisualizationCommand{
		ID:          fmt.Sprintf("pdb_action_%s_%d", f.entry.PDBID, now.Unix()),
		Type:        "structure_visualization",
		Description: description,
		Result:      a.structureRecord(f),
		Timestamp:   now.UnixMilli(),
		Duration:    0,
		Success:     true,
		Metadata: map[string]any{
			"source":       a.ID(),
			"pdb_id":       f.entry.PDBID,
			"protein_name": f.proteinName,
			"workflow_id":  s.WorkflowID,
		},
	}
}

func (a *SearchAgent) structureURL(pdbID string) string {
	return fmt.Sprintf("%s/%s.pdb", a.opts.DownloadURL, pdbID)
}

func (a *SearchAgent) responseText(found []foundStructure) string {
	switch len(found) {
	case 0:
		return "No structures found matching your search criteria. Please check the PDB ID or try different keywords."
	case 1:
		f := found[0]
		var b strings.Builder
		fmt.Fprintf(&b, "**Structure Found: %s**\n\n", f.entry.PDBID)
		if f.entry.Title != "" {
			fmt.Fprintf(&b, "%s\n\n", f.entry.Title)
		}
		if f.entry.Resolution > 0 {
			fmt.Fprintf(&b, "- Resolution: %.2f Å\n", f.entry.Resolution)
		}
		if f.entry.ExperimentType != "" {
			fmt.Fprintf(&b, "- Method: %s\n", f.entry.ExperimentType)
		}
		if len(f.entry.Organisms) > 0 {
			organisms := f.entry.Organisms
			if len(organisms) > 2 {
				organisms = organisms[:2]
			}
			fmt.Fprintf(&b, "- Organism: %s\n", strings.Join(organisms, ", "))
		}
		b.WriteString("\nThe structure has been loaded in the viewer.")
		return b.String()
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d structures matching your search:\n\n", len(found))
		for i, f := range found {
			if i == 3 {
				fmt.Fprintf(&b, "... and %d more structures\n", len(found)-3)
				break
			}
			title := f.entry.Title
			if len(title) > 80 {
				title = title[:80] + "..."
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", f.entry.PDBID, title)
		}
		return b.String()
	}
}
