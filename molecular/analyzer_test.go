package molecular

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func atomLine(serial int, name, resName, chain string, resSeq int, x, y, z float64) string {
	return fmt.Sprintf("ATOM  %5d  %-3s %3s %1s%4d    %8.3f%8.3f%8.3f", serial, name, resName, chain, resSeq, x, y, z)
}

// testStructure builds a three-residue single-chain peptide with backbone
// atoms spaced so one N-O pair falls inside hydrogen-bond range.
func testStructure() string {
	lines := []string{
		"HEADER    TEST PROTEIN",
		atomLine(1, "N", "ALA", "A", 1, 0.0, 0.0, 0.0),
		atomLine(2, "CA", "ALA", "A", 1, 1.5, 0.0, 0.0),
		atomLine(3, "O", "ALA", "A", 1, 3.0, 0.0, 0.0),
		atomLine(4, "N", "VAL", "A", 2, 6.0, 0.0, 0.0),
		atomLine(5, "CA", "VAL", "A", 2, 7.5, 0.0, 0.0),
		atomLine(6, "O", "VAL", "A", 2, 9.0, 0.0, 0.0),
		atomLine(7, "N", "LEU", "A", 3, 12.0, 0.0, 0.0),
		atomLine(8, "CA", "LEU", "A", 3, 13.5, 0.0, 0.0),
		atomLine(9, "O", "LEU", "A", 3, 15.0, 0.0, 0.0),
		"END",
	}
	return strings.Join(lines, "\n")
}

func TestParseStructure(t *testing.T) {
	s, err := ParseStructure("TEST", testStructure())
	require.NoError(t, err)

	require.Len(t, s.Models, 1)
	require.Len(t, s.Models[0].Chains, 1)

	chain := s.Models[0].Chains[0]
	assert.Equal(t, "A", chain.ID)
	require.Len(t, chain.Residues, 3)
	assert.Equal(t, "ALA", chain.Residues[0].Name)
	assert.Equal(t, "VAL", chain.Residues[1].Name)
	assert.Len(t, chain.Residues[0].Atoms, 3)
	assert.InDelta(t, 1.5, chain.Residues[0].Atoms[1].X, 1e-9)
}

func TestParseStructureNoAtoms(t *testing.T) {
	_, err := ParseStructure("EMPTY", "HEADER    NOTHING\nEND\n")
	assert.Error(t, err)
}

func TestBasicAnalysis(t *testing.T) {
	a := NewAnalyzer()

	results, err := a.Analyze(context.Background(), "TEST", testStructure(), AnalysisBasic)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, results["status"])
	assert.Equal(t, "basic", results["analysis_type"])

	props, ok := results["basic_properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, props["model_count"])
	assert.Equal(t, 1, props["chain_count"])
	assert.Equal(t, 3, props["total_residues"])
	assert.Equal(t, 9, props["total_atoms"])

	com, ok := props["center_of_mass"].([]float64)
	require.True(t, ok)
	assert.InDelta(t, 7.5, com[0], 1e-9)

	dims, ok := props["dimensions"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 15.0, dims["x"].(float64), 1e-9)
}

func TestComprehensiveAnalysis(t *testing.T) {
	a := NewAnalyzer()

	results, err := a.Analyze(context.Background(), "TEST", testStructure(), AnalysisComprehensive)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, results["status"])
	assert.Equal(t, "comprehensive", results["analysis_type"])

	// middle residue VAL classifies as beta sheet
	ss := results["secondary_structure"].(map[string]any)
	chainSS := ss["chains"].(map[string]any)["A"].(map[string]any)
	assert.Equal(t, 1, chainSS["beta_sheet"])
	assert.Equal(t, 0, chainSS["alpha_helix"])

	// backbone N and O atoms sit on a line 3.0 apart between neighbors:
	// five donor-acceptor pairs land inside the 2.5-3.5 window
	hb := results["hydrogen_bonds"].(map[string]any)
	assert.Equal(t, 5, hb["total_potential_bonds"])

	// the only carbons are CA atoms 6.0 apart, outside contact range
	hc := results["hydrophobic_contacts"].(map[string]any)
	assert.Equal(t, 0, hc["total_contacts"])

	seq := results["sequence_analysis"].(map[string]any)
	chainSeq, ok := seq["A"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AVL", chainSeq["sequence"])
	assert.Equal(t, 3, chainSeq["length"])
	assert.Greater(t, chainSeq["molecular_weight"].(float64), 0.0)

	bs := results["binding_sites"].(map[string]any)
	assert.Equal(t, "geometric_analysis", bs["method"])
}

func TestAnalyzeUnparseableStructure(t *testing.T) {
	a := NewAnalyzer()

	results, err := a.Analyze(context.Background(), "BAD", "not a pdb file", AnalysisComprehensive)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, results["status"])
	assert.Contains(t, results["error"], "parsing failed")
}

func TestAnalyzeCancelled(t *testing.T) {
	a := NewAnalyzer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, "TEST", testStructure(), AnalysisBasic)
	assert.Error(t, err)
}

func TestIsoelectricPoint(t *testing.T) {
	// poly-lysine is strongly basic, poly-aspartate strongly acidic
	basic := isoelectricPoint([]byte("KKKKK"))
	acidic := isoelectricPoint([]byte("DDDDD"))

	assert.Greater(t, basic, 9.0)
	assert.Less(t, acidic, 4.0)
	assert.Greater(t, basic, acidic)
}

func TestAminoAcidPercent(t *testing.T) {
	percents := aminoAcidPercent([]byte("AAVL"))
	assert.InDelta(t, 50.0, percents["A"], 1e-9)
	assert.InDelta(t, 25.0, percents["V"], 1e-9)
}
