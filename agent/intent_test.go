package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeIntent(t *testing.T) {
	t.Run("pdb id yields structure request", func(t *testing.T) {
		intent := AnalyzeIntent("show me the structure of 1ABC")
		assert.Equal(t, IntentStructureRequest, intent.PrimaryIntent)
		assert.Contains(t, intent.PDBIndicators, "1ABC")
	})

	t.Run("protein name with context yields structure request", func(t *testing.T) {
		intent := AnalyzeIntent("can you display the hemoglobin structure")
		assert.Equal(t, IntentStructureRequest, intent.PrimaryIntent)
		assert.Contains(t, intent.PDBIndicators, "hemoglobin")
	})

	t.Run("analysis keywords yield analysis request", func(t *testing.T) {
		intent := AnalyzeIntent("please analyze the binding sites")
		assert.Equal(t, IntentAnalysisRequest, intent.PrimaryIntent)
		assert.Contains(t, intent.AnalysisKeywords, "analyze")
		assert.Contains(t, intent.AnalysisKeywords, "binding")
	})

	t.Run("structure request wins over analysis keywords", func(t *testing.T) {
		intent := AnalyzeIntent("analyze 1ABC")
		assert.Equal(t, IntentStructureRequest, intent.PrimaryIntent)
		assert.NotEmpty(t, intent.AnalysisKeywords)
	})

	t.Run("plain chat is conversation", func(t *testing.T) {
		intent := AnalyzeIntent("hello, how are you today?")
		assert.Equal(t, IntentConversation, intent.PrimaryIntent)
		assert.Empty(t, intent.PDBIndicators)
		assert.Empty(t, intent.AnalysisKeywords)
	})
}

func TestExtractPDBIDs(t *testing.T) {
	ids := ExtractPDBIDs("compare 1ABC with 2XYZ and 1ABC again")
	assert.Equal(t, []string{"1ABC", "2XYZ"}, ids)

	assert.Empty(t, ExtractPDBIDs("no identifiers here"))
}

func TestDetectProteinNames(t *testing.T) {
	assert.Equal(t, []string{"hemoglobin"}, DetectProteinNames("Show me Hemoglobin please"))

	// spelling variation resolves to the canonical name
	assert.Equal(t, []string{"hemoglobin"}, DetectProteinNames("show me haemoglobin"))

	assert.Empty(t, DetectProteinNames("nothing biological here"))
}
