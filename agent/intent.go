package agent

import (
	"regexp"
	"strings"

	"github.com/santosrai/bioai/core"
)

// pdbIDPattern matches 4-character structure identifiers: a leading digit
// 1-9 followed by three uppercase alphanumerics. Matching is done against
// the raw message, so lowercase ids are deliberately not recognized.
var pdbIDPattern = regexp.MustCompile(`\b[1-9][A-Z0-9]{3}\b`)

// structureDisplayPatterns detect display-style requests without an id.
var structureDisplayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:show|display|load|view)\s+[^.]*?(?:structure|protein)`),
	regexp.MustCompile(`(?i)(?:pdb|protein\s+data\s+bank)`),
}

// commonProteins is the protein-name vocabulary recognized in messages.
var commonProteins = []string{
	"hemoglobin", "insulin", "lysozyme", "myoglobin", "cytochrome c",
	"collagen", "albumin", "immunoglobulin", "antibody", "ferritin",
	"catalase", "pepsin", "chymotrypsin", "trypsin", "ribonuclease",
	"carbonic anhydrase", "alcohol dehydrogenase", "lactate dehydrogenase",
	"pyruvate kinase", "glyceraldehyde phosphate dehydrogenase", "aldolase",
	"phosphoglycerate kinase", "enolase", "pyruvate dehydrogenase",
	"citrate synthase", "isocitrate dehydrogenase", "succinate dehydrogenase",
	"fumarase", "malate dehydrogenase", "glucose oxidase", "peroxidase",
	"superoxide dismutase", "glutathione peroxidase", "thioredoxin",
	"calmodulin", "actin", "myosin", "tubulin", "keratin",
}

// proteinVariations maps canonical names to common typos and spellings.
var proteinVariations = map[string][]string{
	"hemoglobin":     {"hamoglobin", "haemoglobin", "hemogoblin", "hemoglobn"},
	"insulin":        {"insuline", "insuln"},
	"lysozyme":       {"lysozym", "lysozime"},
	"myoglobin":      {"myogloblin", "myoglobn"},
	"cytochrome c":   {"cytochrome", "cytocrome"},
	"collagen":       {"collagene", "colagen"},
	"albumin":        {"albumen"},
	"immunoglobulin": {"immunogloblin"},
	"ferritin":       {"ferittin"},
	"catalase":       {"catalaze"},
	"chymotrypsin":   {"chymotripsin"},
	"trypsin":        {"tripsin"},
	"ribonuclease":   {"rnase"},
}

// ProteinToPDB maps vocabulary names to a representative PDB entry.
var ProteinToPDB = map[string]string{
	"hemoglobin":     "1GZX",
	"insulin":        "1MSO",
	"lysozyme":       "1LYZ",
	"myoglobin":      "1MBO",
	"cytochrome c":   "1HRC",
	"collagen":       "1CAG",
	"albumin":        "1AO6",
	"immunoglobulin": "1IGT",
	"antibody":       "1IGT",
	"ferritin":       "1FHA",
	"catalase":       "1DGH",
	"pepsin":         "1PSG",
	"chymotrypsin":   "1CHO",
	"trypsin":        "1TRN",
	"ribonuclease":   "1RNH",
	"carbonic anhydrase":    "1CA2",
	"alcohol dehydrogenase": "1ADH",
	"lactate dehydrogenase": "1LDH",
	"pyruvate kinase":       "1PKN",
	"glyceraldehyde phosphate dehydrogenase": "1GPD",
	"aldolase":                 "1ALD",
	"phosphoglycerate kinase":  "1PGK",
	"enolase":                  "1ONE",
	"pyruvate dehydrogenase":   "1PDH",
	"citrate synthase":         "1CTS",
	"isocitrate dehydrogenase": "1IDH",
	"succinate dehydrogenase":  "1NEK",
	"fumarase":                 "1FUO",
	"malate dehydrogenase":     "1MLD",
	"glucose oxidase":          "1GOD",
	"peroxidase":               "1ATJ",
	"superoxide dismutase":     "1SOS",
	"glutathione peroxidase":   "1GP1",
	"thioredoxin":              "1XOB",
	"calmodulin":               "1CLL",
	"actin":                    "1ATN",
	"myosin":                   "1MYS",
	"tubulin":                  "1TUB",
	"keratin":                  "1I2M",
}

// analysisKeywords mark a message as an analysis request. "structure" joins
// the list only when no structure indicator already matched.
var analysisKeywords = []string{
	"analyze", "analysis", "binding", "active site",
	"secondary structure", "hydrogen bonds", "molecular weight",
	"properties", "sequence", "cavity", "hydrophobic",
}

// structureContextKeywords decide whether a detected protein name is a
// structure request rather than a passing mention.
var structureContextKeywords = []string{
	"structure", "show", "display", "view", "load", "protein",
	"molecular", "pdb", "visualization", "molecule", "what", "tell me about",
}

// displayKeywords and structureKeywords drive the search agent's catch-all
// "show me a structure" check.
var (
	displayKeywords   = []string{"show", "display", "load", "view", "get", "fetch", "find"}
	structureKeywords = []string{"structure", "protein", "pdb"}
)

// Primary intents produced by AnalyzeIntent.
const (
	IntentConversation     = "conversation"
	IntentStructureRequest = "structure_request"
	IntentAnalysisRequest  = "analysis_request"
)

// Intent marker values added to the structure indicators alongside ids and
// protein names.
const (
	indicatorDisplayRequest = "structure_display_request"
	indicatorProteinMention = "protein_mention"
)

// IntentAnalysis is the result of keyword intent extraction, stored in the
// workflow context under "intent_analysis" for downstream agents.
type IntentAnalysis struct {
	PrimaryIntent string  `json:"primary_intent"`
	Confidence    float64 `json:"confidence"`

	// PDBIndicators carries detected structure ids, canonical protein
	// names and request markers.
	PDBIndicators []string `json:"pdb_indicators,omitempty"`
	// AnalysisKeywords carries the matched analysis vocabulary.
	AnalysisKeywords []string `json:"analysis_keywords,omitempty"`

	Keywords []string `json:"keywords,omitempty"`
}

// AnalyzeIntent runs keyword intent extraction over one user message.
func AnalyzeIntent(message string) IntentAnalysis {
	analysis := IntentAnalysis{
		PrimaryIntent: IntentConversation,
		Confidence:    0.8,
	}

	lower := strings.ToLower(message)

	var indicators []string
	indicators = append(indicators, ExtractPDBIDs(message)...)

	for _, p := range structureDisplayPatterns {
		if p.MatchString(message) {
			indicators = append(indicators, indicatorDisplayRequest)
			break
		}
	}

	if proteins := DetectProteinNames(message); len(proteins) > 0 {
		indicators = append(indicators, proteins...)
		if containsAny(lower, structureContextKeywords) {
			if !contains(indicators, indicatorDisplayRequest) {
				indicators = append(indicators, indicatorDisplayRequest)
			}
		} else {
			// a bare protein mention is still most likely a request
			// to see that protein
			indicators = append(indicators, indicatorProteinMention)
		}
	}

	if len(indicators) > 0 {
		analysis.PDBIndicators = indicators
		analysis.PrimaryIntent = IntentStructureRequest
	}

	keywords := analysisKeywords
	if len(indicators) == 0 {
		keywords = append(append([]string(nil), analysisKeywords...), "structure")
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			analysis.AnalysisKeywords = append(analysis.AnalysisKeywords, kw)
		}
	}
	if len(analysis.AnalysisKeywords) > 0 && analysis.PrimaryIntent == IntentConversation {
		analysis.PrimaryIntent = IntentAnalysisRequest
	}

	for _, word := range strings.Fields(lower) {
		if len(word) > 3 && word != "the" && word != "and" && word != "for" && word != "with" {
			analysis.Keywords = append(analysis.Keywords, word)
		}
	}

	return analysis
}

// ExtractPDBIDs returns the deduplicated structure ids found in text.
func ExtractPDBIDs(text string) []string {
	var ids []string
	seen := map[string]bool{}
	for _, m := range pdbIDPattern.FindAllString(text, -1) {
		id := strings.ToUpper(m)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// DetectProteinNames finds vocabulary protein names in a message,
// resolving known typos and spelling variations to the canonical name.
func DetectProteinNames(message string) []string {
	lower := strings.ToLower(message)

	var found []string
	for _, protein := range commonProteins {
		if strings.Contains(lower, protein) {
			found = append(found, protein)
			continue
		}
		for _, variation := range proteinVariations[protein] {
			if strings.Contains(lower, variation) {
				found = append(found, protein)
				break
			}
		}
	}
	return found
}

// intentFromState reads a previously stored intent analysis, if any.
func intentFromState(s *core.WorkflowState) (IntentAnalysis, bool) {
	ia, ok := s.Context["intent_analysis"].(IntentAnalysis)
	return ia, ok
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
