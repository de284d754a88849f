package molecular

import "math"

// threeToOne maps three-letter residue codes to one-letter codes.
var threeToOne = map[string]byte{
	"ALA": 'A', "CYS": 'C', "ASP": 'D', "GLU": 'E', "PHE": 'F',
	"GLY": 'G', "HIS": 'H', "ILE": 'I', "LYS": 'K', "LEU": 'L',
	"MET": 'M', "ASN": 'N', "PRO": 'P', "GLN": 'Q', "ARG": 'R',
	"SER": 'S', "THR": 'T', "VAL": 'V', "TRP": 'W', "TYR": 'Y',
}

// residueWeights are average residue masses in Daltons (free amino acid).
var residueWeights = map[byte]float64{
	'A': 89.09, 'C': 121.16, 'D': 133.10, 'E': 147.13, 'F': 165.19,
	'G': 75.07, 'H': 155.16, 'I': 131.17, 'K': 146.19, 'L': 131.17,
	'M': 149.21, 'N': 132.12, 'P': 115.13, 'Q': 146.15, 'R': 174.20,
	'S': 105.09, 'T': 119.12, 'V': 117.15, 'W': 204.23, 'Y': 181.19,
}

// kyteDoolittle hydropathy values for the gravy score.
var kyteDoolittle = map[byte]float64{
	'A': 1.8, 'C': 2.5, 'D': -3.5, 'E': -3.5, 'F': 2.8,
	'G': -0.4, 'H': -3.2, 'I': 4.5, 'K': -3.9, 'L': 3.8,
	'M': 1.9, 'N': -3.5, 'P': -1.6, 'Q': -3.5, 'R': -4.5,
	'S': -0.8, 'T': -0.7, 'V': 4.2, 'W': -0.9, 'Y': -1.3,
}

const waterMass = 18.02

// sequenceAnalysis extracts a one-letter sequence per chain and computes
// length, molecular weight, isoelectric point, composition and hydropathy.
// Chains without standard amino acids are skipped.
func (a *Analyzer) sequenceAnalysis(s *Structure) map[string]any {
	out := map[string]any{}

	for _, m := range s.Models {
		for _, c := range m.Chains {
			var seq []byte
			for _, r := range c.Residues {
				if one, ok := threeToOne[r.Name]; ok {
					seq = append(seq, one)
				}
			}
			if len(seq) == 0 {
				continue
			}

			out[c.ID] = map[string]any{
				"sequence":           string(seq),
				"length":             len(seq),
				"molecular_weight":   round2(molecularWeight(seq)),
				"isoelectric_point":  round2(isoelectricPoint(seq)),
				"amino_acid_percent": aminoAcidPercent(seq),
				"gravy":              math.Round(gravy(seq)*1000) / 1000,
			}
		}
	}

	return out
}

func molecularWeight(seq []byte) float64 {
	var w float64
	for _, aa := range seq {
		w += residueWeights[aa]
	}
	// peptide bonds release one water per link
	return w - float64(len(seq)-1)*waterMass
}

func aminoAcidPercent(seq []byte) map[string]float64 {
	counts := map[string]int{}
	for _, aa := range seq {
		counts[string(aa)]++
	}
	percents := make(map[string]float64, len(counts))
	for aa, n := range counts {
		percents[aa] = round2(float64(n) / float64(len(seq)) * 100)
	}
	return percents
}

func gravy(seq []byte) float64 {
	var sum float64
	for _, aa := range seq {
		sum += kyteDoolittle[aa]
	}
	return sum / float64(len(seq))
}

// side-chain pKa values plus termini, used for the net-charge model.
var (
	positivePKa = map[byte]float64{'K': 10.53, 'R': 12.48, 'H': 6.00}
	negativePKa = map[byte]float64{'D': 3.65, 'E': 4.25, 'C': 8.30, 'Y': 10.07}

	nTermPKa = 9.69
	cTermPKa = 2.34
)

// isoelectricPoint finds the pH at which the modeled net charge is zero by
// bisection over 0..14.
func isoelectricPoint(seq []byte) float64 {
	lo, hi := 0.0, 14.0
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if netCharge(seq, mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func netCharge(seq []byte, pH float64) float64 {
	positive := func(pKa float64) float64 { return 1.0 / (1.0 + math.Pow(10, pH-pKa)) }
	negative := func(pKa float64) float64 { return -1.0 / (1.0 + math.Pow(10, pKa-pH)) }

	charge := positive(nTermPKa) + negative(cTermPKa)
	for _, aa := range seq {
		if pKa, ok := positivePKa[aa]; ok {
			charge += positive(pKa)
		}
		if pKa, ok := negativePKa[aa]; ok {
			charge += negative(pKa)
		}
	}
	return charge
}
