// Package molecular implements the structural-analysis computation service.
// Given raw PDB structure text it produces a nested result bag with basic
// properties and, for comprehensive runs, best-effort secondary structure,
// hydrogen bond, hydrophobic contact, sequence and binding-site estimates.
// The numbers are heuristics, not validated science; the value of the
// package is the stable result shape the agents render from.
package molecular

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/santosrai/bioai/logging"
)

// AnalysisType selects how much work Analyze performs.
type AnalysisType string

const (
	// AnalysisBasic computes counts, center of mass and dimensions.
	AnalysisBasic AnalysisType = "basic"
	// AnalysisComprehensive adds secondary structure, hydrogen bonds,
	// hydrophobic contacts, sequence stats and binding-site prediction.
	AnalysisComprehensive AnalysisType = "comprehensive"
	// AnalysisCustom currently behaves like comprehensive.
	AnalysisCustom AnalysisType = "custom"
)

// Statuses carried in the result bag.
const (
	StatusSuccess        = "success"
	StatusFailed         = "failed"
	StatusPartialSuccess = "partial_success"
)

// Options configures the Analyzer.
type Options struct {
	Logger logging.Logger

	// HBondMaxDistance bounds donor-acceptor pairs counted as potential
	// hydrogen bonds (lower bound is fixed at 2.5 Angstroms).
	HBondMaxDistance float64
	// ContactDistance bounds carbon-carbon hydrophobic contacts.
	ContactDistance float64
	// GridSize is the cavity-scan grid step in Angstroms.
	GridSize float64
	// MaxBindingSites caps the predicted sites returned.
	MaxBindingSites int
}

// Analyzer runs structural analyses. Safe for concurrent use.
type Analyzer struct {
	opts Options
}

// NewAnalyzer creates an analyzer with the default thresholds.
func NewAnalyzer(optFns ...func(o *Options)) *Analyzer {
	opts := Options{
		Logger:           logging.NoOpLogger{},
		HBondMaxDistance: 3.5,
		ContactDistance:  5.0,
		GridSize:         2.0,
		MaxBindingSites:  5,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Analyzer{opts: opts}
}

// Analyze parses the structure text and runs the requested analysis. The
// returned bag always carries "structure_id", "analysis_type" and "status";
// a failed parse yields status "failed" with an "error" entry rather than a
// Go error, matching the collaborator contract that analysis outcomes are
// data, not control flow. The returned error is reserved for cancellation.
func (a *Analyzer) Analyze(ctx context.Context, structureID, data string, typ AnalysisType) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.opts.Logger.Info("starting molecular analysis", "structure_id", structureID, "analysis_type", string(typ))

	results := map[string]any{
		"structure_id":  structureID,
		"analysis_type": string(typ),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}

	s, err := ParseStructure(structureID, data)
	if err != nil {
		results["status"] = StatusFailed
		results["error"] = fmt.Sprintf("structure parsing failed: %v", err)
		return results, nil
	}

	a.basicAnalysis(s, results)

	if typ == AnalysisBasic {
		return results, nil
	}
	results["analysis_type"] = string(typ)
	a.comprehensive(s, results)

	return results, nil
}

// comprehensive runs the extended sections. A panic in any section degrades
// the run to partial_success, keeping whatever sections completed.
func (a *Analyzer) comprehensive(s *Structure, results map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			a.opts.Logger.Warn("comprehensive analysis failed", "structure_id", s.ID, "error", r)
			results["error"] = fmt.Sprint(r)
			results["status"] = StatusPartialSuccess
		}
	}()

	results["secondary_structure"] = a.secondaryStructure(s)
	results["hydrogen_bonds"] = a.hydrogenBonds(s)
	results["hydrophobic_contacts"] = a.hydrophobicContacts(s)
	results["sequence_analysis"] = a.sequenceAnalysis(s)
	results["binding_sites"] = a.bindingSites(s)
}

func (a *Analyzer) basicAnalysis(s *Structure, results map[string]any) {
	chains := []map[string]any{}
	totalResidues := 0
	totalAtoms := 0

	for _, m := range s.Models {
		for _, c := range m.Chains {
			atomCount := 0
			for _, r := range c.Residues {
				atomCount += len(r.Atoms)
			}
			chains = append(chains, map[string]any{
				"chain_id":      c.ID,
				"residue_count": len(c.Residues),
				"atom_count":    atomCount,
			})
			totalResidues += len(c.Residues)
			totalAtoms += atomCount
		}
	}

	props := map[string]any{
		"model_count":    len(s.Models),
		"chain_count":    len(chains),
		"total_residues": totalResidues,
		"total_atoms":    totalAtoms,
		"chains":         chains,
	}

	atoms := s.Atoms()
	if len(atoms) > 0 {
		var cx, cy, cz float64
		minC := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
		maxC := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		for _, at := range atoms {
			cx += at.X
			cy += at.Y
			cz += at.Z
			for i, v := range [3]float64{at.X, at.Y, at.Z} {
				minC[i] = math.Min(minC[i], v)
				maxC[i] = math.Max(maxC[i], v)
			}
		}
		n := float64(len(atoms))
		props["center_of_mass"] = []float64{cx / n, cy / n, cz / n}

		dx, dy, dz := maxC[0]-minC[0], maxC[1]-minC[1], maxC[2]-minC[2]
		props["dimensions"] = map[string]any{
			"x":      dx,
			"y":      dy,
			"z":      dz,
			"volume": dx * dy * dz,
		}
	}

	results["basic_properties"] = props
	results["status"] = StatusSuccess
}

// secondaryStructure classifies inner residues by residue type. A stand-in
// for a DSSP run, which needs an external program.
func (a *Analyzer) secondaryStructure(s *Structure) map[string]any {
	helixFormers := map[string]bool{"ALA": true, "GLU": true, "LEU": true}
	sheetFormers := map[string]bool{"VAL": true, "ILE": true, "PHE": true, "TYR": true}

	chains := map[string]any{}
	for _, m := range s.Models {
		for _, c := range m.Chains {
			helix, sheet, coil := 0, 0, 0
			residues := []map[string]any{}

			for i, r := range c.Residues {
				if i == 0 || i == len(c.Residues)-1 {
					continue
				}
				ss := "coil"
				switch {
				case helixFormers[r.Name]:
					ss = "alpha_helix"
					helix++
				case sheetFormers[r.Name]:
					ss = "beta_sheet"
					sheet++
				default:
					coil++
				}
				residues = append(residues, map[string]any{
					"residue_id":          r.Seq,
					"residue_name":        r.Name,
					"secondary_structure": ss,
				})
			}

			chains[c.ID] = map[string]any{
				"alpha_helix": helix,
				"beta_sheet":  sheet,
				"coil":        coil,
				"residues":    residues,
			}
		}
	}

	return map[string]any{
		"method": "residue_type_classification",
		"chains": chains,
	}
}

// hydrogenBonds counts backbone N/O pairs within bonding distance.
func (a *Analyzer) hydrogenBonds(s *Structure) map[string]any {
	type located struct {
		Atom
		chain string
	}
	var donors, acceptors []located

	for _, m := range s.Models {
		for _, c := range m.Chains {
			for _, r := range c.Residues {
				for _, at := range r.Atoms {
					switch at.Name {
					case "N":
						donors = append(donors, located{at, c.ID})
					case "O":
						acceptors = append(acceptors, located{at, c.ID})
					}
				}
			}
		}
	}

	bonds := []map[string]any{}
	for _, d := range donors {
		for _, ac := range acceptors {
			dist := distance(d.Atom, ac.Atom)
			if dist >= 2.5 && dist <= a.opts.HBondMaxDistance {
				bonds = append(bonds, map[string]any{
					"donor": map[string]any{
						"atom":    d.Name,
						"residue": d.Residue,
						"chain":   d.chain,
					},
					"acceptor": map[string]any{
						"atom":    ac.Name,
						"residue": ac.Residue,
						"chain":   ac.chain,
					},
					"distance": round2(dist),
				})
			}
		}
	}

	return map[string]any{
		"total_potential_bonds": len(bonds),
		"bonds":                 bonds,
	}
}

var hydrophobicResidues = map[string]bool{
	"ALA": true, "VAL": true, "LEU": true, "ILE": true,
	"MET": true, "PHE": true, "TRP": true, "PRO": true,
}

// hydrophobicContacts counts carbon-carbon pairs of hydrophobic residues
// within the contact distance.
func (a *Analyzer) hydrophobicContacts(s *Structure) map[string]any {
	var atoms []Atom
	for _, r := range s.Residues() {
		if !hydrophobicResidues[r.Name] {
			continue
		}
		for _, at := range r.Atoms {
			if len(at.Name) > 0 && at.Name[0] == 'C' {
				atoms = append(atoms, at)
			}
		}
	}

	pairs := []map[string]any{}
	for i, a1 := range atoms {
		for _, a2 := range atoms[i+1:] {
			if dist := distance(a1, a2); dist <= a.opts.ContactDistance {
				pairs = append(pairs, map[string]any{
					"residue1": a1.Residue,
					"residue2": a2.Residue,
					"distance": round2(dist),
				})
			}
		}
	}

	return map[string]any{
		"total_contacts": len(pairs),
		"contact_pairs":  pairs,
	}
}

// bindingSites scans a coarse grid for low-density pockets: few atoms in
// the immediate neighborhood but enough within a larger radius.
func (a *Analyzer) bindingSites(s *Structure) map[string]any {
	atoms := s.Atoms()
	if len(atoms) == 0 {
		return map[string]any{"predicted_sites": []map[string]any{}, "method": "geometric_analysis"}
	}

	minC := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxC := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, at := range atoms {
		for i, v := range [3]float64{at.X, at.Y, at.Z} {
			minC[i] = math.Min(minC[i], v)
			maxC[i] = math.Max(maxC[i], v)
		}
	}

	type site struct {
		center [3]float64
		nearby int
		score  float64
	}
	var cavities []site

	for x := minC[0]; x < maxC[0]; x += a.opts.GridSize {
		for y := minC[1]; y < maxC[1]; y += a.opts.GridSize {
			for z := minC[2]; z < maxC[2]; z += a.opts.GridSize {
				nearby, wider := 0, 0
				for _, at := range atoms {
					dx, dy, dz := at.X-x, at.Y-y, at.Z-z
					d2 := dx*dx + dy*dy + dz*dz
					if d2 < 9.0 { // 3.0 Angstroms
						nearby++
					}
					if d2 < 36.0 { // 6.0 Angstroms
						wider++
					}
				}
				if nearby < 3 && wider > 10 {
					cavities = append(cavities, site{
						center: [3]float64{x, y, z},
						nearby: nearby,
						score:  1.0 / float64(nearby+1),
					})
				}
			}
		}
	}

	sort.SliceStable(cavities, func(i, j int) bool { return cavities[i].score > cavities[j].score })
	if len(cavities) > a.opts.MaxBindingSites {
		cavities = cavities[:a.opts.MaxBindingSites]
	}

	sites := make([]map[string]any, 0, len(cavities))
	for _, c := range cavities {
		sites = append(sites, map[string]any{
			"center":       []float64{c.center[0], c.center[1], c.center[2]},
			"nearby_atoms": c.nearby,
			"cavity_score": c.score,
		})
	}

	return map[string]any{
		"predicted_sites": sites,
		"method":          "geometric_analysis",
	}
}

func distance(a, b Atom) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
