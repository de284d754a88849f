package molecular

import (
	"fmt"
	"strconv"
	"strings"
)

// Atom is one ATOM record from a PDB file.
type Atom struct {
	Name    string
	Residue string
	ChainID string
	ResSeq  int
	X, Y, Z float64
}

// Residue groups the atoms of one residue within a chain.
type Residue struct {
	Name  string
	Seq   int
	Atoms []Atom
}

// Chain is an ordered list of residues sharing a chain identifier.
type Chain struct {
	ID       string
	Residues []*Residue
}

// Model is one coordinate model of a structure. Files without MODEL records
// yield a single model.
type Model struct {
	Chains []*Chain
}

// Structure is a parsed PDB file.
type Structure struct {
	ID     string
	Models []*Model
}

// Atoms returns every atom across all models in file order.
func (s *Structure) Atoms() []Atom {
	var atoms []Atom
	for _, m := range s.Models {
		for _, c := range m.Chains {
			for _, r := range c.Residues {
				atoms = append(atoms, r.Atoms...)
			}
		}
	}
	return atoms
}

// Residues returns every residue across all models.
func (s *Structure) Residues() []*Residue {
	var residues []*Residue
	for _, m := range s.Models {
		for _, c := range m.Chains {
			residues = append(residues, c.Residues...)
		}
	}
	return residues
}

// ParseStructure parses the ATOM records of PDB-format text. Fixed-column
// layout per the PDB format spec: atom name at 13-16, residue name at 18-20,
// chain id at 22, residue number at 23-26, coordinates at 31-54.
func ParseStructure(id, data string) (*Structure, error) {
	s := &Structure{ID: id}
	current := &Model{}
	sawAtoms := false

	var chainIdx map[string]*Chain
	resetChains := func() { chainIdx = map[string]*Chain{} }
	resetChains()

	for _, line := range strings.Split(data, "\n") {
		switch {
		case strings.HasPrefix(line, "MODEL"):
			if sawAtoms {
				s.Models = append(s.Models, current)
				current = &Model{}
				resetChains()
				sawAtoms = false
			}
		case strings.HasPrefix(line, "ENDMDL"):
			if sawAtoms {
				s.Models = append(s.Models, current)
				current = &Model{}
				resetChains()
				sawAtoms = false
			}
		case strings.HasPrefix(line, "ATOM  "):
			atom, err := parseAtomLine(line)
			if err != nil {
				continue // tolerate malformed records
			}
			sawAtoms = true

			chain, ok := chainIdx[atom.ChainID]
			if !ok {
				chain = &Chain{ID: atom.ChainID}
				chainIdx[atom.ChainID] = chain
				current.Chains = append(current.Chains, chain)
			}

			n := len(chain.Residues)
			if n == 0 || chain.Residues[n-1].Seq != atom.ResSeq || chain.Residues[n-1].Name != atom.Residue {
				chain.Residues = append(chain.Residues, &Residue{Name: atom.Residue, Seq: atom.ResSeq})
				n++
			}
			chain.Residues[n-1].Atoms = append(chain.Residues[n-1].Atoms, atom)
		}
	}

	if sawAtoms {
		s.Models = append(s.Models, current)
	}
	if len(s.Models) == 0 {
		return nil, fmt.Errorf("no atom records found")
	}

	return s, nil
}

func parseAtomLine(line string) (Atom, error) {
	if len(line) < 54 {
		return Atom{}, fmt.Errorf("short atom record")
	}

	field := func(from, to int) string { return strings.TrimSpace(line[from:to]) }

	x, err := strconv.ParseFloat(field(30, 38), 64)
	if err != nil {
		return Atom{}, fmt.Errorf("parse x: %w", err)
	}
	y, err := strconv.ParseFloat(field(38, 46), 64)
	if err != nil {
		return Atom{}, fmt.Errorf("parse y: %w", err)
	}
	z, err := strconv.ParseFloat(field(46, 54), 64)
	if err != nil {
		return Atom{}, fmt.Errorf("parse z: %w", err)
	}

	resSeq, err := strconv.Atoi(field(22, 26))
	if err != nil {
		return Atom{}, fmt.Errorf("parse residue number: %w", err)
	}

	return Atom{
		Name:    field(12, 16),
		Residue: field(17, 20),
		ChainID: field(21, 22),
		ResSeq:  resSeq,
		X:       x,
		Y:       y,
		Z:       z,
	}, nil
}
