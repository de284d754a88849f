// Package pdb implements the structure-database collaborator: a client for
// the RCSB Protein Data Bank REST APIs covering entry lookup, keyword and
// resolution search, and structure file download. Base URLs are injectable
// so tests can point the client at a local server.
package pdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santosrai/bioai/logging"
)

// ErrNotFound indicates the requested entry or structure file does not exist.
var ErrNotFound = errors.New("pdb entry not found")

// Entry is the standardized metadata record for one PDB entry.
type Entry struct {
	PDBID           string   `json:"pdb_id"`
	Title           string   `json:"title"`
	ExperimentType  string   `json:"experiment_type"`
	Resolution      float64  `json:"resolution,omitempty"`
	DepositionDate  string   `json:"deposition_date,omitempty"`
	ReleaseDate     string   `json:"release_date,omitempty"`
	MolecularWeight float64  `json:"molecular_weight,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	Organisms       []string `json:"organism,omitempty"`
	ProteinChains   int      `json:"protein_chains,omitempty"`
}

// SearchResult aggregates the entries matched by one search request.
type SearchResult struct {
	SearchTerm    string   `json:"search_term"`
	TotalCount    int      `json:"total_count"`
	ReturnedCount int      `json:"returned_count"`
	Entries       []*Entry `json:"entries"`
}

// Structure is a downloaded PDB structure file plus its metadata.
type Structure struct {
	PDBID        string    `json:"pdb_id"`
	Data         string    `json:"structure_data"`
	Size         int       `json:"file_size"`
	DownloadedAt time.Time `json:"download_timestamp"`
	Entry        *Entry    `json:"metadata,omitempty"`
}

// Options configures the PDB client.
type Options struct {
	// DataBaseURL serves entry metadata (data.rcsb.org REST core).
	DataBaseURL string
	// SearchBaseURL accepts search query documents.
	SearchBaseURL string
	// DownloadBaseURL serves raw .pdb files.
	DownloadBaseURL string

	HTTPClient *http.Client
	MaxResults int
	Logger     logging.Logger
}

// Client talks to the RCSB PDB services. Safe for concurrent use.
type Client struct {
	opts Options
}

// New creates a PDB client with production RCSB endpoints by default.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		DataBaseURL:     "https://data.rcsb.org/rest/v1/core",
		SearchBaseURL:   "https://search.rcsb.org/rcsbsearch/v2/query",
		DownloadBaseURL: "https://files.rcsb.org/download",
		HTTPClient:      &http.Client{Timeout: 30 * time.Second},
		MaxResults:      50,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{opts: opts}
}

// entryDoc mirrors the fields we consume from the data API response.
type entryDoc struct {
	Struct struct {
		Title string `json:"title"`
	} `json:"struct"`
	Exptl []struct {
		Method string `json:"method"`
	} `json:"exptl"`
	EntryInfo struct {
		ResolutionCombined        []float64 `json:"resolution_combined"`
		MolecularWeight           float64   `json:"molecular_weight"`
		PolymerEntityCountProtein int       `json:"polymer_entity_count_protein"`
	} `json:"rcsb_entry_info"`
	AccessionInfo struct {
		DepositDate        string `json:"deposit_date"`
		InitialReleaseDate string `json:"initial_release_date"`
	} `json:"rcsb_accession_info"`
	AuditAuthor []struct {
		Name string `json:"name"`
	} `json:"audit_author"`
	SourceOrganism []struct {
		NCBIScientificName string `json:"ncbi_scientific_name"`
	} `json:"rcsb_entity_source_organism"`
}

// EntryByID fetches metadata for one PDB id. Returns ErrNotFound for
// unknown ids.
func (c *Client) EntryByID(ctx context.Context, pdbID string) (*Entry, error) {
	pdbID = strings.ToUpper(strings.TrimSpace(pdbID))
	c.opts.Logger.Debug("fetching pdb entry", "pdb_id", pdbID)

	url := fmt.Sprintf("%s/entry/%s", c.opts.DataBaseURL, pdbID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build entry request: %w", err)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdb data api: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pdbID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("pdb data api returned status %d", resp.StatusCode)
	}

	var doc entryDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode pdb entry: %w", err)
	}

	entry := &Entry{
		PDBID:           pdbID,
		Title:           doc.Struct.Title,
		MolecularWeight: doc.EntryInfo.MolecularWeight,
		DepositionDate:  doc.AccessionInfo.DepositDate,
		ReleaseDate:     doc.AccessionInfo.InitialReleaseDate,
		ProteinChains:   doc.EntryInfo.PolymerEntityCountProtein,
	}
	if len(doc.Exptl) > 0 {
		entry.ExperimentType = doc.Exptl[0].Method
	}
	if len(doc.EntryInfo.ResolutionCombined) > 0 {
		entry.Resolution = doc.EntryInfo.ResolutionCombined[0]
	}
	for _, a := range doc.AuditAuthor {
		if a.Name != "" {
			entry.Authors = append(entry.Authors, a.Name)
		}
	}
	for _, o := range doc.SourceOrganism {
		if o.NCBIScientificName != "" {
			entry.Organisms = append(entry.Organisms, o.NCBIScientificName)
		}
	}

	return entry, nil
}

// SearchOptions filter a keyword search.
type SearchOptions struct {
	Organism      string
	MaxResolution float64
	MaxResults    int
}

// SearchByKeyword searches entry titles for the given words, optionally
// filtered by organism and maximum resolution. Each matched identifier is
// resolved to its full entry record.
func (c *Client) SearchByKeyword(ctx context.Context, keyword string, optFns ...func(o *SearchOptions)) (*SearchResult, error) {
	opts := SearchOptions{MaxResults: c.opts.MaxResults}
	for _, fn := range optFns {
		fn(&opts)
	}

	c.opts.Logger.Debug("searching pdb by keyword", "keyword", keyword)

	nodes := []map[string]any{{
		"type":    "terminal",
		"service": "text",
		"parameters": map[string]any{
			"attribute": "struct.title",
			"operator":  "contains_words",
			"value":     keyword,
		},
	}}
	if opts.Organism != "" {
		nodes = append(nodes, map[string]any{
			"type":    "terminal",
			"service": "text",
			"parameters": map[string]any{
				"attribute": "rcsb_entity_source_organism.taxonomy_lineage.name",
				"operator":  "contains_words",
				"value":     opts.Organism,
			},
		})
	}
	if opts.MaxResolution > 0 {
		nodes = append(nodes, map[string]any{
			"type":    "terminal",
			"service": "text",
			"parameters": map[string]any{
				"attribute": "rcsb_entry_info.resolution_combined",
				"operator":  "less_or_equal",
				"value":     opts.MaxResolution,
			},
		})
	}

	query := c.buildQuery(nodes, nil)
	return c.runSearch(ctx, query, keyword, opts.MaxResults)
}

// SearchByResolution searches for entries within a resolution range,
// sorted best resolution first.
func (c *Client) SearchByResolution(ctx context.Context, minRes, maxRes float64, maxResults int) (*SearchResult, error) {
	if maxResults <= 0 {
		maxResults = c.opts.MaxResults
	}

	nodes := []map[string]any{
		{
			"type":    "terminal",
			"service": "text",
			"parameters": map[string]any{
				"attribute": "rcsb_entry_info.resolution_combined",
				"operator":  "greater_or_equal",
				"value":     minRes,
			},
		},
		{
			"type":    "terminal",
			"service": "text",
			"parameters": map[string]any{
				"attribute": "rcsb_entry_info.resolution_combined",
				"operator":  "less_or_equal",
				"value":     maxRes,
			},
		},
	}
	sort := []map[string]any{{"sort_by": "rcsb_entry_info.resolution_combined", "direction": "asc"}}

	term := fmt.Sprintf("resolution:%g-%g", minRes, maxRes)
	return c.runSearch(ctx, c.buildQuery(nodes, sort), term, maxResults)
}

// DownloadStructure fetches the raw .pdb file plus entry metadata.
func (c *Client) DownloadStructure(ctx context.Context, pdbID string) (*Structure, error) {
	pdbID = strings.ToUpper(strings.TrimSpace(pdbID))
	c.opts.Logger.Debug("downloading pdb structure", "pdb_id", pdbID)

	url := fmt.Sprintf("%s/%s.pdb", c.opts.DownloadBaseURL, pdbID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdb download: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: structure file %s", ErrNotFound, pdbID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("pdb download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read structure file: %w", err)
	}

	s := &Structure{
		PDBID:        pdbID,
		Data:         string(data),
		Size:         len(data),
		DownloadedAt: time.Now().UTC(),
	}

	// Metadata is best effort; the structure payload alone is usable.
	if entry, err := c.EntryByID(ctx, pdbID); err == nil {
		s.Entry = entry
	} else {
		c.opts.Logger.Warn("structure metadata fetch failed", "pdb_id", pdbID, "error", err)
	}

	return s, nil
}

func (c *Client) buildQuery(nodes, sort []map[string]any) map[string]any {
	requestOptions := map[string]any{
		"results_content_type": []string{"experimental"},
	}
	if len(sort) > 0 {
		requestOptions["sort"] = sort
	}

	var queryNode any
	if len(nodes) == 1 {
		queryNode = nodes[0]
	} else {
		queryNode = map[string]any{
			"type":             "group",
			"logical_operator": "and",
			"nodes":            nodes,
		}
	}

	return map[string]any{
		"query":           queryNode,
		"return_type":     "entry",
		"request_options": requestOptions,
	}
}

func (c *Client) runSearch(ctx context.Context, query map[string]any, term string, maxResults int) (*SearchResult, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.SearchBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdb search api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdb search api returned status %d", resp.StatusCode)
	}

	var doc struct {
		TotalCount int `json:"total_count"`
		ResultSet  []struct {
			Identifier string `json:"identifier"`
		} `json:"result_set"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}

	result := &SearchResult{
		SearchTerm: term,
		TotalCount: doc.TotalCount,
		Entries:    []*Entry{},
	}

	for _, item := range doc.ResultSet {
		if len(result.Entries) >= maxResults {
			break
		}
		if item.Identifier == "" {
			continue
		}
		entry, err := c.EntryByID(ctx, item.Identifier)
		if err != nil {
			c.opts.Logger.Warn("search hit resolution failed", "pdb_id", item.Identifier, "error", err)
			continue
		}
		result.Entries = append(result.Entries, entry)
		result.ReturnedCount++
	}

	return result, nil
}
