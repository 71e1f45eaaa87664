// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/biometa/internal/httputil"
	"github.com/pdiddy/biometa/pkg/types"
)

// EBI endpoints for the ENA adapter. Declared as vars so tests can
// substitute httptest servers.
var (
	enaPortalURL = "https://www.ebi.ac.uk/ena/portal/api/search"
	enaXrefURL   = "https://www.ebi.ac.uk/ena/xref/rest/json/search"
	europePMCURL = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"
)

// enaRunFields are the read_study columns requested for sub-record
// aggregation.
const enaRunFields = "scientific_name,tax_id,instrument_platform,library_strategy," +
	"library_source,tissue_type,age,cell_type"

// ENAFetcher retrieves ERP study metadata from the EBI ENA Portal API,
// with cross-references from the ENA xref service and a Europe PMC
// full-text fallback for publications.
type ENAFetcher struct {
	client   *httputil.Client
	resolver CitationResolver
	timeout  time.Duration
}

// NewENAFetcher returns the ENA adapter.
func NewENAFetcher(client *httputil.Client, resolver CitationResolver, cfg types.FetchConfig) *ENAFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &ENAFetcher{
		client:   client,
		resolver: resolver,
		timeout:  cfg.Timeout,
	}
}

// Prefixes returns the accession prefixes routed to this adapter.
func (f *ENAFetcher) Prefixes() []string { return []string{"ERP"} }

// Fetch retrieves and normalizes metadata for one ERP accession.
func (f *ENAFetcher) Fetch(ctx context.Context, accession string) types.MetadataRecord {
	record := types.NewRecord(accession)

	study := f.fetchStudy(ctx, accession)
	if study == nil {
		return types.ErrorRecord(accession, "ENA Portal API returned no study data")
	}

	record.DateDeposited = study.FirstPublic
	record.Species = study.ScientificName

	details := study.StudyTitle
	description := study.StudyDescription
	if description == "" {
		description = study.Description
	}
	if description != "" {
		details += ". " + description
	}
	if study.CenterName != "" {
		details += fmt.Sprintf(" (Center: %s)", study.CenterName)
	}
	record.ExperimentalDetails = details

	// Run-level fields carry what the study level usually lacks. A failed
	// or empty run lookup degrades the record, it does not fail the fetch.
	runs := f.fetchRuns(ctx, accession)
	if len(runs) == 0 {
		record.FetchStatus = types.StatusPartial
		record.ErrorMessage = "run-level metadata unavailable"
	} else {
		applyRunAggregates(&record, runs)
	}

	var dbRefs []string
	if study.StudyAccession != "" {
		dbRefs = append(dbRefs, "BioProject:"+study.StudyAccession)
	}
	if study.GEOAccession != "" {
		dbRefs = append(dbRefs, "GEO:"+study.GEOAccession)
	}

	var pmids []string
	for _, xref := range f.fetchXrefs(ctx, accession) {
		if xref.Source != "" && xref.Primary != "" {
			dbRefs = append(dbRefs, xref.Source+":"+xref.Primary)
		}
		// Europe PMC xrefs carry the PMCID as primary and the PMID as
		// secondary accession.
		if xref.Source == "EuropePMC" && xref.Secondary != "" {
			pmids = append(pmids, xref.Secondary)
		}
	}
	record.DatabaseReferences = strings.Join(dbRefs, "; ")

	if len(pmids) > 0 {
		citations := f.resolver.Resolve(ctx, pmids)
		record.PublishedWorks = strings.Join(citations, "; ")
	} else {
		citations := f.searchEuropePMC(ctx, []string{accession, study.StudyAlias})
		record.PublishedWorks = strings.Join(citations, "; ")
	}

	return record
}

// applyRunAggregates fills the sub-record-derived fields from the run rows
// using the shared reducers: most-common per field, union for age.
func applyRunAggregates(record *types.MetadataRecord, runs []enaRun) {
	var species, platforms, strategies, tissues, sources, ages []string
	for _, r := range runs {
		species = append(species, r.ScientificName)
		platforms = append(platforms, r.InstrumentPlatform)
		strategies = append(strategies, r.LibraryStrategy)
		tissues = append(tissues, r.TissueType)
		sources = append(sources, strings.ToLower(r.LibrarySource))
		if r.Age != "" {
			ages = append(ages, r.Age)
		}
	}

	if v := mostCommon(species); v != "" {
		record.Species = v
	}
	record.Platform = mostCommon(platforms)
	record.DataType = mostCommon(strategies)
	record.Tissue = mostCommon(tissues)
	record.Age = unionSorted(ages)

	var nonEmpty []string
	for _, s := range sources {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	// ENA has no molecule field, so single-cell sources never refine to
	// single nuclei here.
	record.SequencingType = classifySequencingType(nonEmpty, nil)
}

// ENA Portal API JSON structures (format=json).
type enaStudy struct {
	StudyAccession   string `json:"study_accession"`
	StudyTitle       string `json:"study_title"`
	StudyDescription string `json:"study_description"`
	Description      string `json:"description"`
	CenterName       string `json:"center_name"`
	FirstPublic      string `json:"first_public"`
	ScientificName   string `json:"scientific_name"`
	GEOAccession     string `json:"geo_accession"`
	StudyAlias       string `json:"study_alias"`
}

type enaRun struct {
	ScientificName     string `json:"scientific_name"`
	InstrumentPlatform string `json:"instrument_platform"`
	LibraryStrategy    string `json:"library_strategy"`
	LibrarySource      string `json:"library_source"`
	TissueType         string `json:"tissue_type"`
	Age                string `json:"age"`
	CellType           string `json:"cell_type"`
}

type enaXref struct {
	Source    string `json:"Source"`
	Primary   string `json:"Source Primary Accession"`
	Secondary string `json:"Source Secondary Accession"`
}

// fetchStudy performs the primary lookup. Returns nil on any failure or an
// empty result list.
func (f *ENAFetcher) fetchStudy(ctx context.Context, accession string) *enaStudy {
	params := url.Values{
		"result": {"study"},
		"query":  {fmt.Sprintf("secondary_study_accession=%q", accession)},
		"format": {"json"},
		"fields": {"all"},
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var studies []enaStudy
	if err := f.client.GetJSON(ctx, enaPortalURL, params, &studies); err != nil {
		return nil
	}
	if len(studies) == 0 {
		return nil
	}
	return &studies[0]
}

// fetchRuns performs the sub-record lookup against read_study. Failures
// are non-fatal and yield an empty list.
func (f *ENAFetcher) fetchRuns(ctx context.Context, accession string) []enaRun {
	params := url.Values{
		"result": {"read_study"},
		"query":  {fmt.Sprintf("secondary_study_accession=%q", accession)},
		"format": {"json"},
		"fields": {enaRunFields},
		"limit":  {"5"},
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var runs []enaRun
	if err := f.client.GetJSON(ctx, enaPortalURL, params, &runs); err != nil {
		return nil
	}
	return runs
}

// fetchXrefs collects related database entries for the accession.
// Failures are non-fatal and yield an empty list.
func (f *ENAFetcher) fetchXrefs(ctx context.Context, accession string) []enaXref {
	params := url.Values{"accession": {accession}}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var xrefs []enaXref
	if err := f.client.GetJSON(ctx, enaXrefURL, params, &xrefs); err != nil {
		return nil
	}
	return xrefs
}

// Europe PMC search JSON structures.
type europePMCResponse struct {
	ResultList europePMCResultList `json:"resultList"`
}

type europePMCResultList struct {
	Result []europePMCItem `json:"result"`
}

type europePMCItem struct {
	PMID         string `json:"pmid"`
	AuthorString string `json:"authorString"`
	PubYear      string `json:"pubYear"`
	Title        string `json:"title"`
	JournalTitle string `json:"journalTitle"`
	DOI          string `json:"doi"`
}

// searchEuropePMC is the publication fallback: a full-text search by the
// accession and any known alias. Empty query terms are skipped; results
// are deduplicated by PMID across queries.
func (f *ENAFetcher) searchEuropePMC(ctx context.Context, queries []string) []string {
	var citations []string
	seen := make(map[string]bool)

	for _, q := range queries {
		if q == "" {
			continue
		}
		params := url.Values{
			"query":      {q},
			"format":     {"json"},
			"resultType": {"lite"},
			"pageSize":   {"5"},
		}

		qctx, cancel := context.WithTimeout(ctx, f.timeout)
		var resp europePMCResponse
		err := f.client.GetJSON(qctx, europePMCURL, params, &resp)
		cancel()
		if err != nil {
			continue
		}

		for _, item := range resp.ResultList.Result {
			if item.PMID == "" || seen[item.PMID] {
				continue
			}
			seen[item.PMID] = true
			citations = append(citations, formatEuropePMCCitation(item))
		}
	}
	return citations
}

// formatEuropePMCCitation renders a citation inline from Europe PMC data,
// matching the resolver's format.
func formatEuropePMCCitation(item europePMCItem) string {
	author := item.AuthorString
	if author == "" {
		author = "Unknown"
	}
	title := strings.TrimRight(item.Title, ".")

	parts := []string{fmt.Sprintf("%s (%s)", author, item.PubYear), title, item.JournalTitle}
	if item.DOI != "" {
		parts = append(parts, "DOI:"+item.DOI)
	} else {
		parts = append(parts, "PMID:"+item.PMID)
	}

	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ". ")
}
