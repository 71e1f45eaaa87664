// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/biometa/internal/httputil"
	"github.com/pdiddy/biometa/pkg/types"
)

// NCBI endpoints for the GEO adapter. Declared as vars so tests can
// substitute httptest servers.
var (
	geoESummaryURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
	geoELinkURL    = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/elink.fcgi"
	geoFTPBase     = "https://ftp.ncbi.nlm.nih.gov/geo/series"
)

// geoUIDOffset maps a GSE series number to its gds database UID.
const geoUIDOffset = 200_000_000

// GEOFetcher retrieves GSE series metadata from NCBI GEO: an eSummary
// primary lookup, the family SOFT archive for sample-level fields, and
// eLink for linked PubMed IDs.
type GEOFetcher struct {
	client          *httputil.Client
	resolver        CitationResolver
	apiKey          string
	timeout         time.Duration
	downloadTimeout time.Duration
}

// NewGEOFetcher returns the GEO adapter.
func NewGEOFetcher(client *httputil.Client, resolver CitationResolver, cfg types.FetchConfig) *GEOFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	return &GEOFetcher{
		client:          client,
		resolver:        resolver,
		apiKey:          cfg.NCBIAPIKey,
		timeout:         cfg.Timeout,
		downloadTimeout: cfg.DownloadTimeout,
	}
}

// Prefixes returns the accession prefixes routed to this adapter.
func (f *GEOFetcher) Prefixes() []string { return []string{"GSE"} }

// Fetch retrieves and normalizes metadata for one GSE accession.
func (f *GEOFetcher) Fetch(ctx context.Context, accession string) types.MetadataRecord {
	record := types.NewRecord(accession)

	uid, err := accessionToUID(accession)
	if err != nil {
		return types.ErrorRecord(accession, err.Error())
	}

	doc := f.fetchESummary(ctx, uid)
	if doc == nil {
		return types.ErrorRecord(accession, "eSummary returned no data")
	}

	record.Species = doc.Taxon
	record.DataType = doc.GDSType
	if doc.GPL != "" {
		record.Platform = "GPL" + doc.GPL
	}
	record.DateDeposited = strings.ReplaceAll(doc.PDat, "/", "-")

	details := doc.Title
	if doc.Summary != "" {
		details += ". " + doc.Summary
	}
	if ns := doc.NSamples.String(); ns != "" && ns != "0" {
		details += fmt.Sprintf(" (n=%s samples)", ns)
	}
	record.ExperimentalDetails = details

	var dbRefs []string
	if doc.BioProject != "" {
		dbRefs = append(dbRefs, "BioProject:"+doc.BioProject)
	}
	for _, rel := range doc.ExtRelations {
		if rel.RelationType != "" && rel.TargetObject != "" {
			dbRefs = append(dbRefs, rel.RelationType+":"+rel.TargetObject)
		}
	}
	if doc.GPL != "" {
		dbRefs = append(dbRefs, "GEO_Platform:GPL"+doc.GPL)
	}
	record.DatabaseReferences = strings.Join(dbRefs, "; ")

	// Sample-level fields come from the family SOFT archive. A failed
	// download degrades the record, it does not fail the fetch.
	sample, err := f.fetchSampleSOFT(ctx, accession)
	if err != nil {
		record.FetchStatus = types.StatusPartial
		record.ErrorMessage = fmt.Sprintf("sample metadata unavailable: %v", err)
	} else {
		record.Tissue = sample.Tissue
		record.Age = sample.Age
		record.SequencingType = sample.SequencingType
	}

	pmids := make([]string, 0, len(doc.PubMedIDs))
	for _, id := range doc.PubMedIDs {
		if s := id.String(); s != "" && s != "0" {
			pmids = append(pmids, s)
		}
	}
	pmids = dedupe(append(pmids, f.fetchELinkPubMed(ctx, uid)...))

	if len(pmids) > 0 {
		citations := f.resolver.Resolve(ctx, pmids)
		record.PublishedWorks = strings.Join(citations, "; ")
	}

	return record
}

// accessionToUID derives the gds UID from a GSE accession: the numeric
// part plus the series offset ("GSE149739" → 200149739).
func accessionToUID(accession string) (int, error) {
	var prefix, numStr strings.Builder
	for i := 0; i < len(accession); i++ {
		if isLetter(accession[i]) {
			prefix.WriteByte(accession[i])
		} else {
			numStr.WriteByte(accession[i])
		}
	}
	if !strings.EqualFold(prefix.String(), "GSE") || numStr.Len() == 0 {
		return 0, fmt.Errorf("Invalid GSE accession: %s", accession)
	}
	n, err := strconv.Atoi(numStr.String())
	if err != nil {
		return 0, fmt.Errorf("Invalid GSE accession: %s", accession)
	}
	return geoUIDOffset + n, nil
}

// gds eSummary JSON structures (retmode=json, version 2.0).
type gdsResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type gdsDoc struct {
	Title        string           `json:"title"`
	Summary      string           `json:"summary"`
	Taxon        string           `json:"taxon"`
	GDSType      string           `json:"gdstype"`
	GPL          string           `json:"gpl"`
	PDat         string           `json:"pdat"`
	NSamples     json.Number      `json:"n_samples"`
	BioProject   string           `json:"bioproject"`
	PubMedIDs    []json.Number    `json:"pubmedids"`
	ExtRelations []gdsExtRelation `json:"extrelations"`
}

type gdsExtRelation struct {
	RelationType string `json:"relationtype"`
	TargetObject string `json:"targetobject"`
}

// fetchESummary performs the primary lookup. Returns nil on any failure or
// when the UID is absent from the result.
func (f *GEOFetcher) fetchESummary(ctx context.Context, uid int) *gdsDoc {
	params := url.Values{
		"db":      {"gds"},
		"id":      {strconv.Itoa(uid)},
		"retmode": {"json"},
		"version": {"2.0"},
	}
	if f.apiKey != "" {
		params.Set("api_key", f.apiKey)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var resp gdsResponse
	if err := f.client.GetJSON(ctx, geoESummaryURL, params, &resp); err != nil {
		return nil
	}
	raw, ok := resp.Result[strconv.Itoa(uid)]
	if !ok {
		return nil
	}
	var doc gdsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return &doc
}

// eLink JSON structures.
type elinkResponse struct {
	LinkSets []elinkLinkSet `json:"linksets"`
}

type elinkLinkSet struct {
	LinkSetDBs []elinkLinkSetDB `json:"linksetdbs"`
}

type elinkLinkSetDB struct {
	LinkName string        `json:"linkname"`
	Links    []json.Number `json:"links"`
}

// fetchELinkPubMed collects PubMed IDs linked to the series. Failures are
// non-fatal and yield an empty list.
func (f *GEOFetcher) fetchELinkPubMed(ctx context.Context, uid int) []string {
	params := url.Values{
		"dbfrom":  {"gds"},
		"db":      {"pubmed"},
		"id":      {strconv.Itoa(uid)},
		"retmode": {"json"},
	}
	if f.apiKey != "" {
		params.Set("api_key", f.apiKey)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var resp elinkResponse
	if err := f.client.GetJSON(ctx, geoELinkURL, params, &resp); err != nil {
		return nil
	}

	var pmids []string
	for _, ls := range resp.LinkSets {
		for _, db := range ls.LinkSetDBs {
			if db.LinkName != "gds_pubmed" {
				continue
			}
			for _, id := range db.Links {
				pmids = append(pmids, id.String())
			}
		}
	}
	return pmids
}

// buildFTPURL returns the family SOFT archive URL. The directory level
// replaces the last three digits of the series number with "nnn"
// (GSE261596 → GSE261nnn/GSE261596).
func buildFTPURL(accession string) string {
	numStr := accession[3:]
	var dir string
	if len(numStr) > 3 {
		dir = numStr[:len(numStr)-3] + "nnn"
	} else {
		dir = "nnn"
	}
	return fmt.Sprintf("%s/GSE%s/%s/soft/%s_family.soft.gz", geoFTPBase, dir, accession, accession)
}

// sampleMetadata holds the aggregated sample-level fields.
type sampleMetadata struct {
	Tissue         string
	Age            string
	SequencingType string
}

// fetchSampleSOFT downloads the gzipped family SOFT file and aggregates
// tissue, age, and sequencing type across samples.
func (f *GEOFetcher) fetchSampleSOFT(ctx context.Context, accession string) (sampleMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, f.downloadTimeout)
	defer cancel()

	body, err := f.client.GetBytes(ctx, buildFTPURL(accession), nil)
	if err != nil {
		return sampleMetadata{}, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return sampleMetadata{}, fmt.Errorf("decompressing SOFT archive: %w", err)
	}
	defer gz.Close()

	text, err := io.ReadAll(gz)
	if err != nil {
		return sampleMetadata{}, fmt.Errorf("decompressing SOFT archive: %w", err)
	}

	return parseSampleSOFT(string(text)), nil
}

// SOFT characteristics keys mapped to the tissue and age fields.
var (
	tissueKeys = map[string]bool{"tissue": true, "tissue type": true, "organ": true, "cell type": true}
	ageKeys    = map[string]bool{"age": true, "developmental stage": true, "dev stage": true}
)

// parseSampleSOFT scans the line-oriented SOFT text for the per-sample
// keys and aggregates them: most-common for tissue (source name as
// fallback), union for ages, classification for sequencing type.
func parseSampleSOFT(text string) sampleMetadata {
	var tissues, ages, sourceNames, librarySources, molecules []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "!Sample_characteristics_ch1"):
			key, val, ok := strings.Cut(softValue(line), ":")
			if !ok {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			val = strings.TrimSpace(val)
			if tissueKeys[key] {
				tissues = append(tissues, val)
			} else if ageKeys[key] {
				ages = append(ages, val)
			}
		case strings.HasPrefix(line, "!Sample_source_name_ch1"):
			if v := softValue(line); v != "" {
				sourceNames = append(sourceNames, v)
			}
		case strings.HasPrefix(line, "!Sample_library_source"):
			if v := strings.ToLower(softValue(line)); v != "" {
				librarySources = append(librarySources, v)
			}
		case strings.HasPrefix(line, "!Sample_molecule_ch1"):
			if v := strings.ToLower(softValue(line)); v != "" {
				molecules = append(molecules, v)
			}
		}
	}

	meta := sampleMetadata{
		Age:            unionSorted(ages),
		SequencingType: classifySequencingType(librarySources, molecules),
	}
	if len(tissues) > 0 {
		meta.Tissue = mostCommon(tissues)
	} else {
		meta.Tissue = mostCommon(sourceNames)
	}
	return meta
}

// softValue returns the right-hand side of a "key = value" SOFT line.
func softValue(line string) string {
	_, val, ok := strings.Cut(line, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(val)
}
