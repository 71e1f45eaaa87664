// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed resolves PubMed IDs to formatted citation strings via the
// NCBI eSummary endpoint. Resolution degrades gracefully: an id that cannot
// be resolved yields a bare "PMID:<id>" string, never an error.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/biometa/internal/httputil"
)

// esummaryURL is the NCBI eSummary endpoint. Declared as a var so tests
// can substitute an httptest server.
var esummaryURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"

// maxIDsPerRequest is the eSummary batch ceiling.
const maxIDsPerRequest = 200

// defaultTimeout bounds each eSummary request when no timeout is configured.
const defaultTimeout = 30 * time.Second

// Resolver turns PMIDs into citation strings. It shares the NCBI rate
// limiter with the GEO adapter through its httputil client.
type Resolver struct {
	client  *httputil.Client
	apiKey  string
	timeout time.Duration
}

// NewResolver returns a Resolver. apiKey may be empty; a zero timeout falls
// back to the 30 s default.
func NewResolver(client *httputil.Client, apiKey string, timeout time.Duration) *Resolver {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Resolver{client: client, apiKey: apiKey, timeout: timeout}
}

// Resolve maps PMIDs to formatted citations, order-preserving with
// duplicates collapsed before resolution. Output has exactly one string per
// unique input id; unresolvable ids and failed batches fall back to
// "PMID:<id>".
func (r *Resolver) Resolve(ctx context.Context, pmids []string) []string {
	unique := dedupe(pmids)
	if len(unique) == 0 {
		return nil
	}

	var citations []string
	for start := 0; start < len(unique); start += maxIDsPerRequest {
		end := min(start+maxIDsPerRequest, len(unique))
		batch := unique[start:end]

		result, err := r.fetchESummary(ctx, batch)
		if err != nil {
			for _, p := range batch {
				citations = append(citations, "PMID:"+p)
			}
			continue
		}

		for _, p := range batch {
			doc, ok := result[p]
			if !ok || doc.Error != "" {
				citations = append(citations, "PMID:"+p)
				continue
			}
			citations = append(citations, formatCitation(doc))
		}
	}
	return citations
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// eSummary JSON structures. The "result" object maps each PMID to its
// document, alongside a "uids" list which is skipped during decoding.
type esummaryResponse struct {
	Result esummaryResult `json:"result"`
}

type esummaryResult map[string]esummaryDoc

func (r *esummaryResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(map[string]esummaryDoc, len(raw))
	for key, msg := range raw {
		if key == "uids" {
			continue
		}
		var doc esummaryDoc
		if err := json.Unmarshal(msg, &doc); err != nil {
			continue
		}
		out[key] = doc
	}
	*r = out
	return nil
}

type esummaryDoc struct {
	Error      string          `json:"error"`
	Title      string          `json:"title"`
	Source     string          `json:"source"`
	PubDate    string          `json:"pubdate"`
	Authors    []esummaryName  `json:"authors"`
	ArticleIDs []esummaryArtID `json:"articleids"`
}

type esummaryName struct {
	Name string `json:"name"`
}

type esummaryArtID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}

func (r *Resolver) fetchESummary(ctx context.Context, pmids []string) (esummaryResult, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"json"},
		"version": {"2.0"},
	}
	if r.apiKey != "" {
		params.Set("api_key", r.apiKey)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var resp esummaryResponse
	if err := r.client.GetJSON(ctx, esummaryURL, params, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// formatCitation renders "<author> (<year>). <title>. <journal>. DOI:<doi>"
// with "PMID:<id>" in place of a missing DOI and "et al." after the first
// author when more than one is listed.
func formatCitation(doc esummaryDoc) string {
	author := "Unknown"
	if len(doc.Authors) > 0 {
		author = doc.Authors[0].Name
		if author == "" {
			author = "Unknown"
		}
		if len(doc.Authors) > 1 {
			author += " et al."
		}
	}

	year := doc.PubDate
	if len(year) > 4 {
		year = year[:4]
	}

	title := strings.TrimRight(doc.Title, ".")
	journal := doc.Source

	var doi, pmid string
	for _, aid := range doc.ArticleIDs {
		switch aid.IDType {
		case "doi":
			if doi == "" {
				doi = "DOI:" + aid.Value
			}
		case "pubmed":
			if pmid == "" {
				pmid = "PMID:" + aid.Value
			}
		}
	}

	parts := []string{fmt.Sprintf("%s (%s)", author, year), title, journal}
	if doi != "" {
		parts = append(parts, doi)
	} else if pmid != "" {
		parts = append(parts, pmid)
	}

	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ". ")
}
