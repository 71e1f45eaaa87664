// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch routes accessions to source adapters and normalizes their
// metadata into MetadataRecords. FetchOne and FetchAll are total: every
// input accession yields a record, and no failure escapes as an error.
package fetch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/biometa/internal/httputil"
	"github.com/pdiddy/biometa/internal/pubmed"
	"github.com/pdiddy/biometa/internal/ratelimit"
	"github.com/pdiddy/biometa/pkg/types"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultDownloadTimeout = 90 * time.Second
	defaultUserAgent       = "biometa/0.1"
)

// CitationResolver turns literature identifiers into formatted citation
// strings, one per unique id, degrading per id rather than failing.
// *pubmed.Resolver is the production implementation.
type CitationResolver interface {
	Resolve(ctx context.Context, ids []string) []string
}

// Fetcher is one source adapter. Fetch must never panic or propagate an
// error: all failure is captured in the returned record's status fields.
type Fetcher interface {
	// Prefixes returns the accession prefixes this adapter handles
	// (e.g. ["GSE"]).
	Prefixes() []string

	// Fetch retrieves and normalizes metadata for a single accession.
	Fetch(ctx context.Context, accession string) types.MetadataRecord
}

// Grabber dispatches accessions to adapters by prefix. The registry is
// closed: the set of adapters is fixed at construction.
type Grabber struct {
	prefixMap map[string]Fetcher
	workers   int
}

// NewGrabber builds the adapter registry. Adapters against one external
// service share a rate limiter, so concurrent fetches stay within that
// service's request budget.
func NewGrabber(cfg types.FetchConfig) *Grabber {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	httpClient := &http.Client{}
	ncbi := &httputil.Client{
		HTTP:      httpClient,
		Limiter:   ratelimit.New(cfg.NCBIRateOrDefault()),
		UserAgent: cfg.UserAgent,
	}
	ebi := &httputil.Client{
		HTTP:      httpClient,
		Limiter:   ratelimit.New(cfg.EBIRateOrDefault()),
		UserAgent: cfg.UserAgent,
	}

	resolver := pubmed.NewResolver(ncbi, cfg.NCBIAPIKey, cfg.Timeout)

	fetchers := []Fetcher{
		NewGEOFetcher(ncbi, resolver, cfg),
		NewENAFetcher(ebi, resolver, cfg),
	}

	g := &Grabber{
		prefixMap: make(map[string]Fetcher),
		workers:   cfg.Workers,
	}
	for _, f := range fetchers {
		for _, p := range f.Prefixes() {
			g.prefixMap[strings.ToUpper(p)] = f
		}
	}
	return g
}

// FetchOne fetches metadata for a single accession. An unknown or
// unparsable prefix produces an error record without any network call.
func (g *Grabber) FetchOne(ctx context.Context, accession string) types.MetadataRecord {
	accession = strings.TrimSpace(accession)
	prefix := detectPrefix(accession)
	f, ok := g.prefixMap[prefix]
	if prefix == "" || !ok {
		bad := prefix
		if bad == "" {
			bad = accession
		}
		return types.ErrorRecord(accession, "Unsupported accession prefix: "+bad)
	}
	return f.Fetch(ctx, accession)
}

// FetchAll fetches each accession sequentially, preserving input order.
func (g *Grabber) FetchAll(ctx context.Context, accessions []string) []types.MetadataRecord {
	if g.workers > 1 {
		return g.fetchAllParallel(ctx, accessions, g.workers)
	}
	records := make([]types.MetadataRecord, len(accessions))
	for i, acc := range accessions {
		records[i] = g.FetchOne(ctx, acc)
	}
	return records
}

// fetchAllParallel fetches with a bounded worker pool. Results are joined
// by input index, so output order matches input order regardless of
// completion order.
func (g *Grabber) fetchAllParallel(ctx context.Context, accessions []string, workers int) []types.MetadataRecord {
	records := make([]types.MetadataRecord, len(accessions))

	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, acc := range accessions {
		eg.Go(func() error {
			records[i] = g.FetchOne(ctx, acc)
			return nil
		})
	}
	eg.Wait() // FetchOne never returns an error
	return records
}

// detectPrefix extracts the leading alphabetic run of the accession,
// uppercased. Returns "" when the accession does not start with a letter.
func detectPrefix(accession string) string {
	end := 0
	for end < len(accession) && isLetter(accession[end]) {
		end++
	}
	return strings.ToUpper(accession[:end])
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
