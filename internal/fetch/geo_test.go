// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biometa/internal/httputil"
	"github.com/pdiddy/biometa/internal/ratelimit"
	"github.com/pdiddy/biometa/pkg/types"
)

// stubResolver records the ids it was asked to resolve and returns canned
// citations. Shared by the GEO and ENA adapter tests.
type stubResolver struct {
	gotIDs    []string
	citations []string
}

func (s *stubResolver) Resolve(_ context.Context, ids []string) []string {
	s.gotIDs = append(s.gotIDs, ids...)
	return s.citations
}

func testFetchConfig() types.FetchConfig {
	return types.FetchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:         5 * time.Second,
			DownloadTimeout: 5 * time.Second,
		},
	}
}

func gzipText(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestAccessionToUID(t *testing.T) {
	tests := []struct {
		accession string
		want      int
		wantErr   bool
	}{
		{"GSE149739", 200149739, false},
		{"GSE1", 200000001, false},
		{"gse5", 200000005, false},
		{"SRP123", 0, true},
		{"GSE", 0, true},
		{"GSEabc", 0, true},
	}
	for _, tt := range tests {
		got, err := accessionToUID(tt.accession)
		if tt.wantErr {
			if err == nil {
				t.Errorf("accessionToUID(%q) expected error, got %d", tt.accession, got)
			} else if !strings.Contains(err.Error(), tt.accession) {
				t.Errorf("accessionToUID(%q) error %q does not name the accession", tt.accession, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("accessionToUID(%q) unexpected error: %v", tt.accession, err)
			continue
		}
		if got != tt.want {
			t.Errorf("accessionToUID(%q) = %d, want %d", tt.accession, got, tt.want)
		}
	}
}

func TestBuildFTPURL(t *testing.T) {
	tests := []struct {
		accession string
		want      string
	}{
		{"GSE261596", "https://ftp.ncbi.nlm.nih.gov/geo/series/GSE261nnn/GSE261596/soft/GSE261596_family.soft.gz"},
		{"GSE1", "https://ftp.ncbi.nlm.nih.gov/geo/series/GSEnnn/GSE1/soft/GSE1_family.soft.gz"},
		{"GSE149739", "https://ftp.ncbi.nlm.nih.gov/geo/series/GSE149nnn/GSE149739/soft/GSE149739_family.soft.gz"},
	}
	for _, tt := range tests {
		if got := buildFTPURL(tt.accession); got != tt.want {
			t.Errorf("buildFTPURL(%q) = %q, want %q", tt.accession, got, tt.want)
		}
	}
}

const sampleSOFT = `^SERIES = GSE149739
!Series_title = Cortical study
^SAMPLE = GSM1
!Sample_source_name_ch1 = frontal cortex
!Sample_characteristics_ch1 = tissue: cortex
!Sample_characteristics_ch1 = age: P30
!Sample_library_source = transcriptomic single cell
!Sample_molecule_ch1 = Nuclear RNA
^SAMPLE = GSM2
!Sample_source_name_ch1 = frontal cortex
!Sample_characteristics_ch1 = tissue: cortex
!Sample_characteristics_ch1 = age: P60
!Sample_library_source = transcriptomic single cell
!Sample_molecule_ch1 = Nuclear RNA
^SAMPLE = GSM3
!Sample_characteristics_ch1 = tissue: cerebellum
!Sample_characteristics_ch1 = age: P30
!Sample_library_source = transcriptomic single cell
!Sample_molecule_ch1 = Nuclear RNA
`

func TestParseSampleSOFT(t *testing.T) {
	meta := parseSampleSOFT(sampleSOFT)

	assert.Equal(t, "cortex", meta.Tissue, "most common tissue wins")
	assert.Equal(t, "P30; P60", meta.Age, "ages are unioned, never collapsed")
	assert.Equal(t, types.SeqTypeSingleNuclei, meta.SequencingType)
}

func TestParseSampleSOFTSourceNameFallback(t *testing.T) {
	meta := parseSampleSOFT(`!Sample_source_name_ch1 = whole blood
!Sample_library_source = transcriptomic
`)
	assert.Equal(t, "whole blood", meta.Tissue)
	assert.Equal(t, types.SeqTypeBulk, meta.SequencingType)
	assert.Empty(t, meta.Age)
}

const sampleGDSESummary = `{
  "result": {
    "uids": ["200149739"],
    "200149739": {
      "title": "Cortical study",
      "summary": "snRNA-seq profiling of mouse cortex",
      "taxon": "Mus musculus",
      "gdstype": "Expression profiling by high throughput sequencing",
      "gpl": "24247",
      "pdat": "2020/06/01",
      "n_samples": 9,
      "bioproject": "PRJNA1",
      "pubmedids": [32561591],
      "extrelations": [{"relationtype": "SRA", "targetobject": "SRP123"}]
    }
  }
}`

const sampleELink = `{
  "linksets": [
    {"linksetdbs": [{"linkname": "gds_pubmed", "links": [32561591, 99999]}]}
  ]
}`

// newGEOTestServer wires the three GEO endpoints to one httptest server.
func newGEOTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, func() *httputil.Client) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	origSummary, origLink, origFTP := geoESummaryURL, geoELinkURL, geoFTPBase
	geoESummaryURL = ts.URL + "/esummary"
	geoELinkURL = ts.URL + "/elink"
	geoFTPBase = ts.URL + "/geo/series"
	t.Cleanup(func() {
		geoESummaryURL, geoELinkURL, geoFTPBase = origSummary, origLink, origFTP
	})

	return ts, func() *httputil.Client {
		return &httputil.Client{HTTP: ts.Client(), Limiter: ratelimit.New(1000)}
	}
}

func TestGEOFetchEndToEnd(t *testing.T) {
	_, client := newGEOTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/esummary"):
			assert.Equal(t, "gds", r.URL.Query().Get("db"))
			assert.Equal(t, "200149739", r.URL.Query().Get("id"))
			w.Write([]byte(sampleGDSESummary))
		case strings.HasPrefix(r.URL.Path, "/elink"):
			w.Write([]byte(sampleELink))
		case strings.HasSuffix(r.URL.Path, "GSE149739_family.soft.gz"):
			w.Write(gzipText(t, sampleSOFT))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	resolver := &stubResolver{citations: []string{"Chen L et al. (2021). Atlas. Nat Neurosci. PMID:32561591"}}
	f := NewGEOFetcher(client(), resolver, testFetchConfig())

	rec := f.Fetch(context.Background(), "GSE149739")

	assert.Equal(t, types.StatusSuccess, rec.FetchStatus)
	assert.Empty(t, rec.ErrorMessage)
	assert.Equal(t, "Mus musculus", rec.Species)
	assert.Equal(t, "GPL24247", rec.Platform)
	assert.Equal(t, "2020-06-01", rec.DateDeposited)
	assert.Equal(t, "Expression profiling by high throughput sequencing", rec.DataType)

	assert.Contains(t, rec.ExperimentalDetails, "Cortical study")
	assert.Contains(t, rec.ExperimentalDetails, "(n=9 samples)")

	assert.Contains(t, rec.DatabaseReferences, "BioProject:PRJNA1")
	assert.Contains(t, rec.DatabaseReferences, "SRA:SRP123")
	assert.Contains(t, rec.DatabaseReferences, "GEO_Platform:GPL24247")

	assert.Equal(t, "cortex", rec.Tissue)
	assert.Equal(t, "P30; P60", rec.Age)
	assert.Equal(t, types.SeqTypeSingleNuclei, rec.SequencingType)

	// eSummary and eLink PMIDs are merged and deduplicated before resolution.
	assert.Equal(t, []string{"32561591", "99999"}, resolver.gotIDs)
	assert.Equal(t, "Chen L et al. (2021). Atlas. Nat Neurosci. PMID:32561591", rec.PublishedWorks)
}

func TestGEOFetchPrimaryLookupFailure(t *testing.T) {
	_, client := newGEOTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	f := NewGEOFetcher(client(), &stubResolver{}, testFetchConfig())
	rec := f.Fetch(context.Background(), "GSE149739")

	assert.Equal(t, types.StatusError, rec.FetchStatus)
	assert.Equal(t, "eSummary returned no data", rec.ErrorMessage)
	assert.Empty(t, rec.Species)
	assert.Empty(t, rec.ExperimentalDetails)
}

func TestGEOFetchInvalidAccession(t *testing.T) {
	_, client := newGEOTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no network call expected for an invalid accession")
	})

	f := NewGEOFetcher(client(), &stubResolver{}, testFetchConfig())
	rec := f.Fetch(context.Background(), "GSEoops")

	assert.Equal(t, types.StatusError, rec.FetchStatus)
	assert.Contains(t, rec.ErrorMessage, "Invalid GSE accession")
}

func TestGEOFetchSOFTFailureDegrades(t *testing.T) {
	_, client := newGEOTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/esummary"):
			w.Write([]byte(sampleGDSESummary))
		case strings.HasPrefix(r.URL.Path, "/elink"):
			w.Write([]byte(`{"linksets": []}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f := NewGEOFetcher(client(), &stubResolver{}, testFetchConfig())
	rec := f.Fetch(context.Background(), "GSE149739")

	assert.Equal(t, types.StatusPartial, rec.FetchStatus)
	assert.Contains(t, rec.ErrorMessage, "sample metadata unavailable")
	// Primary-level fields are kept; derived fields stay blank.
	assert.Equal(t, "Mus musculus", rec.Species)
	assert.Empty(t, rec.Tissue)
	assert.Empty(t, rec.SequencingType)
}
