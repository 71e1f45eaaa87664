// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/biometa/pkg/types"
)

func sampleRecords() []types.MetadataRecord {
	ok := types.NewRecord("GSE149739")
	ok.Species = "Mus musculus"
	ok.Tissue = "cortex"
	ok.SequencingType = types.SeqTypeSingleNuclei

	partial := types.NewRecord("ERP001736")
	partial.Species = "Homo sapiens"
	partial.FetchStatus = types.StatusPartial
	partial.ErrorMessage = "run-level metadata unavailable"

	failed := types.ErrorRecord("XXX123", "Unsupported accession prefix: XXX")

	return []types.MetadataRecord{ok, partial, failed}
}

func TestEncodeTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(sampleRecords(), &buf, types.FormatTSV))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(types.OutputColumns, "\t"), lines[0])

	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, len(types.OutputColumns))
	assert.Equal(t, "GSE149739", fields[0])
	assert.Equal(t, "Mus musculus", fields[1])
	assert.Equal(t, "single nuclei", fields[4])

	// Error records still occupy a row, with the accession and nothing else.
	assert.Equal(t, "XXX123", strings.Split(lines[3], "\t")[0])
	// Status and error are internal fields, never columns.
	assert.NotContains(t, buf.String(), "Unsupported accession prefix")
}

func TestEncodeCSVQuotesCommas(t *testing.T) {
	rec := types.NewRecord("GSE1")
	rec.ExperimentalDetails = "Study of A, B, and C"

	var buf bytes.Buffer
	require.NoError(t, Encode([]types.MetadataRecord{rec}, &buf, types.FormatCSV))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(types.OutputColumns, ","), lines[0])
	assert.Contains(t, lines[1], `"Study of A, B, and C"`)
}

func TestEncodeYAMLRoundTrip(t *testing.T) {
	records := sampleRecords()

	var buf bytes.Buffer
	require.NoError(t, Encode(records, &buf, types.FormatYAML))

	var decoded []types.MetadataRecord
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, records, decoded)

	// YAML keeps the status fields the tabular formats drop.
	assert.Contains(t, buf.String(), "fetch_status: partial")
	assert.Contains(t, buf.String(), "error_message: run-level metadata unavailable")
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tsv")
	require.NoError(t, Write(sampleRecords(), path, types.FormatTSV))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "accession\t"))
}

func TestWriteBadPath(t *testing.T) {
	err := Write(nil, filepath.Join(t.TempDir(), "missing", "out.tsv"), types.FormatTSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating")
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRecords())
	assert.Equal(t, Summary{Succeeded: 1, Partial: 1, Failed: 1}, s)
	assert.Equal(t, 3, s.Total())
	assert.Equal(t, "1 succeeded, 1 partial, 1 failed", s.String())

	assert.Equal(t, Summary{}, Summarize(nil))
}
