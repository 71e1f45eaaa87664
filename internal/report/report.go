// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes fetched records to TSV, CSV, or YAML files and
// summarizes batch outcomes for the CLI.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/biometa/pkg/types"
)

// Write encodes records to path in the given format.
func Write(records []types.MetadataRecord, path string, format types.ReportFormat) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := Encode(records, f, format); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Encode writes records to w in the given format.
func Encode(records []types.MetadataRecord, w io.Writer, format types.ReportFormat) error {
	switch format {
	case types.FormatCSV:
		return encodeDelimited(records, w, ',')
	case types.FormatYAML:
		return encodeYAML(records, w)
	default:
		return encodeDelimited(records, w, '\t')
	}
}

func encodeDelimited(records []types.MetadataRecord, w io.Writer, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(types.OutputColumns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(rec.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeYAML(records []types.MetadataRecord, w io.Writer) error {
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// Summary counts per-record outcomes for a batch run.
type Summary struct {
	Succeeded int
	Partial   int
	Failed    int
}

// Summarize tallies record statuses.
func Summarize(records []types.MetadataRecord) Summary {
	var s Summary
	for _, rec := range records {
		switch rec.FetchStatus {
		case types.StatusError:
			s.Failed++
		case types.StatusPartial:
			s.Partial++
		default:
			s.Succeeded++
		}
	}
	return s
}

// Total returns the number of records summarized.
func (s Summary) Total() int {
	return s.Succeeded + s.Partial + s.Failed
}

// String renders the CLI's closing line.
func (s Summary) String() string {
	return fmt.Sprintf("%d succeeded, %d partial, %d failed", s.Succeeded, s.Partial, s.Failed)
}
