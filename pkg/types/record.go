// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data contracts between the fetch core
// and its callers (CLI, report writer).
package types

// FetchStatus records the outcome of a single accession fetch.
type FetchStatus string

const (
	StatusSuccess FetchStatus = "success"
	StatusPartial FetchStatus = "partial"
	StatusError   FetchStatus = "error"
)

// Sequencing type categories derived from library source and molecule fields.
const (
	SeqTypeBulk         = "bulk"
	SeqTypeSingleCell   = "single cell"
	SeqTypeSingleNuclei = "single nuclei"
	SeqTypeOther        = "other"
)

// MetadataRecord is the normalized record produced for every input
// accession, one per accession in input order, regardless of failures.
// A record with StatusError carries only the accession and an error
// message; all biological fields stay empty.
type MetadataRecord struct {
	Accession           string `json:"accession" yaml:"accession"`
	Species             string `json:"species" yaml:"species"`
	Tissue              string `json:"tissue" yaml:"tissue"`
	Age                 string `json:"age" yaml:"age"`
	SequencingType      string `json:"sequencing_type" yaml:"sequencing_type"`
	DataType            string `json:"data_type" yaml:"data_type"`
	Platform            string `json:"platform" yaml:"platform"`
	DateDeposited       string `json:"date_deposited" yaml:"date_deposited"`
	ExperimentalDetails string `json:"experimental_details" yaml:"experimental_details"`
	PublishedWorks      string `json:"published_works" yaml:"published_works"`
	DatabaseReferences  string `json:"database_references" yaml:"database_references"`

	FetchStatus  FetchStatus `json:"fetch_status" yaml:"fetch_status"`
	ErrorMessage string      `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// OutputColumns lists the report columns in order. Status fields are
// internal and excluded from tabular output.
var OutputColumns = []string{
	"accession",
	"species",
	"tissue",
	"age",
	"sequencing_type",
	"data_type",
	"platform",
	"date_deposited",
	"experimental_details",
	"published_works",
	"database_references",
}

// Row returns the record's values in OutputColumns order.
func (r MetadataRecord) Row() []string {
	return []string{
		r.Accession,
		r.Species,
		r.Tissue,
		r.Age,
		r.SequencingType,
		r.DataType,
		r.Platform,
		r.DateDeposited,
		r.ExperimentalDetails,
		r.PublishedWorks,
		r.DatabaseReferences,
	}
}

// NewRecord returns an empty record for accession with status success;
// adapters downgrade the status as failures occur.
func NewRecord(accession string) MetadataRecord {
	return MetadataRecord{Accession: accession, FetchStatus: StatusSuccess}
}

// ErrorRecord returns a terminal error record: accession and message only.
func ErrorRecord(accession, message string) MetadataRecord {
	return MetadataRecord{
		Accession:    accession,
		FetchStatus:  StatusError,
		ErrorMessage: message,
	}
}
