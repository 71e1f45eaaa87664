package types

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Default rate limits (requests per second). NCBI grants a higher rate
// when an API key is supplied.
const (
	DefaultNCBIRate        = 3.0
	DefaultNCBIRateWithKey = 10.0
	DefaultEBIRate         = 20.0
)

// HTTPConfig holds shared HTTP settings for components that make network
// requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout for metadata API calls (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// DownloadTimeout is the timeout for large flat-file downloads such as
	// the GEO family SOFT archive (default 90s).
	DownloadTimeout time.Duration `json:"download_timeout" yaml:"download_timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "biometa/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig holds settings for the fetch core.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// NCBIAPIKey unlocks the elevated NCBI E-utilities rate limit. Optional.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// NCBIRate and EBIRate override the default requests/sec per service.
	// Zero means use the defaults.
	NCBIRate float64 `json:"ncbi_rate" yaml:"ncbi_rate"`
	EBIRate  float64 `json:"ebi_rate" yaml:"ebi_rate"`

	// Workers is the number of accessions fetched concurrently. 1 means
	// sequential fetching.
	Workers int `json:"workers" yaml:"workers"`
}

// Validate checks the fetch configuration.
func (c FetchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.NCBIRate, validation.Min(0.0)),
		validation.Field(&c.EBIRate, validation.Min(0.0)),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// NCBIRateOrDefault returns the configured NCBI rate, falling back to the
// keyed or keyless default.
func (c FetchConfig) NCBIRateOrDefault() float64 {
	if c.NCBIRate > 0 {
		return c.NCBIRate
	}
	if c.NCBIAPIKey != "" {
		return DefaultNCBIRateWithKey
	}
	return DefaultNCBIRate
}

// EBIRateOrDefault returns the configured EBI rate or the default.
func (c FetchConfig) EBIRateOrDefault() float64 {
	if c.EBIRate > 0 {
		return c.EBIRate
	}
	return DefaultEBIRate
}

// ReportFormat selects the report output encoding.
type ReportFormat string

const (
	FormatTSV  ReportFormat = "tsv"
	FormatCSV  ReportFormat = "csv"
	FormatYAML ReportFormat = "yaml"
)

// ReportConfig holds settings for the report writer.
type ReportConfig struct {
	// Path is the output file path (default "metadata_report.tsv").
	Path string `json:"path" yaml:"path"`

	// Format selects the encoding: tsv, csv, or yaml.
	Format ReportFormat `json:"format" yaml:"format"`
}

// Validate checks the report configuration.
func (c ReportConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Format, validation.Required,
			validation.In(FormatTSV, FormatCSV, FormatYAML)),
	)
}
