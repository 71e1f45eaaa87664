package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/biometa/internal/fetch"
	"github.com/pdiddy/biometa/internal/report"
	"github.com/pdiddy/biometa/internal/secrets"
	"github.com/pdiddy/biometa/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [accessions...]",
	Short: "Fetch metadata for accessions and write a report",
	Long: `Fetch routes each accession to its archive by prefix (GSE to NCBI GEO,
ERP to EBI ENA), retrieves and normalizes the metadata, resolves linked
publications, and writes one report row per accession in input order.
Individual failures are recorded per accession and do not abort the run.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringP("file", "f", "", "file containing accession numbers, one per line")
	fetchCmd.Flags().StringP("output", "o", "metadata_report.tsv", "output file path")
	fetchCmd.Flags().String("format", "tsv", "output format: tsv, csv, or yaml")
	fetchCmd.Flags().String("ncbi-api-key", "", "NCBI API key for higher rate limits (env: NCBI_API_KEY)")
	fetchCmd.Flags().Int("workers", 1, "number of accessions fetched concurrently")
	fetchCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 30s)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	accessions := append([]string{}, args...)

	file, _ := cmd.Flags().GetString("file")
	if file != "" {
		fromFile, err := readAccessionsFile(file)
		if err != nil {
			return err
		}
		accessions = append(accessions, fromFile...)
	}
	if len(accessions) == 0 {
		return fmt.Errorf("no accessions provided: supply them as arguments or via --file")
	}

	output, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	workers, _ := cmd.Flags().GetInt("workers")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	fetchCfg := types.FetchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: timeout},
		NCBIAPIKey: resolveAPIKey(cmd),
		Workers:    workers,
	}
	if err := fetchCfg.Validate(); err != nil {
		return fmt.Errorf("invalid fetch configuration: %w", err)
	}

	reportCfg := types.ReportConfig{
		Path:   output,
		Format: types.ReportFormat(format),
	}
	if err := reportCfg.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	grabber := fetch.NewGrabber(fetchCfg)

	fmt.Printf("Fetching metadata for %d accession(s)...\n", len(accessions))
	records := grabber.FetchAll(context.Background(), accessions)

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		for _, rec := range records {
			line := fmt.Sprintf("%s: %s", rec.Accession, rec.FetchStatus)
			if rec.ErrorMessage != "" {
				line += " (" + rec.ErrorMessage + ")"
			}
			fmt.Println(line)
		}
	}

	if err := report.Write(records, reportCfg.Path, reportCfg.Format); err != nil {
		return err
	}

	summary := report.Summarize(records)
	fmt.Printf("Done. %s.\n", summary)
	fmt.Printf("Output: %s\n", reportCfg.Path)
	return nil
}

// resolveAPIKey returns the NCBI API key by precedence: flag, viper
// (config file / BIOMETA_NCBI_API_KEY), NCBI_API_KEY env, .secrets/.
func resolveAPIKey(cmd *cobra.Command) string {
	if key, _ := cmd.Flags().GetString("ncbi-api-key"); key != "" {
		return key
	}
	if key := viper.GetString("ncbi_api_key"); key != "" {
		return key
	}
	if key := os.Getenv("NCBI_API_KEY"); key != "" {
		return key
	}
	return loadedSecrets[secrets.NCBIAPIKey]
}

// readAccessionsFile reads one accession per line, skipping blank lines
// and "#" comments.
func readAccessionsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading accessions file: %w", err)
	}
	defer f.Close()

	var accessions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		accessions = append(accessions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading accessions file: %w", err)
	}
	return accessions, nil
}
