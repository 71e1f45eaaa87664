// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the biometa CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/biometa/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the biometa CLI.
var rootCmd = &cobra.Command{
	Use:   "biometa",
	Short: "Fetch metadata for genomic accessions (GEO, ENA)",
	Long: `biometa retrieves dataset metadata for sequencing and expression archive
accessions (e.g. GSE149739, ERP119049), normalizes it into one record per
accession, resolves linked publications to citation strings, and writes a
TSV/CSV/YAML report.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; a missing file is not an error.
		godotenv.Load()

		loadedSecrets = secrets.Load(".secrets/")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./biometa.yaml or ~/.config/biometa/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print per-accession outcomes")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("biometa")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "biometa"))
		}
	}

	viper.SetEnvPrefix("BIOMETA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
