// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"sort"
	"strings"

	"github.com/pdiddy/biometa/pkg/types"
)

// singleCellKeywords mark a library source as single-cell sequencing.
// "single cell" also matches "transcriptomic single cell".
var singleCellKeywords = []string{"single cell"}

// nuclearKeywords in the molecule field refine single cell to single nuclei.
var nuclearKeywords = []string{"nuclear rna"}

// mostCommon reduces a bag of sub-record values to one summary value: the
// most frequent non-empty value, or, when no single value wins, all
// distinct values sorted and semicolon-joined to signal heterogeneity
// rather than guessing.
func mostCommon(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return ""
	}

	distinct := make([]string, 0, len(counts))
	best, winners := 0, 0
	winner := ""
	for v, n := range counts {
		distinct = append(distinct, v)
		switch {
		case n > best:
			best, winner, winners = n, v, 1
		case n == best:
			winners++
		}
	}
	if winners == 1 {
		return winner
	}

	sort.Strings(distinct)
	return strings.Join(distinct, "; ")
}

// unionSorted joins all distinct non-empty values, sorted. Used for
// age-like fields, where multiple values are scientifically meaningful and
// must never collapse to one.
func unionSorted(values []string) string {
	seen := make(map[string]bool)
	var distinct []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		distinct = append(distinct, v)
	}
	sort.Strings(distinct)
	return strings.Join(distinct, "; ")
}

// classifySequencingType derives the controlled sequencing category from
// the library source and molecule fields of the sub-records. An empty
// source set means unknown (""), not "other": "other" means the source was
// recognized but fits no category.
func classifySequencingType(librarySources, molecules []string) string {
	if len(librarySources) == 0 {
		return ""
	}

	if anyContains(librarySources, singleCellKeywords) {
		if anyContains(molecules, nuclearKeywords) {
			return types.SeqTypeSingleNuclei
		}
		return types.SeqTypeSingleCell
	}

	if anyContains(librarySources, []string{"transcriptomic", "genomic"}) {
		return types.SeqTypeBulk
	}
	return types.SeqTypeOther
}

// dedupe drops duplicate and empty values, keeping first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func anyContains(values, keywords []string) bool {
	for _, v := range values {
		lower := strings.ToLower(v)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}
