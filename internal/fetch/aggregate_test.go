// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"testing"

	"github.com/pdiddy/biometa/pkg/types"
)

func TestMostCommon(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"empty", nil, ""},
		{"all blank", []string{"", ""}, ""},
		{"single value", []string{"cortex"}, "cortex"},
		{"clear winner", []string{"liver", "liver", "brain"}, "liver"},
		{"blank values ignored", []string{"", "liver", "", "liver", "brain"}, "liver"},
		{"tie joins all distinct sorted", []string{"liver", "brain"}, "brain; liver"},
		{"three-way tie", []string{"c", "a", "b"}, "a; b; c"},
		{"tie includes non-tied distinct values", []string{"b", "b", "a", "a", "c"}, "a; b; c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mostCommon(tt.values); got != tt.want {
				t.Errorf("mostCommon(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestUnionSortedNeverCollapses(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"empty", nil, ""},
		{"single", []string{"P30"}, "P30"},
		{"dominant value still unioned", []string{"P30", "P30", "P30", "E14"}, "E14; P30"},
		{"duplicates removed", []string{"8 weeks", "8 weeks"}, "8 weeks"},
		{"sorted", []string{"P7", "E14", "P30"}, "E14; P30; P7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unionSorted(tt.values); got != tt.want {
				t.Errorf("unionSorted(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestClassifySequencingType(t *testing.T) {
	tests := []struct {
		name      string
		sources   []string
		molecules []string
		want      string
	}{
		{"single cell with nuclear rna", []string{"transcriptomic single cell"}, []string{"nuclear rna"}, types.SeqTypeSingleNuclei},
		{"single cell with polya rna", []string{"transcriptomic single cell"}, []string{"polya rna"}, types.SeqTypeSingleCell},
		{"single cell no molecule info", []string{"transcriptomic single cell"}, nil, types.SeqTypeSingleCell},
		{"bulk transcriptomic", []string{"transcriptomic"}, []string{"total rna"}, types.SeqTypeBulk},
		{"bulk genomic", []string{"genomic"}, nil, types.SeqTypeBulk},
		{"unrecognized source", []string{"viral rna"}, nil, types.SeqTypeOther},
		{"empty source set means unknown", nil, []string{"nuclear rna"}, ""},
		{"case insensitive", []string{"TRANSCRIPTOMIC SINGLE CELL"}, []string{"Nuclear RNA"}, types.SeqTypeSingleNuclei},
		{"mixed sources with single cell", []string{"transcriptomic", "transcriptomic single cell"}, nil, types.SeqTypeSingleCell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifySequencingType(tt.sources, tt.molecules); got != tt.want {
				t.Errorf("classifySequencingType(%v, %v) = %q, want %q", tt.sources, tt.molecules, got, tt.want)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		values []string
		want   []string
	}{
		{[]string{"a", "b", "a", "c", "b"}, []string{"a", "b", "c"}},
		{[]string{"", "a", ""}, []string{"a"}},
		{[]string{"b", "a"}, []string{"b", "a"}},
		{nil, nil},
	}
	for _, tt := range tests {
		got := dedupe(append([]string(nil), tt.values...))
		if len(got) != len(tt.want) {
			t.Errorf("dedupe(%v) = %v, want %v", tt.values, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("dedupe(%v) = %v, want %v", tt.values, got, tt.want)
				break
			}
		}
	}
}
