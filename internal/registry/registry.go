// Package registry reconciles free-text supplier names against the canonical
// supplier list. Extraction output rarely matches the worksheet spelling
// ("Lockheed Martin Aeronautics Co." vs "Lockheed Martin"), so matching runs
// a priority ladder from exact equality down to fuzzy and substring matches,
// and passes unmatched names through unchanged for analyst review.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"gopkg.in/yaml.v3"

	"defrec/internal/logging"
)

//go:embed data/suppliers.yaml
var suppliersYAML []byte

// Fuzzy cutoffs for the two matching tiers. The filtered tier can afford a
// loose cutoff because candidates already share the brand token; the global
// tier needs a strict one to avoid cross-brand collisions.
const (
	filteredCutoff = 0.4
	globalCutoff   = 0.7
)

type supplierFile struct {
	Suppliers []string `yaml:"suppliers"`
}

// Registry holds the canonical supplier list, longest names first so
// substring matching prefers the most specific entry.
type Registry struct {
	canonical []string
}

// New loads the embedded canonical supplier list.
func New() (*Registry, error) {
	return build(suppliersYAML)
}

// NewFromFile loads a replacement supplier list from a YAML file.
func NewFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read supplier file: %w", err)
	}
	r, err := build(data)
	if err != nil {
		return nil, fmt.Errorf("supplier file %s: %w", path, err)
	}
	logging.Get(logging.CategoryBoot).Sugar().Infow("loaded supplier registry",
		"path", path, "suppliers", len(r.canonical))
	return r, nil
}

func build(data []byte) (*Registry, error) {
	var f supplierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse supplier list: %w", err)
	}
	if len(f.Suppliers) == 0 {
		return nil, fmt.Errorf("supplier list is empty")
	}
	canonical := make([]string, len(f.Suppliers))
	copy(canonical, f.Suppliers)
	sort.SliceStable(canonical, func(i, j int) bool {
		return len(canonical[i]) > len(canonical[j])
	})
	return &Registry{canonical: canonical}, nil
}

// Len returns the number of canonical suppliers.
func (r *Registry) Len() int {
	return len(r.canonical)
}

// Reconcile maps an extracted supplier name to its canonical form. Matching
// priority:
//
//  1. sentinel inputs (empty, Unknown, Not Applicable, Multiple) -> "Unknown"
//  2. case-insensitive exact match
//  3. fuzzy match restricted to candidates containing the first token
//  4. global fuzzy match with a stricter cutoff
//  5. longest canonical name contained in the input
//
// Anything that survives all five steps passes through unchanged. Canonical
// names map to themselves, so Reconcile is idempotent.
func (r *Registry) Reconcile(name string) string {
	clean := strings.TrimSpace(name)
	switch strings.ToLower(clean) {
	case "", "unknown", "not applicable", "multiple":
		return "Unknown"
	}
	cleanLower := strings.ToLower(clean)

	for _, s := range r.canonical {
		if cleanLower == strings.ToLower(s) {
			return s
		}
	}

	firstToken := strings.ToLower(strings.SplitN(clean, " ", 2)[0])
	var candidates []string
	for _, s := range r.canonical {
		if strings.Contains(strings.ToLower(s), firstToken) {
			candidates = append(candidates, s)
		}
	}
	if best, ok := closest(clean, candidates, filteredCutoff); ok {
		return best
	}

	if best, ok := closest(clean, r.canonical, globalCutoff); ok {
		return best
	}

	for _, s := range r.canonical {
		if strings.Contains(cleanLower, strings.ToLower(s)) {
			return s
		}
	}

	return clean
}

// closest returns the candidate with the highest similarity to name, if any
// candidate reaches the cutoff.
func closest(name string, candidates []string, cutoff float64) (string, bool) {
	best := ""
	bestScore := cutoff
	for _, c := range candidates {
		score := levenshtein.Similarity(name, c, nil)
		if score > bestScore || (score == bestScore && best == "") {
			best = c
			bestScore = score
		}
	}
	return best, best != ""
}
