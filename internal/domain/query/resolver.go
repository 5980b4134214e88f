package query

import (
	"sort"
	"strings"

	"github.com/eastgrand/geoinsight/internal/registry"
)

// MatchKind describes how a surface span resolved to field codes.
type MatchKind string

const (
	// MatchAlias is a direct field-synonym match.
	MatchAlias MatchKind = "alias"

	// MatchBrand is a brand-name match; brands are named entities, which
	// matters to the hybrid layer's tie-break condition.
	MatchBrand MatchKind = "brand"

	// MatchGrouped is a grouped-term match expanding to 2+ field codes.
	MatchGrouped MatchKind = "grouped-expansion"
)

// Per-kind confidence of a surface match.  These express match mechanics
// (an exact brand name is more specific than a generic synonym), not
// calibration, so they live in code.
const (
	brandConfidence   = 0.95
	aliasConfidence   = 0.90
	groupedConfidence = 0.85
)

// ConceptMatch is one resolved mention.  FieldCodes is never empty for a
// produced match; spans that resolve to nothing simply produce no match.
type ConceptMatch struct {
	Surface    string    `json:"surface"`
	FieldCodes []string  `json:"field_codes"`
	Kind       MatchKind `json:"kind"`
	Confidence float64   `json:"confidence"`
}

// IsNamedEntity reports whether the match refers to a specific named entity
// rather than a generic field synonym.
func (m ConceptMatch) IsNamedEntity() bool {
	return m.Kind == MatchBrand
}

// ResolveConcepts scans normalized query text against the snapshot's alias,
// brand, and grouped-term tables, longest match first, and returns the
// matches ordered by their position in the text.  Overlapping candidates
// lose to the longer (or earlier-registered equal-length) match.  Unmatched
// spans are not errors; the resolver fails open.
//
// Identical text and snapshot version always produce an identical,
// order-stable match list.
func ResolveConcepts(normalized string, snap *registry.Snapshot) []ConceptMatch {
	type term struct {
		text string
		kind MatchKind
	}

	terms := make([]term, 0, len(snap.Aliases)+len(snap.Brands)+len(snap.Grouped))
	for t := range snap.Brands {
		terms = append(terms, term{t, MatchBrand})
	}
	for t := range snap.Aliases {
		terms = append(terms, term{t, MatchAlias})
	}
	for t := range snap.Grouped {
		terms = append(terms, term{t, MatchGrouped})
	}
	// Longest first; ties broken lexically so map iteration order never
	// leaks into the result.
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i].text) != len(terms[j].text) {
			return len(terms[i].text) > len(terms[j].text)
		}
		return terms[i].text < terms[j].text
	})

	claimed := make([]bool, len(normalized))
	var matches []ConceptMatch
	positions := make(map[int]int) // match index -> first byte offset

	for _, tm := range terms {
		if tm.text == "" {
			continue
		}
		for offset := 0; ; {
			idx := strings.Index(normalized[offset:], tm.text)
			if idx < 0 {
				break
			}
			start := offset + idx
			end := start + len(tm.text)
			offset = start + 1

			if !wordBounded(normalized, start, end) || spanClaimed(claimed, start, end) {
				continue
			}
			for i := start; i < end; i++ {
				claimed[i] = true
			}

			m := ConceptMatch{Surface: tm.text}
			switch tm.kind {
			case MatchBrand:
				m.FieldCodes = []string{snap.Brands[tm.text]}
				m.Kind = MatchBrand
				m.Confidence = brandConfidence
			case MatchAlias:
				m.FieldCodes = []string{snap.Aliases[tm.text]}
				m.Kind = MatchAlias
				m.Confidence = aliasConfidence
			case MatchGrouped:
				codes := snap.Grouped[tm.text]
				m.FieldCodes = append([]string(nil), codes...)
				m.Kind = MatchGrouped
				m.Confidence = groupedConfidence
			}
			positions[len(matches)] = start
			matches = append(matches, m)
		}
	}

	// Order by position in the text, not by table iteration.
	idx := make([]int, len(matches))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return positions[idx[a]] < positions[idx[b]] })

	ordered := make([]ConceptMatch, len(matches))
	for i, j := range idx {
		ordered[i] = matches[j]
	}
	return ordered
}

// FieldCodesOf flattens the ordered field codes of matches, deduplicated,
// preserving first-occurrence order.
func FieldCodesOf(matches []ConceptMatch) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, m := range matches {
		for _, c := range m.FieldCodes {
			if !seen[c] {
				seen[c] = true
				codes = append(codes, c)
			}
		}
	}
	return codes
}

// wordBounded reports whether [start,end) falls on word boundaries.
func wordBounded(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

func spanClaimed(claimed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}
