package query

import "strings"

// Structural vocabularies consulted by the complexity scorer.  These are
// structural signals (does the query mention statistics at all), not tuned
// weights; the calibratable numbers live in the registry document.
var (
	statisticalTerms = []string{
		"correlation", "correlate", "significant", "regression", "variance",
		"deviation", "percentile", "distribution", "outlier", "cluster",
	}
	temporalMarkers = []string{
		"trend", "over time", "growth", "change", "since", "year over year",
		"historical", "past", "forecast",
	}
	comparisonMarkers = []string{
		" vs ", " versus ", "compare", "compared", "difference between",
		"better than", "against",
	}
)

// ComplexityScore is a structural complexity estimate in [0,10].  It biases
// the classifier toward the semantic layer for harder queries; it never
// rejects a query by itself.
type ComplexityScore float64

const maxComplexity = 10

// ScoreComplexity computes the complexity of normalized query text given the
// number of distinct concepts resolved from it.  Deterministic, no I/O.
//
// Signal weights: each distinct concept contributes 1 (capped at 4),
// statistical vocabulary 2, temporal markers 2, comparison markers 2.
func ScoreComplexity(normalized string, conceptCount int) ComplexityScore {
	score := 0.0

	concepts := float64(conceptCount)
	if concepts > 4 {
		concepts = 4
	}
	score += concepts

	if containsAny(normalized, statisticalTerms) {
		score += 2
	}
	if containsAny(normalized, temporalMarkers) {
		score += 2
	}
	if containsComparison(normalized) {
		score += 2
	}

	if score > maxComplexity {
		score = maxComplexity
	}
	return ComplexityScore(score)
}

// HasComparison reports whether normalized text contains a multi-entity
// comparison marker.  Shared with the hybrid layer's tie-break condition.
func HasComparison(normalized string) bool {
	return containsComparison(normalized)
}

func containsComparison(normalized string) bool {
	// Pad so " vs " matches at the edges too.
	padded := " " + normalized + " "
	return containsAny(padded, comparisonMarkers)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
