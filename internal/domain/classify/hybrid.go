package classify

import (
	"context"
	"strings"

	"github.com/eastgrand/geoinsight/internal/domain/query"
)

// HybridStrategy scores endpoints with the registry's weighted phrase rules
// and applies configured tie-breaks when the query compares named entities.
// It holds no state of its own; everything comes from the request snapshot,
// so a registry swap takes effect on the next query.
type HybridStrategy struct{}

func NewHybridStrategy() *HybridStrategy { return &HybridStrategy{} }

func (h *HybridStrategy) Name() Layer { return LayerHybrid }

func (h *HybridStrategy) Attempt(_ context.Context, in *Input) (*Opinion, error) {
	rules := in.Snapshot.Classify.Rules
	if len(rules) == 0 {
		return nil, nil
	}

	scores := make(map[string]float64)
	for _, rule := range rules {
		for _, pattern := range rule.Patterns {
			if containsPhrase(in.Normalized, pattern) {
				scores[rule.EndpointID] += rule.Weight
			}
		}
	}
	if len(scores) == 0 {
		return nil, nil
	}

	// Tie-breaks fire only when the query names at least two entities and
	// carries an explicit comparison marker, i.e. when the user is asking
	// one domain's question about another domain's subjects.
	tieBreak := in.namedEntityCount() >= 2 && query.HasComparison(in.Normalized)
	adjusted := make(map[string]bool)
	if tieBreak {
		for _, tb := range in.Snapshot.Classify.TieBreaks {
			if _, ok := scores[tb.WinnerEndpointID]; ok {
				scores[tb.WinnerEndpointID] += tb.Bonus
				adjusted[tb.WinnerEndpointID] = true
			}
			if _, ok := scores[tb.LoserEndpointID]; ok {
				scores[tb.LoserEndpointID] -= tb.Penalty
				adjusted[tb.LoserEndpointID] = true
			}
		}
	}

	candidates := make([]Candidate, 0, len(scores))
	for id, score := range scores {
		candidates = append(candidates, Candidate{
			EndpointID:      id,
			Confidence:      clamp01(score),
			Layer:           LayerHybrid,
			TieBreakApplied: adjusted[id],
		})
	}
	sortCandidates(candidates)
	return &Opinion{Candidates: candidates}, nil
}

// containsPhrase matches a pattern on word boundaries so "rank" does not
// fire inside "franchise".
func containsPhrase(text, phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return false
	}
	from := 0
	for {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		from = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
