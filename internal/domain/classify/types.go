// Package classify implements the layered intent classifier and the endpoint
// router.  Classification is a fixed-order chain of strategies — semantic,
// hybrid rules, keyword fallback — each of which may decline to offer an
// opinion.  The first layer whose best candidate clears that layer's
// configured confidence floor decides the result; when no layer clears its
// floor the query is rejected rather than guessed at.
package classify

import (
	"context"

	"github.com/eastgrand/geoinsight/internal/domain/query"
	"github.com/eastgrand/geoinsight/internal/registry"
)

// Layer identifies the strategy that produced a candidate.
type Layer string

const (
	LayerSemantic Layer = "semantic"
	LayerHybrid   Layer = "hybrid"
	LayerKeyword  Layer = "keyword"
)

// Candidate is one endpoint proposal with its confidence in [0,1].
type Candidate struct {
	EndpointID      string  `json:"endpoint_id"`
	Confidence      float64 `json:"confidence"`
	Layer           Layer   `json:"layer"`
	TieBreakApplied bool    `json:"tie_break_applied,omitempty"`
}

// Opinion is a strategy's ranked candidate list.  A nil *Opinion means the
// strategy has no opinion — including when its backing service is
// unavailable.  A strategy never hard-rejects a query.
type Opinion struct {
	Candidates []Candidate
}

// Strategy is one layer of the classification chain.
type Strategy interface {
	// Name returns the layer identifier used for floors and metrics.
	Name() Layer

	// Attempt classifies the input or returns (nil, nil) for no-opinion.
	// An error is treated by the chain as no-opinion; it exists so
	// infrastructure-backed layers can report why they degraded.
	Attempt(ctx context.Context, in *Input) (*Opinion, error)
}

// Input aggregates everything classification consumes.  Built once per
// request; strategies treat it as read-only.
type Input struct {
	// Normalized is the canonical query text.
	Normalized string

	// Concepts are the resolver's matches, in text order.
	Concepts []query.ConceptMatch

	// Complexity biases layer behavior (higher raises semantic topK).
	Complexity query.ComplexityScore

	// Snapshot is the registry view pinned for this request.
	Snapshot *registry.Snapshot
}

// namedEntityCount returns the number of distinct named entities among the
// resolved concepts.  Feeds the hybrid tie-break condition.
func (in *Input) namedEntityCount() int {
	seen := make(map[string]bool)
	for _, c := range in.Concepts {
		if c.IsNamedEntity() {
			seen[c.Surface] = true
		}
	}
	return len(seen)
}

// RejectionReasonBelowFloor is the canonical reason for a floor rejection.
const RejectionReasonBelowFloor = "below-confidence-floor"

// Rejection is the terminal out-of-scope state.  Hints carry the best
// sub-floor candidates so the caller can present a specific message.
type Rejection struct {
	Reason string      `json:"reason"`
	Hints  []Candidate `json:"hints,omitempty"`
}

// Result is the classifier output.  Invariant: exactly one of Chosen
// (non-empty) and Rejection is set — never both, never neither.
type Result struct {
	// Chosen is the ordered endpoint selection (1..K).
	Chosen []Candidate `json:"chosen,omitempty"`

	// Ranked is the winning layer's full candidate ranking, for diagnostics.
	Ranked []Candidate `json:"ranked,omitempty"`

	// Rejection is set when no layer cleared its floor.
	Rejection *Rejection `json:"rejection,omitempty"`

	// DecidedBy names the layer that produced Chosen; empty on rejection.
	DecidedBy Layer `json:"decided_by,omitempty"`
}

// IsRejected reports whether the result is the rejected terminal state.
func (r *Result) IsRejected() bool { return r.Rejection != nil }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
