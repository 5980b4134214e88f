package classify

import (
	"context"
	"sort"

	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
)

// Embedder turns query text into a dense vector.  Implemented by the
// embedding HTTP client; nil when the service is not configured.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Available() bool
}

// ExemplarHit is one nearest-neighbor match from the exemplar index.
type ExemplarHit struct {
	EndpointID string
	Similarity float64
}

// ExemplarIndex answers nearest-exemplar lookups over labeled example
// queries.  Implemented by the Milvus adapter.
type ExemplarIndex interface {
	Nearest(ctx context.Context, vector []float32, topK int) ([]ExemplarHit, error)
}

// complexSemanticThreshold is the complexity score at or above which the
// semantic layer widens its candidate window by one.
const complexSemanticThreshold = 7

// SemanticStrategy classifies by embedding the query and retrieving the
// nearest labeled exemplars.  Any failure along the way — missing
// dependencies, embedding error, index error — degrades to no-opinion so the
// chain falls through to the rule layers.
type SemanticStrategy struct {
	embedder Embedder
	index    ExemplarIndex
	logger   logging.Logger
}

func NewSemanticStrategy(embedder Embedder, index ExemplarIndex, logger logging.Logger) *SemanticStrategy {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SemanticStrategy{embedder: embedder, index: index, logger: logger}
}

func (s *SemanticStrategy) Name() Layer { return LayerSemantic }

func (s *SemanticStrategy) Attempt(ctx context.Context, in *Input) (*Opinion, error) {
	if s.embedder == nil || s.index == nil || !s.embedder.Available() {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, in.Normalized)
	if err != nil {
		s.logger.Debug("semantic layer degraded: embedding failed", logging.Err(err))
		return nil, nil
	}

	topK := in.Snapshot.Classify.SemanticTopK
	if topK <= 0 {
		topK = 3
	}
	if in.Complexity >= complexSemanticThreshold {
		topK++
	}

	hits, err := s.index.Nearest(ctx, vec, topK)
	if err != nil {
		s.logger.Debug("semantic layer degraded: exemplar lookup failed", logging.Err(err))
		return nil, nil
	}
	if len(hits) == 0 {
		return nil, nil
	}

	// Collapse hits to one candidate per endpoint, keeping the best
	// similarity, and drop endpoints the snapshot no longer carries.
	best := make(map[string]float64, len(hits))
	for _, h := range hits {
		if in.Snapshot.Catalog.ByID(h.EndpointID) == nil {
			continue
		}
		if sim, seen := best[h.EndpointID]; !seen || h.Similarity > sim {
			best[h.EndpointID] = h.Similarity
		}
	}
	if len(best) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(best))
	for id, sim := range best {
		candidates = append(candidates, Candidate{
			EndpointID: id,
			Confidence: clamp01(sim),
			Layer:      LayerSemantic,
		})
	}
	sortCandidates(candidates)
	return &Opinion{Candidates: candidates}, nil
}

// sortCandidates orders by confidence descending, endpoint id ascending for
// equal confidence, so rankings are deterministic across runs.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Confidence != cs[j].Confidence {
			return cs[i].Confidence > cs[j].Confidence
		}
		return cs[i].EndpointID < cs[j].EndpointID
	})
}
