package classify

import "context"

// KeywordStrategy is the dependency-free fallback.  It scores every catalog
// endpoint by the fraction of its configured keywords found in the query and
// always offers an opinion — candidates that match nothing come back with
// zero confidence and get filtered by the floor, which is how an off-topic
// query ends up rejected instead of misrouted.
type KeywordStrategy struct{}

func NewKeywordStrategy() *KeywordStrategy { return &KeywordStrategy{} }

func (k *KeywordStrategy) Name() Layer { return LayerKeyword }

func (k *KeywordStrategy) Attempt(_ context.Context, in *Input) (*Opinion, error) {
	endpoints := in.Snapshot.Catalog.All()
	candidates := make([]Candidate, 0, len(endpoints))
	for _, ep := range endpoints {
		matched := 0
		for _, kw := range ep.Keywords {
			if containsPhrase(in.Normalized, kw) {
				matched++
			}
		}
		confidence := 0.0
		if len(ep.Keywords) > 0 {
			confidence = float64(matched) / float64(len(ep.Keywords))
		}
		candidates = append(candidates, Candidate{
			EndpointID: ep.ID,
			Confidence: clamp01(confidence),
			Layer:      LayerKeyword,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sortCandidates(candidates)
	return &Opinion{Candidates: candidates}, nil
}
