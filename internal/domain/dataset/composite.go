package dataset

import (
	"sort"

	"github.com/eastgrand/geoinsight/internal/domain/catalog"
	"github.com/eastgrand/geoinsight/internal/registry"
)

// ScoredRecord is one geography with its fused composite score.
type ScoredRecord struct {
	GeoID       string `json:"geo_id"`
	DisplayName string `json:"display_name,omitempty"`

	// Rank is the 1-based position in the fused ordering.
	Rank int `json:"rank"`

	// Score is the fused composite in [0, ScoreCeiling].
	Score float64 `json:"score"`

	// Subscores holds each contributing endpoint's raw (pre-normalization)
	// score value, keyed by endpoint id.
	Subscores map[string]float64 `json:"subscores"`

	// Completeness is the fraction of selected endpoints that reported this
	// geography.
	Completeness float64 `json:"completeness"`
}

// FuseScores ranks the merged dataset by a weighted fusion of per-endpoint
// scores.  Per endpoint, raw scores are min-max normalized over the batch
// (a degenerate range maps everything to the 0.5 midpoint); per record, the
// configured weights are renormalized over the endpoints actually present so
// a missing endpoint never silently zeroes a geography's score.  Records
// whose completeness falls below the configured minimum are excluded.
//
// Output is sorted by fused score descending with a stable geo-id tie-break;
// identical input yields identical output.
func FuseScores(merged *MergedDataset, cat *catalog.Catalog, weights registry.CompositeWeights) []ScoredRecord {
	if merged == nil || len(merged.Records) == 0 {
		return nil
	}

	// First pass: resolve each record's raw subscore per endpoint and track
	// per-endpoint min/max for normalization.
	type bounds struct {
		min, max float64
		seen     bool
	}
	perEndpoint := make(map[string]*bounds, len(merged.EndpointIDs))
	raw := make([]map[string]float64, len(merged.Records))

	for i, rec := range merged.Records {
		sub := make(map[string]float64, len(rec.ByEndpoint))
		for _, endpointID := range merged.EndpointIDs {
			attrs, present := rec.ByEndpoint[endpointID]
			if !present {
				continue
			}
			desc := cat.ByID(endpointID)
			if desc == nil {
				continue
			}
			_, value, ok := desc.ResolveScoreField(attrs)
			if !ok {
				continue
			}
			sub[endpointID] = value
			b := perEndpoint[endpointID]
			if b == nil {
				b = &bounds{}
				perEndpoint[endpointID] = b
			}
			if !b.seen || value < b.min {
				b.min = value
			}
			if !b.seen || value > b.max {
				b.max = value
			}
			b.seen = true
		}
		raw[i] = sub
	}

	ceiling := weights.ScoreCeiling
	if ceiling <= 0 {
		ceiling = 100
	}
	selected := len(merged.EndpointIDs)

	out := make([]ScoredRecord, 0, len(merged.Records))
	for i, rec := range merged.Records {
		completeness := rec.Completeness(selected)
		if completeness < weights.MinCompleteness {
			continue
		}
		sub := raw[i]
		if len(sub) == 0 {
			continue
		}

		var weightedSum, weightTotal float64
		for endpointID, value := range sub {
			b := perEndpoint[endpointID]
			norm := 0.5
			if b.max > b.min {
				norm = (value - b.min) / (b.max - b.min)
			}
			w, ok := weights.Weights[endpointID]
			if !ok {
				w = 1
			}
			weightedSum += w * norm
			weightTotal += w
		}
		if weightTotal == 0 {
			continue
		}

		score := weightedSum / weightTotal * ceiling
		if score < 0 {
			score = 0
		}
		if score > ceiling {
			score = ceiling
		}

		out = append(out, ScoredRecord{
			GeoID:        rec.GeoID,
			DisplayName:  rec.DisplayName,
			Score:        score,
			Subscores:    sub,
			Completeness: completeness,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].GeoID < out[j].GeoID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
