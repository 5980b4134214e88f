package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eastgrand/geoinsight/internal/domain/catalog"
	"github.com/eastgrand/geoinsight/internal/registry"
)

func scoringCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.NewCatalog([]*catalog.Descriptor{
		{
			ID:          "demographic_analysis",
			Domain:      "demographics",
			ScoreField:  "demographic_score",
			GeoIDFields: []string{"geo_id"},
		},
		{
			ID:                  "competitive_analysis",
			Domain:              "competitive",
			ScoreField:          "competitive_score",
			FallbackScoreFields: []string{"market_share"},
			GeoIDFields:         []string{"geo_id"},
		},
	})
	require.NoError(t, err)
	return cat
}

func mergedFixture(t *testing.T) *MergedDataset {
	t.Helper()
	merged, err := Merge([]*EndpointDataset{demographicSet(), competitiveSet()})
	require.NoError(t, err)
	return merged
}

func TestFuseScoresWeightedRanking(t *testing.T) {
	merged := mergedFixture(t)
	weights := registry.CompositeWeights{
		Weights:      map[string]float64{"demographic_analysis": 1, "competitive_analysis": 3},
		ScoreCeiling: 100,
	}

	ranked := FuseScores(merged, scoringCatalog(t), weights)
	require.Len(t, ranked, 4)

	// 06003 tops both endpoints' batches, so both normalized subscores are 1
	// and the fused score hits the ceiling.
	assert.Equal(t, "06003", ranked[0].GeoID)
	assert.InDelta(t, 100, ranked[0].Score, 1e-9)

	// 06001 is demographic-only: its weight renormalizes to the present
	// subset, so the score is the demographic norm alone, not quartered.
	var only ScoredRecord
	for _, r := range ranked {
		if r.GeoID == "06001" {
			only = r
		}
	}
	assert.InDelta(t, (72.5-55.0)/(91.3-55.0)*100, only.Score, 1e-6)
	assert.InDelta(t, 0.5, only.Completeness, 1e-9)

	// Raw subscores are preserved for downstream narratives.
	assert.InDelta(t, 72.5, only.Subscores["demographic_analysis"], 1e-9)
	_, present := only.Subscores["competitive_analysis"]
	assert.False(t, present)
}

func TestFuseScoresCompletenessMinimum(t *testing.T) {
	merged := mergedFixture(t)
	weights := registry.CompositeWeights{
		MinCompleteness: 0.75,
		ScoreCeiling:    100,
	}

	ranked := FuseScores(merged, scoringCatalog(t), weights)
	require.Len(t, ranked, 2, "only geographies reported by both endpoints survive")
	for _, r := range ranked {
		assert.GreaterOrEqual(t, r.Completeness, 0.75)
	}
}

func TestFuseScoresDegenerateRange(t *testing.T) {
	flat := &EndpointDataset{
		EndpointID: "demographic_analysis",
		Records: []Record{
			{GeoID: "a", Attributes: map[string]interface{}{"demographic_score": 50.0}},
			{GeoID: "b", Attributes: map[string]interface{}{"demographic_score": 50.0}},
		},
	}
	merged, err := Merge([]*EndpointDataset{flat})
	require.NoError(t, err)

	ranked := FuseScores(merged, scoringCatalog(t), registry.CompositeWeights{ScoreCeiling: 100})
	require.Len(t, ranked, 2)
	for _, r := range ranked {
		assert.InDelta(t, 50, r.Score, 1e-9, "degenerate range maps to the midpoint")
	}
	// Equal scores fall back to the geo-id tie-break.
	assert.Equal(t, "a", ranked[0].GeoID)
	assert.Equal(t, "b", ranked[1].GeoID)
}

func TestFuseScoresAssignsRanksAndNames(t *testing.T) {
	ds := &EndpointDataset{
		EndpointID: "demographic_analysis",
		Records: []Record{
			{GeoID: "06001", DisplayName: "Alameda County", Attributes: map[string]interface{}{"demographic_score": 30.0}},
			{GeoID: "06075", DisplayName: "San Francisco County", Attributes: map[string]interface{}{"demographic_score": 90.0}},
			{GeoID: "06085", DisplayName: "Santa Clara County", Attributes: map[string]interface{}{"demographic_score": 60.0}},
		},
	}
	merged, err := Merge([]*EndpointDataset{ds})
	require.NoError(t, err)

	ranked := FuseScores(merged, scoringCatalog(t), registry.CompositeWeights{ScoreCeiling: 100})
	require.Len(t, ranked, 3)

	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank, "rank follows the sorted position, 1-based")
	}
	assert.Equal(t, "San Francisco County", ranked[0].DisplayName)
	assert.Equal(t, "Santa Clara County", ranked[1].DisplayName)
	assert.Equal(t, "Alameda County", ranked[2].DisplayName)
}

func TestFuseScoresFallbackScoreField(t *testing.T) {
	ds := &EndpointDataset{
		EndpointID: "competitive_analysis",
		Records: []Record{
			{GeoID: "x", Attributes: map[string]interface{}{"market_share": 20.0}},
			{GeoID: "y", Attributes: map[string]interface{}{"market_share": 60.0}},
		},
	}
	merged, err := Merge([]*EndpointDataset{ds})
	require.NoError(t, err)

	ranked := FuseScores(merged, scoringCatalog(t), registry.CompositeWeights{ScoreCeiling: 100})
	require.Len(t, ranked, 2)
	assert.Equal(t, "y", ranked[0].GeoID)
	assert.InDelta(t, 60.0, ranked[0].Subscores["competitive_analysis"], 1e-9)
}

func TestFuseScoresIdempotent(t *testing.T) {
	merged := mergedFixture(t)
	weights := registry.CompositeWeights{
		Weights:      map[string]float64{"competitive_analysis": 2},
		ScoreCeiling: 100,
	}
	cat := scoringCatalog(t)

	first := FuseScores(merged, cat, weights)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FuseScores(merged, cat, weights))
	}
}

func TestFuseScoresEmpty(t *testing.T) {
	assert.Nil(t, FuseScores(nil, scoringCatalog(t), registry.CompositeWeights{}))
	assert.Nil(t, FuseScores(&MergedDataset{}, scoringCatalog(t), registry.CompositeWeights{}))
}
