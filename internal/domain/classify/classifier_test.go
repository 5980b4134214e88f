package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eastgrand/geoinsight/internal/domain/catalog"
	"github.com/eastgrand/geoinsight/internal/domain/query"
	"github.com/eastgrand/geoinsight/internal/registry"
)

func classifySnapshot(t *testing.T) *registry.Snapshot {
	t.Helper()
	doc := &registry.Document{
		Version: "test",
		Aliases: map[string]string{
			"income":     "MEDINC_CY",
			"population": "TOTPOP_CY",
		},
		Brands: map[string]string{
			"brand alpha": "MP30034A_B",
			"brand beta":  "MP30029A_B",
		},
		Endpoints: []*catalog.Descriptor{
			{
				ID:          "demographic_analysis",
				Domain:      "demographics",
				Path:        "/demographic-analysis",
				Keywords:    []string{"income", "population", "age", "household"},
				ScoreField:  "demographic_score",
				GeoIDFields: []string{"geo_id"},
				Timeout:     5 * time.Second,
			},
			{
				ID:          "competitive_analysis",
				Domain:      "competitive",
				Path:        "/competitive-analysis",
				Keywords:    []string{"market share", "competitor", "brand"},
				ScoreField:  "competitive_score",
				GeoIDFields: []string{"geo_id"},
				Timeout:     5 * time.Second,
			},
			{
				ID:          "trend_analysis",
				Domain:      "temporal",
				Path:        "/trend-analysis",
				Keywords:    []string{"trend", "growth", "over time"},
				ScoreField:  "trend_score",
				GeoIDFields: []string{"geo_id"},
				Timeout:     5 * time.Second,
			},
		},
		MaxFanOut: 3,
		Classify: registry.ClassifierWeights{
			SemanticFloor:    0.60,
			HybridFloor:      0.45,
			KeywordFloor:     0.24,
			CoSelectionFloor: 0.35,
			SemanticTopK:     3,
			Rules: []registry.HybridRule{
				{
					EndpointID: "competitive_analysis",
					Patterns:   []string{"market share", "competitor", "positioning"},
					Weight:     0.5,
				},
				{
					EndpointID: "demographic_analysis",
					Patterns:   []string{"demographic", "income", "population"},
					Weight:     0.3,
				},
			},
			TieBreaks: []registry.TieBreak{
				{
					WinnerEndpointID: "competitive_analysis",
					LoserEndpointID:  "demographic_analysis",
					Bonus:            0.2,
					Penalty:          0.2,
				},
			},
		},
	}
	snap, err := registry.Compile(doc, []byte("classify-test"))
	require.NoError(t, err)
	return snap
}

func classifyInput(t *testing.T, snap *registry.Snapshot, text string) *Input {
	t.Helper()
	normalized := query.NormalizeText(text)
	concepts := query.ResolveConcepts(normalized, snap)
	return &Input{
		Normalized: normalized,
		Concepts:   concepts,
		Complexity: query.ScoreComplexity(normalized, len(concepts)),
		Snapshot:   snap,
	}
}

// stubStrategy lets tests pin the semantic layer's behavior.
type stubStrategy struct {
	layer   Layer
	opinion *Opinion
	err     error
	calls   int
}

func (s *stubStrategy) Name() Layer { return s.layer }

func (s *stubStrategy) Attempt(_ context.Context, _ *Input) (*Opinion, error) {
	s.calls++
	return s.opinion, s.err
}

func TestClassifyHybridRuleWins(t *testing.T) {
	snap := classifySnapshot(t)
	c := NewClassifier(nil, nil)

	res := c.Classify(context.Background(), classifyInput(t, snap, "show market share for brand alpha"))

	require.False(t, res.IsRejected())
	assert.Equal(t, LayerHybrid, res.DecidedBy)
	require.Len(t, res.Chosen, 1)
	assert.Equal(t, "competitive_analysis", res.Chosen[0].EndpointID)
}

func TestClassifyKeywordFallback(t *testing.T) {
	snap := classifySnapshot(t)
	c := NewClassifier(nil, nil)

	// "growth over time" hits two of trend_analysis's three keywords but no
	// hybrid rule, so the keyword layer decides.
	res := c.Classify(context.Background(), classifyInput(t, snap, "show growth over time"))

	require.False(t, res.IsRejected())
	assert.Equal(t, LayerKeyword, res.DecidedBy)
	require.NotEmpty(t, res.Chosen)
	assert.Equal(t, "trend_analysis", res.Chosen[0].EndpointID)
}

func TestClassifyRejectsOffTopicQuery(t *testing.T) {
	snap := classifySnapshot(t)
	c := NewClassifier(nil, nil)

	res := c.Classify(context.Background(), classifyInput(t, snap, "what is the best pizza topping"))

	require.True(t, res.IsRejected())
	assert.Empty(t, res.Chosen)
	assert.Equal(t, RejectionReasonBelowFloor, res.Rejection.Reason)
}

func TestClassifyTieBreakOnBrandComparison(t *testing.T) {
	snap := classifySnapshot(t)
	c := NewClassifier(nil, nil)

	// Two named brands plus "vs": the tie-break should push the competitive
	// endpoint above demographic even though "income" fires a demographic
	// rule too.
	res := c.Classify(context.Background(), classifyInput(t, snap,
		"brand alpha vs brand beta market share against income"))

	require.False(t, res.IsRejected())
	assert.Equal(t, "competitive_analysis", res.Chosen[0].EndpointID)
	assert.True(t, res.Chosen[0].TieBreakApplied)
}

func TestClassifyNoTieBreakWithoutComparison(t *testing.T) {
	snap := classifySnapshot(t)
	c := NewClassifier(nil, nil)

	res := c.Classify(context.Background(), classifyInput(t, snap,
		"market share of brand alpha by income"))

	require.False(t, res.IsRejected())
	for _, cand := range res.Ranked {
		assert.False(t, cand.TieBreakApplied,
			"no tie-break without two named entities and a comparison marker")
	}
}

func TestClassifyCoSelectionAcrossDomains(t *testing.T) {
	snap := classifySnapshot(t)
	c := NewClassifier(nil, nil)

	// Both domains' rules fire above their floors: competitive 0.5 (market
	// share) and demographic 0.6 (demographic + income).  Cross-domain and
	// both over the 0.35 co-selection floor, so both are chosen.
	res := c.Classify(context.Background(), classifyInput(t, snap,
		"demographic income profile and market share"))

	require.False(t, res.IsRejected())
	require.Len(t, res.Chosen, 2)
	ids := []string{res.Chosen[0].EndpointID, res.Chosen[1].EndpointID}
	assert.Contains(t, ids, "demographic_analysis")
	assert.Contains(t, ids, "competitive_analysis")
}

func TestClassifySemanticLayerDecidesFirst(t *testing.T) {
	snap := classifySnapshot(t)
	semantic := &stubStrategy{
		layer: LayerSemantic,
		opinion: &Opinion{Candidates: []Candidate{
			{EndpointID: "trend_analysis", Confidence: 0.82, Layer: LayerSemantic},
		}},
	}
	c := NewClassifier(semantic, nil)

	res := c.Classify(context.Background(), classifyInput(t, snap, "show market share"))

	require.False(t, res.IsRejected())
	assert.Equal(t, LayerSemantic, res.DecidedBy)
	assert.Equal(t, "trend_analysis", res.Chosen[0].EndpointID)
}

func TestClassifySemanticErrorFallsThrough(t *testing.T) {
	snap := classifySnapshot(t)
	semantic := &stubStrategy{layer: LayerSemantic, err: context.DeadlineExceeded}
	c := NewClassifier(semantic, nil)

	res := c.Classify(context.Background(), classifyInput(t, snap, "show market share for brand alpha"))

	require.False(t, res.IsRejected())
	assert.Equal(t, 1, semantic.calls)
	assert.Equal(t, LayerHybrid, res.DecidedBy)
}

func TestClassifySubFloorSemanticKeptAsHint(t *testing.T) {
	snap := classifySnapshot(t)
	semantic := &stubStrategy{
		layer: LayerSemantic,
		opinion: &Opinion{Candidates: []Candidate{
			{EndpointID: "trend_analysis", Confidence: 0.41, Layer: LayerSemantic},
		}},
	}
	c := NewClassifier(semantic, nil)

	res := c.Classify(context.Background(), classifyInput(t, snap, "something entirely unrelated"))

	require.True(t, res.IsRejected())
	require.NotEmpty(t, res.Rejection.Hints)
	assert.Equal(t, "trend_analysis", res.Rejection.Hints[0].EndpointID)
	assert.Equal(t, LayerSemantic, res.Rejection.Hints[0].Layer)
}

func TestClassifyDeterministic(t *testing.T) {
	snap := classifySnapshot(t)
	c := NewClassifier(nil, nil)
	in := classifyInput(t, snap, "demographic income profile and market share")

	first := c.Classify(context.Background(), in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Classify(context.Background(), in))
	}
}

func TestContainsPhraseWordBoundaries(t *testing.T) {
	assert.True(t, containsPhrase("rank areas by income", "rank"))
	assert.False(t, containsPhrase("franchise locations", "rank"))
	assert.True(t, containsPhrase("market share by area", "market share"))
	assert.False(t, containsPhrase("supermarket share", "market share"))
}
