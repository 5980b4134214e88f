package dataset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eastgrand/geoinsight/pkg/errors"
)

func demographicSet() *EndpointDataset {
	return &EndpointDataset{
		EndpointID: "demographic_analysis",
		Records: []Record{
			{GeoID: "06001", Attributes: map[string]interface{}{"demographic_score": 72.5, "TOTPOP_CY": 48200.0}},
			{GeoID: "06002", Attributes: map[string]interface{}{"demographic_score": 55.0, "TOTPOP_CY": 12100.0}},
			{GeoID: "06003", Attributes: map[string]interface{}{"demographic_score": 91.3, "TOTPOP_CY": 60900.0}},
		},
	}
}

func competitiveSet() *EndpointDataset {
	return &EndpointDataset{
		EndpointID: "competitive_analysis",
		Records: []Record{
			{GeoID: "06002", Attributes: map[string]interface{}{"competitive_score": 40.0}},
			{GeoID: "06003", Attributes: map[string]interface{}{"competitive_score": 88.0}},
			{GeoID: "06009", Attributes: map[string]interface{}{"competitive_score": 12.0}},
		},
	}
}

func TestMergeUnionJoin(t *testing.T) {
	merged, err := Merge([]*EndpointDataset{demographicSet(), competitiveSet()})
	require.NoError(t, err)

	// Union of keys: 06001..06003 plus 06009.
	require.Len(t, merged.Records, 4)
	assert.Equal(t, []string{"demographic_analysis", "competitive_analysis"}, merged.EndpointIDs)

	byID := make(map[string]*JoinedRecord)
	for _, r := range merged.Records {
		byID[r.GeoID] = r
	}

	// 06002 present in both.
	both := byID["06002"]
	require.NotNil(t, both)
	assert.Equal(t, []string{"competitive_analysis", "demographic_analysis"}, both.PresentIn())
	assert.InDelta(t, 1.0, both.Completeness(2), 1e-9)

	// 06001 only demographic: the competitive side stays absent, not zeroed.
	only := byID["06001"]
	require.NotNil(t, only)
	assert.InDelta(t, 0.5, only.Completeness(2), 1e-9)
	_, hasCompetitive := only.ByEndpoint["competitive_analysis"]
	assert.False(t, hasCompetitive)
}

func TestMergeRecordsSortedByGeoID(t *testing.T) {
	merged, err := Merge([]*EndpointDataset{competitiveSet(), demographicSet()})
	require.NoError(t, err)

	var ids []string
	for _, r := range merged.Records {
		ids = append(ids, r.GeoID)
	}
	assert.Equal(t, []string{"06001", "06002", "06003", "06009"}, ids)
}

func TestMergeSingleDataset(t *testing.T) {
	merged, err := Merge([]*EndpointDataset{demographicSet()})
	require.NoError(t, err)
	require.Len(t, merged.Records, 3)
	for _, r := range merged.Records {
		assert.InDelta(t, 1.0, r.Completeness(1), 1e-9)
	}
}

func TestMergeKeyMismatch(t *testing.T) {
	disjoint := &EndpointDataset{
		EndpointID: "trend_analysis",
		Records: []Record{
			{GeoID: "36061", Attributes: map[string]interface{}{"trend_score": 10.0}},
		},
	}

	_, err := Merge([]*EndpointDataset{demographicSet(), disjoint})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMergeKeyMismatch))

	var mismatch *MergeKeyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "demographic_analysis", mismatch.FirstEndpointID)
	assert.Equal(t, "trend_analysis", mismatch.SecondEndpointID)
	// The unmerged sets ride along for side-by-side presentation.
	require.Len(t, mismatch.Unmerged, 2)
	assert.Len(t, mismatch.Unmerged[0].Records, 3)
}

func TestMergeNoGeoIDs(t *testing.T) {
	empty := &EndpointDataset{EndpointID: "demographic_analysis", Records: []Record{{GeoID: ""}}}
	_, err := Merge([]*EndpointDataset{empty})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoGeoID))
}

func TestResolveGeoID(t *testing.T) {
	attrs := map[string]interface{}{
		"geo_id":   nil,
		"GEOID":    "06075",
		"zip_code": "94110",
	}

	id, ok := ResolveGeoID(attrs, []string{"geo_id", "GEOID", "zip_code"})
	require.True(t, ok)
	assert.Equal(t, "06075", id, "first non-null candidate wins")

	_, ok = ResolveGeoID(attrs, []string{"missing", "geo_id"})
	assert.False(t, ok)

	_, ok = ResolveGeoID(map[string]interface{}{"geo_id": ""}, []string{"geo_id"})
	assert.False(t, ok, "empty string is not an id")
}

func TestResolveGeoIDNumericValues(t *testing.T) {
	// JSON numbers decode to float64; a numeric postal code is still an id.
	id, ok := ResolveGeoID(map[string]interface{}{"zip": float64(90210)}, []string{"zip"})
	require.True(t, ok)
	assert.Equal(t, "90210", id)

	id, ok = ResolveGeoID(map[string]interface{}{"zip": json.Number("10001")}, []string{"zip"})
	require.True(t, ok)
	assert.Equal(t, "10001", id)

	id, ok = ResolveGeoID(map[string]interface{}{"tract": 6075.02}, []string{"tract"})
	require.True(t, ok)
	assert.Equal(t, "6075.02", id, "fractional ids keep their decimal form")

	id, ok = ResolveGeoID(map[string]interface{}{"fips": int64(36061)}, []string{"fips"})
	require.True(t, ok)
	assert.Equal(t, "36061", id)

	_, ok = ResolveGeoID(map[string]interface{}{"geo_id": true}, []string{"geo_id"})
	assert.False(t, ok, "non-stringable types are skipped")
}

func TestMergeCarriesDisplayName(t *testing.T) {
	named := &EndpointDataset{
		EndpointID: "demographic_analysis",
		Records: []Record{
			{GeoID: "06001", DisplayName: "Alameda County", Attributes: map[string]interface{}{"demographic_score": 72.5}},
		},
	}
	unnamed := &EndpointDataset{
		EndpointID: "competitive_analysis",
		Records: []Record{
			{GeoID: "06001", Attributes: map[string]interface{}{"competitive_score": 40.0}},
		},
	}

	merged, err := Merge([]*EndpointDataset{unnamed, named})
	require.NoError(t, err)
	require.Len(t, merged.Records, 1)
	assert.Equal(t, "Alameda County", merged.Records[0].DisplayName,
		"first non-empty name among contributors wins")
}

func TestResolveDisplayName(t *testing.T) {
	attrs := map[string]interface{}{
		"DESCRIPTION": "",
		"NAME":        "Mission District",
		"TOTPOP_CY":   48200.0,
	}
	assert.Equal(t, "Mission District", ResolveDisplayName(attrs, []string{"DESCRIPTION", "NAME"}))
	assert.Empty(t, ResolveDisplayName(attrs, []string{"DESCRIPTION", "TOTPOP_CY"}),
		"only non-empty strings qualify")
	assert.Empty(t, ResolveDisplayName(attrs, nil))
}
