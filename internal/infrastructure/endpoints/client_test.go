package endpoints

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eastgrand/geoinsight/internal/application/insight"
	"github.com/eastgrand/geoinsight/internal/domain/catalog"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

func testDescriptor() *catalog.Descriptor {
	return &catalog.Descriptor{
		ID:          "demographic_analysis",
		Domain:      "demographics",
		Path:        "/demographic-analysis",
		ScoreField:  "demographic_score",
		GeoIDFields: []string{"geo_id", "GEOID"},
	}
}

func TestClientCallParsesResponse(t *testing.T) {
	var received apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/demographic-analysis", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(apiResponse{
			Type: "demographic",
			Records: []map[string]interface{}{
				{"geo_id": "06001", "demographic_score": 82.1},
				{"GEOID": "06002", "demographic_score": 40.0},
				{"demographic_score": 11.0}, // no id, dropped
			},
			Statistics: map[string]float64{"mean": 61.05},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	ds, err := client.Call(context.Background(), testDescriptor(), &insight.EndpointRequest{
		QueryText:   "rank areas by income",
		FieldCodes:  []string{"MEDINC_CY"},
		TargetField: "MEDINC_CY",
		SampleSize:  500,
	})
	require.NoError(t, err)

	assert.Equal(t, "rank areas by income", received.QueryText)
	assert.Equal(t, []string{"MEDINC_CY"}, received.ResolvedFields)
	assert.Equal(t, 500, received.SampleSize)

	require.Len(t, ds.Records, 2, "rows without a resolvable geo id are dropped")
	assert.Equal(t, "06001", ds.Records[0].GeoID)
	assert.Equal(t, "06002", ds.Records[1].GeoID, "fallback id field resolves")
}

func TestClientCallNumericGeoIDAndDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{
			Type: "demographic",
			Records: []map[string]interface{}{
				{"geo_id": 90210, "DESCRIPTION": "Beverly Hills", "demographic_score": 82.1},
				{"geo_id": "06002", "demographic_score": 40.0},
			},
		})
	}))
	defer srv.Close()

	desc := testDescriptor()
	desc.DisplayNameFields = []string{"DESCRIPTION"}

	client := NewClient(srv.URL, nil)
	ds, err := client.Call(context.Background(), desc, &insight.EndpointRequest{QueryText: "income near beverly hills"})
	require.NoError(t, err)

	require.Len(t, ds.Records, 2, "a numeric id keeps its record")
	assert.Equal(t, "90210", ds.Records[0].GeoID)
	assert.Equal(t, "Beverly Hills", ds.Records[0].DisplayName)
	assert.Empty(t, ds.Records[1].DisplayName)
}

func TestClientCallServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Call(context.Background(), testDescriptor(), &insight.EndpointRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEndpointUnavailable))
}

func TestClientCallMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Call(context.Background(), testDescriptor(), &insight.EndpointRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedResponse))
}

func TestClientCallConnectionRefused(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", nil)
	_, err := client.Call(context.Background(), testDescriptor(), &insight.EndpointRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEndpointUnavailable))
}

func TestClientBreakerOpensAfterThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, WithBreakerConfig(BreakerConfig{
		FailureThreshold: 2,
		OpenInterval:     time.Hour,
	}))

	for i := 0; i < 2; i++ {
		_, err := client.Call(context.Background(), testDescriptor(), &insight.EndpointRequest{})
		require.True(t, errors.IsCode(err, errors.ErrCodeEndpointUnavailable))
	}

	_, err := client.Call(context.Background(), testDescriptor(), &insight.EndpointRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCircuitOpen), "third call is refused without hitting the wire")

	// A different endpoint id has its own breaker.
	other := testDescriptor()
	other.ID = "competitive_analysis"
	other.Path = "/competitive-analysis"
	_, err = client.Call(context.Background(), other, &insight.EndpointRequest{})
	assert.False(t, errors.IsCode(err, errors.ErrCodeCircuitOpen))
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, OpenInterval: time.Minute})
	now := time.Now()
	b.clock = func() time.Time { return now }

	require.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow(), "open after threshold")

	// Interval elapses: exactly one probe is admitted.
	now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "second probe refused while first is in flight")

	b.RecordSuccess()
	assert.True(t, b.Allow(), "closed after successful probe")
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, OpenInterval: time.Minute})
	now := time.Now()
	b.clock = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(2 * time.Minute)
	require.True(t, b.Allow())
	b.RecordFailure()

	assert.False(t, b.Allow(), "failed probe re-opens the breaker")
	now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow(), "next interval admits another probe")
}
