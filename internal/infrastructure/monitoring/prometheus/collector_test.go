package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.ClassificationDecided("hybrid")
	c.ClassificationDecided("hybrid")
	c.ClassificationDecided("keyword")
	c.ClassificationRejected()
	c.CacheHit()
	c.CacheMiss()
	c.CacheMiss()
	c.BatchDegraded()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.classificationDecided.WithLabelValues("hybrid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.classificationDecided.WithLabelValues("keyword")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.classificationRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchesDegraded))
}

func TestCollectorEndpointCallLabels(t *testing.T) {
	c := NewCollector()

	c.EndpointCall("demographic_insights", 120*time.Millisecond, true)
	c.EndpointCall("demographic_insights", 80*time.Millisecond, true)
	c.EndpointCall("competitive_analysis", 2*time.Second, false)

	// one series per endpoint/success combination
	assert.Equal(t, 2, testutil.CollectAndCount(c.endpointCallDuration))
}

func TestHandlerServesRegistry(t *testing.T) {
	c := NewCollector()
	c.CacheHit()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "geoinsight_cache_hits_total")
}
