package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/eastgrand/geoinsight/pkg/types/insight"
)

// QueryOverrides are the caller's explicit routing overrides.
type QueryOverrides struct {
	EndpointID  string `json:"endpoint_id,omitempty"`
	TargetField string `json:"target_field,omitempty"`
	SampleSize  int    `json:"sample_size,omitempty"`
}

// QueryRequest is one natural-language question.
type QueryRequest struct {
	Text      string         `json:"text"`
	Persona   string         `json:"persona,omitempty"`
	Overrides QueryOverrides `json:"overrides,omitempty"`
}

// HistoryEntry is one past query.
type HistoryEntry struct {
	ID          string        `json:"id"`
	Fingerprint string        `json:"fingerprint"`
	QueryText   string        `json:"queryText"`
	Persona     string        `json:"persona,omitempty"`
	Endpoints   []string      `json:"endpoints"`
	Status      string        `json:"status"`
	CacheHit    bool          `json:"cacheHit"`
	Elapsed     time.Duration `json:"elapsedNs"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// HistoryPage is one page of past queries.
type HistoryPage struct {
	Entries []HistoryEntry `json:"entries"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// Endpoint describes one configured analysis endpoint.
type Endpoint struct {
	ID       string   `json:"id"`
	Domain   string   `json:"domain"`
	Keywords []string `json:"keywords"`
}

// EndpointList is the active endpoint catalog.
type EndpointList struct {
	ConfigVersion string     `json:"configVersion"`
	Endpoints     []Endpoint `json:"endpoints"`
}

// Query runs one natural-language question through the pipeline.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*insight.Insight, error) {
	var out insight.Insight
	if err := c.do(ctx, http.MethodPost, "/api/v1/insights/query", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists past queries, newest first.
func (c *Client) History(ctx context.Context, limit, offset int) (*HistoryPage, error) {
	path := fmt.Sprintf("/api/v1/insights/history?limit=%d&offset=%d", limit, offset)
	var out HistoryPage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Endpoints fetches the active endpoint catalog.
func (c *Client) Endpoints(ctx context.Context) (*EndpointList, error) {
	var out EndpointList
	if err := c.do(ctx, http.MethodGet, "/api/v1/endpoints", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
