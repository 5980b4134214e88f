package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/eastgrand/geoinsight/internal/application/insight"
	"github.com/eastgrand/geoinsight/internal/domain/catalog"
	"github.com/eastgrand/geoinsight/internal/domain/dataset"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

// apiRequest is the analysis service's request body.
type apiRequest struct {
	QueryText      string            `json:"queryText"`
	ResolvedFields []string          `json:"resolvedFields,omitempty"`
	TargetVariable string            `json:"targetVariable,omitempty"`
	SampleSize     int               `json:"sampleSize,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// apiResponse is the analysis service's response body.  Records carry raw
// attribute maps; the geographic id is resolved client-side through the
// descriptor's candidate fields.
type apiResponse struct {
	Type                   string                   `json:"type"`
	Records                []map[string]interface{} `json:"records"`
	Statistics             map[string]float64       `json:"statistics,omitempty"`
	DeclaredTargetVariable string                   `json:"declaredTargetVariable,omitempty"`
}

// maxResponseBody caps how much of an endpoint response is read; analysis
// batches are bounded, anything beyond this is a misbehaving endpoint.
const maxResponseBody = 64 << 20

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBreakerConfig tunes the per-endpoint circuit breakers.
func WithBreakerConfig(cfg BreakerConfig) Option {
	return func(c *Client) { c.breakerCfg = cfg }
}

// Client calls the remote analysis endpoints over HTTP.  It implements
// insight.EndpointCaller and maintains one circuit breaker per endpoint id;
// a breaker trips on connection errors, 5xx statuses, and malformed bodies
// alike, since all three mean the endpoint cannot currently serve.
type Client struct {
	baseURL    string
	http       *http.Client
	breakerCfg BreakerConfig
	logger     logging.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

var _ insight.EndpointCaller = (*Client)(nil)

func NewClient(baseURL string, logger logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 60 * time.Second},
		logger:   logger.Named("endpoints"),
		breakers: make(map[string]*Breaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call executes one analysis request.  The orchestrator supplies the
// per-attempt context deadline and owns retries; Call itself makes exactly
// one HTTP attempt.
func (c *Client) Call(ctx context.Context, desc *catalog.Descriptor, req *insight.EndpointRequest) (*dataset.EndpointDataset, error) {
	br := c.breakerFor(desc.ID)
	if !br.Allow() {
		return nil, errors.Newf(errors.ErrCodeCircuitOpen, "circuit open for endpoint %s", desc.ID)
	}

	ds, err := c.call(ctx, desc, req)
	if err != nil {
		br.RecordFailure()
		return nil, err
	}
	br.RecordSuccess()
	return ds, nil
}

func (c *Client) call(ctx context.Context, desc *catalog.Descriptor, req *insight.EndpointRequest) (*dataset.EndpointDataset, error) {
	payload, err := json.Marshal(apiRequest{
		QueryText:      req.QueryText,
		ResolvedFields: req.FieldCodes,
		TargetVariable: req.TargetField,
		SampleSize:     req.SampleSize,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode analysis request")
	}

	url := c.baseURL + desc.Path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build analysis request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEndpointUnavailable,
			fmt.Sprintf("endpoint %s unreachable", desc.ID))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEndpointUnavailable,
			fmt.Sprintf("endpoint %s response read failed", desc.ID))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf(errors.ErrCodeEndpointUnavailable,
			"endpoint %s returned status %d", desc.ID, resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMalformedResponse,
			fmt.Sprintf("endpoint %s returned a malformed body", desc.ID))
	}

	return c.toDataset(desc, &parsed), nil
}

// toDataset resolves each raw record's geographic id and drops rows where no
// candidate id field yields one.
func (c *Client) toDataset(desc *catalog.Descriptor, resp *apiResponse) *dataset.EndpointDataset {
	records := make([]dataset.Record, 0, len(resp.Records))
	dropped := 0
	for _, attrs := range resp.Records {
		geoID, ok := dataset.ResolveGeoID(attrs, desc.GeoIDFields)
		if !ok {
			dropped++
			continue
		}
		records = append(records, dataset.Record{
			GeoID:       geoID,
			DisplayName: dataset.ResolveDisplayName(attrs, desc.DisplayNameFields),
			Attributes:  attrs,
		})
	}
	if dropped > 0 {
		c.logger.Debug("dropped records without a resolvable geographic id",
			logging.String("endpoint", desc.ID),
			logging.Int("dropped", dropped))
	}
	return &dataset.EndpointDataset{EndpointID: desc.ID, Records: records}
}

func (c *Client) breakerFor(endpointID string) *Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	br, ok := c.breakers[endpointID]
	if !ok {
		br = NewBreaker(c.breakerCfg)
		c.breakers[endpointID] = br
	}
	return br
}
