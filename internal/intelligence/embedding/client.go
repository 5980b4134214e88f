// Package embedding calls an external embedding service to turn query
// text into vectors for the semantic classification layer.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/eastgrand/geoinsight/internal/config"
	"github.com/eastgrand/geoinsight/internal/domain/classify"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

const (
	defaultTimeout  = 5 * time.Second
	maxResponseBody = 1 << 20

	// availabilityBackoff is how long the client reports itself
	// unavailable after a failed call, so classification can skip the
	// semantic layer instead of paying the timeout on every query.
	availabilityBackoff = 30 * time.Second
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Client is an HTTP client for an embedding service exposing a
// POST /embed endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     logging.Logger

	// unhealthyUntil holds a unix-nano deadline before which Available
	// reports false.
	unhealthyUntil atomic.Int64
	now            func() time.Time
}

var _ classify.Embedder = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a client from configuration.
func NewClient(cfg *config.EmbeddingConfig, logger logging.Logger, opts ...Option) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "embedding base URL is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Available reports whether the service is worth calling right now.
func (c *Client) Available() bool {
	return c.now().UnixNano() >= c.unhealthyUntil.Load()
}

// Embed returns the vector for a single piece of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: []string{text}})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build embed request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.markUnhealthy()
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "embedding service unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.markUnhealthy()
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to read embedding response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.markUnhealthy()
		return nil, errors.Newf(errors.ErrCodeExternalService,
			"embedding service returned status %d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode embedding response")
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		return nil, errors.New(errors.ErrCodeExternalService, "embedding response contained no vectors")
	}

	c.unhealthyUntil.Store(0)
	return parsed.Embeddings[0], nil
}

func (c *Client) markUnhealthy() {
	until := c.now().Add(availabilityBackoff)
	c.unhealthyUntil.Store(until.UnixNano())
	c.logger.Warn("embedding service marked unavailable",
		logging.String("until", until.Format(time.RFC3339)))
}
