// Package milvus adapts the Milvus vector database into the exemplar
// index consumed by the semantic classification layer.
package milvus

import (
	"context"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"

	"github.com/eastgrand/geoinsight/internal/config"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

// milvusNewClient is a variable to allow mocking in tests.
var milvusNewClient = client.NewClient

const connectTimeout = 10 * time.Second

// Client wraps a Milvus connection.
type Client struct {
	mc     client.Client
	logger logging.Logger
}

// NewClient dials Milvus at the configured address.
func NewClient(ctx context.Context, cfg *config.MilvusConfig, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg == nil || cfg.Addr == "" {
		return nil, errors.New(errors.ErrCodeValidation, "milvus address is required")
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mc, err := milvusNewClient(dialCtx, client.Config{Address: cfg.Addr})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to milvus").WithDetail(cfg.Addr)
	}

	logger.Info("connected to milvus", logging.String("addr", cfg.Addr))
	return &Client{mc: mc, logger: logger}, nil
}

// Raw exposes the underlying SDK client.
func (c *Client) Raw() client.Client { return c.mc }

// Close releases the connection.
func (c *Client) Close() error {
	if c.mc == nil {
		return nil
	}
	return c.mc.Close()
}
