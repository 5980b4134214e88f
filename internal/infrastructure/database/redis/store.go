package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eastgrand/geoinsight/internal/application/insight"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
	insighttypes "github.com/eastgrand/geoinsight/pkg/types/insight"
)

// ResultStore shares settled insights between replicas, keyed by request
// fingerprint.  It implements insight.SecondLevelStore; only settled values
// are ever written, in-flight build sharing stays in-process.
type ResultStore struct {
	client *Client
	prefix string
	logger logging.Logger
}

var _ insight.SecondLevelStore = (*ResultStore)(nil)

func NewResultStore(client *Client, prefix string, log logging.Logger) *ResultStore {
	if prefix == "" {
		prefix = "geoinsight:"
	}
	return &ResultStore{client: client, prefix: prefix, logger: log.Named("result_store")}
}

func (s *ResultStore) key(fingerprint string) string {
	return s.prefix + "insight:" + fingerprint
}

// Get returns the stored insight for fingerprint, reporting absence without
// error.
func (s *ResultStore) Get(ctx context.Context, fingerprint string) (*insighttypes.Insight, bool, error) {
	raw, err := s.client.Raw().Get(ctx, s.key(fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheError, "result store read failed")
	}

	var ins insighttypes.Insight
	if err := json.Unmarshal(raw, &ins); err != nil {
		// A corrupt value is treated as a miss; it will be overwritten.
		s.logger.Warn("discarding corrupt cached insight",
			logging.String("fingerprint", fingerprint), logging.Err(err))
		return nil, false, nil
	}
	return &ins, true, nil
}

// Set stores a settled insight with the given TTL.
func (s *ResultStore) Set(ctx context.Context, fingerprint string, value *insighttypes.Insight, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode insight")
	}
	if err := s.client.Raw().Set(ctx, s.key(fingerprint), raw, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "result store write failed")
	}
	return nil
}

// Invalidate removes one fingerprint's stored value.
func (s *ResultStore) Invalidate(ctx context.Context, fingerprint string) error {
	if err := s.client.Raw().Del(ctx, s.key(fingerprint)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "result store delete failed")
	}
	return nil
}
