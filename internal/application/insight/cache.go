package insight

import (
	"context"
	"sync"
	"time"

	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
	insighttypes "github.com/eastgrand/geoinsight/pkg/types/insight"
)

// SecondLevelStore is the optional shared result store behind the in-process
// cache.  Only settled values go there; in-flight build sharing stays inside
// one process.  Implemented by the redis result store.
type SecondLevelStore interface {
	Get(ctx context.Context, fingerprint string) (*insighttypes.Insight, bool, error)
	Set(ctx context.Context, fingerprint string, value *insighttypes.Insight, ttl time.Duration) error
}

// BuildFunc produces the insight for a fingerprint.  Run at most once per
// fingerprint at a time, however many requests are waiting.
type BuildFunc func(ctx context.Context) (*insighttypes.Insight, error)

type cacheEntry struct {
	ready chan struct{}

	// Written once before ready closes, read-only after.
	value *insighttypes.Insight
	err   error

	configVersion string
	expiresAt     time.Time
}

func (e *cacheEntry) settled() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// ResultCache deduplicates identical requests by fingerprint.  The first
// request for a fingerprint installs an entry and builds; concurrent
// requests attach to that entry and share its outcome.  Settled successes
// live for the TTL and die early when the configuration version moves; a
// settled failure is evicted immediately so the next request retries.
//
// The mutex guards only installation and lookup, never a build.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry

	ttl     time.Duration
	store   SecondLevelStore
	logger  logging.Logger
	metrics Metrics
	clock   func() time.Time
}

// CacheOption configures optional cache collaborators.
type CacheOption func(*ResultCache)

// WithSecondLevelStore attaches a shared settled-value store.
func WithSecondLevelStore(store SecondLevelStore) CacheOption {
	return func(c *ResultCache) { c.store = store }
}

// WithCacheMetrics attaches hit/miss counters.
func WithCacheMetrics(m Metrics) CacheOption {
	return func(c *ResultCache) { c.metrics = m }
}

func NewResultCache(ttl time.Duration, logger logging.Logger, opts ...CacheOption) *ResultCache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &ResultCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		logger:  logger,
		metrics: NopMetrics(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrBuild returns the cached insight for fingerprint or builds it.  The
// bool result reports whether the value came from cache (in-process or
// second level) rather than from this call's build.
func (c *ResultCache) GetOrBuild(ctx context.Context, fingerprint, configVersion string, build BuildFunc) (*insighttypes.Insight, bool, error) {
	c.mu.Lock()
	if e, ok := c.entries[fingerprint]; ok && c.usable(e, configVersion) {
		c.mu.Unlock()
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, false, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "cancelled waiting for in-flight build")
		}
		if e.err != nil {
			return nil, false, e.err
		}
		// Attaching to an in-flight build and reading a settled entry both
		// count as hits: either way this request ran no pipeline.
		c.metrics.CacheHit()
		return e.value, true, nil
	}

	// Miss: install an entry before unlocking so exactly one build wins.
	entry := &cacheEntry{ready: make(chan struct{}), configVersion: configVersion}
	c.entries[fingerprint] = entry
	c.mu.Unlock()
	c.metrics.CacheMiss()

	// Second-level lookup happens outside the lock; a shared settled value
	// satisfies the entry without running the build.
	if c.store != nil {
		if v, ok, err := c.store.Get(ctx, fingerprint); err != nil {
			c.logger.Warn("second-level cache read failed", logging.Err(err))
		} else if ok && v.ConfigVersion == configVersion {
			c.settle(fingerprint, entry, v, nil)
			c.metrics.CacheHit()
			return v, true, nil
		}
	}

	value, err := build(ctx)
	c.settle(fingerprint, entry, value, err)
	if err != nil {
		return nil, false, err
	}

	if c.store != nil {
		if serr := c.store.Set(ctx, fingerprint, value, c.ttl); serr != nil {
			c.logger.Warn("second-level cache write failed", logging.Err(serr))
		}
	}
	return value, false, nil
}

// settle publishes the build outcome to all attached waiters.  Failed builds
// are evicted so the next request retries instead of replaying the error for
// a full TTL.
func (c *ResultCache) settle(fingerprint string, e *cacheEntry, value *insighttypes.Insight, err error) {
	c.mu.Lock()
	e.value = value
	e.err = err
	e.expiresAt = c.clock().Add(c.ttl)
	if err != nil {
		// Evict only if this entry is still the installed one.
		if cur, ok := c.entries[fingerprint]; ok && cur == e {
			delete(c.entries, fingerprint)
		}
	}
	c.mu.Unlock()
	close(e.ready)
}

// usable reports whether an installed entry may serve the caller: matching
// configuration version and, if settled, not expired.  In-flight entries are
// always usable; their expiry starts at settlement.
func (c *ResultCache) usable(e *cacheEntry, configVersion string) bool {
	if e.configVersion != configVersion {
		return false
	}
	if !e.settled() {
		return true
	}
	return c.clock().Before(e.expiresAt)
}

// InvalidateAll drops every settled entry.  Called on registry reload;
// in-flight builds keep their waiters and settle normally, but are removed
// from the map so new requests rebuild under the new version.
func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
	c.logger.Info("result cache invalidated")
}

// Len returns the number of installed entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
