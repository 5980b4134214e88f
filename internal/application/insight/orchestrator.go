package insight

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eastgrand/geoinsight/internal/domain/catalog"
	"github.com/eastgrand/geoinsight/internal/domain/dataset"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

// EndpointRequest is the analysis payload sent to every routed endpoint.
type EndpointRequest struct {
	QueryText   string
	FieldCodes  []string
	TargetField string
	SampleSize  int
	Metadata    map[string]string
}

// EndpointCaller executes a single analysis call against one endpoint.
// Implemented by the HTTP endpoint client (which adds circuit breaking);
// tests substitute function-field fakes.
type EndpointCaller interface {
	Call(ctx context.Context, desc *catalog.Descriptor, req *EndpointRequest) (*dataset.EndpointDataset, error)
}

// EndpointFailure records one endpoint's terminal failure within a batch.
type EndpointFailure struct {
	EndpointID string
	Err        error
	Attempts   int
}

// BatchResult is the settled outcome of one orchestrated batch.
type BatchResult struct {
	// Datasets holds the successful result sets, in routed endpoint order.
	Datasets []*dataset.EndpointDataset

	// Failed holds the endpoints that exhausted their retry budget.
	Failed []EndpointFailure

	// Attempts maps endpoint id to the number of attempts made.
	Attempts map[string]int

	Elapsed time.Duration
}

// Degraded reports whether any endpoint in the batch failed.
func (b *BatchResult) Degraded() bool { return len(b.Failed) > 0 }

const (
	defaultMaxRetries   = 2
	defaultRetryBackoff = 200 * time.Millisecond
	defaultCallTimeout  = 30 * time.Second
)

// Orchestrator fans a request out to the routed endpoints concurrently and
// waits for every call to settle before returning, so the merge never runs
// against a partially-settled batch.  Individual failures degrade the batch;
// only a batch with zero successes is an error.
type Orchestrator struct {
	caller  EndpointCaller
	logger  logging.Logger
	metrics Metrics
}

func NewOrchestrator(caller EndpointCaller, logger logging.Logger, metrics Metrics) *Orchestrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Orchestrator{caller: caller, logger: logger, metrics: metrics}
}

// Execute runs one batch.  Cancellation of ctx propagates into every
// in-flight call.
func (o *Orchestrator) Execute(ctx context.Context, descriptors []*catalog.Descriptor, req *EndpointRequest) (*BatchResult, error) {
	if len(descriptors) == 0 {
		return nil, errors.New(errors.ErrCodeInternal, "orchestrator invoked with no endpoints")
	}

	start := time.Now()
	type outcome struct {
		ds       *dataset.EndpointDataset
		err      error
		attempts int
	}
	outcomes := make([]outcome, len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(descriptors))
	for i, desc := range descriptors {
		i, desc := i, desc
		g.Go(func() error {
			ds, attempts, err := o.callWithRetry(gctx, desc, req)
			outcomes[i] = outcome{ds: ds, err: err, attempts: attempts}
			// Failures are recorded, not returned: returning an error would
			// cancel the sibling calls and the batch must settle fully.
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{
		Attempts: make(map[string]int, len(descriptors)),
		Elapsed:  time.Since(start),
	}
	for i, desc := range descriptors {
		out := outcomes[i]
		result.Attempts[desc.ID] = out.attempts
		if out.err != nil {
			o.logger.Warn("endpoint call failed, batch degraded",
				logging.String("endpoint", desc.ID),
				logging.Int("attempts", out.attempts),
				logging.Err(out.err))
			result.Failed = append(result.Failed, EndpointFailure{
				EndpointID: desc.ID,
				Err:        out.err,
				Attempts:   out.attempts,
			})
			continue
		}
		result.Datasets = append(result.Datasets, out.ds)
	}

	if len(result.Datasets) == 0 {
		ids := make([]string, 0, len(result.Failed))
		for _, f := range result.Failed {
			ids = append(ids, f.EndpointID)
		}
		sort.Strings(ids)
		return nil, errors.Newf(errors.ErrCodeAllEndpointsFailed,
			"all routed endpoints failed: %s", strings.Join(ids, ", ")).
			WithCause(result.Failed[0].Err)
	}
	if result.Degraded() {
		o.metrics.BatchDegraded()
	}
	return result, nil
}

// callWithRetry runs one endpoint's call with its per-descriptor timeout and
// a bounded exponential backoff retry budget.
func (o *Orchestrator) callWithRetry(ctx context.Context, desc *catalog.Descriptor, req *EndpointRequest) (*dataset.EndpointDataset, int, error) {
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	retries := desc.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	backoff := desc.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			break
		}
		attempts++

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		ds, err := o.caller.Call(callCtx, desc, req)
		cancel()
		o.metrics.EndpointCall(desc.ID, time.Since(start), err == nil)

		if err == nil {
			return ds, attempts, nil
		}
		lastErr = err

		// An open breaker means the endpoint is known-bad right now;
		// hammering it with retries defeats the breaker's point.
		if errors.IsCode(err, errors.ErrCodeCircuitOpen) {
			break
		}

		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, attempts, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "batch cancelled during retry backoff")
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, attempts, errors.Wrap(lastErr, errors.ErrCodeEndpointUnavailable, "endpoint "+desc.ID+" unavailable")
}
