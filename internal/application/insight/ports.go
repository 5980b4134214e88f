package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/eastgrand/geoinsight/internal/domain/classify"
	insighttypes "github.com/eastgrand/geoinsight/pkg/types/insight"
)

// HistoryEntry is the persisted trace of one completed request.
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

// HistoryRecorder persists request traces.  Implemented by the postgres
// repository; recording is best-effort and never fails a request.
type HistoryRecorder interface {
	Record(ctx context.Context, entry *HistoryEntry) error
}

// EventPublisher announces insight outcomes to downstream consumers such as
// the narrative collaborator.  Implemented by the kafka producer;
// fire-and-forget, failures are logged.
type EventPublisher interface {
	InsightCompleted(ctx context.Context, ins *insighttypes.Insight) error
	InsightRejected(ctx context.Context, queryText, reason string) error
}

// RejectionError carries the structured rejection through the error chain so
// transports can render the reason and the best sub-floor candidates.
// Retrieve with errors.As; the wrapping application error carries RTE_001.
type RejectionError struct {
	Rejection *classify.Rejection
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("query rejected: %s", e.Rejection.Reason)
}
