// Package insight defines the stable result shape handed to downstream
// consumers (visualization, narrative generation, SDK clients).  Internal
// pipeline types are converted into these at the service boundary so
// downstream contracts survive internal refactors.
package insight

import "time"

// Status of a completed insight.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Degradation reasons attached to a degraded insight.
const (
	ReasonEndpointFailed      = "endpoint-failed"
	ReasonMergeKeyMismatch    = "merge-key-mismatch"
	ReasonInvalidFieldMapping = "invalid-field-mapping"
)

// RankedRecord is one geography in the fused ranking.  Rank is 1-based.
type RankedRecord struct {
	GeoID        string             `json:"geoId"`
	DisplayName  string             `json:"displayName,omitempty"`
	Rank         int                `json:"rank"`
	Score        float64            `json:"score"`
	Subscores    map[string]float64 `json:"subscores,omitempty"`
	Completeness float64            `json:"completeness"`
}

// GeoRecord is one raw geography row, used for side-by-side presentation
// when result sets could not be joined.
type GeoRecord struct {
	GeoID       string                 `json:"geoId"`
	DisplayName string                 `json:"displayName,omitempty"`
	Attributes  map[string]interface{} `json:"attributes"`
}

// EndpointRecords is one endpoint's unmerged result set.
type EndpointRecords struct {
	EndpointID string      `json:"endpointId"`
	Records    []GeoRecord `json:"records"`
}

// EndpointSummary describes one endpoint's part in an insight.
type EndpointSummary struct {
	EndpointID string  `json:"endpointId"`
	Confidence float64 `json:"confidence,omitempty"`
	Layer      string  `json:"layer,omitempty"`
	Records    int     `json:"records"`
	Failed     bool    `json:"failed,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ConceptSummary is one resolved query concept.
type ConceptSummary struct {
	Surface    string   `json:"surface"`
	FieldCodes []string `json:"fieldCodes"`
	Kind       string   `json:"kind"`
}

// Insight is the complete result of one query.
type Insight struct {
	ID            string `json:"id"`
	Query         string `json:"query"`
	Persona       string `json:"persona,omitempty"`
	ConfigVersion string `json:"configVersion"`
	Fingerprint   string `json:"fingerprint"`

	Status          string   `json:"status"`
	DegradedReasons []string `json:"degradedReasons,omitempty"`

	Concepts  []ConceptSummary  `json:"concepts,omitempty"`
	Endpoints []EndpointSummary `json:"endpoints"`

	// Records is the fused ranking; empty when SideBySide is set.
	Records []RankedRecord `json:"records,omitempty"`

	// SideBySide carries the unmerged per-endpoint sets when the result
	// sets shared no geography and could not be joined.
	SideBySide []EndpointRecords `json:"sideBySide,omitempty"`

	Complexity  float64       `json:"complexity"`
	GeneratedAt time.Time     `json:"generatedAt"`
	Elapsed     time.Duration `json:"elapsedNs"`

	// CacheHit is set per response, not stored.
	CacheHit bool `json:"cacheHit,omitempty"`
}

// Degraded reports whether the insight carries a degradation.
func (i *Insight) Degraded() bool { return i.Status == StatusDegraded }
