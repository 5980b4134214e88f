// Package kafka publishes insight lifecycle events for downstream
// collaborators, primarily the narrative generation service.
package kafka

import "time"

// Topics carrying insight lifecycle events.
const (
	TopicInsightCompleted = "geoinsight.insight.completed"
	TopicInsightRejected  = "geoinsight.insight.rejected"
)

// CompletedEvent announces a finished insight.  The narrative collaborator
// fetches the full result by fingerprint from the shared store; the envelope
// carries only what it needs to decide whether to react.
type CompletedEvent struct {
	InsightID     string    `json:"insightId"`
	Fingerprint   string    `json:"fingerprint"`
	Query         string    `json:"query"`
	Persona       string    `json:"persona,omitempty"`
	Status        string    `json:"status"`
	Endpoints     []string  `json:"endpoints"`
	RecordCount   int       `json:"recordCount"`
	ConfigVersion string    `json:"configVersion"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// RejectedEvent announces an out-of-scope query, for feedback loops that
// mine rejections for missing aliases and endpoints.
type RejectedEvent struct {
	Query      string    `json:"query"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejectedAt"`
}
