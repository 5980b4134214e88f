// Package query defines the inbound Query value and the two pure functions
// applied to it before classification: complexity scoring and concept
// resolution.  Everything in this package is deterministic over
// (query text, registry snapshot version) and performs no I/O.
package query

import "strings"

// Overrides are the caller's explicit routing overrides.  An endpoint
// override always wins over classification.
type Overrides struct {
	// EndpointID forces routing to one endpoint, bypassing classification.
	EndpointID string `json:"endpoint_id,omitempty"`

	// TargetField pins the analysis target variable.
	TargetField string `json:"target_field,omitempty"`

	// SampleSize caps the records an endpoint should consider; zero means
	// endpoint default.
	SampleSize int `json:"sample_size,omitempty"`
}

// IsZero reports whether no override is set.
func (o Overrides) IsZero() bool {
	return o.EndpointID == "" && o.TargetField == "" && o.SampleSize == 0
}

// Query is one inbound natural-language request.  Created per request,
// immutable afterwards, discarded at response time.
type Query struct {
	// Text is the raw natural-language question.
	Text string `json:"text"`

	// Persona optionally biases downstream presentation; it participates in
	// the cache fingerprint because different personas may receive
	// differently-shaped responses.
	Persona string `json:"persona,omitempty"`

	Overrides Overrides `json:"overrides,omitempty"`
}

// Normalized returns the canonical form of the query text used for matching
// and fingerprinting: lower-cased, whitespace collapsed.
func (q Query) Normalized() string {
	return NormalizeText(q.Text)
}

// NormalizeText lower-cases s and collapses all interior whitespace runs to
// single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
