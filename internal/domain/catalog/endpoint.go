// Package catalog defines the static analysis-endpoint catalog: one
// Descriptor per remote analysis capability, loaded from the registry
// document and immutable for the lifetime of a snapshot.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// Descriptor is a static catalog entry for one remote analysis endpoint.
// Instances are owned by a registry snapshot and never mutated; hot reload
// replaces the whole catalog.
type Descriptor struct {
	// ID uniquely names the endpoint, e.g. "demographic_analysis".
	ID string `mapstructure:"id" yaml:"id" json:"id"`

	// Domain groups endpoints with related vocabulary, e.g. "demographics",
	// "competitive".  The classifier's co-selection trigger fires only for
	// candidates from distinct domains.
	Domain string `mapstructure:"domain" yaml:"domain" json:"domain"`

	// Path is the request path on the analysis service.
	Path string `mapstructure:"path" yaml:"path" json:"path"`

	// Keywords feed the keyword-fallback classification layer.
	Keywords []string `mapstructure:"keywords" yaml:"keywords" json:"keywords"`

	// ScoreField is the endpoint's declared primary output score field.
	ScoreField string `mapstructure:"score_field" yaml:"score_field" json:"score_field"`

	// FallbackScoreFields are consulted in order when ScoreField is absent
	// from a record.
	FallbackScoreFields []string `mapstructure:"fallback_score_fields" yaml:"fallback_score_fields" json:"fallback_score_fields"`

	// GeoIDFields lists candidate geographic-id attribute names in priority
	// order; the merger takes the first non-null per record.
	GeoIDFields []string `mapstructure:"geo_id_fields" yaml:"geo_id_fields" json:"geo_id_fields"`

	// DisplayNameFields lists candidate human-readable geography name
	// attributes in priority order.  Optional; records without one simply
	// carry no display name.
	DisplayNameFields []string `mapstructure:"display_name_fields" yaml:"display_name_fields" json:"display_name_fields"`

	// Timeout bounds a single call, including retries' individual attempts.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	// MaxRetries is the retry budget after the first attempt.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`

	// RetryBackoff is the initial backoff; doubled per attempt.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff" json:"retry_backoff"`
}

// Validate checks that the descriptor is complete enough to route to.
func (d *Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("endpoint id must not be empty")
	}
	if d.Domain == "" {
		return fmt.Errorf("endpoint %q: domain must not be empty", d.ID)
	}
	if d.ScoreField == "" {
		return fmt.Errorf("endpoint %q: score_field must not be empty", d.ID)
	}
	if len(d.GeoIDFields) == 0 {
		return fmt.Errorf("endpoint %q: at least one geo_id_field required", d.ID)
	}
	return nil
}

// ResolveScoreField returns the first declared score field present in attrs
// with a numeric value, consulting ScoreField first, then
// FallbackScoreFields in order, then a numeric-heuristic last resort: the
// lexically-smallest numeric attribute that is not a geo-id field.  This is
// the single place score-field selection happens; callers never branch on
// endpoint type.
func (d *Descriptor) ResolveScoreField(attrs map[string]interface{}) (string, float64, bool) {
	ordered := make([]string, 0, 1+len(d.FallbackScoreFields))
	ordered = append(ordered, d.ScoreField)
	ordered = append(ordered, d.FallbackScoreFields...)

	for _, field := range ordered {
		if v, ok := numericValue(attrs[field]); ok {
			return field, v, true
		}
	}

	// Numeric heuristic: deterministic scan, skipping id fields.
	geoFields := make(map[string]bool, len(d.GeoIDFields))
	for _, f := range d.GeoIDFields {
		geoFields[f] = true
	}
	best := ""
	bestVal := 0.0
	for k, raw := range attrs {
		if geoFields[k] {
			continue
		}
		v, ok := numericValue(raw)
		if !ok {
			continue
		}
		if best == "" || k < best {
			best = k
			bestVal = v
		}
	}
	if best != "" {
		return best, bestVal, true
	}
	return "", 0, false
}

// numericValue coerces the JSON-decoded attribute types to float64.
// Strings are never coerced; a missing or null attribute is not numeric.
func numericValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Catalog is an immutable, id-indexed set of endpoint descriptors.
type Catalog struct {
	ordered []*Descriptor
	byID    map[string]*Descriptor
}

// NewCatalog builds a Catalog from descriptors, validating each and
// rejecting duplicate ids.  Order is preserved for deterministic iteration.
func NewCatalog(descriptors []*Descriptor) (*Catalog, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one endpoint")
	}
	c := &Catalog{
		ordered: make([]*Descriptor, 0, len(descriptors)),
		byID:    make(map[string]*Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate endpoint id %q", d.ID)
		}
		c.byID[d.ID] = d
		c.ordered = append(c.ordered, d)
	}
	return c, nil
}

// ByID returns the descriptor for id, or nil when absent.
func (c *Catalog) ByID(id string) *Descriptor {
	return c.byID[id]
}

// All returns the descriptors in catalog order.  Callers must not mutate.
func (c *Catalog) All() []*Descriptor {
	return c.ordered
}

// Len returns the number of endpoints.
func (c *Catalog) Len() int { return len(c.ordered) }
