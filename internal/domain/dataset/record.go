// Package dataset implements the geographic join and score fusion that turn
// per-endpoint result sets into one ranked view.  Everything here is pure:
// the orchestrator hands in parsed endpoint data and the registry snapshot
// supplies the weights.
package dataset

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Record is one geography row from one endpoint: the resolved geographic id,
// an optional human-readable name, and the endpoint's raw attributes for
// that geography.
type Record struct {
	GeoID       string                 `json:"geo_id"`
	DisplayName string                 `json:"display_name,omitempty"`
	Attributes  map[string]interface{} `json:"attributes"`
}

// EndpointDataset is one endpoint's parsed result set, keyed for merging.
type EndpointDataset struct {
	EndpointID string   `json:"endpoint_id"`
	Records    []Record `json:"records"`
}

// GeoIDs returns the distinct geographic ids in the set, sorted.
func (d *EndpointDataset) GeoIDs() []string {
	seen := make(map[string]bool, len(d.Records))
	for _, r := range d.Records {
		seen[r.GeoID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveGeoID picks the geographic id out of raw attributes using the
// descriptor's candidate fields in priority order.  The first field holding a
// non-empty string (or stringable number) wins.  Rows where no candidate
// yields an id cannot be merged.
func ResolveGeoID(attrs map[string]interface{}, candidates []string) (string, bool) {
	for _, field := range candidates {
		raw, ok := attrs[field]
		if !ok || raw == nil {
			continue
		}
		if s := geoIDString(raw); s != "" {
			return s, true
		}
	}
	return "", false
}

// geoIDString renders an attribute value as a geographic id.  Strings pass
// through; numbers render without a decimal point when integer-valued, so a
// JSON-decoded postal code 90210 (float64) becomes "90210".
func geoIDString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return geoIDString(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// ResolveDisplayName picks the human-readable name out of raw attributes
// using the descriptor's candidate fields in priority order.  Only non-empty
// string values qualify; absent ones yield "".
func ResolveDisplayName(attrs map[string]interface{}, candidates []string) string {
	for _, field := range candidates {
		if s, ok := attrs[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// JoinedRecord is one geography's merged view across the selected endpoints.
// ByEndpoint holds each contributing endpoint's attributes; endpoints that
// did not report this geography are simply absent, never zero-filled.
// DisplayName is the first non-empty name any contributing endpoint reported,
// in merge order.
type JoinedRecord struct {
	GeoID       string                            `json:"geo_id"`
	DisplayName string                            `json:"display_name,omitempty"`
	ByEndpoint  map[string]map[string]interface{} `json:"by_endpoint"`
}

// PresentIn lists the endpoints that reported this geography, sorted.
func (r *JoinedRecord) PresentIn() []string {
	ids := make([]string, 0, len(r.ByEndpoint))
	for id := range r.ByEndpoint {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Completeness is |presentIn| / total selected endpoints.
func (r *JoinedRecord) Completeness(selected int) float64 {
	if selected <= 0 {
		return 0
	}
	return float64(len(r.ByEndpoint)) / float64(selected)
}

// MergedDataset is the union join of the selected endpoints' result sets.
// Records are ordered by geographic id so identical inputs produce identical
// output bytes.
type MergedDataset struct {
	EndpointIDs []string        `json:"endpoint_ids"`
	Records     []*JoinedRecord `json:"records"`
}
