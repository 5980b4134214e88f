// Package registry holds the per-deployment routing configuration: the
// field-alias tables, grouped-term expansions, endpoint catalog, and scoring
// weights.  A Snapshot is immutable and versioned; reload replaces the whole
// snapshot atomically so in-flight requests keep a consistent view.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/eastgrand/geoinsight/internal/domain/catalog"
)

// HybridRule is one weighted keyword/pattern rule of the hybrid
// classification layer.  All weights are configuration data; none live in
// code.  The numeric values ship as calibratable defaults validated against
// a labeled query corpus, not derived constants.
type HybridRule struct {
	// EndpointID is the endpoint this rule votes for.
	EndpointID string `mapstructure:"endpoint_id" yaml:"endpoint_id"`

	// Patterns are lower-case substrings; each occurrence in the query adds
	// Weight to the endpoint's rule score.
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`

	// Weight added per matched pattern.
	Weight float64 `mapstructure:"weight" yaml:"weight"`
}

// TieBreak disambiguates two endpoints with overlapping vocabulary.  When the
// query contains at least two distinct resolved entities plus a comparison
// marker, Bonus is added to the winner's score and Penalty subtracted from
// the loser's.
type TieBreak struct {
	WinnerEndpointID string  `mapstructure:"winner_endpoint_id" yaml:"winner_endpoint_id"`
	LoserEndpointID  string  `mapstructure:"loser_endpoint_id" yaml:"loser_endpoint_id"`
	Bonus            float64 `mapstructure:"bonus" yaml:"bonus"`
	Penalty          float64 `mapstructure:"penalty" yaml:"penalty"`
}

// ClassifierWeights carries the per-layer confidence floors and the hybrid
// rule set.
type ClassifierWeights struct {
	// Per-layer confidence floors in [0,1]; a layer whose best candidate
	// falls below its floor yields no opinion.
	SemanticFloor float64 `mapstructure:"semantic_floor" yaml:"semantic_floor"`
	HybridFloor   float64 `mapstructure:"hybrid_floor" yaml:"hybrid_floor"`
	KeywordFloor  float64 `mapstructure:"keyword_floor" yaml:"keyword_floor"`

	// CoSelectionFloor is the lower floor both of the top two cross-domain
	// candidates must clear to trigger multi-endpoint orchestration.
	CoSelectionFloor float64 `mapstructure:"co_selection_floor" yaml:"co_selection_floor"`

	// SemanticTopK bounds semantic-layer candidates; raised by one for
	// high-complexity queries.
	SemanticTopK int `mapstructure:"semantic_top_k" yaml:"semantic_top_k"`

	Rules     []HybridRule `mapstructure:"rules" yaml:"rules"`
	TieBreaks []TieBreak   `mapstructure:"tie_breaks" yaml:"tie_breaks"`
}

// CompositeWeights carries per-endpoint fusion weights and bounds.
type CompositeWeights struct {
	// Weights per endpoint id; endpoints absent from the map default to 1.
	// Weights for endpoints absent from a record are renormalized across the
	// present subset, never silently zeroed.
	Weights map[string]float64 `mapstructure:"weights" yaml:"weights"`

	// MinCompleteness is the completeness ratio below which a joined record
	// is excluded from the composite ranking.
	MinCompleteness float64 `mapstructure:"min_completeness" yaml:"min_completeness"`

	// ScoreCeiling bounds the fused score range [0, ScoreCeiling].
	ScoreCeiling float64 `mapstructure:"score_ceiling" yaml:"score_ceiling"`
}

// Document is the on-disk shape of the registry file, decoded by the loader
// before being compiled into an immutable Snapshot.
type Document struct {
	Version   string                `mapstructure:"version" yaml:"version"`
	Aliases   map[string]string     `mapstructure:"aliases" yaml:"aliases"`
	Brands    map[string]string     `mapstructure:"brands" yaml:"brands"`
	Grouped   map[string][]string   `mapstructure:"grouped" yaml:"grouped"`
	Endpoints []*catalog.Descriptor `mapstructure:"endpoints" yaml:"endpoints"`
	MaxFanOut int                   `mapstructure:"max_fan_out" yaml:"max_fan_out"`
	Classify  ClassifierWeights     `mapstructure:"classify" yaml:"classify"`
	Composite CompositeWeights      `mapstructure:"composite" yaml:"composite"`
}

// Snapshot is the compiled, immutable view of one registry document version.
// Every component receives the snapshot it should use for the whole request;
// nothing reads the registry twice within one request.
type Snapshot struct {
	Version  string
	LoadedAt time.Time

	// Aliases maps a lower-case field synonym to its canonical field code.
	Aliases map[string]string

	// Brands maps a lower-case brand name to its canonical field code.
	Brands map[string]string

	// Grouped maps a lower-case grouped term to its field-code expansion.
	Grouped map[string][]string

	Catalog   *catalog.Catalog
	MaxFanOut int
	Classify  ClassifierWeights
	Composite CompositeWeights
}

const defaultMaxFanOut = 3

// Compile validates doc and produces an immutable Snapshot.  raw is the
// original document bytes, used to derive a content-hash version when the
// document does not declare one.
func Compile(doc *Document, raw []byte) (*Snapshot, error) {
	cat, err := catalog.NewCatalog(doc.Endpoints)
	if err != nil {
		return nil, fmt.Errorf("registry: invalid endpoint catalog: %w", err)
	}

	for _, floor := range []struct {
		name string
		v    float64
	}{
		{"semantic_floor", doc.Classify.SemanticFloor},
		{"hybrid_floor", doc.Classify.HybridFloor},
		{"keyword_floor", doc.Classify.KeywordFloor},
		{"co_selection_floor", doc.Classify.CoSelectionFloor},
	} {
		if floor.v < 0 || floor.v > 1 {
			return nil, fmt.Errorf("registry: classify.%s must be in [0,1], got %v", floor.name, floor.v)
		}
	}

	for _, r := range doc.Classify.Rules {
		if cat.ByID(r.EndpointID) == nil {
			return nil, fmt.Errorf("registry: rule references unknown endpoint %q", r.EndpointID)
		}
		if r.Weight < 0 {
			return nil, fmt.Errorf("registry: rule for %q has negative weight", r.EndpointID)
		}
	}
	for _, tb := range doc.Classify.TieBreaks {
		if cat.ByID(tb.WinnerEndpointID) == nil || cat.ByID(tb.LoserEndpointID) == nil {
			return nil, fmt.Errorf("registry: tie-break references unknown endpoint")
		}
	}
	for id, w := range doc.Composite.Weights {
		if cat.ByID(id) == nil {
			return nil, fmt.Errorf("registry: composite weight references unknown endpoint %q", id)
		}
		if w < 0 {
			return nil, fmt.Errorf("registry: composite weight for %q must be non-negative", id)
		}
	}
	for term, codes := range doc.Grouped {
		if len(codes) == 0 {
			return nil, fmt.Errorf("registry: grouped term %q expands to no field codes", term)
		}
	}

	version := doc.Version
	if version == "" {
		sum := sha256.Sum256(raw)
		version = hex.EncodeToString(sum[:6])
	}

	maxFanOut := doc.MaxFanOut
	if maxFanOut <= 0 {
		maxFanOut = defaultMaxFanOut
	}

	composite := doc.Composite
	if composite.ScoreCeiling <= 0 {
		composite.ScoreCeiling = 100
	}

	classify := doc.Classify
	if classify.SemanticTopK <= 0 {
		classify.SemanticTopK = 3
	}

	return &Snapshot{
		Version:   version,
		LoadedAt:  time.Now().UTC(),
		Aliases:   lowerKeys(doc.Aliases),
		Brands:    lowerKeys(doc.Brands),
		Grouped:   lowerKeysSlice(doc.Grouped),
		Catalog:   cat,
		MaxFanOut: maxFanOut,
		Classify:  classify,
		Composite: composite,
	}, nil
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[lower(k)] = v
	}
	return out
}

func lowerKeysSlice(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		cp := make([]string, len(v))
		copy(cp, v)
		out[lower(k)] = cp
	}
	return out
}
