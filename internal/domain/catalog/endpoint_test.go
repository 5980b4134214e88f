package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demographicDescriptor() *Descriptor {
	return &Descriptor{
		ID:                  "demographic_analysis",
		Domain:              "demographics",
		Path:                "/analyze/demographics",
		Keywords:            []string{"population", "income", "age"},
		ScoreField:          "demographic_score",
		FallbackScoreFields: []string{"thematic_value"},
		GeoIDFields:         []string{"postal_code", "geo_id"},
		Timeout:             5 * time.Second,
		MaxRetries:          2,
		RetryBackoff:        100 * time.Millisecond,
	}
}

func TestDescriptorValidate(t *testing.T) {
	valid := demographicDescriptor()
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Descriptor)
	}{
		{"empty id", func(d *Descriptor) { d.ID = "" }},
		{"empty domain", func(d *Descriptor) { d.Domain = "" }},
		{"empty score field", func(d *Descriptor) { d.ScoreField = "" }},
		{"no geo id fields", func(d *Descriptor) { d.GeoIDFields = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := demographicDescriptor()
			tt.mutate(d)
			assert.Error(t, d.Validate())
		})
	}
}

func TestResolveScoreField(t *testing.T) {
	d := demographicDescriptor()

	t.Run("primary field wins", func(t *testing.T) {
		field, val, ok := d.ResolveScoreField(map[string]interface{}{
			"demographic_score": 72.5,
			"thematic_value":    10.0,
		})
		require.True(t, ok)
		assert.Equal(t, "demographic_score", field)
		assert.Equal(t, 72.5, val)
	})

	t.Run("fallback consulted in order", func(t *testing.T) {
		field, val, ok := d.ResolveScoreField(map[string]interface{}{
			"thematic_value": 10.0,
		})
		require.True(t, ok)
		assert.Equal(t, "thematic_value", field)
		assert.Equal(t, 10.0, val)
	})

	t.Run("numeric heuristic skips geo id fields and is deterministic", func(t *testing.T) {
		attrs := map[string]interface{}{
			"postal_code":  90210.0, // numeric but an id field
			"zz_metric":    3.0,
			"aa_metric":    1.0,
			"display_name": "Beverly Hills",
		}
		field, val, ok := d.ResolveScoreField(attrs)
		require.True(t, ok)
		assert.Equal(t, "aa_metric", field, "lexically-smallest numeric attribute")
		assert.Equal(t, 1.0, val)
	})

	t.Run("strings are never coerced", func(t *testing.T) {
		_, _, ok := d.ResolveScoreField(map[string]interface{}{
			"demographic_score": "72.5",
			"display_name":      "x",
		})
		assert.False(t, ok)
	})

	t.Run("null is not numeric", func(t *testing.T) {
		_, _, ok := d.ResolveScoreField(map[string]interface{}{"demographic_score": nil})
		assert.False(t, ok)
	})
}

func TestNewCatalog(t *testing.T) {
	t.Run("empty rejected", func(t *testing.T) {
		_, err := NewCatalog(nil)
		assert.Error(t, err)
	})

	t.Run("duplicate ids rejected", func(t *testing.T) {
		_, err := NewCatalog([]*Descriptor{demographicDescriptor(), demographicDescriptor()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("lookup and order", func(t *testing.T) {
		second := demographicDescriptor()
		second.ID = "competitive_analysis"
		second.Domain = "competitive"

		c, err := NewCatalog([]*Descriptor{demographicDescriptor(), second})
		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, "demographic_analysis", c.All()[0].ID)
		assert.NotNil(t, c.ByID("competitive_analysis"))
		assert.Nil(t, c.ByID("missing"))
	})
}
