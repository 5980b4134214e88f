// Package insight wires the request pipeline together: fingerprinting and
// result caching, concurrent endpoint execution, and the InsightService that
// runs a query end to end.
package insight

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"

	"github.com/eastgrand/geoinsight/internal/domain/query"
)

// Fingerprint derives the cache identity of a request: normalized query
// text, persona, the caller overrides, and the active configuration version.
// Any registry change therefore changes every fingerprint, which is how
// stale cached results die on reload.
func Fingerprint(normalized, persona string, ov query.Overrides, configVersion string) string {
	h := sha256.New()
	for _, part := range []string{
		normalized,
		persona,
		ov.EndpointID,
		ov.TargetField,
		strconv.Itoa(ov.SampleSize),
		configVersion,
	} {
		io.WriteString(h, part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
