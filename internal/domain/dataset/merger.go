package dataset

import (
	"fmt"
	"sort"

	"github.com/eastgrand/geoinsight/pkg/errors"
)

// MergeKeyMismatchError reports that two endpoint result sets share no
// geographic ids at all, so joining them would fabricate geography.  The
// unmerged per-endpoint sets ride along so the caller can fall back to a
// side-by-side presentation instead of failing the request.
type MergeKeyMismatchError struct {
	FirstEndpointID  string
	SecondEndpointID string
	Unmerged         []*EndpointDataset
}

func (e *MergeKeyMismatchError) Error() string {
	return fmt.Sprintf("result sets of %q and %q share no geographic ids",
		e.FirstEndpointID, e.SecondEndpointID)
}

// Merge union-joins the endpoint result sets on geographic id.  Every
// geography reported by any endpoint appears once; completeness is derived
// from how many of the selected endpoints reported it.  A pair of sets with
// zero shared ids aborts the merge with a MergeKeyMismatchError wrapped in
// an MRG_001 application error.
//
// Merge is pure and deterministic: records come back sorted by geo id and
// the input slices are never mutated.
func Merge(datasets []*EndpointDataset) (*MergedDataset, error) {
	if len(datasets) == 0 {
		return nil, errors.New(errors.ErrCodeNoGeoID, "no endpoint datasets to merge")
	}

	keySets := make([]map[string]bool, len(datasets))
	for i, ds := range datasets {
		keys := make(map[string]bool, len(ds.Records))
		for _, r := range ds.Records {
			if r.GeoID != "" {
				keys[r.GeoID] = true
			}
		}
		if len(keys) == 0 {
			return nil, errors.Newf(errors.ErrCodeNoGeoID,
				"endpoint %q returned no records with a resolvable geographic id", ds.EndpointID)
		}
		keySets[i] = keys
	}

	// Pairwise overlap check before any joining happens.
	for i := 0; i < len(datasets); i++ {
		for j := i + 1; j < len(datasets); j++ {
			if !overlaps(keySets[i], keySets[j]) {
				mismatch := &MergeKeyMismatchError{
					FirstEndpointID:  datasets[i].EndpointID,
					SecondEndpointID: datasets[j].EndpointID,
					Unmerged:         datasets,
				}
				return nil, errors.Wrap(mismatch, errors.ErrCodeMergeKeyMismatch,
					"endpoint result sets are not joinable")
			}
		}
	}

	joined := make(map[string]*JoinedRecord)
	for _, ds := range datasets {
		for _, r := range ds.Records {
			if r.GeoID == "" {
				continue
			}
			jr, ok := joined[r.GeoID]
			if !ok {
				jr = &JoinedRecord{
					GeoID:      r.GeoID,
					ByEndpoint: make(map[string]map[string]interface{}, len(datasets)),
				}
				joined[r.GeoID] = jr
			}
			jr.ByEndpoint[ds.EndpointID] = r.Attributes
			if jr.DisplayName == "" {
				jr.DisplayName = r.DisplayName
			}
		}
	}

	records := make([]*JoinedRecord, 0, len(joined))
	for _, jr := range joined {
		records = append(records, jr)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].GeoID < records[j].GeoID })

	ids := make([]string, len(datasets))
	for i, ds := range datasets {
		ids[i] = ds.EndpointID
	}

	return &MergedDataset{EndpointIDs: ids, Records: records}, nil
}

func overlaps(a, b map[string]bool) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for k := range small {
		if large[k] {
			return true
		}
	}
	return false
}
