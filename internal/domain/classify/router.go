package classify

import (
	"github.com/eastgrand/geoinsight/internal/domain/catalog"
	"github.com/eastgrand/geoinsight/internal/domain/query"
	"github.com/eastgrand/geoinsight/internal/registry"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

// Route turns a classification result into the descriptors to execute, in
// precedence order:
//
//  1. a caller override pins a single endpoint, bypassing classification;
//  2. a rejected classification surfaces as an out-of-scope error;
//  3. otherwise the chosen candidates, capped at the snapshot fan-out limit.
//
// The out-of-scope error wraps the rejection so transports can render the
// hints; test with errors.IsOutOfScope.
func Route(result *Result, overrides query.Overrides, snap *registry.Snapshot) ([]*catalog.Descriptor, error) {
	if overrides.EndpointID != "" {
		ep := snap.Catalog.ByID(overrides.EndpointID)
		if ep == nil {
			return nil, errors.Newf(errors.ErrCodeUnknownEndpoint,
				"endpoint %q is not in the active registry", overrides.EndpointID)
		}
		return []*catalog.Descriptor{ep}, nil
	}

	if result == nil || result.IsRejected() {
		reason := RejectionReasonBelowFloor
		if result != nil && result.Rejection.Reason != "" {
			reason = result.Rejection.Reason
		}
		return nil, errors.Newf(errors.ErrCodeOutOfScope,
			"query could not be matched to an analysis endpoint (%s)", reason)
	}

	maxFanOut := snap.MaxFanOut
	if maxFanOut <= 0 {
		maxFanOut = 3
	}

	seen := make(map[string]bool, len(result.Chosen))
	descriptors := make([]*catalog.Descriptor, 0, maxFanOut)
	for _, cand := range result.Chosen {
		if len(descriptors) == maxFanOut {
			break
		}
		if seen[cand.EndpointID] {
			continue
		}
		seen[cand.EndpointID] = true
		ep := snap.Catalog.ByID(cand.EndpointID)
		if ep == nil {
			return nil, errors.Newf(errors.ErrCodeUnknownEndpoint,
				"chosen endpoint %q vanished from the active registry", cand.EndpointID)
		}
		descriptors = append(descriptors, ep)
	}
	if len(descriptors) == 0 {
		return nil, errors.New(errors.ErrCodeOutOfScope, "classification produced no usable endpoints")
	}
	return descriptors, nil
}
