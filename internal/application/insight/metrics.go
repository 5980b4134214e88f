package insight

import "time"

// Metrics is the pipeline's observation surface.  The prometheus collector
// implements it; tests and metric-less deployments use NopMetrics.
type Metrics interface {
	ClassificationDecided(layer string)
	ClassificationRejected()
	EndpointCall(endpointID string, elapsed time.Duration, success bool)
	CacheHit()
	CacheMiss()
	BatchDegraded()
}

type nopMetrics struct{}

func (nopMetrics) ClassificationDecided(string)             {}
func (nopMetrics) ClassificationRejected()                  {}
func (nopMetrics) EndpointCall(string, time.Duration, bool) {}
func (nopMetrics) CacheHit()                                {}
func (nopMetrics) CacheMiss()                               {}
func (nopMetrics) BatchDegraded()                           {}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }
