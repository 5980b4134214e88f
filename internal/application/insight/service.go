package insight

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/eastgrand/geoinsight/internal/domain/classify"
	"github.com/eastgrand/geoinsight/internal/domain/dataset"
	"github.com/eastgrand/geoinsight/internal/domain/query"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/internal/registry"
	"github.com/eastgrand/geoinsight/pkg/errors"
	insighttypes "github.com/eastgrand/geoinsight/pkg/types/insight"
)

// Service runs the full query pipeline: normalize, resolve, classify, route,
// execute, merge, fuse — behind the fingerprint cache.
type Service struct {
	registry     *registry.Registry
	classifier   *classify.Classifier
	orchestrator *Orchestrator
	cache        *ResultCache

	history HistoryRecorder
	events  EventPublisher
	metrics Metrics
	logger  logging.Logger
}

// ServiceOption wires optional collaborators.
type ServiceOption func(*Service)

func WithHistory(h HistoryRecorder) ServiceOption {
	return func(s *Service) { s.history = h }
}

func WithEvents(p EventPublisher) ServiceOption {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func NewService(reg *registry.Registry, classifier *classify.Classifier, orch *Orchestrator, cache *ResultCache, logger logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Service{
		registry:     reg,
		classifier:   classifier,
		orchestrator: orch,
		cache:        cache,
		metrics:      NopMetrics(),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query answers one natural-language request.  Identical concurrent requests
// share a single pipeline run through the result cache.
func (s *Service) Query(ctx context.Context, q query.Query) (*insighttypes.Insight, error) {
	normalized := q.Normalized()
	if normalized == "" {
		return nil, errors.New(errors.ErrCodeEmptyQuery, "query text must not be empty")
	}

	snap := s.registry.Current()
	if snap == nil {
		return nil, errors.New(errors.ErrCodeInternal, "no registry snapshot loaded")
	}

	fpOverrides := q.Overrides
	var preReasons []string
	if q.Overrides.TargetField != "" {
		canonical, ok := resolveTargetField(snap, q.Overrides.TargetField)
		if !ok {
			// An unmappable target field does not fail the request; the
			// pipeline proceeds without that concept and the result is
			// annotated as partial.  The raw field stays in the fingerprint
			// so the annotated result never shares a cache entry with the
			// same query issued without the override.
			s.logger.Warn("target field maps to no known field code, proceeding without it",
				logging.String("target_field", q.Overrides.TargetField))
			q.Overrides.TargetField = ""
			preReasons = append(preReasons, insighttypes.ReasonInvalidFieldMapping)
		} else {
			q.Overrides.TargetField = canonical
			fpOverrides = q.Overrides
		}
	}

	fp := Fingerprint(normalized, q.Persona, fpOverrides, snap.Version)
	ins, hit, err := s.cache.GetOrBuild(ctx, fp, snap.Version, func(buildCtx context.Context) (*insighttypes.Insight, error) {
		return s.build(buildCtx, q, normalized, fp, snap, preReasons)
	})
	if err != nil {
		return nil, err
	}

	// The cached value is shared; flag the hit on a copy.
	out := *ins
	out.CacheHit = hit
	return &out, nil
}

func (s *Service) build(ctx context.Context, q query.Query, normalized, fingerprint string, snap *registry.Snapshot, preReasons []string) (*insighttypes.Insight, error) {
	start := time.Now()

	concepts := query.ResolveConcepts(normalized, snap)
	complexity := query.ScoreComplexity(normalized, len(concepts))

	var result *classify.Result
	if q.Overrides.EndpointID == "" {
		result = s.classifier.Classify(ctx, &classify.Input{
			Normalized: normalized,
			Concepts:   concepts,
			Complexity: complexity,
			Snapshot:   snap,
		})
		if result.IsRejected() {
			s.metrics.ClassificationRejected()
			s.publishRejected(ctx, q.Text, result.Rejection)
			return nil, errors.Wrap(&RejectionError{Rejection: result.Rejection},
				errors.ErrCodeOutOfScope, "query is outside the supported analysis scope")
		}
		s.metrics.ClassificationDecided(string(result.DecidedBy))
	}

	descriptors, err := classify.Route(result, q.Overrides, snap)
	if err != nil {
		return nil, err
	}

	batch, err := s.orchestrator.Execute(ctx, descriptors, &EndpointRequest{
		QueryText:   normalized,
		FieldCodes:  query.FieldCodesOf(concepts),
		TargetField: q.Overrides.TargetField,
		SampleSize:  q.Overrides.SampleSize,
		Metadata:    requestMetadata(q),
	})
	if err != nil {
		return nil, err
	}

	ins := &insighttypes.Insight{
		ID:            uuid.NewString(),
		Query:         q.Text,
		Persona:       q.Persona,
		ConfigVersion: snap.Version,
		Fingerprint:   fingerprint,
		Status:        insighttypes.StatusOK,
		Concepts:      conceptSummaries(concepts),
		Endpoints:     endpointSummaries(result, batch),
		Complexity:    float64(complexity),
		GeneratedAt:   time.Now().UTC(),
	}
	if len(preReasons) > 0 {
		ins.Status = insighttypes.StatusDegraded
		ins.DegradedReasons = append(ins.DegradedReasons, preReasons...)
	}
	if batch.Degraded() {
		ins.Status = insighttypes.StatusDegraded
		ins.DegradedReasons = append(ins.DegradedReasons, insighttypes.ReasonEndpointFailed)
	}

	merged, mergeErr := dataset.Merge(batch.Datasets)
	switch {
	case mergeErr == nil:
		ins.Records = rankedRecords(dataset.FuseScores(merged, snap.Catalog, snap.Composite))
	default:
		var mismatch *dataset.MergeKeyMismatchError
		if !stderrors.As(mergeErr, &mismatch) {
			return nil, mergeErr
		}
		// Unjoinable result sets degrade to side-by-side presentation
		// rather than failing the whole request.
		s.logger.Warn("result sets not joinable, presenting side by side",
			logging.String("first", mismatch.FirstEndpointID),
			logging.String("second", mismatch.SecondEndpointID))
		ins.Status = insighttypes.StatusDegraded
		ins.DegradedReasons = append(ins.DegradedReasons, insighttypes.ReasonMergeKeyMismatch)
		ins.SideBySide = sideBySide(mismatch.Unmerged)
	}

	ins.Elapsed = time.Since(start)
	s.recordHistory(ctx, ins)
	s.publishCompleted(ctx, ins)
	return ins, nil
}

func (s *Service) recordHistory(ctx context.Context, ins *insighttypes.Insight) {
	if s.history == nil {
		return
	}
	ids := make([]string, len(ins.Endpoints))
	for i, ep := range ins.Endpoints {
		ids[i] = ep.EndpointID
	}
	entry := &HistoryEntry{
		ID:          ins.ID,
		Fingerprint: ins.Fingerprint,
		QueryText:   ins.Query,
		Persona:     ins.Persona,
		Endpoints:   ids,
		Status:      ins.Status,
		Elapsed:     ins.Elapsed,
		CreatedAt:   ins.GeneratedAt,
	}
	if err := s.history.Record(ctx, entry); err != nil {
		s.logger.Warn("history record failed", logging.Err(err))
	}
}

func (s *Service) publishCompleted(ctx context.Context, ins *insighttypes.Insight) {
	if s.events == nil {
		return
	}
	if err := s.events.InsightCompleted(ctx, ins); err != nil {
		s.logger.Warn("insight.completed publish failed", logging.Err(err))
	}
}

func (s *Service) publishRejected(ctx context.Context, queryText string, rej *classify.Rejection) {
	if s.events == nil {
		return
	}
	if err := s.events.InsightRejected(ctx, queryText, rej.Reason); err != nil {
		s.logger.Warn("insight.rejected publish failed", logging.Err(err))
	}
}

// resolveTargetField maps a caller-supplied target field to a canonical
// field code: alias and brand names resolve through the tables, and codes
// already canonical pass through.
func resolveTargetField(snap *registry.Snapshot, field string) (string, bool) {
	lowered := query.NormalizeText(field)
	if code, ok := snap.Aliases[lowered]; ok {
		return code, true
	}
	if code, ok := snap.Brands[lowered]; ok {
		return code, true
	}
	for _, code := range snap.Aliases {
		if code == field {
			return field, true
		}
	}
	for _, code := range snap.Brands {
		if code == field {
			return field, true
		}
	}
	for _, codes := range snap.Grouped {
		for _, code := range codes {
			if code == field {
				return field, true
			}
		}
	}
	return "", false
}

func requestMetadata(q query.Query) map[string]string {
	if q.Persona == "" {
		return nil
	}
	return map[string]string{"persona": q.Persona}
}

func conceptSummaries(concepts []query.ConceptMatch) []insighttypes.ConceptSummary {
	out := make([]insighttypes.ConceptSummary, len(concepts))
	for i, c := range concepts {
		out[i] = insighttypes.ConceptSummary{
			Surface:    c.Surface,
			FieldCodes: c.FieldCodes,
			Kind:       string(c.Kind),
		}
	}
	return out
}

func endpointSummaries(result *classify.Result, batch *BatchResult) []insighttypes.EndpointSummary {
	confidence := make(map[string]classify.Candidate)
	if result != nil {
		for _, c := range result.Chosen {
			confidence[c.EndpointID] = c
		}
	}

	var out []insighttypes.EndpointSummary
	for _, ds := range batch.Datasets {
		sum := insighttypes.EndpointSummary{
			EndpointID: ds.EndpointID,
			Records:    len(ds.Records),
		}
		if c, ok := confidence[ds.EndpointID]; ok {
			sum.Confidence = c.Confidence
			sum.Layer = string(c.Layer)
		}
		out = append(out, sum)
	}
	for _, f := range batch.Failed {
		sum := insighttypes.EndpointSummary{
			EndpointID: f.EndpointID,
			Failed:     true,
			Error:      f.Err.Error(),
		}
		if c, ok := confidence[f.EndpointID]; ok {
			sum.Confidence = c.Confidence
			sum.Layer = string(c.Layer)
		}
		out = append(out, sum)
	}
	return out
}

func rankedRecords(scored []dataset.ScoredRecord) []insighttypes.RankedRecord {
	out := make([]insighttypes.RankedRecord, len(scored))
	for i, r := range scored {
		out[i] = insighttypes.RankedRecord{
			GeoID:        r.GeoID,
			DisplayName:  r.DisplayName,
			Rank:         r.Rank,
			Score:        r.Score,
			Subscores:    r.Subscores,
			Completeness: r.Completeness,
		}
	}
	return out
}

func sideBySide(sets []*dataset.EndpointDataset) []insighttypes.EndpointRecords {
	out := make([]insighttypes.EndpointRecords, len(sets))
	for i, ds := range sets {
		records := make([]insighttypes.GeoRecord, len(ds.Records))
		for j, r := range ds.Records {
			records[j] = insighttypes.GeoRecord{GeoID: r.GeoID, DisplayName: r.DisplayName, Attributes: r.Attributes}
		}
		out[i] = insighttypes.EndpointRecords{EndpointID: ds.EndpointID, Records: records}
	}
	return out
}
