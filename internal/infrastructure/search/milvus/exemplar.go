package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/eastgrand/geoinsight/internal/config"
	"github.com/eastgrand/geoinsight/internal/domain/classify"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

// milvusAPI is the slice of the SDK client the exemplar index actually
// uses, narrowed so tests can fake it.
type milvusAPI interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, collSchema *entity.Schema, shardNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Insert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
}

// Exemplar is one labeled example query stored in the index.
type Exemplar struct {
	EndpointID string
	QueryText  string
	Vector     []float32
}

// ExemplarIndex stores labeled example queries as vectors and answers
// nearest-neighbor lookups for the semantic classification layer.
// Similarity uses inner product over normalized embeddings, so scores
// land in [-1, 1] and rank like cosine similarity.
type ExemplarIndex struct {
	api    milvusAPI
	cfg    *config.MilvusConfig
	logger logging.Logger
}

var _ classify.ExemplarIndex = (*ExemplarIndex)(nil)

// NewExemplarIndex builds an index over an established connection.
func NewExemplarIndex(c *Client, cfg *config.MilvusConfig, logger logging.Logger) *ExemplarIndex {
	return newExemplarIndex(c.Raw(), cfg, logger)
}

func newExemplarIndex(api milvusAPI, cfg *config.MilvusConfig, logger logging.Logger) *ExemplarIndex {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ExemplarIndex{api: api, cfg: cfg, logger: logger}
}

// EnsureCollection creates the exemplar collection, its vector index and
// loads it into memory. Safe to call when the collection already exists.
func (x *ExemplarIndex) EnsureCollection(ctx context.Context) error {
	has, err := x.api.HasCollection(ctx, x.cfg.Collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check exemplar collection")
	}
	if !has {
		schema := entity.NewSchema().
			WithName(x.cfg.Collection).
			WithDescription("labeled example queries for endpoint classification").
			WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeInt64).WithIsPrimaryKey(true).WithIsAutoID(true)).
			WithField(entity.NewField().WithName(x.cfg.EndpointField).WithDataType(entity.FieldTypeVarChar).WithMaxLength(128)).
			WithField(entity.NewField().WithName("query_text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
			WithField(entity.NewField().WithName(x.cfg.VectorField).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(x.cfg.EmbeddingDim)))

		if err := x.api.CreateCollection(ctx, schema, 1); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create exemplar collection")
		}

		idx, err := entity.NewIndexHNSW(entity.IP, 16, 200)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to build index definition")
		}
		if err := x.api.CreateIndex(ctx, x.cfg.Collection, x.cfg.VectorField, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create exemplar index")
		}
		x.logger.Info("exemplar collection created",
			logging.String("collection", x.cfg.Collection),
			logging.Int("dim", x.cfg.EmbeddingDim))
	}

	if err := x.api.LoadCollection(ctx, x.cfg.Collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to load exemplar collection")
	}
	return nil
}

// Add inserts labeled exemplars and flushes them so they become
// searchable.
func (x *ExemplarIndex) Add(ctx context.Context, exemplars []Exemplar) error {
	if len(exemplars) == 0 {
		return nil
	}

	endpointIDs := make([]string, 0, len(exemplars))
	texts := make([]string, 0, len(exemplars))
	vectors := make([][]float32, 0, len(exemplars))
	for _, ex := range exemplars {
		if len(ex.Vector) != x.cfg.EmbeddingDim {
			return errors.Newf(errors.ErrCodeValidation,
				"exemplar vector for %s has dimension %d, want %d",
				ex.EndpointID, len(ex.Vector), x.cfg.EmbeddingDim)
		}
		endpointIDs = append(endpointIDs, ex.EndpointID)
		texts = append(texts, ex.QueryText)
		vectors = append(vectors, ex.Vector)
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(x.cfg.EndpointField, endpointIDs),
		entity.NewColumnVarChar("query_text", texts),
		entity.NewColumnFloatVector(x.cfg.VectorField, x.cfg.EmbeddingDim, vectors),
	}
	if _, err := x.api.Insert(ctx, x.cfg.Collection, "", columns...); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to insert exemplars")
	}
	if err := x.api.Flush(ctx, x.cfg.Collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to flush exemplar collection")
	}

	x.logger.Info("exemplars indexed", logging.Int("count", len(exemplars)))
	return nil
}

// Nearest returns the topK most similar exemplars to the given vector.
func (x *ExemplarIndex) Nearest(ctx context.Context, vector []float32, topK int) ([]classify.ExemplarHit, error) {
	if topK <= 0 {
		topK = x.cfg.DefaultTopK
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build search params")
	}

	results, err := x.api.Search(ctx, x.cfg.Collection, nil, "",
		[]string{x.cfg.EndpointField},
		[]entity.Vector{entity.FloatVector(vector)},
		x.cfg.VectorField, entity.IP, topK, sp)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "exemplar search failed")
	}

	hits := make([]classify.ExemplarHit, 0, topK)
	for _, res := range results {
		if res.Err != nil {
			return nil, errors.Wrap(res.Err, errors.ErrCodeExternalService, "exemplar search failed")
		}
		col := res.Fields.GetColumn(x.cfg.EndpointField)
		if col == nil {
			return nil, errors.Newf(errors.ErrCodeExternalService,
				"search result missing %s column", x.cfg.EndpointField)
		}
		for i := 0; i < res.ResultCount; i++ {
			endpointID, err := col.GetAsString(i)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeExternalService,
					fmt.Sprintf("search result row %d is not a string", i))
			}
			hits = append(hits, classify.ExemplarHit{
				EndpointID: endpointID,
				Similarity: float64(res.Scores[i]),
			})
		}
	}
	return hits, nil
}
