package milvus

import (
	"context"
	"fmt"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eastgrand/geoinsight/internal/config"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

type milvusFake struct {
	hasCollection bool
	createdSchema *entity.Schema
	indexedField  string
	loaded        bool
	inserted      []entity.Column
	flushed       bool

	searchTopK    int
	searchVectors []entity.Vector
	searchResults []client.SearchResult
	searchErr     error
}

func (f *milvusFake) HasCollection(ctx context.Context, name string) (bool, error) {
	return f.hasCollection, nil
}

func (f *milvusFake) CreateCollection(ctx context.Context, schema *entity.Schema, shardNum int32, opts ...client.CreateCollectionOption) error {
	f.createdSchema = schema
	return nil
}

func (f *milvusFake) CreateIndex(ctx context.Context, collName, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error {
	f.indexedField = fieldName
	return nil
}

func (f *milvusFake) LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error {
	f.loaded = true
	return nil
}

func (f *milvusFake) Insert(ctx context.Context, collName, partitionName string, columns ...entity.Column) (entity.Column, error) {
	f.inserted = columns
	return entity.NewColumnInt64("id", []int64{1}), nil
}

func (f *milvusFake) Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error {
	f.flushed = true
	return nil
}

func (f *milvusFake) Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	f.searchTopK = topK
	f.searchVectors = vectors
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

func exemplarConfig() *config.MilvusConfig {
	return &config.MilvusConfig{
		Enabled:       true,
		Addr:          "localhost:19530",
		Collection:    "endpoint_exemplars",
		VectorField:   "embedding",
		EndpointField: "endpoint_id",
		EmbeddingDim:  4,
		DefaultTopK:   5,
	}
}

func searchResult(endpointIDs []string, scores []float32) client.SearchResult {
	return client.SearchResult{
		ResultCount: len(endpointIDs),
		Fields:      client.ResultSet{entity.NewColumnVarChar("endpoint_id", endpointIDs)},
		Scores:      scores,
	}
}

func TestEnsureCollectionCreatesSchemaAndIndex(t *testing.T) {
	fake := &milvusFake{}
	idx := newExemplarIndex(fake, exemplarConfig(), nil)

	require.NoError(t, idx.EnsureCollection(context.Background()))

	require.NotNil(t, fake.createdSchema)
	assert.Equal(t, "endpoint_exemplars", fake.createdSchema.CollectionName)

	fieldNames := make([]string, 0, len(fake.createdSchema.Fields))
	for _, fld := range fake.createdSchema.Fields {
		fieldNames = append(fieldNames, fld.Name)
	}
	assert.ElementsMatch(t, []string{"id", "endpoint_id", "query_text", "embedding"}, fieldNames)

	assert.Equal(t, "embedding", fake.indexedField)
	assert.True(t, fake.loaded)
}

func TestEnsureCollectionSkipsExisting(t *testing.T) {
	fake := &milvusFake{hasCollection: true}
	idx := newExemplarIndex(fake, exemplarConfig(), nil)

	require.NoError(t, idx.EnsureCollection(context.Background()))

	assert.Nil(t, fake.createdSchema)
	assert.Empty(t, fake.indexedField)
	assert.True(t, fake.loaded, "existing collection is still loaded")
}

func TestAddInsertsAndFlushes(t *testing.T) {
	fake := &milvusFake{}
	idx := newExemplarIndex(fake, exemplarConfig(), nil)

	err := idx.Add(context.Background(), []Exemplar{
		{EndpointID: "demographic_insights", QueryText: "median income by area", Vector: []float32{0.1, 0.2, 0.3, 0.4}},
		{EndpointID: "competitive_analysis", QueryText: "market share for brand alpha", Vector: []float32{0.4, 0.3, 0.2, 0.1}},
	})
	require.NoError(t, err)

	require.Len(t, fake.inserted, 3)
	assert.Equal(t, "endpoint_id", fake.inserted[0].Name())
	assert.Equal(t, "query_text", fake.inserted[1].Name())
	assert.Equal(t, "embedding", fake.inserted[2].Name())
	assert.True(t, fake.flushed)
}

func TestAddRejectsWrongDimension(t *testing.T) {
	fake := &milvusFake{}
	idx := newExemplarIndex(fake, exemplarConfig(), nil)

	err := idx.Add(context.Background(), []Exemplar{
		{EndpointID: "demographic_insights", Vector: []float32{0.1, 0.2}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	assert.Nil(t, fake.inserted)
}

func TestNearestReturnsHitsInOrder(t *testing.T) {
	fake := &milvusFake{
		searchResults: []client.SearchResult{
			searchResult(
				[]string{"demographic_insights", "demographic_insights", "competitive_analysis"},
				[]float32{0.91, 0.84, 0.52},
			),
		},
	}
	idx := newExemplarIndex(fake, exemplarConfig(), nil)

	hits, err := idx.Nearest(context.Background(), []float32{0.1, 0.2, 0.3, 0.4}, 3)
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, "demographic_insights", hits[0].EndpointID)
	assert.InDelta(t, 0.91, hits[0].Similarity, 1e-6)
	assert.Equal(t, "competitive_analysis", hits[2].EndpointID)
	assert.Equal(t, 3, fake.searchTopK)
	assert.Len(t, fake.searchVectors, 1)
}

func TestNearestDefaultsTopK(t *testing.T) {
	fake := &milvusFake{searchResults: []client.SearchResult{searchResult(nil, nil)}}
	idx := newExemplarIndex(fake, exemplarConfig(), nil)

	hits, err := idx.Nearest(context.Background(), []float32{0, 0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 5, fake.searchTopK)
}

func TestNearestWrapsSearchError(t *testing.T) {
	fake := &milvusFake{searchErr: fmt.Errorf("rpc unavailable")}
	idx := newExemplarIndex(fake, exemplarConfig(), nil)

	_, err := idx.Nearest(context.Background(), []float32{0, 0, 0, 0}, 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}
