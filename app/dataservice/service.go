// Package dataservice is the upstream data API that plot resolution runs
// against, with a local implementation over the datastore and an HTTP
// client for a remote one.
package dataservice

import (
	"context"

	"github.com/mahesh-hegde/explorer/app/contexts"
)

type Service interface {
	// EvaluateContext returns the entities a context selects.
	EvaluateContext(ctx context.Context, c contexts.Context) (contexts.EntitySet, error)
	// GetSharedIndex returns the index entities present in every dataset, in
	// canonical order. With no datasets it returns every entity.
	GetSharedIndex(ctx context.Context, indexType string, datasetIDs []string) (*SharedIndex, error)
	GetDimension(ctx context.Context, indexType string, d Dimension) (*DimensionResult, error)
	// GetFilter returns, per index entity, whether c selects it.
	GetFilter(ctx context.Context, indexType string, c contexts.Context) (*FilterResult, error)
	GetMetadata(ctx context.Context, indexType string, sliceID string) (*MetadataResult, error)
	GetSliceMatrix(ctx context.Context, req SliceMatrixRequest) (*SliceMatrix, error)

	PersistContext(ctx context.Context, c contexts.Context) (string, error)
	FetchContext(ctx context.Context, hash string) (contexts.Context, error)

	ListDatasets(ctx context.Context) ([]DatasetDescriptor, error)
	SearchEntities(ctx context.Context, dimensionType string, q string, limit int) ([]SearchHit, error)
}
