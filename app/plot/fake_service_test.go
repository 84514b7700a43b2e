package plot

import (
	"context"
	"errors"
	"sync"

	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
)

var errUnavailable = errors.New("upstream unavailable")

// fakeService answers from fixed tables keyed by dataset id, context name
// and slice id, and counts calls.
type fakeService struct {
	mu    sync.Mutex
	calls map[string]int

	index        *dataservice.SharedIndex
	indexArgs    []string
	dimensions   map[string]*dataservice.DimensionResult
	filters      map[string]*dataservice.FilterResult
	metadata     map[string]*dataservice.MetadataResult
	failDatasets map[string]bool
}

var _ dataservice.Service = &fakeService{}

func (f *fakeService) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeService) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeService) EvaluateContext(ctx context.Context, c contexts.Context) (contexts.EntitySet, error) {
	return contexts.EntitySet{}, errUnavailable
}

func (f *fakeService) GetSharedIndex(ctx context.Context, indexType string, datasetIDs []string) (*dataservice.SharedIndex, error) {
	f.count("index")
	f.mu.Lock()
	f.indexArgs = datasetIDs
	f.mu.Unlock()
	return f.index, nil
}

func (f *fakeService) GetDimension(ctx context.Context, indexType string, d dataservice.Dimension) (*dataservice.DimensionResult, error) {
	f.count("dimension")
	if f.failDatasets[d.DatasetID] {
		return nil, errUnavailable
	}
	return f.dimensions[d.DatasetID], nil
}

func (f *fakeService) GetFilter(ctx context.Context, indexType string, c contexts.Context) (*dataservice.FilterResult, error) {
	f.count("filter")
	return f.filters[c.Name], nil
}

func (f *fakeService) GetMetadata(ctx context.Context, indexType string, sliceID string) (*dataservice.MetadataResult, error) {
	f.count("metadata")
	return f.metadata[sliceID], nil
}

func (f *fakeService) GetSliceMatrix(ctx context.Context, req dataservice.SliceMatrixRequest) (*dataservice.SliceMatrix, error) {
	return nil, errUnavailable
}

func (f *fakeService) PersistContext(ctx context.Context, c contexts.Context) (string, error) {
	return "", errUnavailable
}

func (f *fakeService) FetchContext(ctx context.Context, hash string) (contexts.Context, error) {
	return contexts.Context{}, errUnavailable
}

func (f *fakeService) ListDatasets(ctx context.Context) ([]dataservice.DatasetDescriptor, error) {
	return nil, errUnavailable
}

func (f *fakeService) SearchEntities(ctx context.Context, dimensionType string, q string, limit int) ([]dataservice.SearchHit, error) {
	return nil, errUnavailable
}
