package plot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/memo"
	"golang.org/x/sync/errgroup"
)

type fetchArgs struct {
	IndexType  string                           `json:"index_type"`
	Dimensions map[string]dataservice.Dimension `json:"dimensions"`
	Filters    map[string]contexts.Context      `json:"filters"`
	Metadata   map[string]MetadataRef           `json:"metadata"`
}

// Resolver turns plot configurations into index-aligned responses using an
// upstream data service.
type Resolver struct {
	svc   dataservice.Service
	fetch func(ctx context.Context, args fetchArgs) (*PlotResponse, error)
}

func NewResolver(svc dataservice.Service, opts ...memo.Option) *Resolver {
	r := &Resolver{svc: svc}
	r.fetch = memo.Memoize("plot_dimensions", r.fetchUncached, opts...)
	return r
}

func (r *Resolver) Service() dataservice.Service {
	return r.svc
}

// ResolvePlot fetches everything cfg refers to.
func (r *Resolver) ResolvePlot(ctx context.Context, cfg PlotConfig) (*PlotResponse, error) {
	if cfg.IndexType == "" {
		return nil, common.NewConfigurationError("plot has no index type")
	}
	return r.FetchPlotDimensions(ctx, cfg.IndexType, cfg.Dimensions, cfg.Filters, cfg.Metadata)
}

// FetchPlotDimensions resolves the complete dimensions, the filters and the
// non-partial metadata of a plot concurrently and aligns them all to the
// index shared by the datasets involved. Results are memoized on the full
// argument set; each caller gets its own copy.
func (r *Resolver) FetchPlotDimensions(
	ctx context.Context,
	indexType string,
	dimensions map[string]dataservice.Dimension,
	filters map[string]contexts.Context,
	metadata map[string]MetadataRef,
) (*PlotResponse, error) {
	args := fetchArgs{
		IndexType:  indexType,
		Dimensions: CompleteDimensions(dimensions),
		Filters:    filters,
		Metadata:   map[string]MetadataRef{},
	}
	for k, m := range metadata {
		if !m.IsPartial() {
			args.Metadata[k] = m
		}
	}

	resp, err := r.fetch(ctx, args)
	if err != nil {
		return nil, err
	}
	return resp.Clone(), nil
}

func (r *Resolver) fetchUncached(ctx context.Context, args fetchArgs) (*PlotResponse, error) {
	start := time.Now()
	defer func() {
		resolveSeconds.WithLabelValues(args.IndexType).Observe(time.Since(start).Seconds())
	}()

	var (
		mu    sync.Mutex
		index *dataservice.SharedIndex
		dims  = make(map[string]*dataservice.DimensionResult, len(args.Dimensions))
		filts = make(map[string]*dataservice.FilterResult, len(args.Filters))
		metas = make(map[string]*dataservice.MetadataResult, len(args.Metadata))
	)

	g, gctx := errgroup.WithContext(ctx)

	datasetIDs := datasetIDs(args.Dimensions)
	g.Go(func() error {
		idx, err := r.svc.GetSharedIndex(gctx, args.IndexType, datasetIDs)
		if err != nil {
			return &common.ResolutionFailure{Request: "shared index", Err: err}
		}
		index = idx
		return nil
	})

	for key, d := range args.Dimensions {
		g.Go(func() error {
			res, err := r.svc.GetDimension(gctx, args.IndexType, d)
			if err != nil {
				return &common.ResolutionFailure{Request: fmt.Sprintf("dimension %q", key), Err: err}
			}
			mu.Lock()
			dims[key] = res
			mu.Unlock()
			return nil
		})
	}

	for key, c := range args.Filters {
		g.Go(func() error {
			res, err := r.svc.GetFilter(gctx, args.IndexType, c)
			if err != nil {
				return &common.ResolutionFailure{Request: fmt.Sprintf("filter %q", key), Err: err}
			}
			mu.Lock()
			filts[key] = res
			mu.Unlock()
			return nil
		})
	}

	for key, m := range args.Metadata {
		g.Go(func() error {
			res, err := r.svc.GetMetadata(gctx, args.IndexType, m.SliceID)
			if err != nil {
				return &common.ResolutionFailure{Request: fmt.Sprintf("metadata %q", key), Err: err}
			}
			mu.Lock()
			metas[key] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Warn("plot resolution failed", "index_type", args.IndexType, "err", err)
		return nil, err
	}

	return reindex(args.IndexType, index, dims, filts, metas), nil
}

func datasetIDs(dims map[string]dataservice.Dimension) []string {
	ids := make([]string, 0, len(dims))
	for _, d := range dims {
		ids = append(ids, d.DatasetID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// reindex projects every keyed result onto the positions of the shared
// index. Labels a result does not mention get NaN, false or nil.
func reindex(
	indexType string,
	index *dataservice.SharedIndex,
	dims map[string]*dataservice.DimensionResult,
	filts map[string]*dataservice.FilterResult,
	metas map[string]*dataservice.MetadataResult,
) *PlotResponse {
	labels := index.Labels
	if labels == nil {
		labels = []string{}
	}
	aliases := index.Aliases
	if aliases == nil {
		aliases = []dataservice.Alias{}
	}
	resp := &PlotResponse{
		IndexType:    indexType,
		IndexLabels:  labels,
		IndexAliases: aliases,
		Dimensions:   make(map[string]*DimensionData, len(dims)),
		Filters:      make(map[string]*FilterData, len(filts)),
		Metadata:     make(map[string]*MetadataData, len(metas)),
	}

	for key, d := range dims {
		values := make(dataservice.Values, len(labels))
		for i, l := range labels {
			v, ok := d.IndexedValues[l]
			if !ok {
				v = math.NaN()
			}
			values[i] = v
		}
		resp.Dimensions[key] = &DimensionData{
			Label:        d.Label,
			DatasetLabel: d.DatasetLabel,
			Units:        d.Units,
			Values:       values,
		}
	}

	for key, f := range filts {
		values := make([]bool, len(labels))
		for i, l := range labels {
			values[i] = f.IndexedValues[l]
		}
		resp.Filters[key] = &FilterData{Name: f.Name, Values: values}
	}

	for key, m := range metas {
		values := make([]any, len(labels))
		for i, l := range labels {
			values[i] = m.IndexedValues[l]
		}
		resp.Metadata[key] = &MetadataData{Label: m.Label, Values: values}
	}

	return resp
}
