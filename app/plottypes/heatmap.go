package plottypes

import (
	"context"
	"fmt"
	"sync"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/config"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/plot"
	"github.com/mahesh-hegde/explorer/app/stats"
	"golang.org/x/sync/errgroup"
)

// Filter entries holding the reference populations of a heatmap.
const (
	FilterDistinguish1 = "distinguish1"
	FilterDistinguish2 = "distinguish2"
)

const heatmapWorkers = 2

type HeatmapOptions struct {
	// MaxEntities bounds how many entities may be correlated.
	MaxEntities int
}

// HeatmapMatrix is one correlation matrix over the heatmap's entities,
// computed from the index entities in Population.
type HeatmapMatrix struct {
	Population string               `json:"population"`
	IndexCount int                  `json:"index_count"`
	Columns    []string             `json:"columns"`
	Matrix     []dataservice.Values `json:"matrix"`
}

// HeatmapResponse holds the x matrix and, when a second reference
// population is given, the x2 matrix over the same columns. When the
// selection cannot be plotted Placeholder says why and there are no
// matrices.
type HeatmapResponse struct {
	AxisLabel   string                    `json:"axis_label"`
	Placeholder string                    `json:"placeholder,omitempty"`
	Dimensions  map[string]*HeatmapMatrix `json:"dimensions"`
}

// CorrelationHeatmap correlates the slices selected by the context of the x
// dimension with each other, once over the population of the distinguish1
// filter and once more over distinguish2 if present. Without distinguish1
// every index entity with data is used.
func CorrelationHeatmap(ctx context.Context, svc dataservice.Service, cfg plot.PlotConfig, opts HeatmapOptions) (*HeatmapResponse, error) {
	if opts.MaxEntities <= 0 {
		opts.MaxEntities = config.DefaultMaxCorrelationEntities
	}

	dim, ok := cfg.Dimensions[plot.RoleX]
	if !ok || !dim.IsComplete() {
		return nil, common.NewConfigurationError("heatmap needs a complete %q dimension", plot.RoleX)
	}
	if dim.Aggregation != stats.AggCorrelation {
		return nil, common.NewConfigurationError("heatmap dimension must use the %q aggregation, got %q", stats.AggCorrelation, dim.Aggregation)
	}

	set, err := svc.EvaluateContext(ctx, *dim.Context)
	if err != nil {
		return nil, err
	}
	resp := &HeatmapResponse{
		AxisLabel:  fmt.Sprintf("%s (%d %ss)", dim.Context.Name, set.Len(), dim.EntityType),
		Dimensions: map[string]*HeatmapMatrix{},
	}
	switch {
	case set.Len() == 0:
		resp.Placeholder = fmt.Sprintf("%s selects no %ss", dim.Context.Name, dim.EntityType)
		return resp, nil
	case set.Len() > opts.MaxEntities:
		resp.Placeholder = fmt.Sprintf("cannot plot more than %d %ss, %s selects %d",
			opts.MaxEntities, dim.EntityType, dim.Context.Name, set.Len())
		return resp, nil
	}

	populations := map[string]*contexts.Context{plot.RoleX: nil}
	if c, ok := cfg.Filters[FilterDistinguish1]; ok {
		populations[plot.RoleX] = &c
	}
	if c, ok := cfg.Filters[FilterDistinguish2]; ok {
		populations[plot.RoleX2] = &c
	}

	var mu sync.Mutex
	results := make(map[string]*HeatmapMatrix, len(populations))
	matrices := make(map[string]stats.Matrix, len(populations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(heatmapWorkers)
	for role, population := range populations {
		g.Go(func() error {
			sm, err := svc.GetSliceMatrix(gctx, dataservice.SliceMatrixRequest{
				DatasetID:    dim.DatasetID,
				Context:      *dim.Context,
				IndexContext: population,
			})
			if err != nil {
				return &common.ResolutionFailure{Request: fmt.Sprintf("slice matrix %q", role), Err: err}
			}
			series := make([]stats.Series, len(sm.Slices))
			for i, s := range sm.Slices {
				series[i] = stats.Series{Name: s.Label, Values: s.Values}
			}
			// Only the primary matrix picks the column order.
			m := stats.CorrelationMatrix(series, cfg.UseClustering && role == plot.RoleX)

			mu.Lock()
			defer mu.Unlock()
			matrices[role] = m
			results[role] = &HeatmapMatrix{
				Population: populationName(population, cfg.IndexType),
				IndexCount: len(sm.IndexLabels),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	primary := matrices[plot.RoleX]
	for role, hm := range results {
		m := matrices[role]
		if role != plot.RoleX {
			m = alignColumns(m, primary.Columns)
		}
		hm.Columns = m.Columns
		hm.Matrix = make([]dataservice.Values, len(m.Values))
		for i, row := range m.Values {
			hm.Matrix[i] = row
		}
		resp.Dimensions[role] = hm
	}
	return resp, nil
}

func populationName(c *contexts.Context, indexType string) string {
	if c == nil {
		return "All " + indexType + "s"
	}
	if c.Negated {
		return "Not " + c.Name
	}
	return c.Name
}

// alignColumns reorders m to the column order of columns. Columns unknown
// to m keep their relative order at the end.
func alignColumns(m stats.Matrix, columns []string) stats.Matrix {
	pos := make(map[string]int, len(m.Columns))
	for i, c := range m.Columns {
		pos[c] = i
	}
	order := make([]int, 0, len(m.Columns))
	used := make([]bool, len(m.Columns))
	for _, c := range columns {
		if i, ok := pos[c]; ok && !used[i] {
			order = append(order, i)
			used[i] = true
		}
	}
	for i := range m.Columns {
		if !used[i] {
			order = append(order, i)
		}
	}
	return m.Permute(order)
}
