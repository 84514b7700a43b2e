// Package plot resolves declarative plot configurations into index-aligned
// arrays, and encodes configurations for URLs.
package plot

import (
	"strings"

	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
)

type PlotType string

const (
	PlotDensity1D          PlotType = "density_1d"
	PlotScatter            PlotType = "scatter"
	PlotWaterfall          PlotType = "waterfall"
	PlotCorrelationHeatmap PlotType = "correlation_heatmap"
)

// MetadataRef names a metadata slice to attach to a plot.
type MetadataRef struct {
	SliceID string `json:"slice_id"`
}

const partialSlicePrefix = "partial:"

// IsPartial reports whether the slice id is still being edited. Partial
// metadata is skipped during resolution.
func (m MetadataRef) IsPartial() bool {
	return m.SliceID == "" || strings.HasPrefix(m.SliceID, partialSlicePrefix)
}

// PlotConfig is the declarative description of one plot. Dimensions are
// keyed by role (x, y, color, x2), Filters by purpose (visible, color1,
// color2) and Metadata by whatever the renderer expects.
type PlotConfig struct {
	PlotType      PlotType                         `json:"plot_type"`
	IndexType     string                           `json:"index_type"`
	Dimensions    map[string]dataservice.Dimension `json:"dimensions"`
	Filters       map[string]contexts.Context      `json:"filters,omitempty"`
	Metadata      map[string]MetadataRef           `json:"metadata,omitempty"`
	ColorProperty string                           `json:"color_property,omitempty"`
	UseClustering bool                             `json:"use_clustering,omitempty"`
}

// Dimension roles.
const (
	RoleX     = "x"
	RoleY     = "y"
	RoleColor = "color"
	RoleX2    = "x2"
)

// Filter purposes.
const (
	FilterVisible = "visible"
	FilterColor1  = "color1"
	FilterColor2  = "color2"
)

// CompleteDimensions returns the dimensions that can be resolved.
func CompleteDimensions(dims map[string]dataservice.Dimension) map[string]dataservice.Dimension {
	out := make(map[string]dataservice.Dimension, len(dims))
	for k, d := range dims {
		if d.IsComplete() {
			out[k] = d
		}
	}
	return out
}
