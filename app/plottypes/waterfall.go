package plottypes

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/plot"
)

const rankLabel = "Rank"

// Waterfall sorts the index by an optional category taken from the metadata
// entry colorProperty, then by the x values, and reorders every aligned array
// accordingly. In the result y holds the sorted x values and x holds ranks
// 0..n-1. resp is left untouched.
//
// Missing categories sort before present ones; missing x values sort after
// present ones.
func Waterfall(resp *plot.PlotResponse, colorProperty string) (*plot.PlotResponse, error) {
	x, ok := resp.Dimensions[plot.RoleX]
	if !ok {
		return nil, common.NewConfigurationError("waterfall needs an %q dimension", plot.RoleX)
	}

	var category []any
	if colorProperty != "" {
		if m, ok := resp.Metadata[colorProperty]; ok {
			category = m.Values
		} else {
			slog.Warn("waterfall color property not resolved, sorting by value only", "color_property", colorProperty)
		}
	}

	order := make([]int, resp.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if category != nil {
			if c := compareCategory(category[a], category[b]); c != 0 {
				return c
			}
		}
		return compareValue(x.Values[a], x.Values[b])
	})

	out := resp.Clone()
	out.Permute(order)

	sorted := out.Dimensions[plot.RoleX]
	ranks := make(dataservice.Values, len(order))
	for i := range ranks {
		ranks[i] = float64(i)
	}
	out.Dimensions[plot.RoleY] = sorted
	out.Dimensions[plot.RoleX] = &plot.DimensionData{Label: rankLabel, Values: ranks}
	return out, nil
}

func compareCategory(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(categoryString(a), categoryString(b))
}

func categoryString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func compareValue(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmp.Compare(a, b)
}
