package plottypes

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/plot"
	"github.com/mahesh-hegde/explorer/app/stats"
)

// Grouping selects how points are split before fitting. CategoryKey names a
// metadata entry; Highlights names up to two filter entries. At most one of
// the two may be set. With neither, all points form one group.
type Grouping struct {
	CategoryKey string   `json:"category_key,omitempty"`
	Highlights  []string `json:"highlights,omitempty"`
}

// GroupRegression summarizes the x/y relationship within one group. A nil
// Group is the group of points without a category.
type GroupRegression struct {
	Group     *string `json:"group"`
	N         int     `json:"n"`
	Pearson   Float   `json:"pearson"`
	Spearman  Float   `json:"spearman"`
	Slope     Float   `json:"slope"`
	Intercept Float   `json:"intercept"`
	PValue    Float   `json:"pvalue"`
}

// LinearRegressionByGroup fits y on x separately for every group of visible
// points where both coordinates are finite. visibleKey names a filter entry
// masking points out; empty means every point is visible. Rows are sorted by
// group label with the ungrouped row last.
func LinearRegressionByGroup(resp *plot.PlotResponse, visibleKey string, grouping Grouping) ([]GroupRegression, error) {
	x, okX := resp.Dimensions[plot.RoleX]
	y, okY := resp.Dimensions[plot.RoleY]
	if !okX || !okY {
		return nil, common.NewConfigurationError("regression needs both %q and %q dimensions", plot.RoleX, plot.RoleY)
	}

	var visible []bool
	if visibleKey != "" {
		f, ok := resp.Filters[visibleKey]
		if !ok {
			return nil, common.NewConfigurationError("unknown visibility filter %q", visibleKey)
		}
		visible = f.Values
	}

	groupOf, err := grouper(resp, grouping)
	if err != nil {
		return nil, err
	}

	type points struct {
		label *string
		xs    []float64
		ys    []float64
	}
	groups := map[string]*points{}
	var ungrouped *points

	for i := range resp.Len() {
		if visible != nil && !visible[i] {
			continue
		}
		xi, yi := x.Values[i], y.Values[i]
		if !finite(xi) || !finite(yi) {
			continue
		}
		label := groupOf(i)
		var p *points
		if label == nil {
			if ungrouped == nil {
				ungrouped = &points{}
			}
			p = ungrouped
		} else {
			p = groups[*label]
			if p == nil {
				p = &points{label: label}
				groups[*label] = p
			}
		}
		p.xs = append(p.xs, xi)
		p.ys = append(p.ys, yi)
	}

	labels := make([]string, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	slices.SortFunc(labels, cmp.Compare[string])

	out := make([]GroupRegression, 0, len(groups)+1)
	for _, l := range labels {
		p := groups[l]
		out = append(out, summarize(p.label, p.xs, p.ys))
	}
	if ungrouped != nil {
		out = append(out, summarize(nil, ungrouped.xs, ungrouped.ys))
	}
	return out, nil
}

func summarize(group *string, xs, ys []float64) GroupRegression {
	fit := stats.LinRegress(xs, ys)
	return GroupRegression{
		Group:     group,
		N:         len(xs),
		Pearson:   Float(stats.Pearson(xs, ys).Statistic),
		Spearman:  Float(stats.Spearman(xs, ys).Statistic),
		Slope:     Float(fit.Slope),
		Intercept: Float(fit.Intercept),
		PValue:    Float(fit.PValue),
	}
}

// grouper returns the group label of each index position.
func grouper(resp *plot.PlotResponse, grouping Grouping) (func(i int) *string, error) {
	if grouping.CategoryKey != "" && len(grouping.Highlights) > 0 {
		return nil, common.NewConfigurationError("group by a category or by highlight filters, not both")
	}

	if grouping.CategoryKey != "" {
		m, ok := resp.Metadata[grouping.CategoryKey]
		if !ok {
			return nil, common.NewConfigurationError("unknown grouping metadata %q", grouping.CategoryKey)
		}
		return func(i int) *string {
			if m.Values[i] == nil {
				return nil
			}
			s := categoryString(m.Values[i])
			return &s
		}, nil
	}

	switch len(grouping.Highlights) {
	case 0:
		return func(int) *string { return nil }, nil
	case 1, 2:
	default:
		return nil, common.NewConfigurationError("at most two highlight filters can group points, got %d", len(grouping.Highlights))
	}

	var highlights []*plot.FilterData
	for _, key := range grouping.Highlights {
		f, ok := resp.Filters[key]
		if !ok {
			return nil, common.NewConfigurationError("unknown highlight filter %q", key)
		}
		highlights = append(highlights, f)
	}

	first := highlights[0].Name
	if len(highlights) == 1 {
		return func(i int) *string {
			if highlights[0].Values[i] {
				return &first
			}
			return nil
		}, nil
	}

	second := highlights[1].Name
	both := fmt.Sprintf("Both (%s & %s)", first, second)
	return func(i int) *string {
		in1, in2 := highlights[0].Values[i], highlights[1].Values[i]
		switch {
		case in1 && in2:
			return &both
		case in1:
			return &first
		case in2:
			return &second
		}
		return nil
	}, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
