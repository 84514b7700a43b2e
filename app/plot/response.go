package plot

import (
	"github.com/mahesh-hegde/explorer/app/dataservice"
)

type DimensionData struct {
	Label        string             `json:"axis_label"`
	DatasetLabel string             `json:"dataset_label,omitempty"`
	Units        string             `json:"units,omitempty"`
	Values       dataservice.Values `json:"values"`
}

type FilterData struct {
	Name   string `json:"name"`
	Values []bool `json:"values"`
}

type MetadataData struct {
	Label  string `json:"label"`
	Values []any  `json:"values"`
}

// PlotResponse holds every array of a plot aligned to IndexLabels: position
// i of any array refers to IndexLabels[i].
type PlotResponse struct {
	IndexType    string                    `json:"index_type"`
	IndexLabels  []string                  `json:"index_labels"`
	IndexAliases []dataservice.Alias       `json:"index_aliases"`
	Dimensions   map[string]*DimensionData `json:"dimensions"`
	Filters      map[string]*FilterData    `json:"filters"`
	Metadata     map[string]*MetadataData  `json:"metadata"`
}

func (r *PlotResponse) Len() int {
	return len(r.IndexLabels)
}

// Clone returns a deep copy of every array, so the copy can be reordered
// without touching r.
func (r *PlotResponse) Clone() *PlotResponse {
	out := &PlotResponse{
		IndexType:    r.IndexType,
		IndexLabels:  append([]string{}, r.IndexLabels...),
		IndexAliases: make([]dataservice.Alias, len(r.IndexAliases)),
		Dimensions:   make(map[string]*DimensionData, len(r.Dimensions)),
		Filters:      make(map[string]*FilterData, len(r.Filters)),
		Metadata:     make(map[string]*MetadataData, len(r.Metadata)),
	}
	for i, a := range r.IndexAliases {
		a.Values = append([]string{}, a.Values...)
		out.IndexAliases[i] = a
	}
	for k, d := range r.Dimensions {
		c := *d
		c.Values = append(dataservice.Values{}, d.Values...)
		out.Dimensions[k] = &c
	}
	for k, f := range r.Filters {
		c := *f
		c.Values = append([]bool{}, f.Values...)
		out.Filters[k] = &c
	}
	for k, m := range r.Metadata {
		c := *m
		c.Values = append([]any{}, m.Values...)
		out.Metadata[k] = &c
	}
	return out
}

// Permute reorders every aligned array in place: position i afterwards holds
// what was at order[i].
func (r *PlotResponse) Permute(order []int) {
	r.IndexLabels = permute(r.IndexLabels, order)
	for i := range r.IndexAliases {
		r.IndexAliases[i].Values = permute(r.IndexAliases[i].Values, order)
	}
	for _, d := range r.Dimensions {
		d.Values = permute(d.Values, order)
	}
	for _, f := range r.Filters {
		f.Values = permute(f.Values, order)
	}
	for _, m := range r.Metadata {
		m.Values = permute(m.Values, order)
	}
}

func permute[S ~[]E, E any](s S, order []int) S {
	out := make(S, len(order))
	for i, o := range order {
		out[i] = s[o]
	}
	return out
}
