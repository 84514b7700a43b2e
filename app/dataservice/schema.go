package dataservice

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/stats"
)

type AxisType string

const (
	AxisEntity  AxisType = "entity"
	AxisContext AxisType = "context"
)

// Dimension is one axis, or the color channel, of a plot.
type Dimension struct {
	AxisType    AxisType          `json:"axis_type"`
	EntityType  string            `json:"entity_type"`
	DatasetID   string            `json:"dataset_id"`
	Context     *contexts.Context `json:"context"`
	Aggregation stats.Aggregation `json:"aggregation"`
}

// IsComplete reports whether d names everything needed to resolve it.
// Incomplete dimensions are left out of a resolution, not defaulted.
func (d Dimension) IsComplete() bool {
	if d.DatasetID == "" || d.EntityType == "" || d.Context == nil || d.Context.Expr == nil {
		return false
	}
	if d.AxisType != AxisEntity && d.AxisType != AxisContext {
		return false
	}
	return d.Aggregation.Valid()
}

type DatasetDescriptor struct {
	ID              string `json:"id"`
	GivenID         string `json:"given_id,omitempty"`
	Label           string `json:"label"`
	Units           string `json:"units,omitempty"`
	DataType        string `json:"data_type,omitempty"`
	Priority        int    `json:"priority"`
	IndexType       string `json:"index_type"`
	SliceType       string `json:"slice_type"`
	Description     string `json:"description,omitempty"`
	DescriptionHTML string `json:"description_html,omitempty"`
}

// Alias is an auxiliary display label for every index entry.
type Alias struct {
	Label  string   `json:"label"`
	Slice  string   `json:"slice_id"`
	Values []string `json:"values"`
}

type SharedIndex struct {
	IndexType string   `json:"index_type"`
	Labels    []string `json:"index_labels"`
	Aliases   []Alias  `json:"index_aliases"`
}

// DimensionResult carries one value per index label that has one.
type DimensionResult struct {
	Label         string             `json:"axis_label"`
	DatasetLabel  string             `json:"dataset_label"`
	Units         string             `json:"units,omitempty"`
	IndexedValues map[string]float64 `json:"indexed_values"`
}

type FilterResult struct {
	Name          string          `json:"name"`
	IndexedValues map[string]bool `json:"indexed_values"`
}

type MetadataResult struct {
	Label         string         `json:"label"`
	IndexedValues map[string]any `json:"indexed_values"`
}

// SliceMatrixRequest selects every slice of a dataset matched by Context,
// over the index entities matched by IndexContext (all when nil).
type SliceMatrixRequest struct {
	DatasetID    string            `json:"dataset_id"`
	Context      contexts.Context  `json:"context"`
	IndexContext *contexts.Context `json:"index_context,omitempty"`
}

type Slice struct {
	Label  string `json:"label"`
	Values Values `json:"values"`
}

type SliceMatrix struct {
	IndexLabels []string `json:"index_labels"`
	Slices      []Slice  `json:"slices"`
}

type SearchHit struct {
	DimensionType string  `json:"dimension_type"`
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	Score         float64 `json:"score"`
}

// Values is a numeric array where NaN marks a missing value. It is encoded
// as a JSON array with null in place of NaN.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for i, x := range raw {
		if x == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *x
		}
	}
	*v = out
	return nil
}
