// Package filters evaluates per-column filter specifications into boolean
// masks over tabular data.
//
// A filter only ever looks at its own column, and evaluation is pure, which
// is what lets every filter be memoized on its own.
package filters

import (
	"encoding/json"
	"math"
)

type Kind string

const (
	KindRange       Kind = "range"
	KindNumberInput Kind = "numberInput"
	KindCheckbox    Kind = "checkbox"
	KindMultiselect Kind = "multiselect"
)

// Table is column-oriented data: column key -> values. Numbers are float64
// (nil or NaN when missing); categorical values are strings, bools, or lists.
type Table map[string][]any

// Len is the length of the longest column.
func (t Table) Len() int {
	n := 0
	for _, col := range t {
		if len(col) > n {
			n = len(col)
		}
	}
	return n
}

// Filter is one of RangeFilter, NumberInputFilter, CheckboxFilter or
// MultiselectFilter.
type Filter interface {
	Kind() Kind
	FilterKey() string
	FilterLabel() string
	isFilter()
}

// Base holds what every filter kind has.
type Base struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func (b Base) FilterKey() string   { return b.Key }
func (b Base) FilterLabel() string { return b.Label }

// RangeFilter passes numeric values within Value (inclusive). While Value
// equals Domain the user has not touched it, and it passes everything.
type RangeFilter struct {
	Base
	Domain [2]float64
	Value  [2]float64
	Step   float64
}

// NumberInputFilter is a one-sided threshold: "min" passes x >= Value, "max"
// passes x <= Value.
type NumberInputFilter struct {
	Base
	MinOrMax string
	Value    float64
	Step     float64
}

const SubtypeAdditive = "additive"

// CheckboxFilter compares a column to Match. A plain checkbox keeps only
// matching rows while checked. An additive checkbox is the opposite toggle:
// matching rows are excluded until it is checked.
type CheckboxFilter struct {
	Base
	Match   any
	Value   bool
	Subtype string
}

// MultiselectFilter expands every cell into category tokens and passes rows
// with a token in Value. An empty Value passes everything.
type MultiselectFilter struct {
	Base
	Options   []string
	Value     []string
	Separator string
	Regex     string
	Blocklist []string
}

func (RangeFilter) Kind() Kind       { return KindRange }
func (NumberInputFilter) Kind() Kind { return KindNumberInput }
func (CheckboxFilter) Kind() Kind    { return KindCheckbox }
func (MultiselectFilter) Kind() Kind { return KindMultiselect }

func (RangeFilter) isFilter()       {}
func (NumberInputFilter) isFilter() {}
func (CheckboxFilter) isFilter()    {}
func (MultiselectFilter) isFilter() {}

func (f RangeFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(Spec{
		Kind: KindRange, Key: f.Key, Label: f.Label,
		Domain: &f.Domain, Value: []float64{f.Value[0], f.Value[1]}, Step: &f.Step,
	})
}

func (f NumberInputFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(Spec{
		Kind: KindNumberInput, Key: f.Key, Label: f.Label,
		MinOrMax: f.MinOrMax, Value: f.Value, Step: &f.Step,
	})
}

func (f CheckboxFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(Spec{
		Kind: KindCheckbox, Key: f.Key, Label: f.Label,
		Match: f.Match, Value: f.Value, Subtype: f.Subtype,
	})
}

func (f MultiselectFilter) MarshalJSON() ([]byte, error) {
	value := f.Value
	if value == nil {
		value = []string{}
	}
	return json.Marshal(Spec{
		Kind: KindMultiselect, Key: f.Key, Label: f.Label,
		Options: f.Options, Value: value, Separator: f.Separator,
		Regex: f.Regex, Blocklist: f.Blocklist,
	})
}

const epsilon = 1e-9

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// IsNoop reports whether the range still spans its whole domain.
func (f RangeFilter) IsNoop() bool {
	return floatEqual(f.Value[0], f.Domain[0]) && floatEqual(f.Value[1], f.Domain[1])
}
