package filters

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"

	"github.com/mahesh-hegde/explorer/app/common"
)

// Spec is the declarative, possibly partial form of a filter as it appears
// in configuration or in a request. The meaning of Value depends on Kind:
// [lo, hi] for range, a number for numberInput, a bool for checkbox and a
// list of strings for multiselect.
type Spec struct {
	Kind  Kind   `json:"kind"`
	Key   string `json:"key"`
	Label string `json:"label"`
	Value any    `json:"value,omitempty"`

	Domain   *[2]float64 `json:"domain,omitempty"`
	Step     *float64    `json:"step,omitempty"`
	MinOrMax string      `json:"minOrMax,omitempty"`

	Match   any    `json:"match,omitempty"`
	Subtype string `json:"subtype,omitempty"`

	Options   []string `json:"options,omitempty"`
	Separator string   `json:"separator,omitempty"`
	Regex     string   `json:"regex,omitempty"`
	Blocklist []string `json:"blocklist,omitempty"`
}

// NormalizeFilters turns specs into complete filters, filling in whatever a
// spec leaves out from the data it will be applied to.
func NormalizeFilters(data Table, specs []Spec) ([]Filter, error) {
	out := make([]Filter, 0, len(specs))
	for i, s := range specs {
		f, err := normalize(data, s)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func normalize(data Table, s Spec) (Filter, error) {
	if s.Key == "" {
		return nil, common.NewConfigurationError("filter spec is missing a key")
	}
	if s.Label == "" {
		return nil, common.NewConfigurationError("filter %q is missing a label", s.Key)
	}
	base := Base{Key: s.Key, Label: s.Label}
	col, hasCol := data[s.Key]
	if !hasCol {
		slog.Warn("normalizing filter without data column", "key", s.Key, "kind", s.Kind)
	}

	switch s.Kind {
	case KindRange:
		f := RangeFilter{Base: base}
		if s.Domain != nil {
			f.Domain = *s.Domain
		} else {
			lo, hi, _ := columnBounds(col)
			f.Domain = [2]float64{lo, hi}
		}
		f.Value = f.Domain
		if s.Value != nil {
			v, err := floatPair(s.Value)
			if err != nil {
				return nil, common.NewConfigurationError("range filter %q: %v", s.Key, err)
			}
			f.Value = v
		}
		f.Step = defaultStep(s.Step, f.Domain)
		return f, nil

	case KindNumberInput:
		f := NumberInputFilter{Base: base, MinOrMax: s.MinOrMax}
		if f.MinOrMax == "" {
			f.MinOrMax = "min"
		}
		if f.MinOrMax != "min" && f.MinOrMax != "max" {
			return nil, common.NewConfigurationError("numberInput filter %q: minOrMax must be \"min\" or \"max\", got %q", s.Key, s.MinOrMax)
		}
		lo, hi, _ := columnBounds(col)
		if s.Value != nil {
			v, ok := number(s.Value)
			if !ok {
				return nil, common.NewConfigurationError("numberInput filter %q: value must be a number", s.Key)
			}
			f.Value = v
		} else if f.MinOrMax == "min" {
			f.Value = lo
		} else {
			f.Value = hi
		}
		f.Step = defaultStep(s.Step, [2]float64{lo, hi})
		return f, nil

	case KindCheckbox:
		f := CheckboxFilter{Base: base, Match: s.Match, Subtype: s.Subtype}
		if f.Match == nil {
			f.Match = true
		}
		if s.Value != nil {
			v, ok := s.Value.(bool)
			if !ok {
				return nil, common.NewConfigurationError("checkbox filter %q: value must be a boolean", s.Key)
			}
			f.Value = v
		}
		if f.Subtype != "" && f.Subtype != SubtypeAdditive {
			return nil, common.NewConfigurationError("checkbox filter %q: unknown subtype %q", s.Key, s.Subtype)
		}
		return f, nil

	case KindMultiselect:
		f := MultiselectFilter{
			Base:      base,
			Separator: s.Separator,
			Regex:     s.Regex,
			Blocklist: s.Blocklist,
			Value:     []string{},
		}
		if f.Regex != "" {
			if _, err := compileRegex(f.Regex); err != nil {
				return nil, common.NewConfigurationError("multiselect filter %q: invalid regex: %v", s.Key, err)
			}
		}
		if s.Value != nil {
			v, err := stringList(s.Value)
			if err != nil {
				return nil, common.NewConfigurationError("multiselect filter %q: %v", s.Key, err)
			}
			f.Value = v
		}
		f.Options = s.Options
		if f.Options == nil {
			f.Options = distinctTokens(f, col)
		}
		return f, nil
	}
	return nil, common.NewConfigurationError("filter %q has unknown kind %q", s.Key, s.Kind)
}

func columnBounds(col []any) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range col {
		x, isNum := number(v)
		if !isNum {
			continue
		}
		ok = true
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

func defaultStep(step *float64, domain [2]float64) float64 {
	if step != nil && *step > 0 {
		return *step
	}
	span := domain[1] - domain[0]
	if span <= 0 {
		return 1
	}
	return span / 100
}

func distinctTokens(f MultiselectFilter, col []any) []string {
	expand := f.tokenizer()
	seen := make(map[string]bool)
	opts := []string{}
	for _, v := range col {
		for _, tok := range expand(v) {
			if !seen[tok] {
				seen[tok] = true
				opts = append(opts, tok)
			}
		}
	}
	sort.Strings(opts)
	return opts
}

func floatPair(v any) ([2]float64, error) {
	var out [2]float64
	switch x := v.(type) {
	case [2]float64:
		return x, nil
	case []float64:
		if len(x) == 2 {
			return [2]float64{x[0], x[1]}, nil
		}
	case []any:
		if len(x) == 2 {
			lo, ok1 := number(x[0])
			hi, ok2 := number(x[1])
			if ok1 && ok2 {
				return [2]float64{lo, hi}, nil
			}
		}
	}
	return out, fmt.Errorf("value must be a [lo, hi] pair of numbers")
}

func stringList(v any) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := tokenString(e)
			if !ok {
				return nil, fmt.Errorf("value must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("value must be a list of strings")
}

// AreFiltersEqual compares two filters by value. Numbers are compared with
// the same epsilon the range no-op rule uses.
func AreFiltersEqual(a, b Filter) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || a.FilterKey() != b.FilterKey() || a.FilterLabel() != b.FilterLabel() {
		return false
	}

	switch a := a.(type) {
	case RangeFilter:
		b := b.(RangeFilter)
		return floatEqual(a.Domain[0], b.Domain[0]) && floatEqual(a.Domain[1], b.Domain[1]) &&
			floatEqual(a.Value[0], b.Value[0]) && floatEqual(a.Value[1], b.Value[1]) &&
			floatEqual(a.Step, b.Step)
	case NumberInputFilter:
		b := b.(NumberInputFilter)
		return a.MinOrMax == b.MinOrMax && floatEqual(a.Value, b.Value) && floatEqual(a.Step, b.Step)
	case CheckboxFilter:
		b := b.(CheckboxFilter)
		return a.Value == b.Value && a.Subtype == b.Subtype && cellMatches(a.Match, b.Match)
	case MultiselectFilter:
		b := b.(MultiselectFilter)
		return slices.Equal(a.Value, b.Value) && slices.Equal(a.Options, b.Options) &&
			a.Separator == b.Separator && a.Regex == b.Regex && slices.Equal(a.Blocklist, b.Blocklist)
	default:
		panic(fmt.Sprintf("filters: unknown filter type %T", a))
	}
}

// GetChangedFilters returns the keys whose filter differs between prev and
// next: changed or added keys in next's order, then removed keys in prev's
// order.
func GetChangedFilters(prev, next []Filter) []string {
	byKey := make(map[string]Filter, len(prev))
	for _, f := range prev {
		byKey[f.FilterKey()] = f
	}
	inNext := make(map[string]bool, len(next))

	changed := []string{}
	for _, f := range next {
		inNext[f.FilterKey()] = true
		old, ok := byKey[f.FilterKey()]
		if !ok || !AreFiltersEqual(old, f) {
			changed = append(changed, f.FilterKey())
		}
	}
	for _, f := range prev {
		if !inNext[f.FilterKey()] {
			changed = append(changed, f.FilterKey())
		}
	}
	return changed
}
