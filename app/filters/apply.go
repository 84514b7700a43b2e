package filters

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

var regexCache = cache.New(10*time.Minute, 20*time.Minute)

func compileRegex(expr string) (*regexp.Regexp, error) {
	if re, found := regexCache.Get(expr); found {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	regexCache.Set(expr, re, cache.DefaultExpiration)
	return re, nil
}

// ApplyFilter evaluates f over data and returns a mask of length n. If the
// filter's column is missing every row passes.
func ApplyFilter(f Filter, data Table, n int) []bool {
	col, ok := data[f.FilterKey()]
	if !ok {
		slog.Warn("filter column missing from data, passing all rows", "key", f.FilterKey(), "kind", f.Kind())
		return allTrue(n)
	}

	mask := make([]bool, n)
	cell := func(i int) any {
		if i < len(col) {
			return col[i]
		}
		return nil
	}

	switch f := f.(type) {
	case RangeFilter:
		if f.IsNoop() {
			return allTrue(n)
		}
		lo, hi := f.Value[0], f.Value[1]
		for i := range mask {
			x, ok := number(cell(i))
			mask[i] = ok && x >= lo && x <= hi
		}

	case NumberInputFilter:
		for i := range mask {
			x, ok := number(cell(i))
			if !ok {
				continue
			}
			if f.MinOrMax == "max" {
				mask[i] = x <= f.Value
			} else {
				mask[i] = x >= f.Value
			}
		}

	case CheckboxFilter:
		additive := f.Subtype == SubtypeAdditive
		if f.Value == additive {
			return allTrue(n)
		}
		for i := range mask {
			matches := cellMatches(cell(i), f.Match)
			// Plain and checked: keep matching rows. Additive and unchecked:
			// drop them.
			mask[i] = matches != additive
		}

	case MultiselectFilter:
		if len(f.Value) == 0 {
			return allTrue(n)
		}
		want := make(map[string]bool, len(f.Value))
		for _, v := range f.Value {
			want[v] = true
		}
		expand := f.tokenizer()
		for i := range mask {
			for _, tok := range expand(cell(i)) {
				if want[tok] {
					mask[i] = true
					break
				}
			}
		}

	default:
		panic(fmt.Sprintf("filters: unknown filter type %T", f))
	}
	return mask
}

// SatisfiesFilters is the elementwise AND of every filter's mask over the
// length of the longest column.
func SatisfiesFilters(filters []Filter, data Table) []bool {
	return combine(filters, data, ApplyFilter)
}

func combine(filters []Filter, data Table, apply func(Filter, Table, int) []bool) []bool {
	n := data.Len()
	out := allTrue(n)
	for _, f := range filters {
		mask := apply(f, data, n)
		for i := range out {
			out[i] = out[i] && mask[i]
		}
	}
	return out
}

func allTrue(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

func number(v any) (float64, bool) {
	var x float64
	switch n := v.(type) {
	case float64:
		x = n
	case float32:
		x = float64(n)
	case int:
		x = float64(n)
	case int64:
		x = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}

func cellMatches(cell, match any) bool {
	if list, ok := cell.([]any); ok {
		for _, c := range list {
			if cellMatches(c, match) {
				return true
			}
		}
		return false
	}
	a, aNum := number(cell)
	b, bNum := number(match)
	if aNum || bNum {
		return aNum && bNum && a == b
	}
	return cell == match
}

func tokenString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	}
	if f, ok := number(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}
	return fmt.Sprint(v), true
}

// tokenizer returns the cell -> category tokens expansion for f: split on
// the separator, extract with the regex, then drop blocklisted tokens.
func (f MultiselectFilter) tokenizer() func(any) []string {
	var re *regexp.Regexp
	if f.Regex != "" {
		var err error
		re, err = compileRegex(f.Regex)
		if err != nil {
			slog.Warn("ignoring invalid multiselect regex", "key", f.Key, "regex", f.Regex, "err", err)
		}
	}
	blocked := make(map[string]bool, len(f.Blocklist))
	for _, b := range f.Blocklist {
		blocked[b] = true
	}

	var expand func(v any) []string
	expand = func(v any) []string {
		if list, ok := v.([]any); ok {
			var out []string
			for _, x := range list {
				out = append(out, expand(x)...)
			}
			return out
		}
		s, ok := tokenString(v)
		if !ok {
			return nil
		}

		parts := []string{s}
		if f.Separator != "" {
			parts = parts[:0]
			for p := range strings.SplitSeq(s, f.Separator) {
				parts = append(parts, strings.TrimSpace(p))
			}
		}

		var out []string
		for _, p := range parts {
			if re != nil {
				for _, m := range re.FindAllStringSubmatch(p, -1) {
					tok := m[0]
					if len(m) > 1 {
						tok = m[1]
					}
					if tok != "" && !blocked[tok] {
						out = append(out, tok)
					}
				}
				continue
			}
			if p != "" && !blocked[p] {
				out = append(out, p)
			}
		}
		return out
	}
	return expand
}
