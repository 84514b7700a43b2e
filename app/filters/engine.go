package filters

import (
	"context"

	"github.com/mahesh-hegde/explorer/app/memo"
)

// Engine applies filters with one memoized mask per (filter, column, length).
// Changing one filter of a set only re-evaluates that filter.
type Engine struct {
	masks *memo.Memoizer[[]bool]
}

func NewEngine(opts ...memo.Option) *Engine {
	return &Engine{masks: memo.New[[]bool]("filter_mask", opts...)}
}

// ApplyFilter is the memoized form of the package-level ApplyFilter.
func (e *Engine) ApplyFilter(f Filter, data Table, n int) []bool {
	key, err := memo.Key(f, data[f.FilterKey()], n)
	if err != nil {
		return ApplyFilter(f, data, n)
	}
	mask, _ := e.masks.Do(context.Background(), key, func(context.Context) ([]bool, error) {
		return ApplyFilter(f, data, n), nil
	})
	// Callers own the returned mask.
	return append([]bool(nil), mask...)
}

// Cached is the number of masks currently held.
func (e *Engine) Cached() int {
	return e.masks.Len()
}

func (e *Engine) SatisfiesFilters(filters []Filter, data Table) []bool {
	return combine(filters, data, e.ApplyFilter)
}

// FilterMask normalizes specs against data and returns the combined mask.
func (e *Engine) FilterMask(specs []Spec, data Table) ([]bool, error) {
	fs, err := NormalizeFilters(data, specs)
	if err != nil {
		return nil, err
	}
	return e.SatisfiesFilters(fs, data), nil
}
