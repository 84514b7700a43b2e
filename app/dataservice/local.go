package dataservice

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/datastore"
	"github.com/mahesh-hegde/explorer/app/stats"
)

// Metadata slice ids of this form read one slice of a dataset instead of an
// entity metadata field: dataset/<dataset id>/<slice label>.
const datasetSlicePrefix = "dataset/"

// Local serves the data API from the local datastore.
type Local struct {
	store    datastore.Store
	index    *datastore.EntityIndex
	contexts *contexts.ContextService
}

var _ Service = &Local{}

// NewLocal builds a local data service. index may be nil, in which case
// entity search returns no results.
func NewLocal(store datastore.Store, index *datastore.EntityIndex, cs *contexts.ContextService) *Local {
	return &Local{store: store, index: index, contexts: cs}
}

func (l *Local) EvaluateContext(ctx context.Context, c contexts.Context) (contexts.EntitySet, error) {
	return l.contexts.Evaluate(ctx, c)
}

func (l *Local) PersistContext(ctx context.Context, c contexts.Context) (string, error) {
	return l.contexts.Persist(ctx, c)
}

func (l *Local) FetchContext(ctx context.Context, hash string) (contexts.Context, error) {
	return l.contexts.FetchByHash(ctx, hash)
}

func (l *Local) dataset(ctx context.Context, id, indexType string) (*datastore.Dataset, error) {
	ds, err := l.store.Dataset(ctx, id)
	if err != nil {
		return nil, err
	}
	if ds.IndexType != indexType {
		return nil, common.NewConfigurationError("dataset %q is indexed by %q, not %q", id, ds.IndexType, indexType)
	}
	return ds, nil
}

func (l *Local) GetSharedIndex(ctx context.Context, indexType string, datasetIDs []string) (*SharedIndex, error) {
	entities, err := l.store.Entities(ctx, indexType)
	if err != nil {
		return nil, err
	}

	var present []map[string]bool
	for _, id := range datasetIDs {
		if _, err := l.dataset(ctx, id, indexType); err != nil {
			return nil, err
		}
		labels, err := l.store.IndexLabels(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reading index of %s: %w", id, err)
		}
		set := make(map[string]bool, len(labels))
		for _, label := range labels {
			set[label] = true
		}
		present = append(present, set)
	}

	idx := &SharedIndex{
		IndexType: indexType,
		Labels:    []string{},
		Aliases:   []Alias{{Label: "ID", Slice: contexts.FieldEntityID, Values: []string{}}},
	}
	for _, e := range entities {
		inAll := true
		for _, set := range present {
			if !set[e.Label] {
				inAll = false
				break
			}
		}
		if inAll {
			idx.Labels = append(idx.Labels, e.Label)
			idx.Aliases[0].Values = append(idx.Aliases[0].Values, e.ID)
		}
	}
	return idx, nil
}

func (l *Local) GetDimension(ctx context.Context, indexType string, d Dimension) (*DimensionResult, error) {
	if !d.IsComplete() {
		return nil, common.NewConfigurationError("dimension on dataset %q is incomplete", d.DatasetID)
	}
	ds, err := l.dataset(ctx, d.DatasetID, indexType)
	if err != nil {
		return nil, err
	}
	if d.Context.DimensionType != ds.SliceType {
		return nil, common.NewConfigurationError("dimension context is over %q but dataset %q has %q slices",
			d.Context.DimensionType, ds.ID, ds.SliceType)
	}
	agg := d.Aggregation
	if d.AxisType == AxisEntity {
		agg = stats.AggFirst
	}
	if agg == stats.AggCorrelation {
		return nil, common.NewConfigurationError("correlation dimensions are resolved as a slice matrix")
	}

	set, err := l.contexts.Evaluate(ctx, *d.Context)
	if err != nil {
		return nil, err
	}
	cells, err := l.store.Cells(ctx, ds.ID, set.Labels)
	if err != nil {
		return nil, fmt.Errorf("reading values of %s: %w", ds.ID, err)
	}

	// Aggregate in the context's slice order so "first" is well defined.
	order := make(map[string]int, len(set.Labels))
	for i, label := range set.Labels {
		order[label] = i
	}
	byIndex := make(map[string][]float64)
	for _, c := range cells {
		row := byIndex[c.IndexLabel]
		if row == nil {
			row = make([]float64, len(set.Labels))
			for i := range row {
				row[i] = math.NaN()
			}
			byIndex[c.IndexLabel] = row
		}
		row[order[c.SliceLabel]] = c.Value
	}

	res := &DimensionResult{
		Label:         axisLabel(d, ds, set),
		DatasetLabel:  ds.Label,
		Units:         ds.Units,
		IndexedValues: make(map[string]float64, len(byIndex)),
	}
	for label, row := range byIndex {
		v, err := stats.Aggregate(agg, row)
		if err != nil {
			return nil, common.NewConfigurationError("%v", err)
		}
		if !math.IsNaN(v) {
			res.IndexedValues[label] = v
		}
	}
	return res, nil
}

func axisLabel(d Dimension, ds *datastore.Dataset, set contexts.EntitySet) string {
	if d.AxisType == AxisEntity && set.Len() == 1 {
		return fmt.Sprintf("%s %s", set.Labels[0], ds.Label)
	}
	return fmt.Sprintf("%s %s %s", d.Aggregation, d.Context.Name, ds.Label)
}

func (l *Local) GetFilter(ctx context.Context, indexType string, c contexts.Context) (*FilterResult, error) {
	if c.DimensionType != indexType {
		return nil, common.NewConfigurationError("filter context %q is over %q, not %q", c.Name, c.DimensionType, indexType)
	}
	set, err := l.contexts.Evaluate(ctx, c)
	if err != nil {
		return nil, err
	}
	entities, err := l.store.Entities(ctx, indexType)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]bool, set.Len())
	for _, label := range set.Labels {
		selected[label] = true
	}
	res := &FilterResult{Name: c.Name, IndexedValues: make(map[string]bool, len(entities))}
	for _, e := range entities {
		res.IndexedValues[e.Label] = selected[e.Label]
	}
	return res, nil
}

func (l *Local) GetMetadata(ctx context.Context, indexType string, sliceID string) (*MetadataResult, error) {
	if rest, ok := strings.CutPrefix(sliceID, datasetSlicePrefix); ok {
		datasetID, sliceLabel, ok := strings.Cut(rest, "/")
		if !ok || datasetID == "" || sliceLabel == "" {
			return nil, common.NewConfigurationError("malformed dataset slice id %q", sliceID)
		}
		return l.datasetSlice(ctx, indexType, datasetID, sliceLabel)
	}

	var fields []string
	if sliceID != contexts.FieldEntityID && sliceID != contexts.FieldEntityLabel {
		fields = []string{sliceID}
	}
	table, err := l.store.EntityTable(ctx, indexType, fields)
	if err != nil {
		return nil, err
	}

	res := &MetadataResult{Label: sliceID, IndexedValues: make(map[string]any, len(table.Labels))}
	switch sliceID {
	case contexts.FieldEntityID:
		for i, label := range table.Labels {
			res.IndexedValues[label] = table.IDs[i]
		}
	case contexts.FieldEntityLabel:
		for _, label := range table.Labels {
			res.IndexedValues[label] = label
		}
	default:
		col, ok := table.Columns[sliceID]
		if !ok {
			return nil, common.NewConfigurationError("dimension type %q has no metadata field %q", indexType, sliceID)
		}
		for i, label := range table.Labels {
			if col[i] != nil {
				res.IndexedValues[label] = col[i]
			}
		}
	}
	return res, nil
}

func (l *Local) datasetSlice(ctx context.Context, indexType, datasetID, sliceLabel string) (*MetadataResult, error) {
	ds, err := l.dataset(ctx, datasetID, indexType)
	if err != nil {
		return nil, err
	}
	cells, err := l.store.Cells(ctx, ds.ID, []string{sliceLabel})
	if err != nil {
		return nil, err
	}
	res := &MetadataResult{
		Label:         fmt.Sprintf("%s %s", sliceLabel, ds.Label),
		IndexedValues: make(map[string]any, len(cells)),
	}
	for _, c := range cells {
		res.IndexedValues[c.IndexLabel] = c.Value
	}
	return res, nil
}

func (l *Local) GetSliceMatrix(ctx context.Context, req SliceMatrixRequest) (*SliceMatrix, error) {
	ds, err := l.store.Dataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	if req.Context.DimensionType != ds.SliceType {
		return nil, common.NewConfigurationError("slice context is over %q but dataset %q has %q slices",
			req.Context.DimensionType, ds.ID, ds.SliceType)
	}
	slices, err := l.contexts.Evaluate(ctx, req.Context)
	if err != nil {
		return nil, err
	}

	var allowed map[string]bool
	if req.IndexContext != nil {
		if req.IndexContext.DimensionType != ds.IndexType {
			return nil, common.NewConfigurationError("index context is over %q but dataset %q is indexed by %q",
				req.IndexContext.DimensionType, ds.ID, ds.IndexType)
		}
		set, err := l.contexts.Evaluate(ctx, *req.IndexContext)
		if err != nil {
			return nil, err
		}
		allowed = make(map[string]bool, set.Len())
		for _, label := range set.Labels {
			allowed[label] = true
		}
	}

	cells, err := l.store.Cells(ctx, ds.ID, slices.Labels)
	if err != nil {
		return nil, err
	}
	values := make(map[string]map[string]float64, len(slices.Labels))
	hasData := make(map[string]bool)
	for _, c := range cells {
		if allowed != nil && !allowed[c.IndexLabel] {
			continue
		}
		if values[c.SliceLabel] == nil {
			values[c.SliceLabel] = make(map[string]float64)
		}
		values[c.SliceLabel][c.IndexLabel] = c.Value
		hasData[c.IndexLabel] = true
	}

	entities, err := l.store.Entities(ctx, ds.IndexType)
	if err != nil {
		return nil, err
	}
	m := &SliceMatrix{IndexLabels: []string{}, Slices: make([]Slice, 0, slices.Len())}
	for _, e := range entities {
		if hasData[e.Label] {
			m.IndexLabels = append(m.IndexLabels, e.Label)
		}
	}
	for _, label := range slices.Labels {
		row := make(Values, len(m.IndexLabels))
		for i, idx := range m.IndexLabels {
			v, ok := values[label][idx]
			if !ok {
				v = math.NaN()
			}
			row[i] = v
		}
		m.Slices = append(m.Slices, Slice{Label: label, Values: row})
	}
	return m, nil
}

func (l *Local) ListDatasets(ctx context.Context) ([]DatasetDescriptor, error) {
	datasets, err := l.store.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]DatasetDescriptor, len(datasets))
	for i, d := range datasets {
		res[i] = DatasetDescriptor(d)
	}
	return res, nil
}

func (l *Local) SearchEntities(ctx context.Context, dimensionType string, q string, limit int) ([]SearchHit, error) {
	if l.index == nil {
		return nil, common.NewUserVisibleError(http.StatusServiceUnavailable, "entity search is not available")
	}
	hits, err := l.index.Search(ctx, dimensionType, q, limit)
	if err != nil {
		return nil, err
	}
	res := make([]SearchHit, len(hits))
	for i, h := range hits {
		res[i] = SearchHit(h)
	}
	return res, nil
}
