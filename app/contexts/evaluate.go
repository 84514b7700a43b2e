package contexts

import (
	"context"
	"fmt"

	"github.com/mahesh-hegde/explorer/app/common"
)

// Built-in fields every dimension type has.
const (
	FieldEntityID    = "entity_id"
	FieldEntityLabel = "entity_label"
)

// EntityTable holds the entities of one dimension type in canonical order,
// plus the requested metadata columns aligned to them.
type EntityTable struct {
	IDs     []string
	Labels  []string
	Columns map[string][]any
}

// MetadataSource provides entity metadata. EntityTable returns only the
// columns it knows about; a requested field that is absent from Columns is an
// unknown field.
type MetadataSource interface {
	EntityTable(ctx context.Context, dimensionType string, fields []string) (*EntityTable, error)
}

type Evaluator struct {
	source MetadataSource
}

func NewEvaluator(source MetadataSource) *Evaluator {
	return &Evaluator{source: source}
}

// Evaluate resolves c into the matching entities.
func (ev *Evaluator) Evaluate(ctx context.Context, c Context) (EntitySet, error) {
	if err := c.Validate(); err != nil {
		return EntitySet{}, err
	}
	if ev.source == nil {
		return EntitySet{}, fmt.Errorf("no metadata source to evaluate context %q", c.Name)
	}

	var fields []string
	if !IsLiteralTrue(c.Expr) {
		for _, v := range Vars(c.Expr) {
			if v != FieldEntityID && v != FieldEntityLabel {
				fields = append(fields, v)
			}
		}
	}

	table, err := ev.source.EntityTable(ctx, c.DimensionType, fields)
	if err != nil {
		return EntitySet{}, fmt.Errorf("loading metadata for %q: %w", c.DimensionType, err)
	}
	for _, f := range fields {
		if _, ok := table.Columns[f]; !ok {
			return EntitySet{}, &common.ContextEvaluationError{DimensionType: c.DimensionType, Field: f}
		}
	}

	set := EntitySet{IDs: []string{}, Labels: []string{}}
	for i := range table.IDs {
		lookup := func(field string) any {
			switch field {
			case FieldEntityID:
				return table.IDs[i]
			case FieldEntityLabel:
				return table.Labels[i]
			}
			col := table.Columns[field]
			if i < len(col) {
				return col[i]
			}
			return nil
		}
		if Match(c.Expr, lookup) != c.Negated {
			set.IDs = append(set.IDs, table.IDs[i])
			set.Labels = append(set.Labels, table.Labels[i])
		}
	}
	return set, nil
}
