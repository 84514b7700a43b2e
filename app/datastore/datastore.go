// Package datastore keeps datasets, entities and their metadata in SQLite,
// with an in-memory bleve index for entity label search.
package datastore

import (
	"context"

	"github.com/mahesh-hegde/explorer/app/contexts"
)

// Dataset is the stored form of a dataset descriptor.
type Dataset struct {
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

// Entity is one row of a dimension type. Metadata values are JSON values:
// float64, string, bool, []any or nil.
type Entity struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Cell is one value of a dataset matrix.
type Cell struct {
	IndexLabel string
	SliceLabel string
	Value      float64
}

type Store interface {
	Init() error

	AddDatasets(ctx context.Context, ds []Dataset) error
	// AddEntities appends entities of a dimension type. Insertion order is
	// the canonical order of the dimension type.
	AddEntities(ctx context.Context, dimensionType string, es []Entity) error
	AddCells(ctx context.Context, datasetID string, cells []Cell) error

	// Datasets returns every dataset, by priority then label.
	Datasets(ctx context.Context) ([]Dataset, error)
	Dataset(ctx context.Context, id string) (*Dataset, error)

	// Entities returns the entities of a dimension type in canonical order.
	Entities(ctx context.Context, dimensionType string) ([]Entity, error)

	// IndexLabels returns the distinct index labels that have at least one
	// value in the dataset.
	IndexLabels(ctx context.Context, datasetID string) ([]string, error)

	// Cells returns the values of the given slices. A nil sliceLabels means
	// every slice.
	Cells(ctx context.Context, datasetID string, sliceLabels []string) ([]Cell, error)

	contexts.MetadataSource
}
