package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/contexts"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var _ Store = &SQLiteStore{}

func (s *SQLiteStore) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS explorer_datasets (
			id TEXT PRIMARY KEY,
			label TEXT,
			priority INTEGER,
			dataset BLOB
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create explorer_datasets table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS explorer_entities (
			dimension_type TEXT,
			id TEXT,
			label TEXT,
			position INTEGER,
			metadata BLOB,
			PRIMARY KEY (dimension_type, id)
		);
		CREATE INDEX IF NOT EXISTS idx_entities_position ON explorer_entities(dimension_type, position);
	`)
	if err != nil {
		return fmt.Errorf("failed to create explorer_entities table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS explorer_values (
			dataset_id TEXT,
			index_label TEXT,
			slice_label TEXT,
			value REAL
		);
		CREATE INDEX IF NOT EXISTS idx_values_slice ON explorer_values(dataset_id, slice_label);
	`)
	if err != nil {
		return fmt.Errorf("failed to create explorer_values table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddDatasets(ctx context.Context, ds []Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO explorer_datasets (id, label, priority, dataset) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range ds {
		blob, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to encode dataset %s: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Label, d.Priority, blob); err != nil {
			return fmt.Errorf("failed to insert dataset %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AddEntities(ctx context.Context, dimensionType string, es []Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM explorer_entities WHERE dimension_type = ?",
		dimensionType).Scan(&next)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO explorer_entities (dimension_type, id, label, position, metadata) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range es {
		blob, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata of %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, dimensionType, e.ID, e.Label, next+i, blob); err != nil {
			return fmt.Errorf("failed to insert entity %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AddCells(ctx context.Context, datasetID string, cells []Cell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO explorer_values (dataset_id, index_label, slice_label, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range cells {
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			continue
		}
		if _, err := stmt.ExecContext(ctx, datasetID, c.IndexLabel, c.SliceLabel, c.Value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Datasets(ctx context.Context) ([]Dataset, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT dataset FROM explorer_datasets ORDER BY priority, label, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []Dataset{}
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var d Dataset
		if err := json.Unmarshal(blob, &d); err != nil {
			return nil, fmt.Errorf("corrupt dataset row: %w", err)
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) Dataset(ctx context.Context, id string) (*Dataset, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT dataset FROM explorer_datasets WHERE id = ?", id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewUserVisibleError(http.StatusNotFound, fmt.Sprintf("No such dataset %q", id))
	}
	if err != nil {
		return nil, err
	}
	var d Dataset
	if err := json.Unmarshal(blob, &d); err != nil {
		return nil, fmt.Errorf("corrupt dataset row %s: %w", id, err)
	}
	return &d, nil
}

func (s *SQLiteStore) Entities(ctx context.Context, dimensionType string) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, label, metadata FROM explorer_entities WHERE dimension_type = ? ORDER BY position",
		dimensionType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []Entity{}
	for rows.Next() {
		var e Entity
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Label, &blob); err != nil {
			return nil, err
		}
		if len(blob) > 0 {
			if err := json.Unmarshal(blob, &e.Metadata); err != nil {
				return nil, fmt.Errorf("corrupt metadata for %s: %w", e.ID, err)
			}
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EntityTable implements contexts.MetadataSource. A field is known if any
// entity of the dimension type has it.
func (s *SQLiteStore) EntityTable(ctx context.Context, dimensionType string, fields []string) (*contexts.EntityTable, error) {
	es, err := s.Entities(ctx, dimensionType)
	if err != nil {
		return nil, err
	}
	return entityTable(es, fields), nil
}

func entityTable(es []Entity, fields []string) *contexts.EntityTable {
	t := &contexts.EntityTable{
		IDs:     make([]string, len(es)),
		Labels:  make([]string, len(es)),
		Columns: make(map[string][]any, len(fields)),
	}
	for _, f := range fields {
		col := make([]any, len(es))
		known := false
		for i, e := range es {
			if v, ok := e.Metadata[f]; ok {
				col[i] = v
				known = true
			}
		}
		if known {
			t.Columns[f] = col
		}
	}
	for i, e := range es {
		t.IDs[i] = e.ID
		t.Labels[i] = e.Label
	}
	return t
}

func (s *SQLiteStore) IndexLabels(ctx context.Context, datasetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT index_label FROM explorer_values WHERE dataset_id = ?", datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		res = append(res, label)
	}
	return res, rows.Err()
}

// Keeps IN lists under SQLite's bound parameter limit.
const maxQueryParams = 500

func (s *SQLiteStore) Cells(ctx context.Context, datasetID string, sliceLabels []string) ([]Cell, error) {
	if sliceLabels == nil {
		return s.queryCells(ctx, "SELECT index_label, slice_label, value FROM explorer_values WHERE dataset_id = ?", datasetID)
	}

	res := []Cell{}
	for start := 0; start < len(sliceLabels); start += maxQueryParams {
		chunk := sliceLabels[start:min(start+maxQueryParams, len(sliceLabels))]
		args := make([]any, 0, len(chunk)+1)
		args = append(args, datasetID)
		for _, l := range chunk {
			args = append(args, l)
		}
		q := "SELECT index_label, slice_label, value FROM explorer_values WHERE dataset_id = ? AND slice_label IN (" +
			strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",") + ")"
		cells, err := s.queryCells(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		res = append(res, cells...)
	}
	return res, nil
}

func (s *SQLiteStore) queryCells(ctx context.Context, q string, args ...any) ([]Cell, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []Cell{}
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.IndexLabel, &c.SliceLabel, &c.Value); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
