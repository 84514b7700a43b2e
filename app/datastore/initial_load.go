package datastore

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/mahesh-hegde/explorer/app/config"
)

const batchSize = 1024

// Rows of wide datasets easily exceed bufio's default token size.
const maxLineSize = 64 << 20

type dataRow struct {
	Index  string              `json:"index"`
	Values map[string]*float64 `json:"values"`
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), maxLineSize)
	return scanner
}

func loadEntities(ctx context.Context, store Store, dt config.DimensionTypeDefn, dataDir string) error {
	dataFile := path.Join(dataDir, dt.EntitiesFile)
	file, err := os.Open(dataFile)
	if err != nil {
		return fmt.Errorf("failed to open entities file %s: %w", dataFile, err)
	}
	defer file.Close()

	scanner := newScanner(file)
	entities := make([]Entity, 0, batchSize)
	for scanner.Scan() {
		var e Entity
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			slog.Warn("failed to unmarshal line", "file", dataFile, "err", err)
			continue
		}
		if e.Label == "" {
			e.Label = e.ID
		}
		entities = append(entities, e)

		if len(entities) >= batchSize {
			slog.Info("ingesting entities batch", "dimension_type", dt.Name, "size", len(entities))
			if err := store.AddEntities(ctx, dt.Name, entities); err != nil {
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			entities = make([]Entity, 0, batchSize)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	if len(entities) > 0 {
		if err := store.AddEntities(ctx, dt.Name, entities); err != nil {
			return fmt.Errorf("failed to execute final batch: %w", err)
		}
	}
	slog.Info("Successfully loaded entities", "file", dataFile)
	return nil
}

func loadValues(ctx context.Context, store Store, ds config.DatasetDefn, dataDir string) error {
	dataFile := path.Join(dataDir, ds.DataFile)
	file, err := os.Open(dataFile)
	if err != nil {
		return fmt.Errorf("failed to open data file %s: %w", dataFile, err)
	}
	defer file.Close()

	scanner := newScanner(file)
	cells := make([]Cell, 0, batchSize)
	for scanner.Scan() {
		var row dataRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			slog.Warn("failed to unmarshal line", "file", dataFile, "err", err)
			continue
		}
		for slice, v := range row.Values {
			if v == nil {
				continue
			}
			cells = append(cells, Cell{IndexLabel: row.Index, SliceLabel: slice, Value: *v})
		}

		if len(cells) >= batchSize {
			if err := store.AddCells(ctx, ds.ID, cells); err != nil {
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			cells = make([]Cell, 0, batchSize)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	if len(cells) > 0 {
		if err := store.AddCells(ctx, ds.ID, cells); err != nil {
			return fmt.Errorf("failed to execute final batch: %w", err)
		}
	}
	slog.Info("Successfully loaded dataset", "id", ds.ID, "file", dataFile)
	return nil
}

// LoadInitialData creates the tables and ingests every dimension type and
// dataset named in conf.
func LoadInitialData(ctx context.Context, store Store, conf *config.ExplorerConfig) error {
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}

	for _, dt := range conf.DimensionTypes {
		slog.Info("Loading dimension type", "name", dt.Name)
		if err := loadEntities(ctx, store, dt, conf.DataDir); err != nil {
			return fmt.Errorf("failed to load dimension type %s: %w", dt.Name, err)
		}
	}

	ids := make([]string, len(conf.Datasets))
	for i, d := range conf.Datasets {
		ids[i] = d.ID
	}
	converter := NewDescriptionConverter(ids)

	datasets := make([]Dataset, 0, len(conf.Datasets))
	for _, d := range conf.Datasets {
		html, err := converter.ConvertToHTML(d.Description)
		if err != nil {
			slog.Warn("failed to convert markdown to html", "id", d.ID, "err", err)
		}
		datasets = append(datasets, Dataset{
			ID:              d.ID,
			GivenID:         d.GivenID,
			Label:           d.Label,
			Units:           d.Units,
			DataType:        d.DataType,
			Priority:        d.Priority,
			IndexType:       d.IndexType,
			SliceType:       d.SliceType,
			Description:     d.Description,
			DescriptionHTML: html,
		})
	}
	if err := store.AddDatasets(ctx, datasets); err != nil {
		return fmt.Errorf("failed to add datasets: %w", err)
	}

	for _, d := range conf.Datasets {
		if err := loadValues(ctx, store, d, conf.DataDir); err != nil {
			return fmt.Errorf("failed to load dataset %s: %w", d.ID, err)
		}
	}
	return nil
}

// InitDB opens the database in conf.DataDir, creating and loading it first
// if it does not exist yet.
func InitDB(ctx context.Context, conf *config.ExplorerConfig) (*sql.DB, error) {
	dbPath := DBPath(conf.DataDir)
	_, err := os.Stat(dbPath)
	if err == nil {
		return NewSQLiteDB(conf.DataDir, false)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error checking sqlite db: %w", err)
	}

	db, err := NewSQLiteDB(conf.DataDir, false)
	if err != nil {
		return nil, fmt.Errorf("error creating sqlite db: %w", err)
	}
	if err := LoadInitialData(ctx, NewSQLiteStore(db), conf); err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("error loading initial data into sqlite: %w", err)
	}
	return db, nil
}

// BuildEntityIndex indexes the labels of every configured dimension type.
func BuildEntityIndex(ctx context.Context, store Store, conf *config.ExplorerConfig) (*EntityIndex, error) {
	idx, err := NewEntityIndex()
	if err != nil {
		return nil, err
	}
	for _, dt := range conf.DimensionTypes {
		es, err := store.Entities(ctx, dt.Name)
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to read entities of %s: %w", dt.Name, err)
		}
		if err := idx.Add(dt.Name, es); err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to index entities of %s: %w", dt.Name, err)
		}
	}
	return idx, nil
}
