package contexts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/mahesh-hegde/explorer/app/common"
)

// catalogKey holds the whole name index as one JSON document, so that every
// mutation is a single read-modify-write of one key.
var catalogKey = []byte("explorer/context_catalog")

// CatalogEntry names a persisted context. The expression itself is not kept
// here; it lives in the content-addressable store under Hash.
type CatalogEntry struct {
	Hash          string `json:"hash"`
	Name          string `json:"name"`
	DimensionType string `json:"dimension_type"`
}

type catalogValue struct {
	Name          string `json:"name"`
	DimensionType string `json:"dimension_type"`
}

// Persister is the part of the context engine the catalog needs.
type Persister interface {
	Persist(ctx context.Context, c Context) (string, error)
}

// Catalog is the local hash -> {name, dimension type} index of saved
// contexts. Deleting an entry never deletes content from the store.
type Catalog struct {
	mu        sync.Mutex
	db        *badger.DB
	persister Persister
}

func NewCatalog(db *badger.DB, persister Persister) *Catalog {
	return &Catalog{db: db, persister: persister}
}

// OpenCatalogDB opens the badger database backing a catalog. An empty path
// opens an in-memory database.
func OpenCatalogDB(path string) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(&badgerLogger{logger: slog.Default()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

// Save persists c and records it under its name. If replaceHash is set, that
// entry is removed in the same update, so renaming or editing a saved context
// never leaves both versions behind.
func (cat *Catalog) Save(ctx context.Context, c Context, replaceHash string) (string, error) {
	if c.Name == "" {
		return "", common.NewConfigurationError("cannot catalog a context without a name")
	}
	hash, err := cat.persister.Persist(ctx, c)
	if err != nil {
		return "", fmt.Errorf("persisting context %q: %w", c.Name, err)
	}

	err = cat.update(func(entries map[string]catalogValue) {
		if replaceHash != "" && replaceHash != hash {
			delete(entries, replaceHash)
		}
		entries[hash] = catalogValue{Name: c.Name, DimensionType: c.DimensionType}
	})
	if err != nil {
		return "", err
	}
	slog.Debug("context cataloged", "hash", hash, "name", c.Name, "replaced", replaceHash)
	return hash, nil
}

// Delete removes hash from the catalog. The content stays retrievable by hash.
func (cat *Catalog) Delete(hash string) error {
	return cat.update(func(entries map[string]catalogValue) {
		delete(entries, hash)
	})
}

// List returns the cataloged contexts of one dimension type, or of every type
// when dimensionType is empty, ordered by name then hash.
func (cat *Catalog) List(dimensionType string) ([]CatalogEntry, error) {
	entries, err := cat.read()
	if err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0, len(entries))
	for hash, v := range entries {
		if dimensionType != "" && v.DimensionType != dimensionType {
			continue
		}
		out = append(out, CatalogEntry{Hash: hash, Name: v.Name, DimensionType: v.DimensionType})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Hash < out[j].Hash
	})
	return out, nil
}

func (cat *Catalog) Get(hash string) (CatalogEntry, bool, error) {
	entries, err := cat.read()
	if err != nil {
		return CatalogEntry{}, false, err
	}
	v, ok := entries[hash]
	if !ok {
		return CatalogEntry{}, false, nil
	}
	return CatalogEntry{Hash: hash, Name: v.Name, DimensionType: v.DimensionType}, true, nil
}

func (cat *Catalog) read() (map[string]catalogValue, error) {
	var entries map[string]catalogValue
	err := cat.db.View(func(txn *badger.Txn) error {
		var err error
		entries, err = loadEntries(txn)
		return err
	})
	return entries, err
}

// update runs one read-modify-write of the index. The mutex keeps concurrent
// updates from this process from conflicting, and the badger transaction
// makes the write itself atomic.
func (cat *Catalog) update(modify func(map[string]catalogValue)) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	return cat.db.Update(func(txn *badger.Txn) error {
		entries, err := loadEntries(txn)
		if err != nil {
			return err
		}
		modify(entries)
		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("encoding context catalog: %w", err)
		}
		return txn.Set(catalogKey, data)
	})
}

func loadEntries(txn *badger.Txn) (map[string]catalogValue, error) {
	entries := make(map[string]catalogValue)
	item, err := txn.Get(catalogKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading context catalog: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entries)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding context catalog: %w", err)
	}
	return entries, nil
}

// badgerLogger adapts slog to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
