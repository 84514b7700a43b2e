package contexts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mahesh-hegde/explorer/app/common"
)

// SQLiteStore is the durable content-addressable store. Rows are never
// deleted; uncataloging a context only touches the local catalog.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var _ Store = &SQLiteStore{}

func (s *SQLiteStore) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS explorer_contexts (
			hash TEXT PRIMARY KEY,
			dimension_type TEXT,
			content BLOB
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create explorer_contexts table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PersistContext(ctx context.Context, c Context) (string, error) {
	hash, content, err := c.Content()
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO explorer_contexts (hash, dimension_type, content) VALUES (?, ?, ?)",
		hash, c.DimensionType, content)
	if err != nil {
		return "", fmt.Errorf("failed to store context: %w", err)
	}
	return hash, nil
}

func (s *SQLiteStore) FetchContext(ctx context.Context, hash string) (Context, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, "SELECT content FROM explorer_contexts WHERE hash = ?", hash).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return Context{}, &common.ContextNotFoundError{Hash: hash}
	}
	if err != nil {
		return Context{}, fmt.Errorf("failed to fetch context: %w", err)
	}
	return decodeContent(hash, content)
}

func decodeContent(hash string, content []byte) (Context, error) {
	var c Context
	if err := json.Unmarshal(content, &c); err != nil {
		return Context{}, fmt.Errorf("stored context %s is corrupt: %w", hash, err)
	}
	return c, nil
}
