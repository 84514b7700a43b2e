package datastore

import (
	"database/sql"
	"log/slog"
	"path/filepath"
)

const dbFileName = "explorer.db"

// NewSQLiteDB opens the explorer database in dataDir.
func NewSQLiteDB(dataDir string, readonly bool) (*sql.DB, error) {
	dbPath := DBPath(dataDir)
	if readonly {
		dbPath = dbPath + "?mode=ro&immutable=1&_journal_mode=OFF"
	}
	slog.Info("opening SQLite DB", "dbPath", dbPath)
	db, err := sql.Open(SQLiteDriverName, dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// DBPath is where the explorer database of dataDir lives.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, dbFileName)
}
