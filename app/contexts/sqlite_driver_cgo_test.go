//go:build !native_sqlite

package contexts

import (
	_ "github.com/mattn/go-sqlite3"
)

const testSQLiteDriver = "sqlite3"
