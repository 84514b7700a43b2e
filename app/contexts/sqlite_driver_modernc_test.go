//go:build native_sqlite

package contexts

import (
	_ "modernc.org/sqlite"
)

const testSQLiteDriver = "sqlite"
