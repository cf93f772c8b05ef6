// Package sqlitedb opens the sqlite databases used by the run history and
// the data store.
package sqlitedb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// BusyTimeoutMillis is how long a connection waits on another writer before
// failing with SQLITE_BUSY.
const BusyTimeoutMillis = 5000

// Open opens the database at path. Concurrent runs in one process share a
// single connection, and write transactions take the write lock when they
// begin, so they queue behind each other instead of failing. Other processes
// on the same file wait up to BusyTimeoutMillis.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func DSN(path string) string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate", path, BusyTimeoutMillis)
}
