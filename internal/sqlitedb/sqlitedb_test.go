package sqlitedb

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	var timeout int
	require.NoError(t, db.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout))
	assert.Equal(t, BusyTimeoutMillis, timeout)

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestConcurrentWriteTransactions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	// A second handle stands in for another process on the same file.
	other, err := Open(path)
	require.NoError(t, err)
	defer other.Close()

	_, err = db.Exec(`CREATE TABLE counters (id INTEGER PRIMARY KEY, n INTEGER NOT NULL)`)
	require.NoError(t, err)

	ctx := context.Background()
	const writers = 16
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		handle := db
		if i%2 == 1 {
			handle = other
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := handle.BeginTx(ctx, nil)
			if err != nil {
				errs <- err
				return
			}
			defer tx.Rollback()
			var next int
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(n), 0) + 1 FROM counters`).Scan(&next); err != nil {
				errs <- fmt.Errorf("writer %d: %w", i, err)
				return
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO counters (n) VALUES (?)`, next); err != nil {
				errs <- fmt.Errorf("writer %d: %w", i, err)
				return
			}
			errs <- tx.Commit()
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	var count, distinct int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT n) FROM counters`).Scan(&count, &distinct))
	assert.Equal(t, writers, count)
	assert.Equal(t, writers, distinct)
}
