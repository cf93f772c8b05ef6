package datastore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/crudflow/internal/workflow"
)

func openSeeded(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Seed(context.Background(), false))
	return s
}

func TestExecuteRead(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()

	out, err := s.Execute(ctx, "SELECT email, is_active FROM users WHERE name = 'Lisa Anderson'", workflow.ModeRead)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "is_active"}, out.Columns)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, []any{"lisa.and@photographer.pro", int64(1)}, out.Rows[0])
}

func TestExecuteReadNoRows(t *testing.T) {
	s := openSeeded(t)

	out, err := s.Execute(context.Background(), "SELECT id FROM users WHERE name = 'Nobody'", workflow.ModeRead)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, out.Columns)
	assert.NotNil(t, out.Rows)
	assert.Empty(t, out.Rows)
}

func TestExecuteWriteCommits(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()

	out, err := s.Execute(ctx, "UPDATE products SET stock = 0 WHERE category = 'Books'", workflow.ModeWrite)
	require.NoError(t, err)
	assert.Equal(t, int64(4), out.RowsAffected)

	read, err := s.Execute(ctx, "SELECT SUM(stock) FROM products WHERE category = 'Books'", workflow.ModeRead)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0)}, read.Rows[0])
}

func TestExecuteErrors(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, "SELECT * FROM customers", workflow.ModeRead)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")

	_, err = s.Execute(ctx, "INSERT INTO users (name) VALUES ('x')", workflow.ModeWrite)
	require.Error(t, err)

	_, err = s.Execute(ctx, "SELECT 1", workflow.Mode("bogus"))
	require.Error(t, err)
}

func TestSeed(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()

	count := func(table string) int64 {
		out, err := s.Execute(ctx, "SELECT COUNT(*) FROM "+table, workflow.ModeRead)
		require.NoError(t, err)
		return out.Rows[0][0].(int64)
	}

	assert.Equal(t, int64(len(seedUsers)), count("users"))
	assert.Equal(t, int64(len(seedProducts)), count("products"))
	assert.Equal(t, int64(len(seedOrders)), count("orders"))

	t.Run("reseed keeps rows", func(t *testing.T) {
		_, err := s.Execute(ctx, "DELETE FROM orders WHERE id > 10", workflow.ModeWrite)
		require.NoError(t, err)

		require.NoError(t, s.Seed(ctx, false))
		assert.Equal(t, int64(len(seedOrders)), count("orders"))
		assert.Equal(t, int64(len(seedUsers)), count("users"))
	})

	t.Run("reset restores edits", func(t *testing.T) {
		_, err := s.Execute(ctx, "UPDATE products SET price = 1 WHERE name = 'iPhone 15 Pro'", workflow.ModeWrite)
		require.NoError(t, err)

		require.NoError(t, s.Seed(ctx, true))
		out, err := s.Execute(ctx, "SELECT price FROM products WHERE name = 'iPhone 15 Pro'", workflow.ModeRead)
		require.NoError(t, err)
		assert.Equal(t, []any{1199.0}, out.Rows[0])
	})
}

func TestSchema(t *testing.T) {
	s := openSeeded(t)

	got, err := s.Schema(context.Background())
	require.NoError(t, err)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "orders")
	assert.Contains(t, lines[0], "order_status TEXT NOT NULL")
	assert.Contains(t, lines[1], "products")
	assert.Contains(t, lines[2], "users")
	assert.NotContains(t, got, "sqlite_sequence")
}
