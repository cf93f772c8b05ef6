// Package datastore executes validated statements against the application
// database.
package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mpataki/crudflow/internal/sqlitedb"
	"github.com/mpataki/crudflow/internal/workflow"
)

type Store struct {
	db *sql.DB
}

var _ workflow.DataStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Execute runs statement. Reads return every row; writes run in their own
// transaction and are committed before Execute returns.
func (s *Store) Execute(ctx context.Context, statement string, mode workflow.Mode) (workflow.Outcome, error) {
	switch mode {
	case workflow.ModeRead:
		return s.query(ctx, statement)
	case workflow.ModeWrite:
		return s.exec(ctx, statement)
	default:
		return workflow.Outcome{}, fmt.Errorf("unknown execution mode %q", mode)
	}
}

func (s *Store) query(ctx context.Context, statement string) (workflow.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, statement)
	if err != nil {
		return workflow.Outcome{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return workflow.Outcome{}, err
	}

	out := workflow.Outcome{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return workflow.Outcome{}, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return workflow.Outcome{}, err
	}
	return out, nil
}

func (s *Store) exec(ctx context.Context, statement string) (workflow.Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return workflow.Outcome{}, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, statement)
	if err != nil {
		return workflow.Outcome{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return workflow.Outcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return workflow.Outcome{}, err
	}
	return workflow.Outcome{RowsAffected: affected}, nil
}
