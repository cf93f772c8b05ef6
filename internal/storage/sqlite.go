package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mpataki/crudflow/internal/models"
	"github.com/mpataki/crudflow/internal/sqlitedb"
)

var ErrRunNotFound = errors.New("run not found")

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_uuid TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP,
		input TEXT NOT NULL,
		intent TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'running',
		decision TEXT NOT NULL DEFAULT 'unset',
		validated_query TEXT NOT NULL DEFAULT '',
		results TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL DEFAULT '',
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		label TEXT NOT NULL,
		detail TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

const runColumns = `id, run_uuid, created_at, completed_at, input, intent, status, decision, validated_query, results, answer, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var run models.Run
	var completedAt sql.NullTime
	var runErr sql.NullString

	err := row.Scan(
		&run.ID, &run.UUID, &run.CreatedAt, &completedAt, &run.Input, &run.Intent,
		&run.Status, &run.Decision, &run.ValidatedQuery, &run.Results, &run.Answer, &runErr,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if runErr.Valid {
		run.Error = runErr.String
	}

	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Storage) CreateRun(ctx context.Context, run *models.Run) (int64, error) {
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	if run.Decision == "" {
		run.Decision = "unset"
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_uuid, input, intent, status, decision)
		 VALUES (?, ?, ?, ?, ?)`,
		run.UUID, run.Input, run.Intent, run.Status, run.Decision,
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

func (s *Storage) GetRun(ctx context.Context, id int64) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return run, err
}

func (s *Storage) GetRunByUUID(ctx context.Context, uuid string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_uuid = ?`, uuid)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, uuid)
	}
	return run, err
}

func (s *Storage) UpdateRun(ctx context.Context, run *models.Run) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET completed_at = ?, intent = ?, status = ?, validated_query = ?, results = ?, answer = ?, error = ?
		 WHERE id = ?`,
		run.CompletedAt, run.Intent, run.Status, run.ValidatedQuery, run.Results, run.Answer, nullString(run.Error), run.ID,
	)
	return err
}

func (s *Storage) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// LatestPendingForInput returns the newest pending run for input, or nil.
func (s *Storage) LatestPendingForInput(ctx context.Context, input string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE input = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		input, models.RunStatusPending,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// AppendStep stores step after the run's existing steps and sets its Seq.
func (s *Storage) AppendStep(ctx context.Context, step *models.Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM steps WHERE run_id = ?`, step.RunID,
	).Scan(&next); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO steps (run_id, seq, label, detail) VALUES (?, ?, ?, ?)`,
		step.RunID, next, step.Label, step.Detail,
	)
	if err != nil {
		return err
	}
	if step.ID, err = result.LastInsertId(); err != nil {
		return err
	}
	step.Seq = next

	return tx.Commit()
}

func (s *Storage) GetStepsForRun(ctx context.Context, runID int64) ([]*models.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, label, detail, created_at FROM steps WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*models.Step
	for rows.Next() {
		var step models.Step
		if err := rows.Scan(&step.ID, &step.RunID, &step.Seq, &step.Label, &step.Detail, &step.CreatedAt); err != nil {
			return nil, err
		}
		steps = append(steps, &step)
	}

	return steps, rows.Err()
}

func (s *Storage) DeleteRun(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE run_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}

	return tx.Commit()
}

// Helper to format time for display
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
