package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/crudflow/internal/models"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createRun(t *testing.T, s *Storage, input string) *models.Run {
	t.Helper()
	run := &models.Run{UUID: uuid.NewString(), Input: input}
	_, err := s.CreateRun(context.Background(), run)
	require.NoError(t, err)
	return run
}

func TestCreateAndGetRun(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	run := createRun(t, s, "show all users")
	require.NotZero(t, run.ID)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.UUID, got.UUID)
	assert.Equal(t, "show all users", got.Input)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Equal(t, "unset", got.Decision)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.Error)

	byUUID, err := s.GetRunByUUID(ctx, run.UUID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, byUUID.ID)

	_, err = s.GetRun(ctx, 9999)
	require.ErrorIs(t, err, ErrRunNotFound)
	_, err = s.GetRunByUUID(ctx, "missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestUpdateRun(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	run := createRun(t, s, "delete order 3")
	now := time.Now().UTC().Truncate(time.Second)
	run.CompletedAt = &now
	run.Intent = "delete"
	run.Status = models.RunStatusFailed
	run.ValidatedQuery = "DELETE FROM orders WHERE id = 3"
	run.Error = "generator unavailable"
	require.NoError(t, s.UpdateRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "delete", got.Intent)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, run.ValidatedQuery, got.ValidatedQuery)
	assert.Equal(t, "generator unavailable", got.Error)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, now.Equal(*got.CompletedAt))
}

func TestStepsKeepAppendOrder(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	run := createRun(t, s, "x")
	other := createRun(t, s, "y")

	labels := []string{"intent_classification", "read_query_generation", "read_query_validation"}
	for _, label := range labels {
		step := &models.Step{RunID: run.ID, Label: label, Detail: "d"}
		require.NoError(t, s.AppendStep(ctx, step))
	}
	require.NoError(t, s.AppendStep(ctx, &models.Step{RunID: other.ID, Label: "intent_classification"}))

	steps, err := s.GetStepsForRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, step := range steps {
		assert.Equal(t, i+1, step.Seq)
		assert.Equal(t, labels[i], step.Label)
	}

	steps, err = s.GetStepsForRun(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].Seq)
}

func TestListRuns(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	first := createRun(t, s, "a")
	second := createRun(t, s, "b")
	third := createRun(t, s, "c")

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, third.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)

	runs, err = s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, first.ID, runs[2].ID)
}

func TestLatestPendingForInput(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	got, err := s.LatestPendingForInput(ctx, "add a user")
	require.NoError(t, err)
	assert.Nil(t, got)

	older := createRun(t, s, "add a user")
	older.Status = models.RunStatusPending
	require.NoError(t, s.UpdateRun(ctx, older))

	newer := createRun(t, s, "add a user")
	newer.Status = models.RunStatusPending
	require.NoError(t, s.UpdateRun(ctx, newer))

	done := createRun(t, s, "add a user")
	done.Status = models.RunStatusCompleted
	require.NoError(t, s.UpdateRun(ctx, done))

	got, err = s.LatestPendingForInput(ctx, "add a user")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)
}

func TestDeleteRun(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	run := createRun(t, s, "x")
	require.NoError(t, s.AppendStep(ctx, &models.Step{RunID: run.ID, Label: "intent_classification"}))

	require.NoError(t, s.DeleteRun(ctx, run.ID))

	_, err := s.GetRun(ctx, run.ID)
	require.ErrorIs(t, err, ErrRunNotFound)
	steps, err := s.GetStepsForRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)

	require.ErrorIs(t, s.DeleteRun(ctx, run.ID), ErrRunNotFound)
}

func TestFormatTimeAgo(t *testing.T) {
	assert.Equal(t, "just now", FormatTimeAgo(time.Now()))
	assert.Equal(t, "5m ago", FormatTimeAgo(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3h ago", FormatTimeAgo(time.Now().Add(-3*time.Hour-time.Minute)))
}
