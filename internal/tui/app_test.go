package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/crudflow/internal/datastore"
	"github.com/mpataki/crudflow/internal/generator"
	"github.com/mpataki/crudflow/internal/models"
	"github.com/mpataki/crudflow/internal/orchestrator"
	"github.com/mpataki/crudflow/internal/prompts"
	"github.com/mpataki/crudflow/internal/storage"
	"github.com/mpataki/crudflow/internal/workflow"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	store, err := datastore.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Seed(ctx, false))

	history, err := storage.New(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	demo, err := generator.NewDemo(nil)
	require.NoError(t, err)
	t.Cleanup(demo.Close)

	catalogue, err := prompts.Default()
	require.NoError(t, err)
	engine, err := workflow.New(generator.Normalize(demo), store, catalogue, nil)
	require.NoError(t, err)

	return NewApp(ctx, orchestrator.New(history, engine, nil))
}

// drain runs cmd and feeds every resulting message back into the app,
// skipping spinner ticks.
func drain(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 50, "too many commands")
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, nil:
		default:
			_, follow := a.Update(msg)
			queue = append(queue, follow)
		}
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, a *App, s string) {
	t.Helper()
	_, cmd := a.Update(key(s))
	drain(t, a, cmd)
}

func TestAskFromNewRunView(t *testing.T) {
	a := newTestApp(t)
	drain(t, a, a.Init())
	assert.Contains(t, a.View(), "No runs yet")

	press(t, a, "n")
	require.Equal(t, ViewNewRun, a.view)
	press(t, a, "How many users are there?")
	assert.Equal(t, "How many users are there?", a.input.Value())

	press(t, a, "enter")
	require.NoError(t, a.err)
	assert.False(t, a.busy)
	require.Equal(t, ViewRunDetail, a.view)
	require.NotNil(t, a.selectedRun)
	assert.Equal(t, models.RunStatusCompleted, a.selectedRun.Status)
	assert.Len(t, a.steps, 5)
	assert.Empty(t, a.input.Value())

	view := a.View()
	assert.Contains(t, view, "How many users are there?")
	assert.Contains(t, view, "execute_read")

	press(t, a, "down")
	press(t, a, "enter")
	require.Equal(t, ViewStep, a.view)
	assert.Contains(t, a.View(), "read_query_generation")

	press(t, a, "esc")
	press(t, a, "esc")
	assert.Equal(t, ViewRunList, a.view)
	require.Len(t, a.runs, 1)
}

func TestApproveFromRunList(t *testing.T) {
	a := newTestApp(t)
	drain(t, a, a.Init())

	press(t, a, "n")
	press(t, a, "Delete order 7")
	press(t, a, "enter")
	require.NotNil(t, a.selectedRun)
	require.True(t, a.selectedRun.Pending())
	assert.Contains(t, a.View(), "needs approval")

	press(t, a, "esc")
	require.Equal(t, ViewRunList, a.view)
	require.Len(t, a.runs, 1)

	press(t, a, "a")
	require.NoError(t, a.err)
	require.Equal(t, ViewRunDetail, a.view)
	assert.Equal(t, "true", a.selectedRun.Decision)
	assert.Equal(t, models.RunStatusCompleted, a.selectedRun.Status)
	assert.Len(t, a.runs, 2)

	// the original request is no longer waiting
	for _, run := range a.runs {
		assert.False(t, run.Pending())
	}
}

func TestDeleteFromRunList(t *testing.T) {
	a := newTestApp(t)
	drain(t, a, a.Init())

	press(t, a, "n")
	press(t, a, "Tell me a joke")
	press(t, a, "enter")
	press(t, a, "esc")
	require.Len(t, a.runs, 1)

	press(t, a, "d")
	require.NoError(t, a.err)
	assert.Empty(t, a.runs)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "abcdefg", truncate("abcdefg", 7))
	assert.Equal(t, "abc...", truncate("abcdefg", 6))
	assert.Equal(t, "a b c", oneLine("a\n b\t\tc "))
	assert.Equal(t, "1m30s", formatDuration(90*time.Second))
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))

	a := &App{}
	assert.Equal(t, "now", a.formatAge(time.Now()))
	assert.Equal(t, "2d", a.formatAge(time.Now().Add(-49*time.Hour)))
}
