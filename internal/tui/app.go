package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mpataki/crudflow/internal/models"
	"github.com/mpataki/crudflow/internal/orchestrator"
)

type View int

const (
	ViewRunList View = iota
	ViewRunDetail
	ViewNewRun
	ViewStep
)

const listLimit = 20

type App struct {
	ctx          context.Context
	orchestrator *orchestrator.Orchestrator

	view            View
	runs            []*models.Run
	selectedIdx     int
	selectedRun     *models.Run
	steps           []*models.Step
	selectedStepIdx int

	input   textinput.Model
	spinner spinner.Model
	busy    bool

	width  int
	height int
	err    error
}

func NewApp(ctx context.Context, orch *orchestrator.Orchestrator) *App {
	input := textinput.New()
	input.Placeholder = "e.g. What is the product purchased by Lisa Anderson?"
	input.CharLimit = 500
	input.Width = 70

	return &App{
		ctx:          ctx,
		orchestrator: orch,
		view:         ViewRunList,
		input:        input,
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (a *App) Init() tea.Cmd {
	return a.loadRuns
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case runsLoadedMsg:
		a.runs = msg.runs
		a.err = msg.err
		if a.selectedIdx >= len(a.runs) {
			a.selectedIdx = max(len(a.runs)-1, 0)
		}
		return a, nil

	case runDetailMsg:
		a.selectedRun = msg.run
		a.steps = msg.steps
		a.selectedStepIdx = 0
		a.err = msg.err
		if a.err == nil {
			a.view = ViewRunDetail
		}
		return a, nil

	case answeredMsg:
		// A finished request opens on its own run.
		a.busy = false
		a.err = msg.err
		if msg.err != nil {
			return a, a.loadRuns
		}
		a.input.Reset()
		return a, tea.Batch(a.loadRuns, a.loadRunDetail(msg.resp.RunID))

	case runDeletedMsg:
		a.err = msg.err
		if a.selectedIdx >= len(a.runs)-1 && a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return a, a.loadRuns
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	if a.busy {
		return a, nil
	}

	switch a.view {
	case ViewRunList:
		return a.handleRunListKey(msg)
	case ViewRunDetail:
		return a.handleRunDetailKey(msg)
	case ViewNewRun:
		return a.handleNewRunKey(msg)
	case ViewStep:
		return a.handleStepKey(msg)
	}
	return a, nil
}

func (a *App) currentRun() *models.Run {
	if len(a.runs) == 0 || a.selectedIdx >= len(a.runs) {
		return nil
	}
	return a.runs[a.selectedIdx]
}

func (a *App) handleRunListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.runs)-1 {
			a.selectedIdx++
		}

	case "enter":
		if run := a.currentRun(); run != nil {
			return a, a.loadRunDetail(run.ID)
		}

	case "n":
		a.view = ViewNewRun
		return a, a.input.Focus()

	case "r":
		return a, a.loadRuns

	case "a":
		if run := a.currentRun(); run != nil && run.Pending() {
			return a, a.decide(run.ID, true)
		}

	case "x":
		if run := a.currentRun(); run != nil && run.Pending() {
			return a, a.decide(run.ID, false)
		}

	case "d":
		if run := a.currentRun(); run != nil {
			return a, a.deleteRun(run.ID)
		}
	}

	return a, nil
}

func (a *App) handleRunDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRunList
		a.selectedRun = nil
		a.steps = nil
		a.selectedStepIdx = 0
		return a, a.loadRuns

	case "up", "k":
		if a.selectedStepIdx > 0 {
			a.selectedStepIdx--
		}

	case "down", "j":
		if a.selectedStepIdx < len(a.steps)-1 {
			a.selectedStepIdx++
		}

	case "enter":
		if len(a.steps) > 0 {
			a.view = ViewStep
		}

	case "a":
		if a.selectedRun != nil && a.selectedRun.Pending() {
			return a, a.decide(a.selectedRun.ID, true)
		}

	case "x":
		if a.selectedRun != nil && a.selectedRun.Pending() {
			return a, a.decide(a.selectedRun.ID, false)
		}
	}

	return a, nil
}

func (a *App) handleStepKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRunDetail
	}
	return a, nil
}

func (a *App) handleNewRunKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.input.Blur()
		a.view = ViewRunList
		return a, nil

	case tea.KeyEnter:
		text := strings.TrimSpace(a.input.Value())
		if text == "" {
			return a, nil
		}
		a.input.Blur()
		return a, a.ask(text)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	switch a.view {
	case ViewRunList:
		return a.viewRunList()
	case ViewRunDetail:
		return a.viewRunDetail()
	case ViewNewRun:
		return a.viewNewRun()
	case ViewStep:
		return a.viewStep()
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	decisionApproved = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	decisionDeclined = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	queryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func (a *App) busyLine() string {
	if !a.busy {
		return ""
	}
	return a.spinner.View() + " working...\n"
}

func (a *App) viewRunList() string {
	s := titleStyle.Render("crudflow") + "\n\n"

	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n", a.err)
	}
	s += a.busyLine()

	if len(a.runs) == 0 {
		s += "No runs yet. Press 'n' to ask something.\n"
	} else {
		s += "Recent Runs\n"
		s += "───────────\n"

		for i, run := range a.runs {
			line := a.formatRunLine(run)
			if i == a.selectedIdx {
				line = selectedStyle.Render("▶ " + line)
			} else if run.Status == models.RunStatusPending {
				line = "  " + line
			} else {
				line = "  " + dimStyle.Render(line)
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] view  [n] new  [a] approve  [x] decline  [d] delete  [r] refresh  [q] quit")

	return s
}

func (a *App) formatRunLine(run *models.Run) string {
	status := a.formatStatus(run.Status)
	age := a.formatAge(run.CreatedAt)
	intent := run.Intent
	if intent == "" {
		intent = "-"
	}
	return fmt.Sprintf("#%-3d %-7s %s  %-4s  %s", run.ID, intent, status, age, truncate(run.Input, 45))
}

func (a *App) formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		return fmt.Sprintf("%dd", days)
	}
}

func (a *App) formatStatus(status models.RunStatus) string {
	switch status {
	case models.RunStatusRunning:
		return statusRunning.Render("● running  ")
	case models.RunStatusPending:
		return statusPending.Render("? approval ")
	case models.RunStatusCompleted:
		return statusCompleted.Render("✓ completed")
	case models.RunStatusFailed:
		return statusFailed.Render("✗ failed   ")
	default:
		return string(status)
	}
}

func (a *App) formatDecision(decision string) string {
	switch decision {
	case "true":
		return decisionApproved.Render("approved")
	case "false":
		return decisionDeclined.Render("declined")
	default:
		return dimStyle.Render("none")
	}
}

func (a *App) viewRunDetail() string {
	if a.selectedRun == nil {
		return "No run selected"
	}

	run := a.selectedRun

	header := fmt.Sprintf("Run #%d", run.ID)
	if run.Intent != "" {
		header += ": " + run.Intent
	}
	s := titleStyle.Render(header) + "  " + a.formatStatus(run.Status) + "\n\n"
	s += a.busyLine()
	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n\n", a.err)
	}

	s += run.Input + "\n\n"
	s += labelStyle.Render("Decision: ") + a.formatDecision(run.Decision) + "\n"
	if run.CompletedAt != nil {
		s += labelStyle.Render("Took:     ") + dimStyle.Render(formatDuration(run.CompletedAt.Sub(run.CreatedAt))) + "\n"
	}
	s += "\n"

	if run.ValidatedQuery != "" {
		s += queryStyle.Render(run.ValidatedQuery) + "\n\n"
	}
	if run.Pending() {
		s += statusPending.Render("This change needs approval before it runs.") + "\n\n"
	}
	if run.Answer != "" {
		s += run.Answer + "\n\n"
	}
	if run.Error != "" {
		s += statusFailed.Render("Error: "+run.Error) + "\n\n"
	}

	s += "Audit Log\n"
	s += "─────────\n"

	if len(a.steps) == 0 {
		s += "(no steps recorded)\n"
	} else {
		for i, step := range a.steps {
			line := fmt.Sprintf("%2d. %-26s %s", step.Seq, step.Label, truncate(oneLine(step.Detail), 40))
			if i == a.selectedStepIdx {
				line = selectedStyle.Render("▶ " + line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	help := "[↑/↓] select  [enter] open step  [esc] back"
	if run.Pending() {
		help = "[a] approve  [x] decline  " + help
	}
	s += "\n" + helpStyle.Render(help)

	return s
}

func (a *App) viewStep() string {
	if len(a.steps) == 0 || a.selectedStepIdx >= len(a.steps) {
		return "No step selected"
	}
	step := a.steps[a.selectedStepIdx]

	s := titleStyle.Render(fmt.Sprintf("Step %d: %s", step.Seq, step.Label)) + "\n\n"
	if step.Detail == "" {
		s += "(empty)\n"
	} else {
		s += step.Detail + "\n"
	}
	s += "\n" + helpStyle.Render("[esc] back")
	return s
}

func (a *App) viewNewRun() string {
	s := titleStyle.Render("New Request") + "\n\n"
	s += a.busyLine()
	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n\n", a.err)
	}

	s += "Ask a question or request a change in plain language.\n"
	s += dimStyle.Render("Changes to data wait for your approval before they run.") + "\n\n"
	s += a.input.View() + "\n"

	s += "\n" + helpStyle.Render("[enter] submit  [esc] cancel")

	return s
}

// Messages

type runsLoadedMsg struct {
	runs []*models.Run
	err  error
}

type runDetailMsg struct {
	run   *models.Run
	steps []*models.Step
	err   error
}

type answeredMsg struct {
	resp *orchestrator.Response
	err  error
}

type runDeletedMsg struct {
	runID int64
	err   error
}

// Commands

func (a *App) loadRuns() tea.Msg {
	runs, err := a.orchestrator.ListRuns(a.ctx, listLimit)
	return runsLoadedMsg{runs: runs, err: err}
}

func (a *App) loadRunDetail(id int64) tea.Cmd {
	return func() tea.Msg {
		run, err := a.orchestrator.GetRun(a.ctx, id)
		if err != nil {
			return runDetailMsg{err: err}
		}

		steps, err := a.orchestrator.GetStepsForRun(a.ctx, id)
		return runDetailMsg{run: run, steps: steps, err: err}
	}
}

func (a *App) ask(input string) tea.Cmd {
	a.busy = true
	return tea.Batch(a.spinner.Tick, func() tea.Msg {
		resp, err := a.orchestrator.Ask(a.ctx, orchestrator.Request{Input: input})
		return answeredMsg{resp: resp, err: err}
	})
}

func (a *App) decide(id int64, approve bool) tea.Cmd {
	a.busy = true
	return tea.Batch(a.spinner.Tick, func() tea.Msg {
		resp, err := a.orchestrator.Decide(a.ctx, id, approve)
		return answeredMsg{resp: resp, err: err}
	})
}

func (a *App) deleteRun(id int64) tea.Cmd {
	return func() tea.Msg {
		if err := a.orchestrator.DeleteRun(a.ctx, id); err != nil {
			return runDeletedMsg{err: err}
		}
		return runDeletedMsg{runID: id}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
