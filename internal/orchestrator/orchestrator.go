package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mpataki/crudflow/internal/models"
	"github.com/mpataki/crudflow/internal/storage"
	"github.com/mpataki/crudflow/internal/workflow"
)

var (
	ErrNotPending = errors.New("run is not waiting for approval")
	ErrNoEngine   = errors.New("orchestrator has no workflow engine")
)

type Orchestrator struct {
	storage *storage.Storage
	engine  *workflow.Engine
	logger  *slog.Logger
}

func New(store *storage.Storage, engine *workflow.Engine, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		storage: store,
		engine:  engine,
		logger:  logger,
	}
}

// Request is one natural-language request. HumanVerified is nil when no
// approval decision accompanies it.
type Request struct {
	Input         string `json:"input"`
	HumanVerified *bool  `json:"human_verified,omitempty"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

type Response struct {
	RunID                int64             `json:"run_id"`
	RunUUID              string            `json:"run_uuid"`
	Status               Status            `json:"status"`
	Intent               string            `json:"intent"`
	ValidatedQuery       string            `json:"validated_query"`
	Results              string            `json:"results,omitempty"`
	FinalAnswer          string            `json:"final_answer,omitempty"`
	VerificationRequired bool              `json:"verification_required"`
	HumanVerified        *bool             `json:"human_verified,omitempty"`
	Audit                workflow.AuditLog `json:"audit"`
}

// Ask runs one request to completion or to the approval gate. Every audit
// entry is stored as soon as its step finishes, so a failed run keeps the
// entries recorded before the failure. A request carrying a decision settles
// the newest pending run for the same input.
func (o *Orchestrator) Ask(ctx context.Context, req Request) (*Response, error) {
	resp, run, err := o.execute(ctx, req)
	if err != nil || req.HumanVerified == nil {
		return resp, err
	}

	pending, err := o.storage.LatestPendingForInput(ctx, req.Input)
	if err != nil || pending == nil {
		if err != nil {
			o.logger.WarnContext(ctx, "failed to look up pending run", "error", err)
		}
		return resp, nil
	}
	o.settle(ctx, pending, run, resp)
	return resp, nil
}

// Decide answers a pending run by submitting its input again with the
// decision attached. The whole pipeline runs again, so the statement that
// executes is generated afresh.
func (o *Orchestrator) Decide(ctx context.Context, runID int64, approve bool) (*Response, error) {
	pending, err := o.storage.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !pending.Pending() {
		return nil, fmt.Errorf("%w: run %d is %s", ErrNotPending, pending.ID, pending.Status)
	}

	resp, run, err := o.execute(ctx, Request{Input: pending.Input, HumanVerified: &approve})
	if err != nil {
		return nil, err
	}
	o.settle(ctx, pending, run, resp)
	return resp, nil
}

func (o *Orchestrator) execute(ctx context.Context, req Request) (*Response, *models.Run, error) {
	if o.engine == nil {
		return nil, nil, ErrNoEngine
	}
	decision := workflow.DecisionFromBool(req.HumanVerified)

	run := &models.Run{
		UUID:     uuid.NewString(),
		Input:    req.Input,
		Status:   models.RunStatusRunning,
		Decision: decision.String(),
	}
	if _, err := o.storage.CreateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("failed to create run: %w", err)
	}

	logger := o.logger.With("run_id", run.ID, "run_uuid", run.UUID)
	logger.InfoContext(ctx, "run started", "decision", run.Decision)

	recorder := &stepRecorder{storage: o.storage, runID: run.ID}
	final, err := o.engine.Run(ctx, workflow.NewState(req.Input, decision), recorder)

	run.Intent = string(final.Intent)
	run.ValidatedQuery = final.ValidatedQuery
	if err != nil {
		logger.ErrorContext(ctx, "run failed", "error", err)
		if ferr := o.failRun(ctx, run, err); ferr != nil {
			logger.ErrorContext(ctx, "failed to record run failure", "error", ferr)
		}
		return nil, nil, err
	}

	resp := &Response{
		RunID:                run.ID,
		RunUUID:              run.UUID,
		Intent:               string(final.Intent),
		ValidatedQuery:       final.ValidatedQuery,
		VerificationRequired: final.VerificationRequired,
		HumanVerified:        final.HumanVerified.Bool(),
		Audit:                final.Audit,
	}

	if final.Pending() {
		resp.Status = StatusPending
		if err := o.pendRun(ctx, run); err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "run waiting for approval", "intent", run.Intent)
		return resp, run, nil
	}

	resp.Status = StatusCompleted
	resp.Results = final.Results.String()
	resp.FinalAnswer = final.Answer

	run.Results = resp.Results
	run.Answer = final.Answer
	if err := o.completeRun(ctx, run); err != nil {
		return nil, nil, err
	}
	logger.InfoContext(ctx, "run completed", "intent", run.Intent)
	return resp, run, nil
}

// settle closes a pending run once the resubmission that decided it has
// finished, so it is not offered for approval again. The resubmission must
// have reached the same operation's gate with a decision; one that was
// classified differently, or halted at the gate itself, leaves it alone.
func (o *Orchestrator) settle(ctx context.Context, pending, decided *models.Run, resp *Response) {
	if decided.Pending() || pending.ID == decided.ID {
		return
	}
	if decided.Intent != pending.Intent || !passedGate(resp.Audit) {
		o.logger.InfoContext(ctx, "pending run left open", "run_id", pending.ID,
			"pending_intent", pending.Intent, "decided_intent", decided.Intent)
		return
	}
	now := time.Now()
	pending.Status = models.RunStatusCompleted
	pending.CompletedAt = &now
	pending.Answer = fmt.Sprintf("decided (%s) by run %s", decided.Decision, decided.UUID)
	if err := o.storage.UpdateRun(ctx, pending); err != nil {
		o.logger.WarnContext(ctx, "failed to settle pending run", "run_id", pending.ID, "error", err)
	}
}

func passedGate(audit workflow.AuditLog) bool {
	for _, e := range audit {
		if e.Label == workflow.GateLabel && e.Detail != "pending" {
			return true
		}
	}
	return false
}

type stepRecorder struct {
	storage *storage.Storage
	runID   int64
}

func (r *stepRecorder) StepCompleted(ctx context.Context, node workflow.NodeID, s workflow.State, appended workflow.AuditLog) error {
	for _, e := range appended {
		step := &models.Step{RunID: r.runID, Label: e.Label, Detail: e.Detail}
		if err := r.storage.AppendStep(ctx, step); err != nil {
			return fmt.Errorf("failed to record step %s: %w", node, err)
		}
	}
	return nil
}

func (o *Orchestrator) completeRun(ctx context.Context, run *models.Run) error {
	now := time.Now()
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now
	return o.storage.UpdateRun(ctx, run)
}

func (o *Orchestrator) pendRun(ctx context.Context, run *models.Run) error {
	run.Status = models.RunStatusPending
	return o.storage.UpdateRun(ctx, run)
}

func (o *Orchestrator) failRun(ctx context.Context, run *models.Run, cause error) error {
	now := time.Now()
	run.Status = models.RunStatusFailed
	run.CompletedAt = &now
	run.Error = cause.Error()
	return o.storage.UpdateRun(ctx, run)
}

// Read methods for the TUI and HTTP API

func (o *Orchestrator) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	return o.storage.ListRuns(ctx, limit)
}

func (o *Orchestrator) GetRun(ctx context.Context, id int64) (*models.Run, error) {
	return o.storage.GetRun(ctx, id)
}

func (o *Orchestrator) GetRunByUUID(ctx context.Context, id string) (*models.Run, error) {
	return o.storage.GetRunByUUID(ctx, id)
}

func (o *Orchestrator) GetStepsForRun(ctx context.Context, runID int64) ([]*models.Step, error) {
	return o.storage.GetStepsForRun(ctx, runID)
}

// LatestPending finds the newest run for input that is waiting for approval.
func (o *Orchestrator) LatestPending(ctx context.Context, input string) (*models.Run, error) {
	return o.storage.LatestPendingForInput(ctx, input)
}

func (o *Orchestrator) DeleteRun(ctx context.Context, runID int64) error {
	if _, err := o.storage.GetRun(ctx, runID); err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	return o.storage.DeleteRun(ctx, runID)
}
