package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mpataki/crudflow/internal/prompts"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Mode string

const (
	ModeRead  Mode = "read"
	ModeWrite Mode = "write"
)

// Outcome is what the data store reports for a statement: rows for reads,
// an affected count for writes.
type Outcome struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
}

// DataStore executes validated statements. Write statements are committed
// before Execute returns.
type DataStore interface {
	Execute(ctx context.Context, statement string, mode Mode) (Outcome, error)
}

// Engine owns the fixed classification + four pipeline topology.
type Engine struct {
	generator Generator
	store     DataStore
	prompts   *prompts.Catalogue
	logger    *slog.Logger
	graph     *Graph
}

func New(gen Generator, store DataStore, catalogue *prompts.Catalogue, logger *slog.Logger) (*Engine, error) {
	if gen == nil {
		return nil, fmt.Errorf("new engine: generator is required")
	}
	if store == nil {
		return nil, fmt.Errorf("new engine: data store is required")
	}
	if catalogue == nil {
		return nil, fmt.Errorf("new engine: prompt catalogue is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		generator: gen,
		store:     store,
		prompts:   catalogue,
		logger:    logger,
	}
	g, err := e.build()
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	e.graph = g
	return e, nil
}

func (e *Engine) build() (*Graph, error) {
	g := NewGraph(e.logger)

	if err := g.AddNode(classifyNode, e.classify); err != nil {
		return nil, err
	}
	g.SetEntry(classifyNode)

	type node struct {
		id   NodeID
		step Step
	}

	entries := make([]NodeID, 0, len(Pipelines))
	for _, kind := range Pipelines {
		entries = append(entries, kind.Generation())

		nodes := []node{
			{kind.Generation(), e.generate(kind)},
			{kind.Validation(), e.validate(kind)},
			{kind.Execution(), e.execute(kind)},
			{kind.Formatting(), e.format(kind)},
		}
		if kind.Gated {
			nodes = append(nodes, node{kind.Gate(), e.gate(kind)})
		}
		for _, n := range nodes {
			if err := g.AddNode(n.id, n.step); err != nil {
				return nil, err
			}
		}

		g.AddEdge(kind.Generation(), kind.Validation())
		if kind.Gated {
			g.AddEdge(kind.Validation(), kind.Gate())
			g.AddConditionalEdge(kind.Gate(), RouteAfterGate(kind), kind.Execution())
		} else {
			g.AddEdge(kind.Validation(), kind.Execution())
		}
		g.AddEdge(kind.Execution(), kind.Formatting())
		g.AddEdge(kind.Formatting(), End)
	}
	g.AddConditionalEdge(classifyNode, Route, entries...)

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Run executes one run to End, either naturally or by halting at a gate.
func (e *Engine) Run(ctx context.Context, s State, obs Observer) (State, error) {
	out, err := e.graph.Run(ctx, s, obs)
	if err != nil {
		return out, err
	}
	if out.Pending() {
		e.logger.InfoContext(ctx, "run halted for approval", "intent", out.Intent)
	}
	return out, nil
}

func (e *Engine) classify(ctx context.Context, s State) (State, AuditLog, error) {
	prompt, err := e.prompts.Classify(s.Input)
	if err != nil {
		return s, nil, err
	}
	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return s, nil, fmt.Errorf("classify intent: %w", err)
	}
	s.Intent = Intent(strings.ToLower(strings.TrimSpace(text)))
	e.logger.DebugContext(ctx, "intent classified", "intent", s.Intent)
	return s, entry("intent_classification", string(s.Intent)), nil
}

func (e *Engine) generate(kind PipelineKind) Step {
	return func(ctx context.Context, s State) (State, AuditLog, error) {
		prompt, err := e.prompts.Render(kind.Name(), prompts.StageGenerate, prompts.Data{Input: s.Input})
		if err != nil {
			return s, nil, err
		}
		query, err := e.generator.Generate(ctx, prompt)
		if err != nil {
			return s, nil, fmt.Errorf("generate %s statement: %w", kind.Name(), err)
		}
		s.Query = query
		return s, entry(kind.Name()+"_query_generation", query), nil
	}
}

func (e *Engine) validate(kind PipelineKind) Step {
	return func(ctx context.Context, s State) (State, AuditLog, error) {
		prompt, err := e.prompts.Render(kind.Name(), prompts.StageValidate, prompts.Data{
			Input: s.Input,
			Query: s.Query,
		})
		if err != nil {
			return s, nil, err
		}
		validated, err := e.generator.Generate(ctx, prompt)
		if err != nil {
			return s, nil, fmt.Errorf("validate %s statement: %w", kind.Name(), err)
		}
		s.ValidatedQuery = validated
		return s, entry(kind.Name()+"_query_validation", validated), nil
	}
}

// GateLabel is the audit label the gate writes; its detail is "pending" or
// the decision.
const GateLabel = "human_verification"

// gate never calls out. A decision supplied with the run is trusted as-is;
// without one the run is marked pending and routed to End.
func (e *Engine) gate(kind PipelineKind) Step {
	return func(ctx context.Context, s State) (State, AuditLog, error) {
		if s.HumanVerified != DecisionUnset {
			s.VerificationRequired = false
			return s, entry(GateLabel, s.HumanVerified.String()), nil
		}
		s.VerificationRequired = true
		return s, entry(GateLabel, "pending"), nil
	}
}

// execute never fails the run: data store errors become the results text.
func (e *Engine) execute(kind PipelineKind) Step {
	return func(ctx context.Context, s State) (State, AuditLog, error) {
		s.VerificationRequired = false

		switch {
		case !kind.Gated:
			s.Results = e.read(ctx, s.ValidatedQuery)
		case s.HumanVerified != DecisionApproved:
			s.Results = TextResults(kind.Rejection())
		default:
			s.Results = e.write(ctx, kind, s.ValidatedQuery)
		}

		return s, entry("execute_"+kind.Name(), s.Results.String()), nil
	}
}

func (e *Engine) read(ctx context.Context, validated string) Results {
	out, err := e.store.Execute(ctx, StripFences(validated), ModeRead)
	if err != nil {
		e.logger.WarnContext(ctx, "read statement failed", "error", err)
		return TextResults(err.Error())
	}
	columns := out.Columns
	if columns == nil {
		columns = []string{}
	}
	return RowResults(columns, out.Rows)
}

func (e *Engine) write(ctx context.Context, kind PipelineKind, validated string) Results {
	out, err := e.store.Execute(ctx, StripFences(validated), ModeWrite)
	if err != nil {
		e.logger.WarnContext(ctx, "write statement failed", "intent", kind.Intent, "error", err)
		return TextResults(err.Error())
	}
	return TextResults(kind.Success(out.RowsAffected))
}

func (e *Engine) format(kind PipelineKind) Step {
	return func(ctx context.Context, s State) (State, AuditLog, error) {
		prompt, err := e.prompts.Render(kind.Name(), prompts.StageFormat, prompts.Data{
			Input:   s.Input,
			Results: s.Results.String(),
		})
		if err != nil {
			return s, nil, err
		}
		answer, err := e.generator.Generate(ctx, prompt)
		if err != nil {
			return s, nil, fmt.Errorf("format %s results: %w", kind.Name(), err)
		}
		s.Answer = answer
		return s, entry("result_formatting", answer), nil
	}
}
