package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// maxVisits bounds a run. The fixed topology never visits more than six nodes.
const maxVisits = 32

var ErrUnknownNode = errors.New("unknown node")

// Step transforms the run state and returns the audit entries it produced.
// The executor merges those entries; a step's own edits to s.Audit are ignored.
type Step func(ctx context.Context, s State) (State, AuditLog, error)

// Observer is told about every completed step, in order.
type Observer interface {
	StepCompleted(ctx context.Context, node NodeID, s State, appended AuditLog) error
}

// StepError reports which node failed a run.
type StepError struct {
	Node NodeID
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Node, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type branch struct {
	route   Router
	targets map[NodeID]bool
}

// Graph is a directed graph of steps with one entry point. Each node has
// exactly one outgoing edge, either static or routed.
type Graph struct {
	entry    NodeID
	order    []NodeID
	steps    map[NodeID]Step
	edges    map[NodeID]NodeID
	branches map[NodeID]branch
	logger   *slog.Logger
}

func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		steps:    make(map[NodeID]Step),
		edges:    make(map[NodeID]NodeID),
		branches: make(map[NodeID]branch),
		logger:   logger,
	}
}

func (g *Graph) AddNode(id NodeID, step Step) error {
	if id == "" || id == End {
		return fmt.Errorf("invalid node id %q", id)
	}
	if _, exists := g.steps[id]; exists {
		return fmt.Errorf("duplicate node %q", id)
	}
	g.steps[id] = step
	g.order = append(g.order, id)
	return nil
}

func (g *Graph) SetEntry(id NodeID) {
	g.entry = id
}

func (g *Graph) AddEdge(from, to NodeID) {
	g.edges[from] = to
}

// AddConditionalEdge routes out of from with route, which must return one of
// targets or End.
func (g *Graph) AddConditionalEdge(from NodeID, route Router, targets ...NodeID) {
	allowed := map[NodeID]bool{End: true}
	for _, t := range targets {
		allowed[t] = true
	}
	g.branches[from] = branch{route: route, targets: allowed}
}

// Validate checks that the entry and every edge target exist and that each
// node has exactly one way out.
func (g *Graph) Validate() error {
	if _, ok := g.steps[g.entry]; !ok {
		return fmt.Errorf("entry %q: %w", g.entry, ErrUnknownNode)
	}

	for _, id := range g.order {
		to, hasEdge := g.edges[id]
		br, hasBranch := g.branches[id]
		switch {
		case hasEdge && hasBranch:
			return fmt.Errorf("node %q has both a static and a conditional edge", id)
		case !hasEdge && !hasBranch:
			return fmt.Errorf("node %q has no outgoing edge", id)
		case hasEdge:
			if err := g.checkTarget(id, to); err != nil {
				return err
			}
		default:
			for t := range br.targets {
				if err := g.checkTarget(id, t); err != nil {
					return err
				}
			}
		}
	}

	for from := range g.edges {
		if _, ok := g.steps[from]; !ok {
			return fmt.Errorf("edge from %q: %w", from, ErrUnknownNode)
		}
	}
	for from := range g.branches {
		if _, ok := g.steps[from]; !ok {
			return fmt.Errorf("conditional edge from %q: %w", from, ErrUnknownNode)
		}
	}

	return nil
}

func (g *Graph) checkTarget(from, to NodeID) error {
	if to == End {
		return nil
	}
	if _, ok := g.steps[to]; !ok {
		return fmt.Errorf("edge %q -> %q: %w", from, to, ErrUnknownNode)
	}
	return nil
}

// Run drives s from the entry node until End. Steps run one at a time on the
// calling goroutine. A failing step stops the run and the state reached so far
// is returned with the error.
func (g *Graph) Run(ctx context.Context, s State, obs Observer) (State, error) {
	current := g.entry

	for visits := 0; current != End; visits++ {
		if visits >= maxVisits {
			return s, fmt.Errorf("run exceeded %d steps at %q", maxVisits, current)
		}

		step, ok := g.steps[current]
		if !ok {
			return s, fmt.Errorf("node %q: %w", current, ErrUnknownNode)
		}

		g.logger.DebugContext(ctx, "step started", "node", current)
		history := s.Audit
		next, appended, err := step(ctx, s)
		if err != nil {
			return s, &StepError{Node: current, Err: err}
		}
		next.Audit = history.Merge(appended)
		s = next

		if obs != nil {
			if err := obs.StepCompleted(ctx, current, s, appended); err != nil {
				return s, fmt.Errorf("observe %s: %w", current, err)
			}
		}

		following, err := g.next(current, s)
		if err != nil {
			return s, err
		}
		g.logger.DebugContext(ctx, "step finished", "node", current, "next", following, "audit_len", len(s.Audit))
		current = following
	}

	return s, nil
}

func (g *Graph) next(from NodeID, s State) (NodeID, error) {
	if br, ok := g.branches[from]; ok {
		to := br.route(s)
		if !br.targets[to] {
			return "", fmt.Errorf("route from %q to %q: %w", from, to, ErrUnknownNode)
		}
		return to, nil
	}
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	return "", fmt.Errorf("node %q has no outgoing edge", from)
}
