package workflow

// Router picks the next node from the current state.
type Router func(State) NodeID

// Route sends a classified run to its pipeline. Unknown or empty intents go
// to End.
func Route(s State) NodeID {
	kind, ok := PipelineFor(s.Intent)
	if !ok {
		return End
	}
	return kind.Generation()
}

// RouteAfterGate continues to execution once the caller has decided either
// way. Execution itself rejects a declined run; an undecided run stops here.
func RouteAfterGate(kind PipelineKind) Router {
	return func(s State) NodeID {
		if s.HumanVerified == DecisionUnset {
			return End
		}
		return kind.Execution()
	}
}
