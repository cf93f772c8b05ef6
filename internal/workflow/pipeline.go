package workflow

import "fmt"

// NodeID names a step in the graph.
type NodeID string

// End is the terminal every path finishes on.
const End NodeID = "__end__"

const classifyNode NodeID = "intent_classification"

// PipelineKind describes one of the four statement pipelines. They share the
// generate, validate, execute, format shape; mutating kinds add a gate before
// execution.
type PipelineKind struct {
	Intent Intent
	Gated  bool
	// Past is the verb used in the execution result, e.g. "deleted".
	Past string
}

var (
	ReadPipeline   = PipelineKind{Intent: IntentRead}
	CreatePipeline = PipelineKind{Intent: IntentCreate, Gated: true, Past: "inserted"}
	UpdatePipeline = PipelineKind{Intent: IntentUpdate, Gated: true, Past: "updated"}
	DeletePipeline = PipelineKind{Intent: IntentDelete, Gated: true, Past: "deleted"}
)

// Pipelines lists every pipeline in routing order.
var Pipelines = []PipelineKind{ReadPipeline, CreatePipeline, UpdatePipeline, DeletePipeline}

// PipelineFor returns the pipeline that handles intent.
func PipelineFor(intent Intent) (PipelineKind, bool) {
	for _, kind := range Pipelines {
		if kind.Intent == intent {
			return kind, true
		}
	}
	return PipelineKind{}, false
}

func (k PipelineKind) Name() string { return string(k.Intent) }

func (k PipelineKind) Generation() NodeID {
	return NodeID(k.Name() + "_query_generation")
}

func (k PipelineKind) Validation() NodeID {
	return NodeID(k.Name() + "_query_validation")
}

func (k PipelineKind) Gate() NodeID {
	return NodeID(k.Name() + "_human_verification")
}

func (k PipelineKind) Execution() NodeID {
	return NodeID("execute_" + k.Name())
}

func (k PipelineKind) Formatting() NodeID {
	return NodeID(k.Name() + "_result_formatting")
}

// Rejection is the fixed result written when a mutating run is not approved.
func (k PipelineKind) Rejection() string {
	switch k.Intent {
	case IntentCreate:
		return "Create operation was not approved."
	case IntentUpdate:
		return "Update operation was not approved."
	case IntentDelete:
		return "Delete operation was not approved."
	}
	return ""
}

// Success is the result written after a committed write.
func (k PipelineKind) Success(affected int64) string {
	if k.Intent == IntentCreate {
		return "Row inserted successfully."
	}
	return fmt.Sprintf("Row(s) %s successfully. (%d affected)", k.Past, affected)
}
