// Package workflow runs a natural-language request through the classification
// step and one of four statement pipelines, halting mutating pipelines at an
// approval gate until a caller supplies a decision.
package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// Intent is the operation class chosen by classification. Values outside the
// four known intents are kept as-is and route to End.
type Intent string

const (
	IntentRead   Intent = "read"
	IntentCreate Intent = "create"
	IntentUpdate Intent = "update"
	IntentDelete Intent = "delete"
)

// Decision is the caller's approval for a mutating run.
type Decision int

const (
	DecisionUnset Decision = iota
	DecisionApproved
	DecisionDeclined
)

// DecisionFromBool maps an optional caller flag onto a Decision.
func DecisionFromBool(v *bool) Decision {
	switch {
	case v == nil:
		return DecisionUnset
	case *v:
		return DecisionApproved
	default:
		return DecisionDeclined
	}
}

// Bool is the inverse of DecisionFromBool.
func (d Decision) Bool() *bool {
	switch d {
	case DecisionApproved:
		v := true
		return &v
	case DecisionDeclined:
		v := false
		return &v
	}
	return nil
}

func (d Decision) String() string {
	if b := d.Bool(); b != nil {
		return strconv.FormatBool(*b)
	}
	return "unset"
}

// AuditEntry is one (label, detail) record written by a step.
type AuditEntry struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

// AuditLog accumulates entries in the order steps produced them.
type AuditLog []AuditEntry

// Merge returns a new log holding l followed by update. Neither input is
// modified, so a step can never rewrite history it was handed.
func (l AuditLog) Merge(update AuditLog) AuditLog {
	out := make(AuditLog, 0, len(l)+len(update))
	out = append(out, l...)
	return append(out, update...)
}

func entry(label, detail string) AuditLog {
	return AuditLog{{Label: label, Detail: detail}}
}

// Results is what Execution hands to Formatting: either a message or a row set.
type Results struct {
	Set     bool
	Text    string
	Columns []string
	Rows    [][]any
}

func TextResults(text string) Results {
	return Results{Set: true, Text: text}
}

func RowResults(columns []string, rows [][]any) Results {
	return Results{Set: true, Columns: columns, Rows: rows}
}

// IsRows reports whether the results carry a row set rather than a message.
func (r Results) IsRows() bool {
	return r.Set && r.Text == "" && r.Columns != nil
}

// String renders rows as a list of tuples, e.g. [('Lisa Anderson', 2)].
func (r Results) String() string {
	if !r.Set {
		return ""
	}
	if !r.IsRows() {
		return r.Text
	}

	var b strings.Builder
	b.WriteByte('[')
	for i, row := range r.Rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatValue(v))
		}
		if len(row) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + val + "'"
	case []byte:
		return "'" + string(val) + "'"
	default:
		return fmt.Sprint(val)
	}
}

// State is the record threaded through every step of one run. It is owned by
// the run that created it and is never shared between runs.
type State struct {
	Input                string
	Intent               Intent
	Query                string
	ValidatedQuery       string
	Results              Results
	Answer               string
	HumanVerified        Decision
	VerificationRequired bool
	Audit                AuditLog
}

// NewState starts a run for input with the caller's decision, if any.
func NewState(input string, decision Decision) State {
	return State{
		Input:         input,
		HumanVerified: decision,
		Audit:         AuditLog{},
	}
}

// Pending reports whether the run halted at the gate awaiting a decision.
func (s State) Pending() bool {
	return s.VerificationRequired && s.HumanVerified == DecisionUnset
}
