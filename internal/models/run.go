package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusPending   RunStatus = "pending"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the history record of one request. Decision holds "true", "false"
// or "unset" as supplied with the request.
type Run struct {
	ID             int64      `json:"id"`
	UUID           string     `json:"uuid"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Input          string     `json:"input"`
	Intent         string     `json:"intent"`
	Status         RunStatus  `json:"status"`
	Decision       string     `json:"decision"`
	ValidatedQuery string     `json:"validated_query"`
	Results        string     `json:"results"`
	Answer         string     `json:"answer"`
	Error          string     `json:"error,omitempty"`
}

func (r *Run) Pending() bool {
	return r.Status == RunStatusPending
}
