package models

import "time"

// Step is one persisted audit entry. Seq preserves append order within a run.
type Step struct {
	ID        int64     `json:"-"`
	RunID     int64     `json:"run_id"`
	Seq       int       `json:"seq"`
	Label     string    `json:"label"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
