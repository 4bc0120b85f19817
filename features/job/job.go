package job

import "time"

// Status values for utility jobs. Pollers see exactly these strings.
const (
	StatusPending  = "pending"
	StatusFinished = "finished"
	StatusError    = "error"
)

// Job is a pollable record for a utility task, such as a bulk data-entry
// ingestion, that a caller waits on instead of receiving a push message.
type Job struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
