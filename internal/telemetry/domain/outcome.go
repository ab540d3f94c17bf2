// Package domain defines the outcome record published for every dispatched sync event.
package domain

import "time"

// Status is the result of one delivery attempt.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Outcome describes one attempt to apply an outbox event to the guild.
type Outcome struct {
	EventID    string    `json:"eventId"`
	Domain     string    `json:"domain"`
	Tag        string    `json:"tag"`
	TeamID     string    `json:"teamId"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	WorkerID   string    `json:"workerId,omitempty"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}
