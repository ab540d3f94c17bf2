// Package domain defines the operator audit entry written for every syncctl action that changes sync state.
package domain

import "time"

// Entry records one operator action.
type Entry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Target    string    `json:"target"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
