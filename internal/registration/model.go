package registration

import "time"

// Registration records an account that opted in to future airdrops.
type Registration struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Input       string    `json:"input"`
	RequesterID string    `json:"requester_id"`
	CreatedAt   time.Time `json:"created_at"`
}
