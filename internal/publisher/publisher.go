// Package publisher defines the completion-event publishing contract.
package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher pushes run completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RunCompleted is emitted once a collection run finishes.
type RunCompleted struct {
	RunID      uuid.UUID `json:"run_id"`
	Status     string    `json:"status"`
	Total      int       `json:"total_tasks"`
	Succeeded  int       `json:"succeeded_tasks"`
	Failed     int       `json:"failed_tasks"`
	FinishedAt time.Time `json:"finished_at"`
}
