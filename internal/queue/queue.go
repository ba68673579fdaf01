// Package queue defines the work queue feeding collection tasks to the
// worker. The interface keeps the worker independent of a specific backing
// implementation.
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/parkmj/kbland-collector/internal/store"
)

// ErrClosed is returned by Dequeue once the queue has been shut down.
var ErrClosed = errors.New("queue closed")

// Item is one unit of collection work: which connector to drive against
// which target, tied back to its bookkeeping task.
type Item struct {
	TaskID    uuid.UUID     `json:"task_id"`
	RunID     uuid.UUID     `json:"run_id"`
	JobType   store.JobType `json:"job_type"`
	ComplexID int64         `json:"complex_id"`
	AreaID    int64         `json:"area_id"`
}

// Queue is the work queue contract between the API (producer) and the
// worker (consumer).
type Queue interface {
	// Enqueue pushes an item or returns when the context ends.
	Enqueue(ctx context.Context, item Item) error
	// Dequeue pops the next item, respecting context cancellation.
	Dequeue(ctx context.Context) (Item, error)
	// Close shuts the queue down; pending Dequeue calls return an error.
	Close()
}
