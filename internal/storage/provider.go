// Package storage defines the interface for archiving raw collected payloads
// to blob storage. This abstraction keeps the service independent of a
// specific backend (Google Cloud Storage, the local filesystem, or memory).
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore persists one raw payload per collected task for replay and
// debugging.
type BlobStore interface {
	// PutObject uploads the reader's content under path and returns the
	// backend URI of the stored object.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// ArchiveKey builds the object path for one task's raw payload:
// <prefix>/<date>/<run>/<job_type>-<complex>.json
func ArchiveKey(prefix string, runID uuid.UUID, jobType string, complexID int64, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s-%d.json",
		prefix, at.UTC().Format("2006-01-02"), runID, jobType, complexID)
}

// NoopStore discards payloads. Used when no archive bucket is configured.
type NoopStore struct{}

// PutObject does nothing and returns an empty URI.
func (NoopStore) PutObject(_ context.Context, _ string, _ string, _ io.Reader) (string, error) {
	return "", nil
}
