package collector

import (
	"context"
	"time"
)

// FetchMethod records how a payload was obtained.
type FetchMethod string

// Fetch methods reported in collection metadata.
const (
	MethodDirect  FetchMethod = "http_direct"
	MethodBrowser FetchMethod = "browser_intercept"
)

// Target identifies one unit of work for a connector: which complex to fetch,
// and optionally which area within it. Targets are ephemeral; they are built
// per invocation and never persisted by this package.
type Target struct {
	ComplexID int64
	AreaID    int64
}

// Metadata describes how a collection cycle obtained its payload.
type Metadata struct {
	Connector string      `json:"connector"`
	Source    string      `json:"source"`
	Method    FetchMethod `json:"method"`
	FetchedAt time.Time   `json:"fetched_at"`
	Attempt   int         `json:"attempt"`
}

// Result is the outcome of one successful Collect call.
type Result[T any] struct {
	Items    []T
	Metadata Metadata
	Raw      any
}

// Connector is the capability contract every concrete data source implements.
// Fetch obtains a raw payload for a target (routing through direct HTTP or
// browser interception as the source requires); Parse turns that payload into
// normalized records. Implementations own their escalation and rate-limit
// state and must be driven by one goroutine at a time.
type Connector[T any] interface {
	Name() string
	Fetch(ctx context.Context, target Target) (raw any, meta Metadata, err error)
	Parse(raw any) ([]T, error)
}

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock with the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
