package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Complex is one tracked apartment complex. KBComplexID is the portal-side
// identifier (단지기본일련번호) used in every upstream request.
type Complex struct {
	ID          int64     `json:"id"`
	KBComplexID string    `json:"kb_complex_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	LawdCode    string    `json:"lawd_code,omitempty"`
	TotalUnits  *int      `json:"total_units,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Area is one exclusive-area type offered within a complex. KBAreaCode is
// the portal-side identifier (면적일련번호).
type Area struct {
	ID          int64   `json:"id"`
	ComplexID   int64   `json:"complex_id"`
	KBAreaCode  string  `json:"kb_area_code"`
	Name        string  `json:"name"`
	ExclusiveM2 float64 `json:"exclusive_m2"`
	SupplyM2    float64 `json:"supply_m2"`
}

// Catalog persists the complex/area registry and resolves internal IDs to
// their portal-side counterparts. The resolving methods satisfy the
// connectors' Resolver dependency directly.
type Catalog interface {
	// RegisterComplex inserts a complex or updates its mutable fields when
	// the portal ID is already known. The assigned internal ID is returned.
	RegisterComplex(ctx context.Context, c Complex) (int64, error)
	// RegisterArea inserts an area type or updates it when the portal code
	// is already known for the complex.
	RegisterArea(ctx context.Context, a Area) (int64, error)

	GetComplex(ctx context.Context, id int64) (Complex, error)
	ListComplexes(ctx context.Context, limit, offset int) ([]Complex, error)
	ListAreas(ctx context.Context, complexID int64) ([]Area, error)

	// KBComplexID returns the portal identifier for an internal complex ID,
	// or ErrNotFound.
	KBComplexID(ctx context.Context, complexID int64) (string, error)
	// KBAreaCode returns the portal identifier for an internal area ID, or
	// ErrNotFound.
	KBAreaCode(ctx context.Context, areaID int64) (string, error)
}
