package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parkmj/kbland-collector/internal/store"
)

// CatalogStore implements store.Catalog using Postgres.
type CatalogStore struct {
	pool Pool
}

// NewCatalogStore constructs a catalog store from an existing pool.
func NewCatalogStore(pool Pool) (*CatalogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &CatalogStore{pool: pool}, nil
}

// RegisterComplex inserts a complex, updating its mutable fields when the
// portal ID is already on record.
func (s *CatalogStore) RegisterComplex(ctx context.Context, c store.Complex) (int64, error) {
	query := `
		INSERT INTO complexes (kb_complex_id, name, address, lawd_code, total_units)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kb_complex_id) DO UPDATE
		SET name = EXCLUDED.name,
			address = EXCLUDED.address,
			lawd_code = EXCLUDED.lawd_code,
			total_units = EXCLUDED.total_units
		RETURNING id;
	`
	var id int64
	err := s.pool.QueryRow(ctx, query, c.KBComplexID, c.Name, c.Address, c.LawdCode, c.TotalUnits).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("register complex: %w", err)
	}
	return id, nil
}

// RegisterArea inserts an area type, updating it when the portal code is
// already on record for the complex.
func (s *CatalogStore) RegisterArea(ctx context.Context, a store.Area) (int64, error) {
	query := `
		INSERT INTO areas (complex_id, kb_area_code, name, exclusive_m2, supply_m2)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (complex_id, kb_area_code) DO UPDATE
		SET name = EXCLUDED.name,
			exclusive_m2 = EXCLUDED.exclusive_m2,
			supply_m2 = EXCLUDED.supply_m2
		RETURNING id;
	`
	var id int64
	err := s.pool.QueryRow(ctx, query, a.ComplexID, a.KBAreaCode, a.Name, a.ExclusiveM2, a.SupplyM2).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("register area: %w", err)
	}
	return id, nil
}

// GetComplex retrieves one complex by internal ID.
func (s *CatalogStore) GetComplex(ctx context.Context, id int64) (store.Complex, error) {
	query := `
		SELECT id, kb_complex_id, name, address, lawd_code, total_units, created_at
		FROM complexes
		WHERE id = $1;
	`
	var c store.Complex
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.KBComplexID, &c.Name, &c.Address, &c.LawdCode, &c.TotalUnits, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Complex{}, store.ErrNotFound
		}
		return store.Complex{}, fmt.Errorf("get complex: %w", err)
	}
	return c, nil
}

// ListComplexes returns registered complexes ordered by internal ID.
func (s *CatalogStore) ListComplexes(ctx context.Context, limit, offset int) ([]store.Complex, error) {
	query := `
		SELECT id, kb_complex_id, name, address, lawd_code, total_units, created_at
		FROM complexes
		ORDER BY id
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list complexes: %w", err)
	}
	defer rows.Close()

	var complexes []store.Complex
	for rows.Next() {
		var c store.Complex
		if err := rows.Scan(&c.ID, &c.KBComplexID, &c.Name, &c.Address, &c.LawdCode, &c.TotalUnits, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan complex row: %w", err)
		}
		complexes = append(complexes, c)
	}
	return complexes, rows.Err()
}

// ListAreas returns a complex's area types ordered by exclusive area.
func (s *CatalogStore) ListAreas(ctx context.Context, complexID int64) ([]store.Area, error) {
	query := `
		SELECT id, complex_id, kb_area_code, name, exclusive_m2, supply_m2
		FROM areas
		WHERE complex_id = $1
		ORDER BY exclusive_m2;
	`
	rows, err := s.pool.Query(ctx, query, complexID)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	defer rows.Close()

	var areas []store.Area
	for rows.Next() {
		var a store.Area
		if err := rows.Scan(&a.ID, &a.ComplexID, &a.KBAreaCode, &a.Name, &a.ExclusiveM2, &a.SupplyM2); err != nil {
			return nil, fmt.Errorf("scan area row: %w", err)
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

// KBComplexID resolves an internal complex ID to its portal identifier.
func (s *CatalogStore) KBComplexID(ctx context.Context, complexID int64) (string, error) {
	var kbID string
	err := s.pool.QueryRow(ctx, `SELECT kb_complex_id FROM complexes WHERE id = $1;`, complexID).Scan(&kbID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("resolve complex %d: %w", complexID, err)
	}
	return kbID, nil
}

// KBAreaCode resolves an internal area ID to its portal identifier.
func (s *CatalogStore) KBAreaCode(ctx context.Context, areaID int64) (string, error) {
	var code string
	err := s.pool.QueryRow(ctx, `SELECT kb_area_code FROM areas WHERE id = $1;`, areaID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("resolve area %d: %w", areaID, err)
	}
	return code, nil
}
