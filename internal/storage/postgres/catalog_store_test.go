package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/parkmj/kbland-collector/internal/store"
)

func TestRegisterComplexReturnsID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	catalog, err := NewCatalogStore(mock)
	require.NoError(t, err)

	units := 1200
	c := store.Complex{
		KBComplexID: "103206",
		Name:        "개포자이",
		Address:     "서울특별시 강남구 개포동",
		LawdCode:    "1168010300",
		TotalUnits:  &units,
	}

	mock.ExpectQuery("INSERT INTO complexes").
		WithArgs(c.KBComplexID, c.Name, c.Address, c.LawdCode, c.TotalUnits).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := catalog.RegisterComplex(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterArea(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	catalog, err := NewCatalogStore(mock)
	require.NoError(t, err)

	a := store.Area{ComplexID: 7, KBAreaCode: "3", Name: "84A", ExclusiveM2: 84.97, SupplyM2: 112.4}

	mock.ExpectQuery("INSERT INTO areas").
		WithArgs(a.ComplexID, a.KBAreaCode, a.Name, a.ExclusiveM2, a.SupplyM2).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)))

	id, err := catalog.RegisterArea(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, int64(21), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetComplexNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	catalog, err := NewCatalogStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, kb_complex_id").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err = catalog.GetComplex(context.Background(), 99)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAreas(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	catalog, err := NewCatalogStore(mock)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "complex_id", "kb_area_code", "name", "exclusive_m2", "supply_m2"}).
		AddRow(int64(1), int64(7), "3", "59B", 59.92, 84.1).
		AddRow(int64(2), int64(7), "4", "84A", 84.97, 112.4)

	mock.ExpectQuery("SELECT id, complex_id, kb_area_code").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	areas, err := catalog.ListAreas(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	require.Equal(t, "59B", areas[0].Name)
	require.Equal(t, "4", areas[1].KBAreaCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolverLookups(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	catalog, err := NewCatalogStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT kb_complex_id FROM complexes").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"kb_complex_id"}).AddRow("103206"))
	mock.ExpectQuery("SELECT kb_area_code FROM areas").
		WithArgs(int64(21)).
		WillReturnError(pgx.ErrNoRows)

	kbID, err := catalog.KBComplexID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "103206", kbID)

	_, err = catalog.KBAreaCode(context.Background(), 21)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetComplexScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	catalog, err := NewCatalogStore(mock)
	require.NoError(t, err)

	created := time.Unix(1700000000, 0).UTC()
	units := 1200
	mock.ExpectQuery("SELECT id, kb_complex_id").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "kb_complex_id", "name", "address", "lawd_code", "total_units", "created_at"}).
			AddRow(int64(7), "103206", "개포자이", "서울특별시 강남구 개포동", "1168010300", &units, created))

	c, err := catalog.GetComplex(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "103206", c.KBComplexID)
	require.Equal(t, created, c.CreatedAt)
	require.NotNil(t, c.TotalUnits)
	require.Equal(t, 1200, *c.TotalUnits)
	require.NoError(t, mock.ExpectationsWereMet())
}
