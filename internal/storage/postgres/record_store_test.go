package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/parkmj/kbland-collector/internal/store"
)

func TestSaveValuationsInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	records, err := NewRecordStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	general := int64(142500)
	rec := store.ValuationRecord{
		ComplexID:    7,
		AreaID:       21,
		AsOfDate:     "2026-02-06",
		GeneralPrice: &general,
		Source:       "kb",
		FetchMethod:  "http_direct",
		FetchedAt:    now,
	}

	mock.ExpectExec("INSERT INTO valuations").
		WithArgs(
			rec.ComplexID, rec.AreaID, rec.AsOfDate,
			rec.GeneralPrice, rec.HighAvgPrice, rec.LowAvgPrice,
			rec.Source, rec.FetchMethod, rec.FetchedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = records.SaveValuations(context.Background(), []store.ValuationRecord{rec})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTransactionsUpdatesCancelFlag(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	records, err := NewRecordStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := store.TransactionRecord{
		ComplexID:    7,
		AreaID:       21,
		ContractDate: "2026-01-10",
		Price:        135000,
		ExclusiveM2:  84.97,
		IsCancelled:  true,
		Source:       "kb",
		FetchedAt:    now,
	}

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(
			rec.ComplexID, rec.AreaID, rec.ContractDate, rec.Price,
			rec.ExclusiveM2, rec.Floor, rec.IsCancelled, rec.Source, rec.FetchedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = records.SaveTransactions(context.Background(), []store.TransactionRecord{rec})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertListings(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	records, err := NewRecordStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := store.ListingRecord{
		ComplexID:       7,
		SourceListingID: "KB55510001",
		AskPrice:        142000,
		Status:          "active",
		PostedAt:        "2026-02-01",
		TradeType:       "매매",
		Source:          "kb",
		LastSeenAt:      now,
	}

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(
			rec.ComplexID, rec.SourceListingID, rec.AskPrice,
			rec.ExclusiveM2, rec.Floor, rec.Status, rec.PostedAt,
			rec.TradeType, rec.Source, rec.LastSeenAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = records.UpsertListings(context.Background(), []store.ListingRecord{rec})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactionsScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	records, err := NewRecordStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	floor := 11
	rows := pgxmock.NewRows([]string{
		"id", "complex_id", "area_id", "contract_date", "price",
		"exclusive_m2", "floor", "is_cancelled", "source", "fetched_at",
	}).AddRow(int64(1), int64(7), int64(21), "2026-01-10", int64(135000), 84.97, &floor, false, "kb", now)

	mock.ExpectQuery("SELECT id, complex_id, area_id, contract_date").
		WithArgs(int64(7), 50, 0).
		WillReturnRows(rows)

	got, err := records.ListTransactions(context.Background(), 7, 50, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(135000), got[0].Price)
	require.NotNil(t, got[0].Floor)
	require.Equal(t, 11, *got[0].Floor)
	require.NoError(t, mock.ExpectationsWereMet())
}
