package postgres

import (
	"context"
	"fmt"

	"github.com/parkmj/kbland-collector/internal/store"
)

// RecordStore implements store.Records using Postgres.
type RecordStore struct {
	pool Pool
}

// NewRecordStore constructs a record store from an existing pool.
func NewRecordStore(pool Pool) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RecordStore{pool: pool}, nil
}

// SaveValuations appends valuation snapshots, skipping days already recorded
// for the same complex/area.
func (s *RecordStore) SaveValuations(ctx context.Context, records []store.ValuationRecord) error {
	query := `
		INSERT INTO valuations (complex_id, area_id, as_of_date, general_price, high_avg_price, low_avg_price, source, fetch_method, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (complex_id, area_id, as_of_date) DO NOTHING;
	`
	for _, r := range records {
		_, err := s.pool.Exec(ctx, query,
			r.ComplexID, r.AreaID, r.AsOfDate,
			r.GeneralPrice, r.HighAvgPrice, r.LowAvgPrice,
			r.Source, r.FetchMethod, r.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("save valuation: %w", err)
		}
	}
	return nil
}

// SaveTransactions appends closed deals, skipping exact duplicates.
func (s *RecordStore) SaveTransactions(ctx context.Context, records []store.TransactionRecord) error {
	query := `
		INSERT INTO transactions (complex_id, area_id, contract_date, price, exclusive_m2, floor, is_cancelled, source, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (complex_id, contract_date, price, exclusive_m2) DO UPDATE
		SET is_cancelled = EXCLUDED.is_cancelled;
	`
	for _, r := range records {
		_, err := s.pool.Exec(ctx, query,
			r.ComplexID, r.AreaID, r.ContractDate, r.Price,
			r.ExclusiveM2, r.Floor, r.IsCancelled, r.Source, r.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
	}
	return nil
}

// UpsertListings inserts new listings and refreshes price, status, and
// last-seen time for listings already on record.
func (s *RecordStore) UpsertListings(ctx context.Context, records []store.ListingRecord) error {
	query := `
		INSERT INTO listings (complex_id, source_listing_id, ask_price, exclusive_m2, floor, status, posted_at, trade_type, source, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (source_listing_id) DO UPDATE
		SET ask_price = EXCLUDED.ask_price,
			status = EXCLUDED.status,
			last_seen_at = EXCLUDED.last_seen_at;
	`
	for _, r := range records {
		_, err := s.pool.Exec(ctx, query,
			r.ComplexID, r.SourceListingID, r.AskPrice,
			r.ExclusiveM2, r.Floor, r.Status, r.PostedAt,
			r.TradeType, r.Source, r.LastSeenAt,
		)
		if err != nil {
			return fmt.Errorf("upsert listing: %w", err)
		}
	}
	return nil
}

// ListValuations returns valuation history for a complex, newest first.
func (s *RecordStore) ListValuations(ctx context.Context, complexID int64, limit, offset int) ([]store.ValuationRecord, error) {
	query := `
		SELECT id, complex_id, area_id, as_of_date, general_price, high_avg_price, low_avg_price, source, fetch_method, fetched_at
		FROM valuations
		WHERE complex_id = $1
		ORDER BY as_of_date DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, complexID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list valuations: %w", err)
	}
	defer rows.Close()

	var records []store.ValuationRecord
	for rows.Next() {
		var r store.ValuationRecord
		err := rows.Scan(
			&r.ID, &r.ComplexID, &r.AreaID, &r.AsOfDate,
			&r.GeneralPrice, &r.HighAvgPrice, &r.LowAvgPrice,
			&r.Source, &r.FetchMethod, &r.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan valuation row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListTransactions returns closed deals for a complex, newest first.
func (s *RecordStore) ListTransactions(ctx context.Context, complexID int64, limit, offset int) ([]store.TransactionRecord, error) {
	query := `
		SELECT id, complex_id, area_id, contract_date, price, exclusive_m2, floor, is_cancelled, source, fetched_at
		FROM transactions
		WHERE complex_id = $1
		ORDER BY contract_date DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, complexID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var records []store.TransactionRecord
	for rows.Next() {
		var r store.TransactionRecord
		err := rows.Scan(
			&r.ID, &r.ComplexID, &r.AreaID, &r.ContractDate, &r.Price,
			&r.ExclusiveM2, &r.Floor, &r.IsCancelled, &r.Source, &r.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListListings returns listings for a complex, most recently seen first.
func (s *RecordStore) ListListings(ctx context.Context, complexID int64, limit, offset int) ([]store.ListingRecord, error) {
	query := `
		SELECT id, complex_id, source_listing_id, ask_price, exclusive_m2, floor, status, posted_at, trade_type, source, first_seen_at, last_seen_at
		FROM listings
		WHERE complex_id = $1
		ORDER BY last_seen_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, complexID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var records []store.ListingRecord
	for rows.Next() {
		var r store.ListingRecord
		err := rows.Scan(
			&r.ID, &r.ComplexID, &r.SourceListingID, &r.AskPrice,
			&r.ExclusiveM2, &r.Floor, &r.Status, &r.PostedAt,
			&r.TradeType, &r.Source, &r.FirstSeenAt, &r.LastSeenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
