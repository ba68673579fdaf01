package store

import (
	"context"
	"time"
)

// ValuationRecord is one persisted valuation snapshot. AsOfDate and prices
// follow the upstream's conventions: ISO dates, prices in 만원.
type ValuationRecord struct {
	ID           int64     `json:"id"`
	ComplexID    int64     `json:"complex_id"`
	AreaID       int64     `json:"area_id"`
	AsOfDate     string    `json:"as_of_date"`
	GeneralPrice *int64    `json:"general_price,omitempty"`
	HighAvgPrice *int64    `json:"high_avg_price,omitempty"`
	LowAvgPrice  *int64    `json:"low_avg_price,omitempty"`
	Source       string    `json:"source"`
	FetchMethod  string    `json:"fetch_method"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// TransactionRecord is one persisted closed deal.
type TransactionRecord struct {
	ID           int64     `json:"id"`
	ComplexID    int64     `json:"complex_id"`
	AreaID       int64     `json:"area_id"`
	ContractDate string    `json:"contract_date"`
	Price        int64     `json:"price"`
	ExclusiveM2  float64   `json:"exclusive_m2"`
	Floor        *int      `json:"floor,omitempty"`
	IsCancelled  bool      `json:"is_cancelled"`
	Source       string    `json:"source"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// ListingRecord is one persisted asking-price listing. FirstSeenAt and
// LastSeenAt bracket the listing's observed lifetime across runs.
type ListingRecord struct {
	ID              int64     `json:"id"`
	ComplexID       int64     `json:"complex_id"`
	SourceListingID string    `json:"source_listing_id"`
	AskPrice        int64     `json:"ask_price"`
	ExclusiveM2     *float64  `json:"exclusive_m2,omitempty"`
	Floor           *int      `json:"floor,omitempty"`
	Status          string    `json:"status"`
	PostedAt        string    `json:"posted_at,omitempty"`
	TradeType       string    `json:"trade_type"`
	Source          string    `json:"source"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// Records persists collected records and serves the data-explorer queries.
type Records interface {
	// SaveValuations appends valuation snapshots. Duplicate (complex, area,
	// as-of-date) snapshots are ignored.
	SaveValuations(ctx context.Context, records []ValuationRecord) error
	// SaveTransactions appends closed deals. Exact duplicates are ignored.
	SaveTransactions(ctx context.Context, records []TransactionRecord) error
	// UpsertListings inserts new listings and refreshes ask price, status,
	// and last-seen time for listings already on record.
	UpsertListings(ctx context.Context, records []ListingRecord) error

	ListValuations(ctx context.Context, complexID int64, limit, offset int) ([]ValuationRecord, error)
	ListTransactions(ctx context.Context, complexID int64, limit, offset int) ([]TransactionRecord, error)
	ListListings(ctx context.Context, complexID int64, limit, offset int) ([]ListingRecord, error)
}
