// Package store defines the domain records and persistence interfaces for
// the collection service (complex catalog, collected records, run and task
// bookkeeping). Implementations live in other packages; this package must
// not import database drivers or concrete clients.
package store
