package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveKey(t *testing.T) {
	t.Parallel()

	runID := uuid.MustParse("0192aaf0-0000-7000-8000-000000000000")
	at := time.Date(2026, 2, 6, 23, 30, 0, 0, time.FixedZone("KST", 9*3600))

	key := ArchiveKey("raw", runID, "price", 7, at)
	// The date component is UTC.
	assert.Equal(t, "raw/2026-02-06/0192aaf0-0000-7000-8000-000000000000/price-7.json", key)
}

func TestNoopStore(t *testing.T) {
	t.Parallel()

	uri, err := NoopStore{}.PutObject(context.Background(), "raw/x.json", "application/json", nil)
	require.NoError(t, err)
	assert.Empty(t, uri)
}
