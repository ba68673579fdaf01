package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterFirstCallNeverBlocks(t *testing.T) {
	t.Parallel()
	l := NewRateLimiter(1) // one request per minute

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiterEnforcesInterval(t *testing.T) {
	t.Parallel()
	// 600 per minute = one every 100ms.
	l := NewRateLimiter(600)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRateLimiterUnlimited(t *testing.T) {
	t.Parallel()
	l := NewRateLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiterRespectsContext(t *testing.T) {
	t.Parallel()
	l := NewRateLimiter(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx))
	err := l.Wait(ctx)
	require.Error(t, err)
}
