package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffGrowth(t *testing.T) {
	t.Parallel()
	p := BackoffPolicy{Base: 100 * time.Millisecond}

	for attempt := 0; attempt < 3; attempt++ {
		expected := time.Duration(float64(p.Base) * float64(int(1)<<attempt))
		for i := 0; i < 50; i++ {
			d := p.Delay(attempt)
			require.GreaterOrEqual(t, d, expected, "attempt %d", attempt)
			require.LessOrEqual(t, d, expected+expected/10, "attempt %d", attempt)
		}
	}
}

func TestBackoffDefaults(t *testing.T) {
	t.Parallel()
	var p BackoffPolicy
	d := p.Delay(0)
	require.GreaterOrEqual(t, d, DefaultBackoff.Base)

	// Negative attempts behave like attempt zero.
	require.GreaterOrEqual(t, p.Delay(-3), DefaultBackoff.Base)
	require.LessOrEqual(t, p.Delay(-3), DefaultBackoff.Base+DefaultBackoff.Base/10)
}
