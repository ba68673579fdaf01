package collector

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()
	err := Errorf(KindRateLimit, "rate limited: %d", 429)
	require.Equal(t, KindRateLimit, KindOf(err))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	// Kind survives further wrapping.
	wrapped := fmt.Errorf("collect: %w", err)
	require.Equal(t, KindRateLimit, KindOf(wrapped))
}

func TestRetryable(t *testing.T) {
	t.Parallel()
	cases := []struct {
		kind Kind
		want bool
	}{
		{KindNetwork, true},
		{KindRateLimit, true},
		{KindBrowser, true},
		{KindAuth, false},
		{KindParse, false},
		{KindConfig, false},
		{KindUnknown, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Retryable(Errorf(tc.kind, "boom")), "kind %s", tc.kind)
	}
	require.False(t, Retryable(nil))
	require.False(t, Retryable(errors.New("untyped")))
}

func TestErrorfWrapsCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection reset")
	err := Errorf(KindNetwork, "direct call: %w", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "network")
	require.Contains(t, err.Error(), "connection reset")
}
