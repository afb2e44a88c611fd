package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{7, 2 * time.Minute},
		{100, 2 * time.Minute},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, calculateBackoff(tc.attempt), "attempt %d", tc.attempt)
	}
}
