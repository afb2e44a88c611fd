package upstream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingRecorder captures the actor's waiter-gauge updates so tests
// can observe the table's size without touching the map itself.
type recordingRecorder struct {
	mu      sync.Mutex
	waiters int
}

func (r *recordingRecorder) IncReconnect(string) {}

func (r *recordingRecorder) SetWaiters(_ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiters = n
}

func (r *recordingRecorder) ObserveCallLatency(string, string, time.Duration) {}

func (r *recordingRecorder) current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiters
}

func TestClient_TimeoutAgainstUnreachableBackend_EmptiesWaiterTable(t *testing.T) {
	rec := &recordingRecorder{}

	// Nothing listens here; the supervisor retries forever and every
	// call times out at the facade.
	client := NewClient("test", "ws://127.0.0.1:1/api", Options{Token: "tok", Timeout: 100 * time.Millisecond}, newDiscardLogger(), rec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	started := time.Now()
	_, err := client.GetProfileByUsername(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrResponseNotReceived)

	elapsed := time.Since(started)
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)

	// The cancel command empties the table once the actor drains it.
	require.Eventually(t, func() bool {
		return rec.current() == 0
	}, time.Second, 10*time.Millisecond)
}
