package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerGroup(t *testing.T) {
	var g WorkerGroup
	var ran atomic.Int32
	release := make(chan struct{})

	require.True(t, g.Go(func() {
		<-release
		ran.Add(1)
	}))
	require.False(t, g.Go(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.StopAndWait(ctx), context.DeadlineExceeded)
	require.False(t, g.Go(func() {}), "stopping group refuses work")

	close(release)
	require.NoError(t, g.StopAndWait(context.Background()))
	require.Equal(t, int32(1), ran.Load())

	g.Reset()
	require.True(t, g.Go(func() {}))
	require.NoError(t, g.StopAndWait(context.Background()))
}

func TestWorkerGroupResetAfterTimedOutStop(t *testing.T) {
	var g WorkerGroup
	release := make(chan struct{})
	var stale atomic.Bool

	require.True(t, g.Go(func() {
		<-release
		stale.Store(true)
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.StopAndWait(ctx), context.DeadlineExceeded)

	// The stale worker and the waiter from the timed-out stop are still
	// running while the next generation starts.
	g.Reset()
	var fresh atomic.Int32
	for i := 0; i < 3; i++ {
		require.True(t, g.Go(func() { fresh.Add(1) }))
	}
	require.NoError(t, g.StopAndWait(context.Background()), "new generation does not wait for stale workers")
	require.Equal(t, int32(3), fresh.Load())
	require.False(t, stale.Load())

	close(release)
	require.Eventually(t, stale.Load, time.Second, time.Millisecond)
}
