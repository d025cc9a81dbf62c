package parallel_test

import (
	"context"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/parallel"

	"github.com/stretchr/testify/require"
)

func TestGroupLimit(t *testing.T) {
	t.Parallel()

	input := []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second}

	var testCases = []struct {
		scenario string
		limit    int
		then     time.Duration
	}{
		{"limit 1", 1, 18 * time.Second},
		{"limit 2", 2, 12 * time.Second},
		{"limit 10", 10, 10 * time.Second},
		{"no limit", 0, 10 * time.Second},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			synctest.Test(t, func(t *testing.T) {
				var running, peak atomic.Int32
				g := parallel.NewGroup(tt.limit)
				start := time.Now()
				for _, d := range input {
					err := g.Go(t.Context(), func() {
						n := running.Add(1)
						for {
							p := peak.Load()
							if n <= p || peak.CompareAndSwap(p, n) {
								break
							}
						}
						time.Sleep(d)
						running.Add(-1)
					})
					require.NoError(t, err)
				}
				done, err := g.Wait(t.Context(), time.Minute)
				require.NoError(t, err)
				require.True(t, done)
				require.Equal(t, tt.then, time.Since(start))
				require.Zero(t, g.Active())
				if tt.limit > 0 {
					require.LessOrEqual(t, int(peak.Load()), tt.limit)
				}
			})
		})
	}
}

func TestGroupGoCanceled(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		g := parallel.NewGroup(1)
		require.NoError(t, g.Go(t.Context(), func() { time.Sleep(time.Hour) }))

		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		defer cancel()
		var ran atomic.Bool
		err := g.Go(ctx, func() { ran.Store(true) })
		require.ErrorIs(t, err, context.DeadlineExceeded)

		require.Equal(t, 1, g.Active())
		done, err := g.Wait(t.Context(), 2*time.Hour)
		require.NoError(t, err)
		require.True(t, done)
		require.False(t, ran.Load())
	})
}

func TestGroupWaitTimeout(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		// fake time stops once the bubble function returns, so the stuck
		// task must be released before that
		release := make(chan struct{})
		defer close(release)

		g := parallel.NewGroup(10)
		require.NoError(t, g.Go(t.Context(), func() { time.Sleep(time.Second) }))
		require.NoError(t, g.Go(t.Context(), func() { <-release }))

		start := time.Now()
		done, err := g.Wait(t.Context(), 40*time.Second)
		require.NoError(t, err)
		require.False(t, done)
		require.Equal(t, 40*time.Second, time.Since(start))
		require.Equal(t, 1, g.Active())
	})
}

func TestGroupWaitCanceled(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		g := parallel.NewGroup(10)
		require.NoError(t, g.Go(t.Context(), func() { <-release }))

		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()
		start := time.Now()
		done, err := g.Wait(ctx, time.Minute)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.False(t, done)
		require.Equal(t, 5*time.Second, time.Since(start))
	})
}
