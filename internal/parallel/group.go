package parallel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Group runs fire-and-forget tasks with a cap on how many of them are in
// flight. Unlike errgroup, a failing task does not cancel its siblings and
// Wait can give up on tasks which never finish.
//
//	g := parallel.NewGroup(1000)
//	for _, x := range input {
//		if err := g.Go(ctx, func() { work(x) }); err != nil {
//			break
//		}
//	}
//	done, err := g.Wait(ctx, 40*time.Second)
type Group struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewGroup returns a group with at most limit running tasks. Non positive
// limit means no cap.
func NewGroup(limit int) *Group {
	g := &Group{}
	if limit > 0 {
		g.sem = semaphore.NewWeighted(int64(limit))
	}
	return g
}

// Go blocks until a slot is free and then runs fn in a new goroutine. It
// returns the context error if ctx is done first, fn is not run in that case.
func (g *Group) Go(ctx context.Context, fn func()) error {
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	g.active.Add(1)
	g.wg.Go(func() {
		defer g.active.Add(-1)
		if g.sem != nil {
			defer g.sem.Release(1)
		}
		fn()
	})
	return nil
}

// Active returns the number of running tasks
func (g *Group) Active() int {
	return int(g.active.Load())
}

// Wait waits for all started tasks up to timeout. It returns true if all of
// them finished and false on timeout. If ctx is done first, its error is
// returned. The tasks still running are abandoned, not canceled.
func (g *Group) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
