package daemon

import (
	"context"
	"sync"
)

// WorkerGroup tracks daemon-owned goroutines and provides a safe shutdown
// boundary so WaitGroup.Add never races with Wait.
//
// Each Reset starts a new generation with its own WaitGroup. Workers and
// waiters of an earlier generation keep the WaitGroup they started with, so a
// worker left over from a timed-out StopAndWait is no longer waited for.
type WorkerGroup struct {
	mu       sync.Mutex
	wg       *sync.WaitGroup
	stopping bool
}

// Reset accepts workers again under a fresh generation.
func (g *WorkerGroup) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopping = false
	g.wg = new(sync.WaitGroup)
}

// generation requires g.mu held.
func (g *WorkerGroup) generation() *sync.WaitGroup {
	if g.wg == nil {
		g.wg = new(sync.WaitGroup)
	}
	return g.wg
}

// Go starts fn unless the group is stopping.
func (g *WorkerGroup) Go(fn func()) bool {
	if fn == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopping {
		return false
	}

	wg := g.generation()
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
	return true
}

// StopAndWait refuses new workers and waits for the current generation,
// bounded by ctx.
func (g *WorkerGroup) StopAndWait(ctx context.Context) error {
	g.mu.Lock()
	g.stopping = true
	wg := g.generation()
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
