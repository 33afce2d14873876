package httpapi

import (
	"context"
	"sync"
)

// requestQueue admits one holder at a time. Waiters are handed the slot
// strictly in arrival order.
type requestQueue struct {
	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{}
}

// acquire blocks until the caller holds the slot or ctx is done. A caller
// that gives up is removed from the line without disturbing the others.
func (q *requestQueue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if !q.busy {
		q.busy = true
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.waiters = append(q.waiters, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, w := range q.waiters {
			if w == ch {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// The slot was handed over while ctx expired; pass it on.
		q.release()
		return ctx.Err()
	}
}

func (q *requestQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiters) == 0 {
		q.busy = false
		return
	}
	next := q.waiters[0]
	q.waiters = q.waiters[1:]
	close(next)
}

func (q *requestQueue) waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}
