// Package handoff holds the primitives that pass work between caller
// goroutines and a stream's worker: an unbounded FIFO and a one-shot
// Notification.
package handoff

import "sync"

// Queue is an unbounded FIFO. Put never blocks; Take blocks until an item
// is available, the queue is closed, or stop is closed.
type Queue[T any] struct {
    mu     sync.Mutex
    cond   *sync.Cond
    items  []T
    closed bool
}

func NewQueue[T any]() *Queue[T] {
    q := &Queue[T]{}
    q.cond = sync.NewCond(&q.mu)
    return q
}

// Put appends it. It reports false if the queue is closed.
func (q *Queue[T]) Put(it T) bool {
    q.mu.Lock()
    defer q.mu.Unlock()
    if q.closed { return false }
    q.items = append(q.items, it)
    q.cond.Signal()
    return true
}

// Take pops the oldest item. ok is false once the queue is closed or stop fires.
func (q *Queue[T]) Take(stop <-chan struct{}) (it T, ok bool) {
    q.mu.Lock()
    defer q.mu.Unlock()
    if len(q.items) == 0 && stop != nil && !q.closed {
        quit := make(chan struct{})
        defer close(quit)
        go func() {
            select {
            case <-stop:
                q.mu.Lock(); q.cond.Broadcast(); q.mu.Unlock()
            case <-quit:
            }
        }()
    }
    for len(q.items) == 0 {
        if q.closed || fired(stop) { return it, false }
        q.cond.Wait()
    }
    it = q.items[0]
    var zero T
    q.items[0] = zero
    q.items = q.items[1:]
    return it, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
    q.mu.Lock(); defer q.mu.Unlock()
    return len(q.items)
}

// Close wakes every Take and returns the items that were never taken.
func (q *Queue[T]) Close() []T {
    q.mu.Lock()
    defer q.mu.Unlock()
    if q.closed { return nil }
    q.closed = true
    left := q.items
    q.items = nil
    q.cond.Broadcast()
    return left
}

func fired(stop <-chan struct{}) bool {
    if stop == nil { return false }
    select {
    case <-stop:
        return true
    default:
        return false
    }
}
