package handoff

import (
    "context"
    "sync"
)

// Notification is a value set at most once and read by any number of
// goroutines. Readers either poll with Peek or block with Wait.
type Notification[T any] struct {
    once sync.Once
    done chan struct{}
    mu   sync.RWMutex
    v    T
    set  bool
}

func NewNotification[T any]() *Notification[T] {
    return &Notification[T]{done: make(chan struct{})}
}

// Fire stores v and wakes every waiter. Only the first call has an effect;
// it reports whether this call was that one.
func (n *Notification[T]) Fire(v T) bool {
    fired := false
    n.once.Do(func() {
        n.mu.Lock()
        n.v, n.set = v, true
        n.mu.Unlock()
        close(n.done)
        fired = true
    })
    return fired
}

// Done is closed once the notification fired.
func (n *Notification[T]) Done() <-chan struct{} { return n.done }

// Peek returns the value without blocking.
func (n *Notification[T]) Peek() (T, bool) {
    n.mu.RLock(); defer n.mu.RUnlock()
    return n.v, n.set
}

// Wait blocks until the notification fires or ctx is done.
func (n *Notification[T]) Wait(ctx context.Context) (T, error) {
    select {
    case <-n.done:
        v, _ := n.Peek()
        return v, nil
    case <-ctx.Done():
        var zero T
        return zero, ctx.Err()
    }
}
