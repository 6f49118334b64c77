package handoff

import (
    "context"
    "math"
    "sync"
    "time"
)

// TokenBucket paces a sender to rate tokens per second with bursts of up to
// capacity tokens. A nil *TokenBucket never blocks.
type TokenBucket struct {
    mu       sync.Mutex
    capacity int64
    tokens   int64
    rate     int64 // tokens per second
    horizon  time.Duration // idle time that refills an empty bucket
    last     time.Time
    now      func() time.Time
}

// NewTokenBucket returns nil when ratePerSec is not positive.
func NewTokenBucket(ratePerSec, capacity int64) *TokenBucket {
    if ratePerSec <= 0 { return nil }
    if capacity <= 0 { capacity = ratePerSec }
    return &TokenBucket{
        capacity: capacity,
        tokens:   capacity,
        rate:     ratePerSec,
        horizon:  refillHorizon(ratePerSec, capacity),
        last:     time.Now(),
        now:      time.Now,
    }
}

// refillHorizon is the idle time that refills capacity tokens, rounded up,
// and bounded so that rate*horizon in nanoseconds fits an int64.
func refillHorizon(rate, capacity int64) time.Duration {
    limit := time.Duration(math.MaxInt64 / rate)
    if capacity > (math.MaxInt64-rate)/int64(time.Second) { return limit }
    full := time.Duration((capacity*int64(time.Second) + rate - 1) / rate)
    return min(full, limit)
}

// Allow tries to consume n tokens; if not enough, returns duration to wait.
func (b *TokenBucket) Allow(n int64) (ok bool, wait time.Duration) {
    if b == nil { return true, 0 }
    b.mu.Lock(); defer b.mu.Unlock()
    now := b.now()
    dt := min(now.Sub(b.last), b.horizon)
    if dt > 0 {
        add := (b.rate * dt.Nanoseconds()) / int64(time.Second)
        if add > 0 {
            b.tokens += add
            if b.tokens > b.capacity { b.tokens = b.capacity }
            b.last = now
        }
    }
    if b.tokens >= n {
        b.tokens -= n
        return true, 0
    }
    need := n - b.tokens
    nanos := (need * int64(time.Second)) / b.rate
    if nanos <= 0 { nanos = 1 }
    return false, time.Duration(nanos)
}

// Wait blocks until n tokens were consumed or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context, n int64) error {
    if err := ctx.Err(); err != nil { return err }
    for {
        ok, d := b.Allow(n)
        if ok { return nil }
        t := time.NewTimer(d)
        select {
        case <-ctx.Done():
            t.Stop()
            return ctx.Err()
        case <-t.C:
        }
    }
}
