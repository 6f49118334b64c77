package netstack

import (
    "context"
    "math/rand/v2"
    "time"

    "go.uber.org/zap"

    "ttstream/pkg/transport"
)

// Dialer opens sessions to targets, retrying failed dials with exponential backoff.
type Dialer struct {
    Stack *Stack
    // Attempts is the number of dials before giving up; zero means one.
    Attempts       int
    BackoffInitial time.Duration
    BackoffMax     time.Duration
    BackoffJitter  time.Duration
    Logger         *zap.Logger
}

// Dial returns a session to target or the last dial error.
func (d *Dialer) Dial(ctx context.Context, target Target) (transport.Session, error) {
    stack := d.Stack
    if stack == nil { stack = defaultStack }
    log := d.Logger
    if log == nil { log = zap.NewNop() }
    tr, err := stack.Transport(target.Kind)
    if err != nil { return nil, err }

    attempts := d.Attempts
    if attempts <= 0 { attempts = 1 }
    backoff := d.BackoffInitial
    if backoff <= 0 { backoff = 200 * time.Millisecond }
    maxBackoff := d.BackoffMax
    if maxBackoff <= 0 { maxBackoff = 5 * time.Second }

    var lastErr error
    for i := 0; i < attempts; i++ {
        if i > 0 {
            select {
            case <-ctx.Done():
                return nil, ctx.Err()
            case <-time.After(withJitter(backoff, d.BackoffJitter)):
            }
            if backoff < maxBackoff { backoff *= 2; if backoff > maxBackoff { backoff = maxBackoff } }
        }
        sess, err := tr.Dial(ctx, target.DialAddress())
        if err == nil {
            log.Debug("dialed", zap.String("kind", tr.Kind().String()), zap.String("addr", target.DialAddress()), zap.Int("attempt", i+1))
            return sess, nil
        }
        lastErr = err
        log.Warn("dial failed", zap.String("kind", tr.Kind().String()), zap.String("addr", target.DialAddress()), zap.Int("attempt", i+1), zap.Error(err))
        if ctx.Err() != nil { return nil, ctx.Err() }
    }
    return nil, lastErr
}

// defaultStack backs Dialers and servers that are not given a Stack, so that
// mem:// targets resolve within one process.
var defaultStack = NewStack()

// Default returns the process-wide Stack.
func Default() *Stack { return defaultStack }

func withJitter(d, jitter time.Duration) time.Duration {
    if jitter <= 0 { return d }
    return d + rand.N(jitter)
}
