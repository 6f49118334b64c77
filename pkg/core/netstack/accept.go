package netstack

import (
    "context"
    "errors"
    "sync"

    "go.uber.org/zap"

    "ttstream/pkg/transport"
)

// AcceptLoop accepts sessions from l until ctx is done or l closes, tracks
// them in mgr, and runs handle for each one on its own goroutine. The
// session is closed and untracked when handle returns. AcceptLoop returns
// only after every handler it started has returned.
func AcceptLoop(ctx context.Context, l transport.Listener, mgr *transport.Manager, logger *zap.Logger, handle func(context.Context, transport.Session)) {
    if logger == nil { logger = zap.NewNop() }
    var handlers sync.WaitGroup
    defer handlers.Wait()
    for {
        s, err := l.Accept(ctx)
        if err != nil {
            select {
            case <-ctx.Done():
                return
            default:
            }
            if !errors.Is(err, transport.ErrClosed) {
                logger.Warn("accept failed", zap.String("addr", l.Addr().String()), zap.Error(err))
            }
            return
        }
        if ctx.Err() != nil {
            _ = s.Close()
            return
        }
        raddr := ""
        if ra := s.RemoteAddr(); ra != nil { raddr = ra.String() }
        logger.Debug("inbound session", zap.String("kind", s.TransportKind().String()), zap.String("raddr", raddr))
        var id uint64
        if mgr != nil { id = mgr.AddSession(s) }
        handlers.Add(1)
        go func() {
            defer handlers.Done()
            defer func() {
                _ = s.Close()
                if mgr != nil { mgr.Remove(id) }
            }()
            handle(ctx, s)
        }()
    }
}
