package client

import (
    "context"
    "errors"
    "io"
    "sync"
    "time"

    "go.uber.org/zap"

    "ttstream/pkg/core/handoff"
    "ttstream/pkg/core/netstack"
    "ttstream/pkg/observability"
    "ttstream/pkg/protocol"
    "ttstream/pkg/protocol/codec"
    "ttstream/pkg/protocol/stream"
    "ttstream/pkg/rpcerr"
    "ttstream/pkg/transport"
)

// Options configure an AsyncClient. Zero fields take defaults: the process
// netstack, JSON, a registry with the transport error family, no logging
// and no metrics.
type Options struct {
    Dialer      *netstack.Dialer
    Codec       codec.Codec
    Errors      *rpcerr.Registry
    Logger      *zap.Logger
    Metrics     *observability.Metrics
    DialTimeout time.Duration
    // SendRate caps data envelopes per second on each stream; zero means no cap.
    SendRate  int64
    SendBurst int64
}

// AsyncClient opens streams whose operations block only the calling
// goroutine and honour a context.
type AsyncClient struct {
    dialer      *netstack.Dialer
    codec       codec.Codec
    errs        *rpcerr.Registry
    log         *zap.Logger
    metrics     *observability.Metrics
    dialTimeout time.Duration
    sendRate    int64
    sendBurst   int64
}

func NewAsyncClient(o Options) *AsyncClient {
    c := &AsyncClient{
        dialer:      o.Dialer,
        codec:       o.Codec,
        errs:        o.Errors,
        log:         observability.Component(o.Logger, "client"),
        metrics:     o.Metrics,
        dialTimeout: o.DialTimeout,
        sendRate:    o.SendRate,
        sendBurst:   o.SendBurst,
    }
    if c.dialer == nil { c.dialer = &netstack.Dialer{Logger: c.log} }
    if c.codec == nil { c.codec = codec.JSON() }
    if c.errs == nil { c.errs = rpcerr.Bootstrap() }
    return c
}

// Errors returns the registry used to decode remote errors.
func (c *AsyncClient) Errors() *rpcerr.Registry { return c.errs }

// OpenAsync dials target, opens its stream and announces the method named
// by the target path. Every failure is reported as *rpcerr.Unreachable.
func OpenAsync[Req, Res any](ctx context.Context, c *AsyncClient, target string) (*AsyncStream[Req, Res], error) {
    s, err := openAsync[Req, Res](ctx, c, target)
    c.metrics.StreamOpened(err == nil)
    if err != nil {
        c.metrics.StreamError("unreachable")
        c.log.Debug("open failed", zap.String("target", target), zap.Error(err))
        return nil, &rpcerr.Unreachable{Target: target, Cause: err}
    }
    c.log.Debug("stream opened", zap.String("target", target), zap.String("content_type", c.codec.ContentType()))
    return s, nil
}

func openAsync[Req, Res any](ctx context.Context, c *AsyncClient, target string) (*AsyncStream[Req, Res], error) {
    t, err := netstack.ParseTarget(target)
    if err != nil { return nil, err }
    if c.dialTimeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, c.dialTimeout)
        defer cancel()
    }
    sess, err := c.dialer.Dial(ctx, t)
    if err != nil { return nil, err }
    st, err := sess.OpenStream(ctx)
    if err != nil { _ = sess.Close(); return nil, err }
    conn, err := stream.Dial(st, t.Method, c.codec)
    if err != nil { _ = sess.Close(); return nil, err }
    return &AsyncStream[Req, Res]{
        conn:    conn,
        sess:    sess,
        errs:    c.errs,
        log:     c.log.With(zap.String("target", target)),
        metrics: c.metrics,
        pace:    handoff.NewTokenBucket(c.sendRate, c.sendBurst),
    }, nil
}

// AsyncStream is one open bidirectional stream. One goroutine may Send
// while another Receives.
type AsyncStream[Req, Res any] struct {
    conn    *stream.Conn
    sess    transport.Session
    errs    *rpcerr.Registry
    log     *zap.Logger
    metrics *observability.Metrics
    pace    *handoff.TokenBucket

    mu         sync.Mutex
    sendClosed bool
    remoteSet  bool
    remote     error
    // dropped is set when a write found the link gone. Frames the remote
    // sent before that stay readable; only Receive latches the outcome.
    dropped bool

    closeOnce sync.Once
}

// latch records the remote's terminal result. The first call wins.
func (s *AsyncStream[Req, Res]) latch(err error) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if !s.remoteSet {
        s.remoteSet, s.remote = true, err
        kind := "remote"
        if rpcerr.IsEOF(err) { kind = "eof" }
        s.metrics.StreamError(kind)
    }
    return s.remote
}

func (s *AsyncStream[Req, Res]) remoteClosed() (error, bool) {
    s.mu.Lock(); defer s.mu.Unlock()
    return s.remote, s.remoteSet
}

// interruptible closes the link if ctx ends while a blocking call is in flight.
func (s *AsyncStream[Req, Res]) interruptible(ctx context.Context) func() bool {
    return context.AfterFunc(ctx, func() { _ = s.Close() })
}

func (s *AsyncStream[Req, Res]) markDropped() {
    s.mu.Lock(); s.dropped = true; s.mu.Unlock()
}

// Send writes req as a data envelope. It returns rpcerr.ErrStreamClosed
// after CloseSend and io.EOF once the remote side is known to be gone.
func (s *AsyncStream[Req, Res]) Send(ctx context.Context, req *Req) error {
    s.mu.Lock()
    closed, gone := s.sendClosed, s.remoteSet || s.dropped
    s.mu.Unlock()
    if closed { return rpcerr.ErrStreamClosed }
    if gone { return io.EOF }
    if err := s.pace.Wait(ctx, 1); err != nil { return err }

    stop := s.interruptible(ctx)
    err := stream.Write(s.conn, protocol.Data(req))
    stop()
    if err == nil {
        s.metrics.FrameSent(string(protocol.TypeData))
        return nil
    }
    if ctx.Err() != nil { return ctx.Err() }
    if errors.Is(err, stream.ErrEncode) {
        s.metrics.StreamError("fault")
        return rpcerr.NewFault("send", err)
    }
    s.log.Debug("link dropped during send", zap.Error(err))
    s.markDropped()
    return io.EOF
}

// Receive returns the next payload. Once the remote closed the stream the
// same terminal error is returned on every call: io.EOF for a clean close,
// the decoded remote error otherwise. A frame that cannot be decoded yields
// a *rpcerr.Fault.
func (s *AsyncStream[Req, Res]) Receive(ctx context.Context) (*Res, error) {
    if err, ok := s.remoteClosed(); ok { return nil, err }
    if err := ctx.Err(); err != nil { return nil, err }

    stop := s.interruptible(ctx)
    e, err := stream.Read[Res](s.conn)
    stop()
    if err != nil {
        if ctx.Err() != nil { return nil, ctx.Err() }
        if errors.Is(err, stream.ErrMalformed) {
            s.metrics.StreamError("fault")
            s.log.Warn("malformed frame", zap.Error(err))
            return nil, rpcerr.NewFault("receive", err)
        }
        return nil, s.latch(io.EOF)
    }
    s.metrics.FrameReceived(string(e.Type))
    if !e.Closing() { return e.Payload, nil }

    rerr := s.errs.Decode(e.Error)
    if rerr == nil { rerr = io.EOF }
    return nil, s.latch(rerr)
}

// CloseSend tells the remote no more data follows. It is a no-op when the
// send side is already closed or the remote already closed the stream.
func (s *AsyncStream[Req, Res]) CloseSend(ctx context.Context) error {
    s.mu.Lock()
    if s.sendClosed || s.remoteSet || s.dropped {
        s.mu.Unlock()
        return nil
    }
    s.sendClosed = true
    s.mu.Unlock()
    if err := ctx.Err(); err != nil { return err }

    stop := s.interruptible(ctx)
    err := stream.Write(s.conn, protocol.Close[Req](nil))
    stop()
    if err == nil {
        s.metrics.FrameSent(string(protocol.TypeClose))
        return nil
    }
    if ctx.Err() != nil { return ctx.Err() }
    if errors.Is(err, stream.ErrEncode) {
        s.metrics.StreamError("fault")
        return rpcerr.NewFault("close_send", err)
    }
    s.markDropped()
    return nil
}

// Close releases the connection. Blocked Send and Receive calls return.
func (s *AsyncStream[Req, Res]) Close() error {
    var err error
    s.closeOnce.Do(func() {
        _ = s.conn.Close()
        err = s.sess.Close()
    })
    return err
}
