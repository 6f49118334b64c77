package client

import (
    "context"
    "errors"
    "sync"
    "sync/atomic"

    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "ttstream/pkg/core/handoff"
    "ttstream/pkg/rpcerr"
)

// ErrConcurrentUse is returned when two goroutines call Send, or two call
// Receive, on the same SyncStream at the same time.
var ErrConcurrentUse = errors.New("client: concurrent use of stream")

// Outcome is the terminal result of one side of a SyncStream. Fatal marks a
// fault in the stream machinery rather than an error reported by the remote.
type Outcome struct {
    Err   error
    Fatal bool
}

func outcomeOf(err error) Outcome { return Outcome{Err: err, Fatal: rpcerr.IsFatal(err)} }

// SyncClient opens streams with plain blocking methods. Each stream runs
// its network I/O on a dedicated worker goroutine.
type SyncClient struct {
    async *AsyncClient
}

func NewSyncClient(a *AsyncClient) *SyncClient {
    if a == nil { a = NewAsyncClient(Options{}) }
    return &SyncClient{async: a}
}

// Async returns the client the worker goroutines use.
func (c *SyncClient) Async() *AsyncClient { return c.async }

type received[Res any] struct {
    res *Res
    err error
}

type sendItem[Req any] struct {
    req      *Req
    stop     bool
    graceful bool
    err      error
    done     chan struct{}
}

// SyncStream is the blocking facade over an AsyncStream. At most one
// goroutine may Send and at most one may Receive at a time; Cancel, CloseSend
// and Close may be called from anywhere.
type SyncStream[Req, Res any] struct {
    as  *AsyncStream[Req, Res]
    log *zap.Logger

    ctx    context.Context
    cancel context.CancelFunc

    recvCh    chan received[Res]
    recvFatal *handoff.Notification[error]
    sendq     *handoff.Queue[*sendItem[Req]]
    sender    *handoff.Notification[Outcome]
    stopped   chan struct{}
    stopOnce  sync.Once
    done      chan struct{}

    sendBusy atomic.Bool
    recvBusy atomic.Bool

    termMu  sync.Mutex
    term    error
    termSet bool
}

// Open starts a worker for target and waits for it to open the stream. ctx
// bounds the open only. When Open fails the worker has already exited.
func Open[Req, Res any](ctx context.Context, c *SyncClient, target string) (*SyncStream[Req, Res], error) {
    wctx, cancel := context.WithCancel(context.Background())
    s := &SyncStream[Req, Res]{
        log:       c.async.log,
        ctx:       wctx,
        cancel:    cancel,
        recvCh:    make(chan received[Res], 1),
        recvFatal: handoff.NewNotification[error](),
        sendq:     handoff.NewQueue[*sendItem[Req]](),
        sender:    handoff.NewNotification[Outcome](),
        stopped:   make(chan struct{}),
        done:      make(chan struct{}),
    }
    opened := handoff.NewNotification[error]()
    go s.run(ctx, c.async, target, opened)

    err, _ := opened.Wait(context.Background())
    if err != nil {
        <-s.done
        cancel()
        return nil, err
    }
    return s, nil
}

func (s *SyncStream[Req, Res]) run(openCtx context.Context, c *AsyncClient, target string, opened *handoff.Notification[error]) {
    defer close(s.done)
    as, err := OpenAsync[Req, Res](openCtx, c, target)
    if err != nil {
        opened.Fire(err)
        return
    }
    s.as = as
    s.log = as.log
    opened.Fire(nil)

    // A fault on one side must not cancel the other, so the group carries
    // no shared context; Wait reports the first fault.
    var g errgroup.Group
    g.Go(func() error { return s.forwardReceives(s.ctx) })
    g.Go(func() error { return s.forwardSends(s.ctx) })
    if err := g.Wait(); err != nil {
        s.log.Error("stream worker fault", zap.Error(err))
    }
    _ = as.Close()
    s.log.Debug("stream worker exited")
}

func (s *SyncStream[Req, Res]) forwardReceives(ctx context.Context) error {
    for {
        res, err := s.as.Receive(ctx)
        if err != nil && rpcerr.IsFatal(err) {
            s.recvFatal.Fire(err)
            return err
        }
        select {
        case s.recvCh <- received[Res]{res: res, err: err}:
        case <-s.stopped:
            return nil
        }
        if err != nil { return nil }
    }
}

func (s *SyncStream[Req, Res]) forwardSends(ctx context.Context) error {
    defer func() {
        o, _ := s.sender.Peek()
        for _, it := range s.sendq.Close() {
            it.err = senderResult(o)
            close(it.done)
        }
    }()
    for {
        it, ok := s.sendq.Take(s.stopped)
        if !ok {
            s.sender.Fire(Outcome{})
            return nil
        }
        if it.stop {
            o := Outcome{}
            if it.graceful { o = outcomeOf(s.as.CloseSend(ctx)) }
            s.sender.Fire(o)
            close(it.done)
            return faultOf(o)
        }
        if err := s.as.Send(ctx, it.req); err != nil {
            o := outcomeOf(err)
            s.sender.Fire(o)
            it.err = err
            close(it.done)
            return faultOf(o)
        }
        close(it.done)
    }
}

func faultOf(o Outcome) error {
    if o.Fatal { return o.Err }
    return nil
}

// senderResult maps a latched sender outcome to what Send reports.
func senderResult(o Outcome) error {
    if o.Err == nil { return rpcerr.ErrStreamClosed }
    return o.Err
}

// Send hands req to the worker and blocks until it was written. It does not
// wait for the remote to acknowledge it. After CloseSend or Cancel it returns
// rpcerr.ErrStreamClosed without touching the network; after a failed send
// it returns that failure again.
func (s *SyncStream[Req, Res]) Send(req *Req) error {
    if !s.sendBusy.CompareAndSwap(false, true) { return ErrConcurrentUse }
    defer s.sendBusy.Store(false)

    if o, ok := s.sender.Peek(); ok { return senderResult(o) }
    it := &sendItem[Req]{req: req, done: make(chan struct{})}
    if !s.sendq.Put(it) {
        <-s.sender.Done()
        o, _ := s.sender.Peek()
        return senderResult(o)
    }
    <-it.done
    return it.err
}

// stop enqueues the stop marker and waits for the sender to latch its outcome.
func (s *SyncStream[Req, Res]) stop(graceful bool) Outcome {
    if o, ok := s.sender.Peek(); ok { return o }
    s.sendq.Put(&sendItem[Req]{stop: true, graceful: graceful, done: make(chan struct{})})
    <-s.sender.Done()
    o, _ := s.sender.Peek()
    return o
}

// CloseSend half-closes the stream and returns the outcome of doing so.
// Later calls return the same result and send nothing.
func (s *SyncStream[Req, Res]) CloseSend() error { return s.stop(true).Err }

// Cancel stops the send side without telling the remote. It returns an
// error only when the send side ended in a fault.
func (s *SyncStream[Req, Res]) Cancel() error {
    if o := s.stop(false); o.Fatal { return o.Err }
    return nil
}

// Receive blocks for the next payload in arrival order. Once it returns a
// terminal error (io.EOF for a clean close) every later call returns the same
// error, and the send side is cancelled.
func (s *SyncStream[Req, Res]) Receive() (*Res, error) {
    if !s.recvBusy.CompareAndSwap(false, true) { return nil, ErrConcurrentUse }
    defer s.recvBusy.Store(false)

    if err, ok := s.terminal(); ok { return nil, err }
    if err, ok := s.recvFatal.Peek(); ok { return nil, s.finish(err) }
    select {
    case it := <-s.recvCh:
        if it.err != nil { return nil, s.finish(it.err) }
        return it.res, nil
    case <-s.recvFatal.Done():
        err, _ := s.recvFatal.Peek()
        return nil, s.finish(err)
    case <-s.stopped:
        return nil, s.finish(rpcerr.ErrStreamClosed)
    }
}

// HasData reports whether Receive would return without waiting on the network.
func (s *SyncStream[Req, Res]) HasData() bool {
    if _, ok := s.terminal(); ok { return true }
    if _, ok := s.recvFatal.Peek(); ok { return true }
    return len(s.recvCh) > 0
}

func (s *SyncStream[Req, Res]) terminal() (error, bool) {
    s.termMu.Lock(); defer s.termMu.Unlock()
    return s.term, s.termSet
}

// finish latches err as the receive result and cancels the send side.
func (s *SyncStream[Req, Res]) finish(err error) error {
    s.termMu.Lock()
    if !s.termSet { s.term, s.termSet = err, true }
    err = s.term
    s.termMu.Unlock()
    _ = s.Cancel()
    return err
}

// Close cancels the stream, releases the connection and waits for the
// worker to exit. It is safe to call more than once.
func (s *SyncStream[Req, Res]) Close() error {
    s.stopOnce.Do(func() {
        close(s.stopped)
        s.cancel()
    })
    err := s.Cancel()
    <-s.done
    return err
}

// Done is closed when the worker exited.
func (s *SyncStream[Req, Res]) Done() <-chan struct{} { return s.done }
