package client

import (
    "context"
    "io"
    "net"
    "runtime"
    "strings"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "ttstream/pkg/core/netstack"
    "ttstream/pkg/protocol/codec"
    "ttstream/pkg/rpcerr"
    "ttstream/pkg/server"
    "ttstream/pkg/transport"
    "ttstream/pkg/transport/mem"
)

type msg struct {
    Seq  int    `json:"seq"`
    Text string `json:"text"`
}

// ValidationError is the app.validation error family used by the tests.
type ValidationError struct{ Detail string }

func (e *ValidationError) Error() string { return "validation: " + e.Detail }

func appErrors() rpcerr.Provider {
    return rpcerr.Family{
        Namespace: "app",
        Kinds: map[string]func(string) error{
            "validation": func(d string) error { return &ValidationError{Detail: d} },
        },
    }
}

// counting wraps the mem transport and counts frames crossing the dialer's side.
type counting struct {
    *mem.Transport
    sent atomic.Int64
    recv atomic.Int64
}

func (c *counting) Dial(ctx context.Context, addr string) (transport.Session, error) {
    s, err := c.Transport.Dial(ctx, addr)
    if err != nil { return nil, err }
    return &countingSession{Session: s, c: c}, nil
}

type countingSession struct {
    transport.Session
    c *counting
}

func (s *countingSession) OpenStream(ctx context.Context) (transport.Stream, error) {
    st, err := s.Session.OpenStream(ctx)
    if err != nil { return nil, err }
    return &countingStream{Stream: st, c: s.c}, nil
}

type countingStream struct {
    transport.Stream
    c *counting
}

func (s *countingStream) SendBytes(b []byte) error {
    err := s.Stream.SendBytes(b)
    if err == nil { s.c.sent.Add(1) }
    return err
}

func (s *countingStream) RecvBytes() ([]byte, error) {
    b, err := s.Stream.RecvBytes()
    if err == nil { s.c.recv.Add(1) }
    return b, err
}

type env struct {
    stack *netstack.Stack
    tr    *counting
    srv   *server.Server
    async *AsyncClient
    sync  *SyncClient
    base  string
}

func newEnv(t *testing.T, c codec.Codec) *env {
    t.Helper()
    tr := &counting{Transport: mem.New()}
    stack := netstack.NewStack()
    stack.Register(tr)

    log := zaptest.NewLogger(t)
    srv := server.New(server.Options{Stack: stack, Logger: log, Linger: 100 * time.Millisecond})
    srv.Handle("/echo", server.Echo)
    srv.Handle("/fail", func(ctx context.Context, s *server.Stream) error {
        if _, err := server.Recv[msg](s); err != nil { return err }
        return rpcerr.New("app.validation", "field X required")
    })
    srv.Handle("/flood", func(ctx context.Context, s *server.Stream) error {
        for i := 0; i < 10; i++ {
            if err := server.Send(s, &msg{Seq: i}); err != nil { return err }
        }
        return nil
    })
    srv.Handle("/report", func(ctx context.Context, s *server.Stream) error {
        for i := 0; i < 4; i++ {
            if err := server.Send(s, &msg{Seq: i}); err != nil { return err }
        }
        return rpcerr.New("app.validation", "report rejected")
    })
    srv.Handle("/hold", func(ctx context.Context, s *server.Stream) error {
        _, err := server.Recv[msg](s)
        return err
    })
    l, err := tr.Listen(context.Background(), "svc")
    require.NoError(t, err)
    serveInBackground(t, srv, l)

    ac := NewAsyncClient(Options{
        Dialer: &netstack.Dialer{Stack: stack, Logger: log},
        Codec:  c,
        Errors: rpcerr.Bootstrap(appErrors(), server.Errors()),
        Logger: log,
    })
    return &env{stack: stack, tr: tr, srv: srv, async: ac, sync: NewSyncClient(ac), base: "mem://svc"}
}

// serveInBackground runs srv on l until the test's cleanup, which waits for
// every handler so none logs after the test finished.
func serveInBackground(t *testing.T, srv *server.Server, l transport.Listener) {
    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() { defer close(done); srv.Serve(ctx, l) }()
    t.Cleanup(func() {
        cancel()
        _ = l.Close()
        srv.Close()
        <-done
    })
}

func (e *env) open(t *testing.T, method string) *SyncStream[msg, msg] {
    t.Helper()
    s, err := Open[msg, msg](context.Background(), e.sync, e.base+method)
    require.NoError(t, err)
    t.Cleanup(func() { _ = s.Close() })
    return s
}

func sendCloseAndCollect(t *testing.T, s *SyncStream[msg, msg], n int) []msg {
    t.Helper()
    for i := 0; i < n; i++ {
        require.NoError(t, s.Send(&msg{Seq: i, Text: "hello"}))
    }
    require.NoError(t, s.CloseSend())
    var got []msg
    for {
        m, err := s.Receive()
        if rpcerr.IsEOF(err) { break }
        require.NoError(t, err)
        got = append(got, *m)
    }
    return got
}

func TestEchoThreeThenEOF(t *testing.T) {
    for _, c := range []codec.Codec{codec.JSON(), codec.MustCBOR()} {
        t.Run(c.ContentType(), func(t *testing.T) {
            e := newEnv(t, c)
            for round := 0; round < 2; round++ {
                s := e.open(t, "/echo")
                got := sendCloseAndCollect(t, s, 3)
                require.Equal(t, []msg{{0, "hello"}, {1, "hello"}, {2, "hello"}}, got)

                for i := 0; i < 3; i++ {
                    _, err := s.Receive()
                    require.ErrorIs(t, err, io.EOF)
                }
                require.NoError(t, s.Close())
                select {
                case <-s.Done():
                case <-time.After(time.Second):
                    t.Fatalf("worker did not exit")
                }
            }
        })
    }
}

func TestOpenUnreachable(t *testing.T) {
    e := newEnv(t, codec.JSON())
    before := runtime.NumGoroutine()
    for _, target := range []string{"mem://nobody/echo", "bogus-target", "tcp://127.0.0.1:1/echo"} {
        start := time.Now()
        s, err := Open[msg, msg](context.Background(), e.sync, target)
        require.Nil(t, s)
        require.ErrorIs(t, err, rpcerr.ErrUnreachable, target)
        require.Less(t, time.Since(start), 5*time.Second)
        var u *rpcerr.Unreachable
        require.ErrorAs(t, err, &u)
        require.Equal(t, target, u.Target)
    }
    require.Eventually(t, func() bool { return runtime.NumGoroutine() <= before }, time.Second, 10*time.Millisecond)
}

func TestRemoteApplicationError(t *testing.T) {
    e := newEnv(t, codec.MustCBOR())
    s := e.open(t, "/fail")
    require.NoError(t, s.Send(&msg{Seq: 1}))

    _, err := s.Receive()
    var ve *ValidationError
    require.ErrorAs(t, err, &ve)
    require.Equal(t, "field X required", ve.Detail)
    require.False(t, rpcerr.IsFatal(err))

    _, again := s.Receive()
    require.Equal(t, err, again)
    // the terminal receive cancelled the send side
    require.ErrorIs(t, s.Send(&msg{}), rpcerr.ErrStreamClosed)
}

func TestUnknownMethodDecodes(t *testing.T) {
    e := newEnv(t, codec.JSON())
    s := e.open(t, "/nope")
    _, err := s.Receive()
    require.ErrorIs(t, err, server.ErrNotFound)
}

func TestSendAfterCloseSendTouchesNothing(t *testing.T) {
    e := newEnv(t, codec.JSON())
    s := e.open(t, "/hold")
    require.NoError(t, s.CloseSend())
    sent := e.tr.sent.Load()

    require.ErrorIs(t, s.Send(&msg{Seq: 9}), rpcerr.ErrStreamClosed)
    require.ErrorIs(t, s.Send(&msg{Seq: 10}), rpcerr.ErrStreamClosed)
    require.Equal(t, sent, e.tr.sent.Load())
}

func TestCloseSendIdempotent(t *testing.T) {
    e := newEnv(t, codec.JSON())
    s := e.open(t, "/echo")
    require.NoError(t, s.Send(&msg{Seq: 1}))
    before := e.tr.sent.Load()
    first := s.CloseSend()
    second := s.CloseSend()
    require.Equal(t, first, second)
    require.Equal(t, before+1, e.tr.sent.Load(), "exactly one close frame")
    require.NoError(t, s.Cancel())
}

func TestReceiveBackpressure(t *testing.T) {
    e := newEnv(t, codec.JSON())
    s := e.open(t, "/flood")

    require.Eventually(t, s.HasData, time.Second, 5*time.Millisecond)
    time.Sleep(50 * time.Millisecond)
    // one item waits in the channel and one is held by the forwarder
    require.LessOrEqual(t, e.tr.recv.Load(), int64(2))

    m, err := s.Receive()
    require.NoError(t, err)
    require.Equal(t, 0, m.Seq)
    time.Sleep(50 * time.Millisecond)
    require.LessOrEqual(t, e.tr.recv.Load(), int64(3))

    for i := 1; i < 10; i++ {
        m, err := s.Receive()
        require.NoError(t, err)
        require.Equal(t, i, m.Seq)
    }
    _, err = s.Receive()
    require.ErrorIs(t, err, io.EOF)
}

func TestConcurrentReceiveRejected(t *testing.T) {
    e := newEnv(t, codec.JSON())
    s := e.open(t, "/hold")
    first := make(chan error, 1)
    go func() { _, err := s.Receive(); first <- err }()
    require.Eventually(t, s.recvBusy.Load, time.Second, time.Millisecond)

    _, err := s.Receive()
    require.ErrorIs(t, err, ErrConcurrentUse)

    require.NoError(t, s.CloseSend())
    select {
    case err := <-first:
        require.ErrorIs(t, err, io.EOF)
    case <-time.After(2 * time.Second):
        t.Fatalf("blocked Receive did not finish")
    }
}

func TestMalformedFrameIsFatal(t *testing.T) {
    e := newEnv(t, codec.JSON())
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    l, err := e.tr.Listen(ctx, "raw")
    require.NoError(t, err)
    go func() {
        sess, err := l.Accept(ctx)
        if err != nil { return }
        st, _ := sess.AcceptStream(ctx)
        _, _ = st.RecvBytes() // preamble
        _ = st.SendBytes([]byte("{definitely not an envelope"))
        <-ctx.Done()
        _ = sess.Close()
    }()

    s, err := Open[msg, msg](ctx, e.sync, "mem://raw/x")
    require.NoError(t, err)
    defer s.Close()
    _, err = s.Receive()
    require.True(t, rpcerr.IsFatal(err), "got %v", err)
    _, again := s.Receive()
    require.Equal(t, err, again)
}

func TestTypedStreamClient(t *testing.T) {
    e := newEnv(t, codec.JSON())
    var sc StreamClient[msg, msg] = Typed[msg, msg](e.sync)
    st, err := sc.Open(context.Background(), e.base+"/echo")
    require.NoError(t, err)
    defer st.(*SyncStream[msg, msg]).Close()
    require.NoError(t, st.Send(&msg{Seq: 7, Text: "typed"}))
    require.NoError(t, st.CloseSend())
    m, err := st.Receive()
    require.NoError(t, err)
    require.Equal(t, "typed", m.Text)
    _, err = st.Receive()
    require.ErrorIs(t, err, io.EOF)
}

func TestEchoOverNetworkTransports(t *testing.T) {
    for _, scheme := range []string{"tcp", "ws", "quic"} {
        t.Run(scheme, func(t *testing.T) {
            ctx, cancel := context.WithCancel(context.Background())
            defer cancel()
            stack := netstack.NewStack()
            srv := server.New(server.Options{Stack: stack, Logger: zaptest.NewLogger(t)})
            srv.Handle("/echo", server.Echo)
            tg, err := netstack.ParseTarget(scheme + "://127.0.0.1:0")
            require.NoError(t, err)
            l, err := stack.Listen(ctx, tg)
            require.NoError(t, err)
            serveInBackground(t, srv, l)

            _, port, _ := net.SplitHostPort(l.Addr().String())
            sc := NewSyncClient(NewAsyncClient(Options{Dialer: &netstack.Dialer{Stack: stack}, Codec: codec.MustCBOR(), DialTimeout: 2 * time.Second}))
            s, err := Open[msg, msg](ctx, sc, scheme+"://127.0.0.1:"+port+"/echo")
            require.NoError(t, err)
            defer s.Close()
            got := sendCloseAndCollect(t, s, 3)
            require.Len(t, got, 3)
            require.True(t, strings.EqualFold(got[2].Text, "hello"))
        })
    }
}

func TestSyncSendAfterDropKeepsRemoteResult(t *testing.T) {
    e := newEnv(t, codec.JSON())
    s := e.open(t, "/report")
    require.Eventually(t, func() bool { return len(e.srv.Sessions()) == 1 }, time.Second, 2*time.Millisecond)
    require.Eventually(t, func() bool { return len(e.srv.Sessions()) == 0 }, 2*time.Second, 5*time.Millisecond)

    require.ErrorIs(t, s.Send(&msg{Seq: 99}), io.EOF)
    for i := 0; i < 4; i++ {
        m, err := s.Receive()
        require.NoError(t, err, "receive %d", i)
        require.Equal(t, i, m.Seq)
    }
    var ve *ValidationError
    _, err := s.Receive()
    require.ErrorAs(t, err, &ve)
    require.Equal(t, "report rejected", ve.Detail)
    _, again := s.Receive()
    require.Equal(t, err, again)
    require.ErrorIs(t, s.Send(&msg{}), io.EOF)
}

func TestSyncSendFaultIsReplayed(t *testing.T) {
    e := newEnv(t, codec.JSON())
    s, err := Open[unencodable, msg](context.Background(), e.sync, e.base+"/hold")
    require.NoError(t, err)
    defer s.Close()

    sent := e.tr.sent.Load()
    err = s.Send(&unencodable{})
    require.True(t, rpcerr.IsFatal(err), "got %v", err)
    require.Equal(t, err, s.Send(&unencodable{}))
    require.Equal(t, err, s.CloseSend())
    require.Equal(t, err, s.Cancel())
    require.Equal(t, sent, e.tr.sent.Load(), "nothing reaches the link after the fault")
}
