package client

import (
    "context"
    "io"
    "strings"
    "testing"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/testutil"
    "github.com/stretchr/testify/require"
    "pgregory.net/rapid"

    "ttstream/pkg/core/netstack"
    "ttstream/pkg/observability"
    "ttstream/pkg/protocol/codec"
    "ttstream/pkg/rpcerr"
)

func TestAsyncLatchedRemoteClose(t *testing.T) {
    e := newEnv(t, codec.JSON())
    ctx := context.Background()
    as, err := OpenAsync[msg, msg](ctx, e.async, e.base+"/fail")
    require.NoError(t, err)
    defer as.Close()

    require.NoError(t, as.Send(ctx, &msg{Seq: 1}))
    _, err = as.Receive(ctx)
    var ve *ValidationError
    require.ErrorAs(t, err, &ve)

    recv := e.tr.recv.Load()
    _, again := as.Receive(ctx)
    require.Equal(t, err, again)
    require.Equal(t, recv, e.tr.recv.Load(), "latched result must not read the network")

    sent := e.tr.sent.Load()
    require.ErrorIs(t, as.Send(ctx, &msg{Seq: 2}), io.EOF)
    require.NoError(t, as.CloseSend(ctx))
    require.Equal(t, sent, e.tr.sent.Load())
}

func TestAsyncHalfClose(t *testing.T) {
    e := newEnv(t, codec.MustCBOR())
    ctx := context.Background()
    as, err := OpenAsync[msg, msg](ctx, e.async, e.base+"/echo")
    require.NoError(t, err)
    defer as.Close()

    require.NoError(t, as.Send(ctx, &msg{Seq: 1, Text: "a"}))
    require.NoError(t, as.CloseSend(ctx))
    require.NoError(t, as.CloseSend(ctx))
    require.ErrorIs(t, as.Send(ctx, &msg{}), rpcerr.ErrStreamClosed)

    // the remote keeps sending after our half-close
    m, err := as.Receive(ctx)
    require.NoError(t, err)
    require.Equal(t, "a", m.Text)
    _, err = as.Receive(ctx)
    require.ErrorIs(t, err, io.EOF)
}

func TestAsyncReceiveHonoursContext(t *testing.T) {
    e := newEnv(t, codec.JSON())
    as, err := OpenAsync[msg, msg](context.Background(), e.async, e.base+"/hold")
    require.NoError(t, err)
    defer as.Close()

    ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
    defer cancel()
    _, err = as.Receive(ctx)
    require.ErrorIs(t, err, context.DeadlineExceeded)
    require.NoError(t, as.Close())
    require.NoError(t, as.Close())
}

func TestAsyncSendPacing(t *testing.T) {
    e := newEnv(t, codec.JSON())
    paced := NewAsyncClient(Options{
        Dialer:    &netstack.Dialer{Stack: e.stack},
        SendRate:  50,
        SendBurst: 1,
    })
    ctx := context.Background()
    as, err := OpenAsync[msg, msg](ctx, paced, e.base+"/echo")
    require.NoError(t, err)
    defer as.Close()

    start := time.Now()
    for i := 0; i < 4; i++ {
        require.NoError(t, as.Send(ctx, &msg{Seq: i}))
    }
    require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "three paced sends at 50/s")

    short, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
    defer cancel()
    require.ErrorIs(t, as.Send(short, &msg{Seq: 9}), context.DeadlineExceeded)
}

func TestAsyncDropLatchesEOF(t *testing.T) {
    e := newEnv(t, codec.JSON())
    ctx := context.Background()
    as, err := OpenAsync[msg, msg](ctx, e.async, e.base+"/hold")
    require.NoError(t, err)
    defer as.Close()

    require.Eventually(t, func() bool { return len(e.srv.Sessions()) == 1 }, time.Second, 5*time.Millisecond)
    e.srv.Close()
    _, err = as.Receive(ctx)
    require.ErrorIs(t, err, io.EOF)
    _, err = as.Receive(ctx)
    require.ErrorIs(t, err, io.EOF)
    require.ErrorIs(t, as.Send(ctx, &msg{}), io.EOF)
}

func TestAsyncSendAfterDropKeepsBufferedFrames(t *testing.T) {
    e := newEnv(t, codec.JSON())
    ctx := context.Background()
    as, err := OpenAsync[msg, msg](ctx, e.async, e.base+"/report")
    require.NoError(t, err)
    defer as.Close()

    // the server finishes, lingers and drops the link before anything is read
    require.Eventually(t, func() bool { return len(e.srv.Sessions()) == 1 }, time.Second, 2*time.Millisecond)
    require.Eventually(t, func() bool { return len(e.srv.Sessions()) == 0 }, 2*time.Second, 5*time.Millisecond)
    require.ErrorIs(t, as.Send(ctx, &msg{Seq: 99}), io.EOF)
    require.ErrorIs(t, as.Send(ctx, &msg{Seq: 100}), io.EOF)
    require.NoError(t, as.CloseSend(ctx))

    for i := 0; i < 4; i++ {
        m, err := as.Receive(ctx)
        require.NoError(t, err, "receive %d", i)
        require.Equal(t, i, m.Seq)
    }
    var ve *ValidationError
    _, err = as.Receive(ctx)
    require.ErrorAs(t, err, &ve)
    _, again := as.Receive(ctx)
    require.Equal(t, err, again)
}

func TestSendOrderingProperty(t *testing.T) {
    e := newEnv(t, codec.MustCBOR())
    rapid.Check(t, func(rt *rapid.T) {
        texts := rapid.SliceOfN(rapid.StringMatching(`[a-z]{0,8}`), 0, 40).Draw(rt, "texts")
        s, err := Open[msg, msg](context.Background(), e.sync, e.base+"/echo")
        if err != nil { rt.Fatalf("open: %v", err) }
        defer s.Close()
        for i, txt := range texts {
            if err := s.Send(&msg{Seq: i, Text: txt}); err != nil { rt.Fatalf("send %d: %v", i, err) }
        }
        if err := s.CloseSend(); err != nil { rt.Fatalf("close send: %v", err) }
        for i, txt := range texts {
            m, err := s.Receive()
            if err != nil { rt.Fatalf("receive %d: %v", i, err) }
            if m.Seq != i || m.Text != txt { rt.Fatalf("item %d out of order: %+v", i, m) }
        }
        if _, err := s.Receive(); !rpcerr.IsEOF(err) { rt.Fatalf("expected EOF, got %v", err) }
    })
}

// unencodable has a field no codec can write.
type unencodable struct {
    Ch chan int `json:"ch"`
}

func TestAsyncMetrics(t *testing.T) {
    e := newEnv(t, codec.JSON())
    reg := prometheus.NewRegistry()
    c := NewAsyncClient(Options{
        Dialer:  &netstack.Dialer{Stack: e.stack},
        Errors:  e.async.Errors(),
        Metrics: observability.NewMetrics(reg),
    })
    ctx := context.Background()

    _, err := OpenAsync[msg, msg](ctx, c, "mem://nowhere/x")
    require.Error(t, err)

    echo, err := OpenAsync[msg, msg](ctx, c, e.base+"/echo")
    require.NoError(t, err)
    defer echo.Close()
    require.NoError(t, echo.Send(ctx, &msg{Seq: 1}))
    require.NoError(t, echo.CloseSend(ctx))
    _, err = echo.Receive(ctx)
    require.NoError(t, err)
    _, err = echo.Receive(ctx)
    require.ErrorIs(t, err, io.EOF)

    fail, err := OpenAsync[msg, msg](ctx, c, e.base+"/fail")
    require.NoError(t, err)
    defer fail.Close()
    require.NoError(t, fail.Send(ctx, &msg{Seq: 2}))
    _, err = fail.Receive(ctx)
    var ve *ValidationError
    require.ErrorAs(t, err, &ve)

    bad, err := OpenAsync[unencodable, msg](ctx, c, e.base+"/hold")
    require.NoError(t, err)
    defer bad.Close()
    require.True(t, rpcerr.IsFatal(bad.Send(ctx, &unencodable{})))

    const want = `
# HELP ttstream_streams_opened_total Stream open attempts by result.
# TYPE ttstream_streams_opened_total counter
ttstream_streams_opened_total{result="ok"} 3
ttstream_streams_opened_total{result="unreachable"} 1
# HELP ttstream_frames_sent_total Envelopes written, by envelope type.
# TYPE ttstream_frames_sent_total counter
ttstream_frames_sent_total{type="close"} 1
ttstream_frames_sent_total{type="data"} 2
# HELP ttstream_frames_received_total Envelopes read, by envelope type.
# TYPE ttstream_frames_received_total counter
ttstream_frames_received_total{type="close"} 2
ttstream_frames_received_total{type="data"} 1
# HELP ttstream_stream_errors_total Terminal stream errors by kind.
# TYPE ttstream_stream_errors_total counter
ttstream_stream_errors_total{kind="eof"} 1
ttstream_stream_errors_total{kind="fault"} 1
ttstream_stream_errors_total{kind="remote"} 1
ttstream_stream_errors_total{kind="unreachable"} 1
`
    require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want),
        "ttstream_streams_opened_total", "ttstream_frames_sent_total",
        "ttstream_frames_received_total", "ttstream_stream_errors_total"))
}
