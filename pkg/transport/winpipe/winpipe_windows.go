//go:build windows

package winpipe

import (
    "context"
    "net"
    "sync"

    "github.com/Microsoft/go-winio"

    "ttstream/pkg/transport"
)

// Transport carries length-prefixed frames (u32 LE) over Windows named pipes.
type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindWinPipe }

func (t *Transport) Listen(ctx context.Context, pipeName string) (transport.Listener, error) {
    l, err := winio.ListenPipe(pipeName, nil)
    if err != nil { return nil, err }
    wl := &listener{l: l, newCh: make(chan *session, 8), closeCh: make(chan struct{})}
    go wl.acceptLoop()
    go func() {
        select {
        case <-ctx.Done():
        case <-wl.closeCh:
        }
        _ = wl.Close()
    }()
    return wl, nil
}

func (t *Transport) Dial(ctx context.Context, pipeName string) (transport.Session, error) {
    c, err := winio.DialPipeContext(ctx, pipeName)
    if err != nil { return nil, err }
    return newSession(c), nil
}

type listener struct {
    l         net.Listener
    newCh     chan *session
    closeCh   chan struct{}
    closeOnce sync.Once
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, transport.ErrClosed
    case s := <-l.newCh:
        return s, nil
    }
}

func (l *listener) Close() error {
    var err error
    l.closeOnce.Do(func() { close(l.closeCh); err = l.l.Close() })
    return err
}

func (l *listener) acceptLoop() {
    for {
        c, err := l.l.Accept()
        if err != nil { return }
        s := newSession(c)
        select {
        case l.newCh <- s:
        case <-l.closeCh:
            _ = s.Close()
            return
        }
    }
}

type session struct {
    c  net.Conn
    st *transport.Framer
}

func newSession(c net.Conn) *session { return &session{c: c, st: transport.NewFramer(c, c.Close)} }

func (s *session) TransportKind() transport.Kind { return transport.KindWinPipe }
func (s *session) LocalAddr() net.Addr { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr { return s.c.RemoteAddr() }

func (s *session) OpenStream(_ context.Context) (transport.Stream, error) { return s.st, nil }
func (s *session) AcceptStream(_ context.Context) (transport.Stream, error) { return s.st, nil }
func (s *session) Close() error { return s.st.Close() }
