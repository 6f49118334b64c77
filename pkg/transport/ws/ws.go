// Package ws carries frames as binary WebSocket messages.
package ws

import (
    "context"
    "errors"
    "io"
    "net"
    "net/http"
    "strings"
    "sync"
    "time"

    "github.com/coder/websocket"

    "ttstream/pkg/transport"
)

// Subprotocol is negotiated during the upgrade.
const Subprotocol = "ttstream"

// Transport dials ws:// and wss:// URLs and listens on plain host:port addresses.
type Transport struct {
    // HandshakeTimeout bounds the HTTP upgrade when the dial context has no deadline.
    HandshakeTimeout time.Duration
}

func New() *Transport { return &Transport{HandshakeTimeout: 10 * time.Second} }

func (t *Transport) Kind() transport.Kind { return transport.KindWebSocket }

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
    url := address
    if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") { url = "ws://" + url }
    if _, ok := ctx.Deadline(); !ok && t.HandshakeTimeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, t.HandshakeTimeout)
        defer cancel()
    }
    c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
    if resp != nil && resp.Body != nil { _ = resp.Body.Close() }
    if err != nil { return nil, err }
    return newSession(c, nil, nil), nil
}

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    nl, err := net.Listen("tcp", address)
    if err != nil { return nil, err }
    l := &listener{nl: nl, newCh: make(chan *session, 8), closeCh: make(chan struct{})}
    l.srv = &http.Server{Handler: http.HandlerFunc(l.upgrade), ReadHeaderTimeout: 10 * time.Second}
    go func() { _ = l.srv.Serve(nl) }()
    go func() {
        select {
        case <-ctx.Done():
        case <-l.closeCh:
        }
        _ = l.Close()
    }()
    return l, nil
}

type listener struct {
    nl        net.Listener
    srv       *http.Server
    newCh     chan *session
    closeCh   chan struct{}
    closeOnce sync.Once
}

func (l *listener) Addr() net.Addr { return l.nl.Addr() }

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
    l.closeOnce.Do(func() { close(l.closeCh); err = l.srv.Close() })
    return err
}

func (l *listener) upgrade(w http.ResponseWriter, r *http.Request) {
    c, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{Subprotocol}})
    if err != nil { return }
    s := newSession(c, l.nl.Addr(), remoteAddr(r.RemoteAddr))
    select {
    case l.newCh <- s:
    case <-l.closeCh:
        _ = s.Close()
        return
    }
    // keep the handler alive for the lifetime of the hijacked connection
    <-s.ctx.Done()
}

type session struct {
    c      *websocket.Conn
    ctx    context.Context
    cancel context.CancelFunc
    laddr  net.Addr
    raddr  net.Addr
    once   sync.Once
}

func newSession(c *websocket.Conn, laddr, raddr net.Addr) *session {
    c.SetReadLimit(transport.MaxFrameSize)
    ctx, cancel := context.WithCancel(context.Background())
    return &session{c: c, ctx: ctx, cancel: cancel, laddr: laddr, raddr: raddr}
}

func (s *session) TransportKind() transport.Kind { return transport.KindWebSocket }
func (s *session) LocalAddr() net.Addr { return s.laddr }
func (s *session) RemoteAddr() net.Addr { return s.raddr }

func (s *session) OpenStream(_ context.Context) (transport.Stream, error) { return s, nil }
func (s *session) AcceptStream(_ context.Context) (transport.Stream, error) { return s, nil }

func (s *session) SendBytes(b []byte) error {
    if len(b) > transport.MaxFrameSize { return transport.ErrFrameTooLarge }
    return s.c.Write(s.ctx, websocket.MessageBinary, b)
}

func (s *session) RecvBytes() ([]byte, error) {
    typ, b, err := s.c.Read(s.ctx)
    if err != nil {
        if websocket.CloseStatus(err) == websocket.StatusNormalClosure { return nil, io.EOF }
        if errors.Is(err, context.Canceled) { return nil, transport.ErrClosed }
        return nil, err
    }
    if typ != websocket.MessageBinary { return nil, errors.New("ws: unexpected text message") }
    return b, nil
}

func (s *session) Close() error {
    var err error
    s.once.Do(func() {
        err = s.c.CloseNow()
        s.cancel()
    })
    return err
}

type tcpAddr string
func (a tcpAddr) Network() string { return "tcp" }
func (a tcpAddr) String() string  { return string(a) }

func remoteAddr(s string) net.Addr {
    if s == "" { return nil }
    return tcpAddr(s)
}
