package mem

import (
    "context"
    "errors"
    "io"
    "net"
    "sync"

    "ttstream/pkg/transport"
)

// FrameBuffer is the number of frames each direction holds before SendBytes blocks.
const FrameBuffer = 128

// Transport is an in-process transport. Listeners live in the Transport
// value, so dialer and listener must share it.
type Transport struct {
    mu        sync.Mutex
    listeners map[string]*listener
}

func New() *Transport { return &Transport{listeners: make(map[string]*listener)} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (transport.Listener, error) {
    t.mu.Lock(); defer t.mu.Unlock()
    if _, ok := t.listeners[name]; ok {
        return nil, errors.New("mem: listener already exists")
    }
    l := &listener{name: name, newCh: make(chan *session, 8), closeCh: make(chan struct{})}
    t.listeners[name] = l
    go func() {
        select {
        case <-ctx.Done():
        case <-l.closeCh:
        }
        _ = l.Close()
        t.mu.Lock(); delete(t.listeners, name); t.mu.Unlock()
    }()
    return l, nil
}

func (t *Transport) Dial(ctx context.Context, name string) (transport.Session, error) {
    t.mu.Lock(); l := t.listeners[name]; t.mu.Unlock()
    if l == nil { return nil, errors.New("mem: no such listener: " + name) }
    cli, srv := pipe(name)
    select {
    case l.newCh <- srv:
    case <-l.closeCh:
        return nil, transport.ErrClosed
    case <-ctx.Done():
        return nil, ctx.Err()
    }
    return cli, nil
}

type listener struct {
    name      string
    newCh     chan *session
    closeCh   chan struct{}
    closeOnce sync.Once
}

func (l *listener) Addr() net.Addr { return memAddr(l.name) }

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
    l.closeOnce.Do(func() { close(l.closeCh) })
    return nil
}

type memAddr string
func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

// half is one direction of a pipe. closed is shared by both ends.
type half struct {
    frames chan []byte
}

type link struct {
    closed chan struct{}
    once   sync.Once
}

func (k *link) close() { k.once.Do(func() { close(k.closed) }) }

type session struct {
    name   string
    local  bool
    in     half
    out    half
    link   *link
}

func pipe(name string) (cli, srv *session) {
    a := half{frames: make(chan []byte, FrameBuffer)}
    b := half{frames: make(chan []byte, FrameBuffer)}
    k := &link{closed: make(chan struct{})}
    cli = &session{name: name, local: true, in: a, out: b, link: k}
    srv = &session{name: name, in: b, out: a, link: k}
    return cli, srv
}

func (s *session) TransportKind() transport.Kind { return transport.KindMem }

func (s *session) LocalAddr() net.Addr {
    if s.local { return memAddr("dialer") }
    return memAddr(s.name)
}

func (s *session) RemoteAddr() net.Addr {
    if s.local { return memAddr(s.name) }
    return memAddr("dialer")
}

func (s *session) OpenStream(_ context.Context) (transport.Stream, error) { return s, nil }
func (s *session) AcceptStream(_ context.Context) (transport.Stream, error) { return s, nil }

func (s *session) SendBytes(b []byte) error {
    if len(b) > transport.MaxFrameSize { return transport.ErrFrameTooLarge }
    select {
    case <-s.link.closed:
        return io.ErrClosedPipe
    default:
    }
    cp := append([]byte(nil), b...)
    select {
    case s.out.frames <- cp:
        return nil
    case <-s.link.closed:
        return io.ErrClosedPipe
    }
}

// RecvBytes drains frames already queued before reporting io.EOF for a closed link.
func (s *session) RecvBytes() ([]byte, error) {
    select {
    case b := <-s.in.frames:
        return b, nil
    default:
    }
    select {
    case b := <-s.in.frames:
        return b, nil
    case <-s.link.closed:
        select {
        case b := <-s.in.frames:
            return b, nil
        default:
            return nil, io.EOF
        }
    }
}

func (s *session) Close() error { s.link.close(); return nil }
