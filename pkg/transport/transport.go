package transport

import (
    "context"
    "errors"
    "net"
)

// Kind identifies the physical link type.
type Kind int

const (
    KindUnknown Kind = iota
    KindTCP
    KindQUIC
    KindWebSocket
    KindWinPipe
    KindMem
)

func (k Kind) String() string {
    switch k {
    case KindTCP:
        return "tcp"
    case KindQUIC:
        return "quic"
    case KindWebSocket:
        return "ws"
    case KindWinPipe:
        return "winpipe"
    case KindMem:
        return "mem"
    default:
        return "unknown"
    }
}

// MaxFrameSize bounds a single frame on every transport.
const MaxFrameSize = 1 << 24

var (
    // ErrClosed is returned by streams, sessions and listeners after Close.
    ErrClosed = errors.New("transport: closed")
    // ErrFrameTooLarge is returned when a peer announces an oversized frame.
    ErrFrameTooLarge = errors.New("transport: invalid frame size")
)

// Stream is a bidirectional, ordered, reliable frame stream.
// Exactly one reader and one writer goroutine are expected.
type Stream interface {
    // SendBytes sends one frame.
    SendBytes([]byte) error
    // RecvBytes receives the next frame.
    RecvBytes() ([]byte, error)
    Close() error
}

// Session is one physical connection to a peer.
type Session interface {
    TransportKind() Kind
    LocalAddr() net.Addr
    RemoteAddr() net.Addr

    // OpenStream opens the session's stream from the dialing side.
    OpenStream(ctx context.Context) (Stream, error)
    // AcceptStream waits for the stream opened by the dialing side.
    AcceptStream(ctx context.Context) (Stream, error)

    // Close closes the entire session.
    Close() error
}

// Listener accepts inbound sessions.
type Listener interface {
    // Accept blocks until an inbound session is available or ctx is done.
    Accept(ctx context.Context) (Session, error)
    // Addr returns the local listening address.
    Addr() net.Addr
    // Close stops the listener and unblocks Accept.
    Close() error
}

// Transport provides dialing/listening for a specific link kind.
type Transport interface {
    Kind() Kind
    // Listen starts accepting inbound sessions on address (transport-specific format).
    Listen(ctx context.Context, address string) (Listener, error)
    // Dial creates an outbound session to address.
    Dial(ctx context.Context, address string) (Session, error)
}

// IsDrop reports whether err means the peer went away rather than that the
// frame stream is corrupt.
func IsDrop(err error) bool {
    if err == nil || errors.Is(err, ErrFrameTooLarge) { return false }
    return true
}
