package netstack

import (
    "context"
    "fmt"
    "sync"

    "go.uber.org/zap"

    "ttstream/pkg/transport"
    "ttstream/pkg/transport/mem"
    tquic "ttstream/pkg/transport/quic"
    ttcp "ttstream/pkg/transport/tcp"
    "ttstream/pkg/transport/ws"
)

// Stack hands out one Transport per kind. Transports are built lazily and
// reused, so dialers and listeners of the in-process mem kind meet.
type Stack struct {
    mu     sync.Mutex
    byKind map[transport.Kind]transport.Transport
}

func NewStack() *Stack { return &Stack{byKind: make(map[transport.Kind]transport.Transport)} }

// Register installs tr for its kind, replacing any previous transport.
func (s *Stack) Register(tr transport.Transport) {
    s.mu.Lock(); defer s.mu.Unlock()
    s.byKind[tr.Kind()] = tr
}

// Transport returns the transport for kind, constructing it on first use.
func (s *Stack) Transport(kind transport.Kind) (transport.Transport, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    if tr := s.byKind[kind]; tr != nil { return tr, nil }
    tr, err := NewByKind(kind.String())
    if err != nil { return nil, err }
    s.byKind[kind] = tr
    return tr, nil
}

// Listen opens a listener for target.
func (s *Stack) Listen(ctx context.Context, target Target) (transport.Listener, error) {
    tr, err := s.Transport(target.Kind)
    if err != nil { return nil, err }
    return tr.Listen(ctx, target.ListenAddress())
}

// ListenAll parses and listens on every target URL. Targets that fail are
// logged and skipped; the returned closer stops the listeners that started.
func (s *Stack) ListenAll(ctx context.Context, targets []string, logger *zap.Logger) ([]transport.Listener, func(), error) {
    if logger == nil { logger = zap.NewNop() }
    var ls []transport.Listener
    for _, raw := range targets {
        t, err := ParseTarget(raw)
        if err != nil {
            logger.Warn("bad listen target", zap.String("target", raw), zap.Error(err))
            continue
        }
        l, err := s.Listen(ctx, t)
        if err != nil {
            logger.Error("listen failed", zap.String("kind", t.Kind.String()), zap.String("addr", t.ListenAddress()), zap.Error(err))
            continue
        }
        logger.Info("listening", zap.String("kind", t.Kind.String()), zap.String("addr", l.Addr().String()))
        ls = append(ls, l)
    }
    closer := func() { for i := len(ls) - 1; i >= 0; i-- { _ = ls[i].Close() } }
    if len(ls) == 0 && len(targets) > 0 { return nil, closer, fmt.Errorf("netstack: no listener started for %v", targets) }
    return ls, closer, nil
}

// NewByKind constructs a Transport by string kind.
func NewByKind(kind string) (transport.Transport, error) {
    switch kind {
    case "tcp":
        return ttcp.New(), nil
    case "quic":
        return tquic.New(), nil
    case "ws", "wss", "websocket":
        return ws.New(), nil
    case "mem", "inproc":
        return mem.New(), nil
    case "winpipe", "pipe":
        return newWinPipeTransport()
    default:
        return nil, ErrUnknownKind(kind)
    }
}

// Basic typed error for unknown kinds
type ErrUnknownKind string
func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }
