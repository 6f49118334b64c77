// Package server is a minimal ttstream peer: it accepts streams on any
// transport, negotiates the codec from the preamble and dispatches each
// stream to the handler registered for its method.
package server

import (
    "context"
    "errors"
    "sync"
    "time"

    "go.uber.org/zap"

    "ttstream/pkg/core/netstack"
    "ttstream/pkg/observability"
    "ttstream/pkg/protocol"
    "ttstream/pkg/protocol/codec"
    "ttstream/pkg/protocol/stream"
    "ttstream/pkg/rpcerr"
    "ttstream/pkg/transport"
)

// Handler serves one stream. Its return value is sent to the client in the
// final close envelope; nil or io.EOF close the stream cleanly.
type Handler func(ctx context.Context, s *Stream) error

// Options configure a Server. Zero fields take defaults.
type Options struct {
    Stack  *netstack.Stack
    Codecs *codec.Registry
    Errors *rpcerr.Registry
    Logger *zap.Logger
    // Metrics counts negotiated streams and handler failures; nil records nothing.
    Metrics *observability.Metrics
    // Linger bounds how long a finished stream waits for the client to
    // close its side before the connection is dropped.
    Linger time.Duration
}

type Server struct {
    stack  *netstack.Stack
    codecs *codec.Registry
    errs   *rpcerr.Registry
    log    *zap.Logger
    m      *observability.Metrics
    linger time.Duration
    mgr    *transport.Manager

    mu       sync.RWMutex
    handlers map[string]Handler
}

func New(o Options) *Server {
    s := &Server{
        stack:    o.Stack,
        codecs:   o.Codecs,
        errs:     o.Errors,
        log:      observability.Component(o.Logger, "server"),
        m:        o.Metrics,
        linger:   o.Linger,
        mgr:      transport.NewManager(),
        handlers: make(map[string]Handler),
    }
    if s.stack == nil { s.stack = netstack.Default() }
    if s.codecs == nil { s.codecs = codec.NewRegistry() }
    if s.errs == nil { s.errs = rpcerr.Bootstrap(Errors()) }
    if s.linger <= 0 { s.linger = 2 * time.Second }
    return s
}

// Handle registers h for method, replacing any previous handler.
func (s *Server) Handle(method string, h Handler) {
    s.mu.Lock(); defer s.mu.Unlock()
    s.handlers[method] = h
}

func (s *Server) handler(method string) Handler {
    s.mu.RLock(); defer s.mu.RUnlock()
    return s.handlers[method]
}

// Serve accepts sessions from l until ctx is done or l is closed.
func (s *Server) Serve(ctx context.Context, l transport.Listener) {
    netstack.AcceptLoop(ctx, l, s.mgr, s.log, s.serveSession)
}

// ListenAndServe listens on every target URL and serves until ctx is done.
// Open sessions are closed before it returns.
func (s *Server) ListenAndServe(ctx context.Context, targets []string) error {
    ls, closeAll, err := s.stack.ListenAll(ctx, targets, s.log)
    if err != nil { return err }
    var wg sync.WaitGroup
    for _, l := range ls {
        wg.Add(1)
        go func(l transport.Listener) { defer wg.Done(); s.Serve(ctx, l) }(l)
    }
    <-ctx.Done()
    closeAll()
    s.Close()
    wg.Wait()
    return nil
}

// Sessions lists the connections currently being served.
func (s *Server) Sessions() []transport.Tracked { return s.mgr.List() }

// Close drops every open session.
func (s *Server) Close() { s.mgr.CloseAll() }

func (s *Server) serveSession(ctx context.Context, sess transport.Session) {
    log := s.log
    if ra := sess.RemoteAddr(); ra != nil { log = log.With(zap.String("raddr", ra.String())) }
    st, err := sess.AcceptStream(ctx)
    if err != nil {
        log.Debug("accept stream failed", zap.Error(err))
        return
    }
    conn, p, err := stream.Accept(st, s.codecs)
    if err != nil {
        log.Warn("negotiation failed", zap.Error(err))
        s.m.StreamError("negotiation")
        return
    }
    log = log.With(zap.String("method", p.Method), zap.String("content_type", p.ContentType))
    s.m.StreamOpened(true)
    ss := &Stream{conn: conn, method: p.Method}

    var herr error
    if h := s.handler(p.Method); h != nil {
        herr = h(ctx, ss)
    } else {
        herr = &NotFound{Method: p.Method}
    }
    if herr != nil && !rpcerr.IsEOF(herr) {
        log.Debug("handler returned error", zap.Error(herr))
        s.m.StreamError("handler")
    }

    if err := stream.Write(conn, protocol.CloseWith[struct{}](s.errs, herr)); err != nil {
        log.Debug("close envelope not delivered", zap.Error(err))
        return
    }
    ss.drain(s.linger)
}

// Errors is the provider for the server.* error family.
func Errors() rpcerr.Provider {
    return rpcerr.Family{
        Namespace: "server",
        Kinds: map[string]func(string) error{
            "not_found": func(data string) error { return &NotFound{Method: data} },
        },
    }
}

// TypeNotFound is the error type sent for methods without a handler.
const TypeNotFound = "server.not_found"

// ErrNotFound matches any *NotFound.
var ErrNotFound = errors.New("server: method not found")

// NotFound reports a stream opened for a method with no handler.
type NotFound struct{ Method string }

func (e *NotFound) Error() string { return "server: method not found: " + e.Method }
func (e *NotFound) Is(target error) bool { return target == ErrNotFound }
func (e *NotFound) ErrorType() string { return TypeNotFound }
func (e *NotFound) ErrorData() string { return e.Method }
