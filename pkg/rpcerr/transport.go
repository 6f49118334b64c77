package rpcerr

import (
    "errors"
    "io"
)

// Transport family types.
const (
    TypeUnreachable  = "transport.unreachable"
    TypeStreamClosed = "transport.stream_closed"
    TypeEOF          = "transport.eof"
)

var (
    // ErrUnreachable matches any *Unreachable via errors.Is.
    ErrUnreachable = errors.New("transport: target unreachable")
    // ErrStreamClosed is returned when sending on a stream whose send side
    // was already closed. It is a usage error, not a network condition.
    ErrStreamClosed = errors.New("transport: stream closed")
)

// Unreachable reports that a stream could not be opened against Target.
type Unreachable struct {
    Target string
    Cause  error
}

func (e *Unreachable) Error() string {
    if e.Cause == nil { return "transport: target unreachable: " + e.Target }
    return "transport: target unreachable: " + e.Target + ": " + e.Cause.Error()
}

func (e *Unreachable) Unwrap() error { return e.Cause }
func (e *Unreachable) Is(target error) bool { return target == ErrUnreachable }

// IsEOF reports whether err is the graceful end-of-stream marker.
func IsEOF(err error) bool { return errors.Is(err, io.EOF) }

type transportProvider struct{}

// Transport returns the provider for the transport.* family: unreachable
// target, send after close, and end of stream.
func Transport() Provider { return transportProvider{} }

func (transportProvider) Encode(err error) *Payload {
    var u *Unreachable
    switch {
    case errors.Is(err, io.EOF):
        return &Payload{Type: TypeEOF}
    case errors.Is(err, ErrStreamClosed):
        return &Payload{Type: TypeStreamClosed}
    case errors.As(err, &u):
        return &Payload{Type: TypeUnreachable, Data: u.Target}
    }
    return nil
}

func (transportProvider) Decode(p Payload) error {
    switch p.Type {
    case TypeEOF:
        return io.EOF
    case TypeStreamClosed:
        return ErrStreamClosed
    case TypeUnreachable:
        return &Unreachable{Target: p.Data}
    }
    return nil
}
