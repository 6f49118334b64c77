package server

import (
    "io"
    "sync"
    "time"

    "ttstream/pkg/protocol"
    "ttstream/pkg/protocol/stream"
)

// Stream is the server side of one client stream.
type Stream struct {
    conn   *stream.Conn
    method string

    mu         sync.Mutex
    recvClosed bool
}

func (s *Stream) Method() string { return s.method }

// ContentType is the encoding the client negotiated.
func (s *Stream) ContentType() string { return s.conn.Codec().ContentType() }

// Recv reads the next payload. It returns io.EOF once the client half-closed
// or went away.
func Recv[T any](s *Stream) (*T, error) {
    s.mu.Lock()
    closed := s.recvClosed
    s.mu.Unlock()
    if closed { return nil, io.EOF }
    e, err := stream.Read[T](s.conn)
    if err == nil && !e.Closing() { return e.Payload, nil }
    s.mu.Lock(); s.recvClosed = true; s.mu.Unlock()
    if err != nil { return nil, err }
    return nil, io.EOF
}

// Send writes v as a data envelope.
func Send[T any](s *Stream, v *T) error { return stream.Write(s.conn, protocol.Data(v)) }

// drain discards client frames until the client closes the link or d elapses.
func (s *Stream) drain(d time.Duration) {
    done := make(chan struct{})
    go func() {
        defer close(done)
        for {
            if err := s.conn.Skip(); err != nil { return }
        }
    }()
    select {
    case <-done:
    case <-time.After(d):
    }
}
