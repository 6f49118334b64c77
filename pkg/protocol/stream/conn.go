package stream

import (
    "errors"
    "fmt"
    "io"

    "ttstream/pkg/protocol"
    "ttstream/pkg/protocol/codec"
    "ttstream/pkg/transport"
)

// ErrEncode is returned by Write when the envelope could not be serialized.
// Nothing was sent.
var ErrEncode = errors.New("stream: encode failed")

// ErrMalformed is returned by Read when a frame arrived but could not be
// turned into an envelope. The stream is unusable afterwards.
var ErrMalformed = errors.New("stream: malformed frame")

// Conn sends and receives envelopes over one transport.Stream using a
// negotiated codec.
type Conn struct {
    st    transport.Stream
    codec codec.Codec
}

func New(st transport.Stream, c codec.Codec) *Conn { return &Conn{st: st, codec: c} }

func (c *Conn) Codec() codec.Codec { return c.codec }

// Dial writes the preamble for method and returns the conn the client uses afterwards.
func Dial(st transport.Stream, method string, c codec.Codec) (*Conn, error) {
    p := protocol.NewPreamble(method, c)
    b, err := p.MarshalBinary()
    if err != nil { return nil, err }
    if err := st.SendBytes(b); err != nil { return nil, err }
    return New(st, c), nil
}

// Accept reads the preamble from st and resolves its codec from reg.
func Accept(st transport.Stream, reg *codec.Registry) (*Conn, protocol.Preamble, error) {
    var p protocol.Preamble
    b, err := st.RecvBytes()
    if err != nil { return nil, p, err }
    if err := p.UnmarshalBinary(b); err != nil { return nil, p, err }
    c, err := protocol.CodecFor(reg, p)
    if err != nil { return nil, p, err }
    return New(st, c), p, nil
}

// Write encodes and sends e. Serialization failures and oversized frames
// wrap ErrEncode; any other error means the link went away.
func Write[T any](c *Conn, e *protocol.Envelope[T]) error {
    b, err := protocol.EncodeEnvelope(c.codec, e)
    if err != nil { return fmt.Errorf("%w: %w", ErrEncode, err) }
    if err := c.st.SendBytes(b); err != nil {
        if !transport.IsDrop(err) { return fmt.Errorf("%w: %w", ErrEncode, err) }
        return err
    }
    return nil
}

// Read receives the next envelope. A dropped link reads as io.EOF; a frame
// that cannot be decoded yields an error wrapping ErrMalformed.
func Read[T any](c *Conn) (*protocol.Envelope[T], error) {
    b, err := c.st.RecvBytes()
    if err != nil {
        if !transport.IsDrop(err) { return nil, fmt.Errorf("%w: %w", ErrMalformed, err) }
        return nil, io.EOF
    }
    e, err := protocol.DecodeEnvelope[T](c.codec, b)
    if err != nil { return nil, fmt.Errorf("%w: %w", ErrMalformed, err) }
    return e, nil
}

// Skip receives and discards one frame.
func (c *Conn) Skip() error {
    _, err := c.st.RecvBytes()
    return err
}

func (c *Conn) Close() error { return c.st.Close() }
