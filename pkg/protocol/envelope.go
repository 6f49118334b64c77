package protocol

import (
    "errors"
    "fmt"

    "ttstream/pkg/protocol/codec"
    "ttstream/pkg/rpcerr"
)

// ErrInvalidEnvelope is returned for envelopes that break the data/close shape.
var ErrInvalidEnvelope = errors.New("protocol: invalid envelope")

// Envelope is the unit exchanged on a stream: either one payload of T or a
// close marker optionally carrying the error that ended the stream.
type Envelope[T any] struct {
    Type    Type            `json:"type"`
    Payload *T              `json:"payload"`
    Error   *rpcerr.Payload `json:"error"`
}

// Validate checks that data envelopes carry no error and close envelopes no payload.
func (e *Envelope[T]) Validate() error {
    switch e.Type {
    case TypeData:
        if e.Error != nil && !e.Error.IsNil() { return fmt.Errorf("%w: data envelope with error", ErrInvalidEnvelope) }
    case TypeClose:
        if e.Payload != nil { return fmt.Errorf("%w: close envelope with payload", ErrInvalidEnvelope) }
    default:
        return fmt.Errorf("%w: unknown type %q", ErrInvalidEnvelope, e.Type)
    }
    return nil
}

// Closing reports whether e ends the sender's half of the stream.
func (e *Envelope[T]) Closing() bool { return e.Type == TypeClose }

// EncodeEnvelope serializes e with c.
func EncodeEnvelope[T any](c codec.Codec, e *Envelope[T]) ([]byte, error) {
    if err := e.Validate(); err != nil { return nil, err }
    return c.Marshal(e)
}

// DecodeEnvelope parses b with c and validates the result.
func DecodeEnvelope[T any](c codec.Codec, b []byte) (*Envelope[T], error) {
    var e Envelope[T]
    if err := c.Unmarshal(b, &e); err != nil { return nil, err }
    if err := e.Validate(); err != nil { return nil, err }
    return &e, nil
}
