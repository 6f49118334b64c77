package protocol

import (
    "fmt"

    "ttstream/pkg/protocol/codec"
)

// CodecFor resolves the codec a preamble asks for.
func CodecFor(r *codec.Registry, p Preamble) (codec.Codec, error) {
    if err := p.Check(); err != nil { return nil, err }
    c := r.Get(p.ContentType)
    if c == nil { return nil, fmt.Errorf("%w: unsupported content type %q", ErrNegotiation, p.ContentType) }
    return c, nil
}

// NewPreamble builds the preamble a client sends for method over c.
func NewPreamble(method string, c codec.Codec) Preamble {
    return Preamble{Method: method, ContentType: c.ContentType(), ErrorEncoding: ErrorEncoding}
}
