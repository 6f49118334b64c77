package protocol

import "ttstream/pkg/protocol/codec"

// Type tells a data envelope apart from a terminal close envelope.
type Type string

const (
    TypeData  Type = "data"
    TypeClose Type = "close"
)

// ErrorEncoding is the only error-encoding scheme spoken on the wire:
// error payloads are {type, data} with namespaced types.
const ErrorEncoding = "freight-v1"

// Version of the stream preamble.
const Version uint8 = 1

// Content types accepted in the preamble.
const (
    ContentJSON  = codec.ContentJSON
    ContentCBOR  = codec.ContentCBOR
    ContentProto = codec.ContentProto
)
