package protocol

import (
    "fmt"

    "google.golang.org/protobuf/encoding/protowire"

    "ttstream/pkg/protocol/codec"
    "ttstream/pkg/rpcerr"
)

// plainEnvelope has Envelope's fields and tags but none of its methods, so
// codecs encode it field by field.
type plainEnvelope[T any] Envelope[T]

// Protobuf field numbers of an envelope. The payload is the nested message
// bytes; a missing error field means no error.
const (
    fieldType      protowire.Number = 1
    fieldPayload   protowire.Number = 2
    fieldErrorType protowire.Number = 3
    fieldErrorData protowire.Number = 4
)

// DumpWire implements codec.Dumper.
func (e *Envelope[T]) DumpWire(c codec.Codec) ([]byte, error) {
    if c.ContentType() != codec.ContentProto { return c.Marshal((*plainEnvelope[T])(e)) }
    var b []byte
    b = protowire.AppendTag(b, fieldType, protowire.BytesType)
    b = protowire.AppendString(b, string(e.Type))
    if e.Payload != nil {
        pb, err := c.Marshal(any(e.Payload))
        if err != nil { return nil, err }
        b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
        b = protowire.AppendBytes(b, pb)
    }
    if e.Error != nil {
        b = protowire.AppendTag(b, fieldErrorType, protowire.BytesType)
        b = protowire.AppendString(b, e.Error.Type)
        b = protowire.AppendTag(b, fieldErrorData, protowire.BytesType)
        b = protowire.AppendString(b, e.Error.Data)
    }
    return b, nil
}

// LoadWire implements codec.Loader.
func (e *Envelope[T]) LoadWire(c codec.Codec, data []byte) error {
    if c.ContentType() != codec.ContentProto { return c.Unmarshal(data, (*plainEnvelope[T])(e)) }
    for len(data) > 0 {
        num, typ, n := protowire.ConsumeTag(data)
        if n < 0 { return wireErr(n) }
        data = data[n:]
        if typ != protowire.BytesType || num > fieldErrorData {
            n = protowire.ConsumeFieldValue(num, typ, data)
            if n < 0 { return wireErr(n) }
            data = data[n:]
            continue
        }
        v, n := protowire.ConsumeBytes(data)
        if n < 0 { return wireErr(n) }
        data = data[n:]
        switch num {
        case fieldType:
            e.Type = Type(v)
        case fieldPayload:
            e.Payload = new(T)
            if err := c.Unmarshal(v, any(e.Payload)); err != nil { return err }
        case fieldErrorType:
            if e.Error == nil { e.Error = &rpcerr.Payload{} }
            e.Error.Type = string(v)
        case fieldErrorData:
            if e.Error == nil { e.Error = &rpcerr.Payload{} }
            e.Error.Data = string(v)
        }
    }
    return nil
}

func wireErr(n int) error {
    return fmt.Errorf("%w (%s): %w", codec.ErrDecode, codec.ContentProto, protowire.ParseError(n))
}
