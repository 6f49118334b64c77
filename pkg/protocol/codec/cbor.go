package codec

import (
    "reflect"

    cbor "github.com/fxamacker/cbor/v2"
)

type cborCodec struct{ enc cbor.EncMode; dec cbor.DecMode }

// CBOROptions tunes the compact-binary codec.
type CBOROptions struct {
    // Strict rejects map keys that do not match a field of the target struct.
    Strict bool
}

// CBOR returns a deterministic CBOR codec (RFC 8949 core deterministic encoding).
func CBOR() (Codec, error) { return NewCBOR(CBOROptions{}) }

// NewCBOR builds a CBOR codec with the given options.
func NewCBOR(o CBOROptions) (Codec, error) {
    em, err := cbor.CanonicalEncOptions().EncMode()
    if err != nil { return nil, err }
    do := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}
    if o.Strict { do.ExtraReturnErrors = cbor.ExtraDecErrorUnknownField }
    dm, err := do.DecMode()
    if err != nil { return nil, err }
    return cborCodec{enc: em, dec: dm}, nil
}

// MustCBOR is CBOR for package-level wiring; the default options never fail.
func MustCBOR() Codec {
    c, err := CBOR()
    if err != nil { panic(err) }
    return c
}

func (c cborCodec) ContentType() string { return ContentCBOR }

func (c cborCodec) Marshal(v any) ([]byte, error) {
    if d, ok := v.(Dumper); ok { return d.DumpWire(c) }
    return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
    if l, ok := v.(Loader); ok { return l.LoadWire(c, data) }
    return decodeErr(ContentCBOR, c.dec.Unmarshal(data, v))
}
