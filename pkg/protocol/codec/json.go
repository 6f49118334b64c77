package codec

import (
    "bytes"
    "encoding/json"
)

type jsonCodec struct{ strict bool }

// JSON returns the text codec (RFC 8259). Content-Type: application/json.
// Unknown fields are skipped and absent fields leave the target untouched.
func JSON() Codec { return jsonCodec{} }

// StrictJSON is JSON that rejects wire fields the target does not declare.
func StrictJSON() Codec { return jsonCodec{strict: true} }

func (jsonCodec) ContentType() string { return ContentJSON }

func (c jsonCodec) Marshal(v any) ([]byte, error) {
    if d, ok := v.(Dumper); ok { return d.DumpWire(c) }
    return json.Marshal(v)
}

func (c jsonCodec) Unmarshal(data []byte, v any) error {
    if l, ok := v.(Loader); ok { return l.LoadWire(c, data) }
    dec := json.NewDecoder(bytes.NewReader(data))
    if c.strict { dec.DisallowUnknownFields() }
    return decodeErr(ContentJSON, dec.Decode(v))
}
