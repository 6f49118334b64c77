package codec

import (
    "errors"
    "fmt"
    "strings"
)

// Content types understood by the built-in codecs.
const (
    ContentJSON  = "application/json"
    ContentCBOR  = "application/cbor"
    ContentProto = "application/x-protobuf"
)

// ErrDecode wraps any failure to turn wire bytes back into a value.
var ErrDecode = errors.New("codec: decode failed")

// Codec defines a simple interface for marshaling typed messages.
// Implementations must be deterministic so that equal values produce equal bytes.
type Codec interface {
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

// Loader is implemented by targets that decode themselves. A codec hands the
// raw bytes over untouched instead of walking the target's fields.
type Loader interface {
    LoadWire(c Codec, data []byte) error
}

// Dumper is the encoding counterpart of Loader: a value that serializes
// itself for codec c.
type Dumper interface {
    DumpWire(c Codec) ([]byte, error)
}

// Registry maps content types and short names to codecs.
type Registry struct { byType map[string]Codec }

// NewRegistry constructs a registry preloaded with JSON, CBOR and Protobuf.
func NewRegistry() *Registry {
    r := &Registry{byType: make(map[string]Codec)}
    r.Register(JSON())
    r.Register(MustCBOR())
    r.Register(Proto())
    return r
}

// Register adds a codec, replacing any codec with the same content type.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// ByName resolves a configuration value ("json", "cbor", "proto" or a full
// content type) to a registered codec.
func (r *Registry) ByName(name string) (Codec, error) {
    ct := strings.ToLower(strings.TrimSpace(name))
    switch ct {
    case "", "json", "text":
        ct = ContentJSON
    case "cbor", "binary":
        ct = ContentCBOR
    case "proto", "protobuf":
        ct = ContentProto
    }
    if c := r.Get(ct); c != nil { return c, nil }
    return nil, fmt.Errorf("codec: unknown encoding %q", name)
}

// decodeErr tags a library error so callers can match it with errors.Is(err, ErrDecode).
func decodeErr(ct string, err error) error {
    if err == nil { return nil }
    return fmt.Errorf("%w (%s): %w", ErrDecode, ct, err)
}
