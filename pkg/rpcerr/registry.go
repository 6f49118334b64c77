package rpcerr

import (
    "errors"
    "sync"
)

// Provider encodes and decodes one error family. Encode returns nil for
// errors outside the family, Decode returns nil for payloads outside it.
type Provider interface {
    Encode(err error) *Payload
    Decode(p Payload) error
}

// Registry is an ordered chain of providers. Providers are registered while
// the process bootstraps; after traffic starts the registry is read-only.
type Registry struct {
    mu        sync.RWMutex
    providers []Provider
}

// NewRegistry returns a registry holding ps in order.
func NewRegistry(ps ...Provider) *Registry {
    r := &Registry{}
    for _, p := range ps { r.Register(p) }
    return r
}

// Bootstrap returns a registry preloaded with the transport family.
func Bootstrap(ps ...Provider) *Registry {
    return NewRegistry(append([]Provider{Transport()}, ps...)...)
}

// Register appends p to the chain.
func (r *Registry) Register(p Provider) {
    if p == nil { return }
    r.mu.Lock()
    r.providers = append(r.providers, p)
    r.mu.Unlock()
}

func (r *Registry) snapshot() []Provider {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return r.providers
}

// Decode turns a wire value into an error. It accepts an already built error
// (returned unchanged), a raw "type---data" string, or a Payload. The result
// is nil only for the nil sentinel; unclaimed payloads become *Error.
func (r *Registry) Decode(v any) error {
    var p Payload
    switch x := v.(type) {
    case nil:
        return nil
    case error:
        return x
    case string:
        p = Parse(x)
    case Payload:
        p = x
    case *Payload:
        if x == nil { return nil }
        p = *x
    default:
        return &Error{Type: TypeUnknown}
    }
    if p.IsNil() { return nil }
    for _, prov := range r.snapshot() {
        if err := decodeSafe(prov, p); err != nil { return err }
    }
    return &Error{Type: p.Type, Data: p.Data}
}

// Encode turns err into its wire payload. A nil error encodes as the nil
// sentinel; errors no provider claims fall back to their Coded form or to
// an unknown payload carrying err.Error().
func (r *Registry) Encode(err error) Payload {
    if err == nil { return Payload{Type: TypeNil} }
    for _, prov := range r.snapshot() {
        if p := prov.Encode(err); p != nil { return *p }
    }
    var c Coded
    if errors.As(err, &c) { return Payload{Type: c.ErrorType(), Data: c.ErrorData()} }
    return Payload{Type: TypeUnknown, Data: err.Error()}
}

// decodeSafe treats a panicking provider as one that does not claim p.
func decodeSafe(prov Provider, p Payload) (err error) {
    defer func() {
        if recover() != nil { err = nil }
    }()
    return prov.Decode(p)
}
