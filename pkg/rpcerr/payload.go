// Package rpcerr carries errors across the stream boundary. Each error family
// supplies a Provider that knows how to turn its errors into a typed Payload
// and back; the Registry chains providers in registration order.
package rpcerr

import (
    "strings"
)

const (
    // TypeNil is the reserved payload type meaning "no error".
    TypeNil = "nil"
    // TypeUnknown marks a payload whose family could not be determined.
    TypeUnknown = "unknown"
    // Separator joins type and data in the raw string form "type---data".
    Separator = "---"
)

// Payload is the wire form of an error: a namespaced type plus opaque data.
type Payload struct {
    Type string `json:"type"`
    Data string `json:"data"`
}

// IsNil reports whether p encodes the absence of an error.
func (p Payload) IsNil() bool { return p.Type == "" || p.Type == TypeNil }

// String renders the raw string form of p.
func (p Payload) String() string {
    if p.IsNil() { return TypeNil }
    return p.Type + Separator + p.Data
}

// Parse splits the raw string form into a Payload. Input without the
// separator is treated as data of unknown type.
func Parse(s string) Payload {
    if s == TypeNil || s == "" { return Payload{Type: TypeNil} }
    typ, data, ok := strings.Cut(s, Separator)
    if !ok || typ == "" { return Payload{Type: TypeUnknown, Data: s} }
    return Payload{Type: typ, Data: data}
}

// Namespace returns the "<family>" part of a "<family>.<kind>" type.
func (p Payload) Namespace() string {
    ns, _, _ := strings.Cut(p.Type, ".")
    return ns
}

// Error is the generic fallback for payloads that no provider claims.
type Error struct {
    Type string
    Data string
}

func (e *Error) Error() string {
    if e.Data == "" { return e.Type }
    return e.Type + ": " + e.Data
}

// ErrorType implements Coded so the fallback round-trips unchanged.
func (e *Error) ErrorType() string { return e.Type }
func (e *Error) ErrorData() string { return e.Data }

// Coded is implemented by errors that know their own wire type and data.
type Coded interface {
    error
    ErrorType() string
    ErrorData() string
}
