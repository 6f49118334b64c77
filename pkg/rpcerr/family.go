package rpcerr

import (
    "errors"
    "strings"
)

// Family is a Provider for every error type under one namespace prefix.
// Kinds maps the part after "<namespace>." to a constructor; kinds that are
// not listed decode to *Error with the full type preserved.
type Family struct {
    Namespace string
    Kinds     map[string]func(data string) error
}

// New returns a Coded error of the given type, e.g. New("app.validation", "field X required").
func New(typ, data string) error { return &Error{Type: typ, Data: data} }

func (f Family) owns(typ string) bool { return strings.HasPrefix(typ, f.Namespace+".") }

func (f Family) Encode(err error) *Payload {
    var c Coded
    if !errors.As(err, &c) || !f.owns(c.ErrorType()) { return nil }
    return &Payload{Type: c.ErrorType(), Data: c.ErrorData()}
}

func (f Family) Decode(p Payload) error {
    if !f.owns(p.Type) { return nil }
    if mk := f.Kinds[strings.TrimPrefix(p.Type, f.Namespace+".")]; mk != nil {
        if err := mk(p.Data); err != nil { return err }
    }
    return &Error{Type: p.Type, Data: p.Data}
}
