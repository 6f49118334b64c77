package protocol

import "ttstream/pkg/rpcerr"

// Data wraps v in a data envelope.
func Data[T any](v *T) *Envelope[T] { return &Envelope[T]{Type: TypeData, Payload: v} }

// Close builds a close envelope. A nil or nil-typed payload means the stream
// ended without error.
func Close[T any](p *rpcerr.Payload) *Envelope[T] {
    if p != nil && p.IsNil() { p = nil }
    return &Envelope[T]{Type: TypeClose, Error: p}
}

// CloseWith encodes err through reg into a close envelope.
func CloseWith[T any](reg *rpcerr.Registry, err error) *Envelope[T] {
    if err == nil || rpcerr.IsEOF(err) { return Close[T](nil) }
    p := reg.Encode(err)
    return Close[T](&p)
}
