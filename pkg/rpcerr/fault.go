package rpcerr

import "errors"

// ErrFatal matches every *Fault. A fault means the local plumbing broke, as
// opposed to the remote side reporting an error.
var ErrFatal = errors.New("rpcerr: internal fault")

// Fault wraps an unexpected failure inside the stream machinery.
type Fault struct {
    Op  string
    Err error
}

// NewFault wraps err as a fault raised by op. An existing fault is returned as is.
func NewFault(op string, err error) error {
    var f *Fault
    if errors.As(err, &f) { return f }
    return &Fault{Op: op, Err: err}
}

func (f *Fault) Error() string { return "fault in " + f.Op + ": " + f.Err.Error() }
func (f *Fault) Unwrap() error { return f.Err }
func (f *Fault) Is(target error) bool { return target == ErrFatal }

// IsFatal reports whether err is, or wraps, a fault.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }
