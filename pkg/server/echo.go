package server

import (
    "context"

    "ttstream/pkg/rpcerr"
)

// Echo sends every payload back until the client half-closes. Payloads are
// decoded generically, so it serves JSON and CBOR clients.
func Echo(_ context.Context, s *Stream) error {
    for {
        v, err := Recv[any](s)
        if rpcerr.IsEOF(err) { return nil }
        if err != nil { return err }
        if err := Send(s, v); err != nil { return err }
    }
}
