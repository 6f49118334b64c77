// Package client opens streams to a ttstream peer. AsyncClient exposes
// context-aware operations; SyncClient wraps it in a blocking facade whose
// network I/O runs on one worker goroutine per stream.
package client

import "context"

// Stream is the view a domain client gets of an open stream.
type Stream[Req, Res any] interface {
    Send(req *Req) error
    Receive() (*Res, error)
    CloseSend() error
}

// StreamClient opens streams of one request/response pair.
type StreamClient[Req, Res any] interface {
    Open(ctx context.Context, target string) (Stream[Req, Res], error)
}

type typed[Req, Res any] struct{ c *SyncClient }

// Typed binds c to a request/response pair.
func Typed[Req, Res any](c *SyncClient) StreamClient[Req, Res] { return typed[Req, Res]{c: c} }

func (t typed[Req, Res]) Open(ctx context.Context, target string) (Stream[Req, Res], error) {
    s, err := Open[Req, Res](ctx, t.c, target)
    if err != nil { return nil, err }
    return s, nil
}

var _ Stream[struct{}, struct{}] = (*SyncStream[struct{}, struct{}])(nil)
