// Package transport defines the physical links that carry ttstream frames and
// provides implementations for tcp, quic, websocket, winpipe and mem.
//
// Key concepts:
// - Transport: dials/listens for Sessions of a specific Kind
// - Session: one physical connection; the dialer opens exactly one Stream on it
// - Stream: an ordered, reliable Send/Recv channel of opaque frames
// - Framer: u32 little-endian length-prefixed framing shared by byte-stream links
package transport
