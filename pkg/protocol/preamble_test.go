package protocol

import (
    "errors"
    "testing"
)

func TestPreambleMarshalUnmarshal(t *testing.T) {
    p := Preamble{Method: "/echo", ContentType: ContentCBOR, ErrorEncoding: ErrorEncoding}
    b, err := p.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if b[0] != 'T' || b[1] != 'S' { t.Fatalf("magic mismatch: % x", b[:2]) }

    var out Preamble
    if err := out.UnmarshalBinary(b); err != nil { t.Fatalf("unmarshal: %v", err) }
    if out != p { t.Fatalf("preamble mismatch: %#v", out) }
    if err := out.Check(); err != nil { t.Fatalf("check: %v", err) }
}

func TestPreambleRejects(t *testing.T) {
    var p Preamble
    if err := p.UnmarshalBinary([]byte{1, 2}); err == nil { t.Fatalf("expected short preamble error") }
    if err := p.UnmarshalBinary([]byte{'X', 'X', 1, 0, '{', '}'}); err == nil { t.Fatalf("expected bad magic") }
    if err := p.UnmarshalBinary([]byte{'T', 'S', 9, 0, '{', '}'}); !errors.Is(err, ErrNegotiation) { t.Fatalf("expected version error, got %v", err) }

    bad := Preamble{Method: "/m", ContentType: ContentJSON, ErrorEncoding: "other"}
    if err := bad.Check(); !errors.Is(err, ErrNegotiation) { t.Fatalf("expected negotiation error, got %v", err) }
}
