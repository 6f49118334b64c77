package protocol

import (
    "encoding/binary"
    "encoding/json"
    "errors"
    "fmt"
)

// Preamble is the first frame on every physical stream. It names the remote
// method and negotiates the encodings used for the rest of the stream.
//
//  0 ..1   Magic   'T''S' (0x5354), little-endian
//  2       Version u8
//  3       Reserved u8
//  4 ..    JSON body {method, content_type, error_encoding}
//
// The body is always JSON so that a peer can read it before knowing which
// codec the stream will use.
type Preamble struct {
    Method        string `json:"method"`
    ContentType   string `json:"content_type"`
    ErrorEncoding string `json:"error_encoding"`
}

const (
    preambleFixed = 4
    magicWord     = uint16(0x5354) // 'T''S'
)

var ErrNegotiation = errors.New("protocol: negotiation failed")

// MarshalBinary encodes the preamble frame.
func (p *Preamble) MarshalBinary() ([]byte, error) {
    body, err := json.Marshal(p)
    if err != nil { return nil, err }
    buf := make([]byte, preambleFixed+len(body))
    binary.LittleEndian.PutUint16(buf[0:2], magicWord)
    buf[2] = Version
    // buf[3] reserved
    copy(buf[preambleFixed:], body)
    return buf, nil
}

// UnmarshalBinary decodes a preamble frame.
func (p *Preamble) UnmarshalBinary(buf []byte) error {
    if len(buf) < preambleFixed {
        return errors.New("short preamble")
    }
    if binary.LittleEndian.Uint16(buf[0:2]) != magicWord {
        return errors.New("bad magic")
    }
    if buf[2] != Version {
        return fmt.Errorf("%w: unsupported version %d", ErrNegotiation, buf[2])
    }
    return json.Unmarshal(buf[preambleFixed:], p)
}

// Check validates the negotiated fields.
func (p *Preamble) Check() error {
    if p.ErrorEncoding != ErrorEncoding {
        return fmt.Errorf("%w: error encoding %q", ErrNegotiation, p.ErrorEncoding)
    }
    if p.ContentType == "" {
        return fmt.Errorf("%w: missing content type", ErrNegotiation)
    }
    return nil
}
