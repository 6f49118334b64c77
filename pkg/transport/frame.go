package transport

import (
    "bufio"
    "encoding/binary"
    "io"
    "sync"
)

// Framer implements Stream over a byte stream with length-prefixed frames (u32 LE).
type Framer struct {
    mu     sync.Mutex
    br     *bufio.Reader
    bw     *bufio.Writer
    closef func() error
    once   sync.Once
    cerr   error
}

// NewFramer frames rw. closef, when non-nil, is called once by Close.
func NewFramer(rw io.ReadWriter, closef func() error) *Framer {
    return &Framer{br: bufio.NewReader(rw), bw: bufio.NewWriter(rw), closef: closef}
}

func (f *Framer) SendBytes(b []byte) error {
    if len(b) > MaxFrameSize { return ErrFrameTooLarge }
    f.mu.Lock(); defer f.mu.Unlock()
    var lenbuf [4]byte
    binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(b)))
    if _, err := f.bw.Write(lenbuf[:]); err != nil { return err }
    if _, err := f.bw.Write(b); err != nil { return err }
    return f.bw.Flush()
}

func (f *Framer) RecvBytes() ([]byte, error) {
    var lenbuf [4]byte
    if _, err := io.ReadFull(f.br, lenbuf[:]); err != nil { return nil, err }
    n := binary.LittleEndian.Uint32(lenbuf[:])
    if n > MaxFrameSize { return nil, ErrFrameTooLarge }
    buf := make([]byte, int(n))
    if _, err := io.ReadFull(f.br, buf); err != nil { return nil, err }
    return buf, nil
}

func (f *Framer) Close() error {
    f.once.Do(func() {
        if f.closef != nil { f.cerr = f.closef() }
    })
    return f.cerr
}
