package quic

import (
    "context"
    "crypto/rand"
    "crypto/rsa"
    "crypto/tls"
    "crypto/x509"
    "math/big"
    "net"
    "sync"
    "time"

    quicgo "github.com/quic-go/quic-go"

    "ttstream/pkg/transport"
)

const alpn = "ttstream"

// Transport implements QUIC sessions carrying one bidirectional stream with
// length-prefixed frames. The dialer opens the stream; the listener accepts it.
type Transport struct {
    tlsConf  *tls.Config
    quicConf *quicgo.Config
}

func New() *Transport {
    // Ephemeral self-signed certificate for the listening side.
    cert, _ := selfSignedCert()
    tlsConf := &tls.Config{
        Certificates: []tls.Certificate{cert},
        NextProtos:   []string{alpn},
        MinVersion:   tls.VersionTLS13,
    }
    return &Transport{tlsConf: tlsConf, quicConf: &quicgo.Config{KeepAlivePeriod: 15 * time.Second}}
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    l, err := quicgo.ListenAddr(address, t.tlsConf, t.quicConf)
    if err != nil { return nil, err }
    ql := &listener{l: l, closeCh: make(chan struct{})}
    go func() {
        select {
        case <-ctx.Done():
        case <-ql.closeCh:
        }
        _ = ql.Close()
    }()
    return ql, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
    // Peer identity is not part of this transport; the certificate is not verified.
    tlsClient := &tls.Config{
        InsecureSkipVerify: true,
        NextProtos:         []string{alpn},
        MinVersion:         tls.VersionTLS13,
    }
    c, err := quicgo.DialAddr(ctx, address, tlsClient, t.quicConf)
    if err != nil { return nil, err }
    return &session{c: c}, nil
}

// ---- Listener ----

type listener struct {
    l         *quicgo.Listener
    closeCh   chan struct{}
    closeOnce sync.Once
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    c, err := l.l.Accept(ctx)
    if err != nil {
        select {
        case <-l.closeCh:
            return nil, transport.ErrClosed
        default:
        }
        return nil, err
    }
    return &session{c: c, inbound: true}, nil
}

func (l *listener) Close() error {
    var err error
    l.closeOnce.Do(func() { close(l.closeCh); err = l.l.Close() })
    return err
}

// ---- Session/Streams ----

type session struct {
    c       quicgo.Connection
    inbound bool

    mu sync.Mutex
    st *transport.Framer
}

func (s *session) TransportKind() transport.Kind { return transport.KindQUIC }
func (s *session) LocalAddr() net.Addr { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr { return s.c.RemoteAddr() }

func (s *session) OpenStream(ctx context.Context) (transport.Stream, error) {
    if s.inbound { return s.AcceptStream(ctx) }
    return s.stream(func() (quicgo.Stream, error) { return s.c.OpenStreamSync(ctx) })
}

func (s *session) AcceptStream(ctx context.Context) (transport.Stream, error) {
    return s.stream(func() (quicgo.Stream, error) { return s.c.AcceptStream(ctx) })
}

func (s *session) stream(open func() (quicgo.Stream, error)) (transport.Stream, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.st != nil { return s.st, nil }
    qs, err := open()
    if err != nil { return nil, err }
    s.st = transport.NewFramer(qs, func() error {
        qs.CancelRead(0)
        return qs.Close()
    })
    return s.st, nil
}

func (s *session) Close() error {
    s.mu.Lock(); st := s.st; s.mu.Unlock()
    if st != nil { _ = st.Close() }
    return s.c.CloseWithError(0, "")
}

// ---- Helpers ----

// selfSignedCert generates a short-lived self-signed TLS certificate for local QUIC use.
func selfSignedCert() (tls.Certificate, error) {
    priv, err := rsa.GenerateKey(rand.Reader, 2048)
    if err != nil { return tls.Certificate{}, err }
    tmpl := x509.Certificate{
        SerialNumber: big.NewInt(time.Now().UnixNano()),
        NotBefore:    time.Now().Add(-time.Minute),
        NotAfter:     time.Now().Add(24 * time.Hour),
        KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
        ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        BasicConstraintsValid: true,
        DNSNames:     []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil { return tls.Certificate{}, err }
    cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
    return cert, nil
}
