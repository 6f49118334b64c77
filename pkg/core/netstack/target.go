package netstack

import (
    "fmt"
    "net/url"
    "strings"

    "ttstream/pkg/transport"
)

// Target is a parsed endpoint URL such as tcp://127.0.0.1:9090/echo.
// The URL path names the remote method.
type Target struct {
    Kind   transport.Kind
    Host   string
    Method string
    Secure bool
    raw    string
}

// ParseTarget accepts tcp, quic, ws, wss, mem and winpipe URLs.
func ParseTarget(raw string) (Target, error) {
    u, err := url.Parse(strings.TrimSpace(raw))
    if err != nil { return Target{}, fmt.Errorf("netstack: parse target %q: %w", raw, err) }
    t := Target{Host: u.Host, Method: u.Path, raw: raw}
    switch strings.ToLower(u.Scheme) {
    case "tcp":
        t.Kind = transport.KindTCP
    case "quic":
        t.Kind = transport.KindQUIC
    case "ws":
        t.Kind = transport.KindWebSocket
    case "wss":
        t.Kind, t.Secure = transport.KindWebSocket, true
    case "mem":
        t.Kind = transport.KindMem
    case "winpipe":
        t.Kind = transport.KindWinPipe
    case "":
        return Target{}, fmt.Errorf("netstack: target %q has no scheme", raw)
    default:
        return Target{}, ErrUnknownKind(u.Scheme)
    }
    if t.Host == "" { return Target{}, fmt.Errorf("netstack: target %q has no host", raw) }
    if t.Method == "" { t.Method = "/" }
    return t, nil
}

// DialAddress is the address handed to Transport.Dial.
func (t Target) DialAddress() string {
    switch t.Kind {
    case transport.KindWebSocket:
        if t.Secure { return "wss://" + t.Host + "/" }
        return "ws://" + t.Host + "/"
    case transport.KindWinPipe:
        return `\\.\pipe\` + t.Host
    }
    return t.Host
}

// ListenAddress is the address handed to Transport.Listen.
func (t Target) ListenAddress() string {
    if t.Kind == transport.KindWinPipe { return `\\.\pipe\` + t.Host }
    return t.Host
}

// WithMethod returns a copy of t addressing another method on the same endpoint.
func (t Target) WithMethod(method string) Target {
    if !strings.HasPrefix(method, "/") { method = "/" + method }
    t.Method = method
    t.raw = ""
    return t
}

func (t Target) String() string {
    if t.raw != "" { return t.raw }
    scheme := t.Kind.String()
    if t.Secure { scheme = "wss" }
    return scheme + "://" + t.Host + t.Method
}
