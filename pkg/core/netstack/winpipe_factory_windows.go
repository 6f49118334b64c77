//go:build windows

package netstack

import (
    "ttstream/pkg/transport"
    "ttstream/pkg/transport/winpipe"
)

func newWinPipeTransport() (transport.Transport, error) { return winpipe.New(), nil }
