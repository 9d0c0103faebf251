// Package transport frames binary messages over WebSocket or KCP so the
// client and the authority share one connection abstraction.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// MaxFrameSize bounds a single message.
const MaxFrameSize = 64 << 10

var (
	ErrFrameTooLarge    = errors.New("frame too large")
	ErrUnsupportedProto = errors.New("unsupported protocol")
	ErrListenerClosed   = errors.New("listener closed")
)

// Proto names a transport.
const (
	ProtoWS  = "ws"
	ProtoKCP = "kcp"
)

// Conn carries whole frames. WriteFrame is safe for concurrent use.
type Conn interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, data []byte) error
	RemoteAddr() string
	Close() error
}

// Listener accepts framed connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}

// Dial connects to addr over proto.
func Dial(ctx context.Context, proto, addr string) (Conn, error) {
	switch proto {
	case ProtoWS, "":
		return dialWS(ctx, addr)
	case ProtoKCP:
		return dialKCP(addr)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProto, proto)
}

// Listen opens a listener for proto on addr.
func Listen(proto, addr string) (Listener, error) {
	switch proto {
	case ProtoWS, "":
		return listenWS(addr)
	case ProtoKCP:
		return listenKCP(addr)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProto, proto)
}
