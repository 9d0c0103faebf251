package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"
)

// streamConn frames messages on a byte stream with a 4-byte big-endian
// length prefix.
type streamConn struct {
	conn net.Conn
	wmu  sync.Mutex
}

func dialKCP(addr string) (Conn, error) {
	sess, err := kcp.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("dial kcp %s: %w", addr, err)
	}
	sess.SetStreamMode(true)
	sess.SetNoDelay(1, 10, 2, 1)
	return &streamConn{conn: sess}, nil
}

func (s *streamConn) ReadFrame(ctx context.Context) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(dl)
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
	var length uint32
	if err := binary.Read(s.conn, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(s.conn, data); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return data, nil
}

func (s *streamConn) WriteFrame(ctx context.Context, data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(dl)
	} else {
		_ = s.conn.SetWriteDeadline(time.Time{})
	}
	_, err := s.conn.Write(buf)
	return err
}

func (s *streamConn) RemoteAddr() string { return s.conn.RemoteAddr().String() }

func (s *streamConn) Close() error { return s.conn.Close() }

type kcpListener struct {
	listener *kcp.Listener
}

func listenKCP(addr string) (Listener, error) {
	l, err := kcp.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("listen kcp %s: %w", addr, err)
	}
	return &kcpListener{listener: l}, nil
}

func (l *kcpListener) Accept(ctx context.Context) (Conn, error) {
	type result struct {
		sess *kcp.UDPSession
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		sess, err := l.listener.AcceptKCP()
		ch <- result{sess, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		r.sess.SetStreamMode(true)
		r.sess.SetNoDelay(1, 10, 2, 1)
		return &streamConn{conn: r.sess}, nil
	case <-ctx.Done():
		// Unblocks the pending AcceptKCP.
		_ = l.listener.Close()
		return nil, ctx.Err()
	}
}

func (l *kcpListener) Addr() string { return l.listener.Addr().String() }

func (l *kcpListener) Close() error { return l.listener.Close() }
