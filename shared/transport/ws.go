package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

const wsPath = "/play"

type wsConn struct {
	conn   *websocket.Conn
	remote string
	once   sync.Once
	done   chan struct{}
}

func newWSConn(c *websocket.Conn, remote string) *wsConn {
	c.SetReadLimit(MaxFrameSize)
	return &wsConn{conn: c, remote: remote, done: make(chan struct{})}
}

func dialWS(ctx context.Context, addr string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, "ws://"+addr+wsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("dial ws %s: %w", addr, err)
	}
	return newWSConn(c, addr), nil
}

func (w *wsConn) ReadFrame(ctx context.Context) ([]byte, error) {
	typ, data, err := w.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageBinary {
		return nil, fmt.Errorf("unexpected %v frame", typ)
	}
	return data, nil
}

func (w *wsConn) WriteFrame(ctx context.Context, data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	return w.conn.Write(ctx, websocket.MessageBinary, data)
}

func (w *wsConn) RemoteAddr() string { return w.remote }

func (w *wsConn) Close() error {
	var err error
	w.once.Do(func() {
		err = w.conn.Close(websocket.StatusNormalClosure, "")
		close(w.done)
	})
	return err
}

type wsListener struct {
	ln    net.Listener
	srv   *http.Server
	conns chan *wsConn
	quit  chan struct{}
	once  sync.Once
}

func listenWS(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen ws %s: %w", addr, err)
	}
	l := &wsListener{
		ln:    ln,
		conns: make(chan *wsConn),
		quit:  make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, l.handle)
	l.srv = &http.Server{Handler: mux}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[transport] ws serve: %v", err)
		}
	}()
	return l, nil
}

func (l *wsListener) handle(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Printf("[transport] ws accept %s: %v", r.RemoteAddr, err)
		return
	}
	conn := newWSConn(c, r.RemoteAddr)
	select {
	case l.conns <- conn:
	case <-l.quit:
		_ = c.CloseNow()
		return
	}
	// Hold the handler until the connection is closed by its owner.
	select {
	case <-conn.done:
	case <-l.quit:
	}
}

func (l *wsListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.quit:
		return nil, ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *wsListener) Addr() string { return l.ln.Addr().String() }

func (l *wsListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.quit)
		err = l.srv.Close()
	})
	return err
}
