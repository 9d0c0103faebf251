package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/transport"
	"github.com/leap-fish/necs/esync"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

// Client manages the connection to the authority over WebSocket or KCP.
// All shared fields are protected by mu (the reader runs on its own goroutine).
type Client struct {
	mu sync.RWMutex

	cfg        config.NetConfig
	state      ClientState
	lastError  error
	playerID   esync.NetworkId
	team       int
	session    string
	token      string
	serverName string
	tickRate   int
	conn       transport.Conn

	quality    *Quality
	snapshotCh chan messages.Snapshot // size-1 buffered; latest wins
	pingSeq    uint32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewClient(cfg config.NetConfig, quality *Quality) *Client {
	return &Client{
		cfg:        cfg,
		state:      StateDisconnected,
		quality:    quality,
		snapshotCh: make(chan messages.Snapshot, max(cfg.SnapshotQueueSize, 1)),
	}
}

// Connect dials the authority, performs the join handshake and starts the
// reader and ping goroutines. It blocks until the join is accepted or fails.
func (c *Client) Connect(ctx context.Context, proto, addr string, req messages.JoinRequest) error {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancelDial()

	conn, err := transport.Dial(dialCtx, proto, addr)
	if err != nil {
		c.setError(fmt.Errorf("connection failed: %w", err))
		return c.LastError()
	}
	log.Printf("[client] connected to %s over %s", addr, proto)
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	accepted, err := c.handshake(dialCtx, conn, req)
	if err != nil {
		_ = conn.Close()
		c.setError(err)
		return err
	}

	log.Printf("[client] join accepted: player=%d team=%d server=%s tickRate=%d",
		accepted.PlayerID, accepted.Team, accepted.ServerName, accepted.TickRate)
	c.mu.Lock()
	c.playerID = accepted.PlayerID
	c.team = accepted.Team
	c.session = accepted.Session
	c.token = accepted.Token
	c.serverName = accepted.ServerName
	c.tickRate = accepted.TickRate
	c.state = StateJoinedGame
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(2)
	go c.readLoop(runCtx, conn)
	go c.pingLoop(runCtx)
	return nil
}

func (c *Client) handshake(ctx context.Context, conn transport.Conn, req messages.JoinRequest) (*messages.JoinAccepted, error) {
	if err := c.write(ctx, conn, messages.Envelope{Kind: messages.KindJoinRequest, Join: &req}); err != nil {
		return nil, fmt.Errorf("failed to send join request: %w", err)
	}
	for {
		data, err := conn.ReadFrame(ctx)
		if err != nil {
			return nil, fmt.Errorf("waiting for join reply: %w", err)
		}
		env, err := messages.Decode(data)
		if err != nil {
			log.Printf("[client] dropping frame during join: %v", err)
			continue
		}
		switch env.Kind {
		case messages.KindJoinAccepted:
			return env.Accepted, nil
		case messages.KindJoinRejected:
			log.Printf("[client] join rejected: %s", env.Rejected.Reason)
			return nil, fmt.Errorf("join rejected: %s", env.Rejected.Reason)
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn transport.Conn) {
	defer c.wg.Done()
	for {
		data, err := conn.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[client] disconnected: %v", err)
				c.mu.Lock()
				if c.state != StateError {
					c.state = StateDisconnected
				}
				c.conn = nil
				c.mu.Unlock()
			}
			return
		}
		env, err := messages.Decode(data)
		if err != nil {
			if config.Debug.Net {
				log.Printf("[client] bad frame: %v", err)
			}
			continue
		}
		switch env.Kind {
		case messages.KindSnapshot:
			select { // drain stale, push latest
			case <-c.snapshotCh:
			default:
			}
			c.snapshotCh <- *env.Snapshot
		case messages.KindPong:
			if c.quality != nil {
				c.quality.RecordRTT(time.Since(time.UnixMilli(env.Ping.Sent)))
			}
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	defer c.wg.Done()
	if c.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			c.pingSeq++
			seq, conn := c.pingSeq, c.conn
			c.mu.Unlock()
			if conn == nil {
				continue
			}
			ping := &messages.Ping{Seq: seq, Sent: now.UnixMilli()}
			if err := c.write(ctx, conn, messages.Envelope{Kind: messages.KindPing, Ping: ping}); err != nil && config.Debug.Net {
				log.Printf("[client] ping %d: %v", seq, err)
			}
		}
	}
}

// SendInputs sends a batch on this player's input channel.
func (c *Client) SendInputs(packet messages.InputPacket) error {
	c.mu.RLock()
	conn, state := c.conn, c.state
	channel := messages.InputChannel(c.session, c.playerID)
	token := c.token
	c.mu.RUnlock()

	if conn == nil || state != StateJoinedGame {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	defer cancel()
	return c.write(ctx, conn, messages.Envelope{
		Kind:    messages.KindInput,
		Channel: channel,
		Token:   token,
		Input:   &packet,
	})
}

// DrainSnapshots returns the snapshots received since the last call. Non-blocking.
func (c *Client) DrainSnapshots() []messages.Snapshot {
	return drainChan(c.snapshotCh)
}

func (c *Client) write(ctx context.Context, conn transport.Conn, env messages.Envelope) error {
	payload, err := messages.Encode(env)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	return conn.WriteFrame(ctx, payload)
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastError == nil && c.state == StateError {
		return errors.New("client error")
	}
	return c.lastError
}

func (c *Client) PlayerID() esync.NetworkId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

func (c *Client) Team() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.team
}

func (c *Client) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}
