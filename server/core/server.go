package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/transport"
	"github.com/leap-fish/necs/esync"
	"golang.org/x/time/rate"
)

// Version is the protocol version clients must announce in their join
// request.
func Version() string { return strconv.Itoa(config.Net.ProtocolVersion) }

// ServerStats counts connection level traffic.
type ServerStats struct {
	Joins        int
	Rejections   int
	Packets      int
	BadChannel   int // Input packets on another player's channel or with a bad token
	RateLimited  int
	Broadcasts   int
	BytesWritten uint64
}

type peer struct {
	id      esync.NetworkId
	conn    transport.Conn
	channel string
	limiter *rate.Limiter
}

// Server accepts players, feeds their inputs to the authority and
// broadcasts its snapshots.
type Server struct {
	authority *Authority
	sessions  *Sessions
	cfg       config.NetConfig

	mu    sync.RWMutex
	peers map[esync.NetworkId]*peer
	stats ServerStats
}

func NewServer(authority *Authority, sessions *Sessions, cfg config.NetConfig) *Server {
	return &Server{
		authority: authority,
		sessions:  sessions,
		cfg:       cfg,
		peers:     make(map[esync.NetworkId]*peer),
	}
}

func (s *Server) Authority() *Authority { return s.authority }

// Serve accepts connections until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context, ln transport.Listener) error {
	log.Printf("[server] %q listening on %s", s.authority.Name(), ln.Addr())
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn transport.Conn) {
	defer conn.Close()

	p, err := s.join(ctx, conn)
	if err != nil {
		log.Printf("[server] join from %s failed: %v", conn.RemoteAddr(), err)
		return
	}
	defer s.leave(p)

	for {
		data, err := conn.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[server] player %d disconnected: %v", p.id, err)
			}
			return
		}
		env, err := messages.Decode(data)
		if err != nil {
			if config.Debug.Net {
				log.Printf("[server] bad frame from %d: %v", p.id, err)
			}
			continue
		}
		switch env.Kind {
		case messages.KindInput:
			s.handleInput(p, env)
		case messages.KindPing:
			if err := s.write(ctx, p.conn, messages.Envelope{Kind: messages.KindPong, Ping: env.Ping}); err != nil && config.Debug.Net {
				log.Printf("[server] pong to %d: %v", p.id, err)
			}
		}
	}
}

// join waits for the join request and answers it.
func (s *Server) join(ctx context.Context, conn transport.Conn) (*peer, error) {
	joinCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	var req *messages.JoinRequest
	for req == nil {
		data, err := conn.ReadFrame(joinCtx)
		if err != nil {
			return nil, fmt.Errorf("waiting for join request: %w", err)
		}
		env, err := messages.Decode(data)
		if err != nil {
			continue
		}
		if env.Kind == messages.KindJoinRequest {
			req = env.Join
		}
	}

	if req.Version != "" && req.Version != Version() {
		return nil, s.reject(joinCtx, conn, fmt.Sprintf("version mismatch: server %s, client %s", Version(), req.Version))
	}

	id, team, err := s.authority.AddPlayer(req.PlayerName)
	if err != nil {
		return nil, s.reject(joinCtx, conn, err.Error())
	}
	token, err := s.sessions.Issue(s.authority.Session(), id)
	if err != nil {
		s.authority.RemovePlayer(id)
		return nil, err
	}

	p := &peer{
		id:      id,
		conn:    conn,
		channel: messages.InputChannel(s.authority.Session(), id),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.InputRatePerSec), max(s.cfg.InputBurst, 1)),
	}
	err = s.write(joinCtx, conn, messages.Envelope{Kind: messages.KindJoinAccepted, Accepted: &messages.JoinAccepted{
		PlayerID:   id,
		Team:       team,
		Session:    s.authority.Session(),
		Token:      token,
		ServerName: s.authority.Name(),
		TickRate:   s.cfg.TickRate,
	}})
	if err != nil {
		s.authority.RemovePlayer(id)
		return nil, fmt.Errorf("send join reply: %w", err)
	}

	s.mu.Lock()
	s.peers[id] = p
	s.stats.Joins++
	s.mu.Unlock()
	log.Printf("[server] %s joined from %s as player %d", req.PlayerName, conn.RemoteAddr(), id)
	return p, nil
}

func (s *Server) reject(ctx context.Context, conn transport.Conn, reason string) error {
	s.mu.Lock()
	s.stats.Rejections++
	s.mu.Unlock()
	_ = s.write(ctx, conn, messages.Envelope{Kind: messages.KindJoinRejected, Rejected: &messages.JoinRejected{Reason: reason}})
	return errors.New(reason)
}

func (s *Server) leave(p *peer) {
	s.mu.Lock()
	if s.peers[p.id] == p {
		delete(s.peers, p.id)
	}
	s.mu.Unlock()
	s.authority.RemovePlayer(p.id)
}

// handleInput checks the channel, token and packet rate before handing the
// packet to the authority.
func (s *Server) handleInput(p *peer, env messages.Envelope) {
	owned := env.Channel == p.channel && s.validToken(p, env.Token)

	s.mu.Lock()
	s.stats.Packets++
	switch {
	case !owned:
		s.stats.BadChannel++
		s.mu.Unlock()
		if config.Debug.Net {
			log.Printf("[server] player %d sent on %q, want %q", p.id, env.Channel, p.channel)
		}
		return
	case !p.limiter.Allow():
		s.stats.RateLimited++
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.authority.SubmitInputs(p.id, *env.Input); err != nil {
		log.Printf("[server] inputs from %d: %v", p.id, err)
	}
}

func (s *Server) validToken(p *peer, token string) bool {
	claims, err := s.sessions.Verify(token)
	if err != nil {
		if config.Debug.Net {
			log.Printf("[server] player %d: %v", p.id, err)
		}
		return false
	}
	return claims.Player == p.id && claims.Session == s.authority.Session()
}

// Broadcast sends a snapshot to every connected player. A failed write is
// logged; the reader notices the broken connection.
func (s *Server) Broadcast(ctx context.Context, snap messages.Snapshot) {
	payload, err := messages.Encode(messages.Envelope{Kind: messages.KindSnapshot, Snapshot: &snap})
	if err != nil {
		log.Printf("[server] encode snapshot %d: %v", snap.Frame, err)
		return
	}
	s.mu.RLock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		err := p.conn.WriteFrame(wctx, payload)
		cancel()
		if err != nil {
			if config.Debug.Net {
				log.Printf("[server] snapshot %d to %d: %v", snap.Frame, p.id, err)
			}
			continue
		}
		s.mu.Lock()
		s.stats.BytesWritten += uint64(len(payload))
		s.mu.Unlock()
	}
	s.mu.Lock()
	s.stats.Broadcasts++
	s.mu.Unlock()
}

func (s *Server) write(ctx context.Context, conn transport.Conn, env messages.Envelope) error {
	payload, err := messages.Encode(env)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	return conn.WriteFrame(ctx, payload)
}

// PeerCount returns the number of connected players.
func (s *Server) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

func (s *Server) Stats() ServerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
