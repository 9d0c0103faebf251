package messages

import "github.com/leap-fish/necs/esync"

// JoinRequest is sent by a client after connecting to request a roster slot.
type JoinRequest struct {
	Version    string `codec:"v"`
	PlayerName string `codec:"name"`
}

// JoinAccepted is sent by the authority when a client's join request is accepted.
type JoinAccepted struct {
	PlayerID   esync.NetworkId `codec:"id"`
	Team       int             `codec:"team"`
	Session    string          `codec:"session"`
	Token      string          `codec:"token"`
	ServerName string          `codec:"server"`
	TickRate   int             `codec:"tick"`
}

// JoinRejected is sent by the authority when a client's join request is rejected.
type JoinRejected struct {
	Reason string `codec:"reason"`
}

// Ping carries a client timestamp that the authority echoes back unchanged.
type Ping struct {
	Seq  uint32 `codec:"seq"`
	Sent int64  `codec:"sent"` // Unix ms
}
