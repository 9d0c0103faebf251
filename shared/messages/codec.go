package messages

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// ErrUnknownKind is returned when an envelope carries a kind this build does
// not understand.
var ErrUnknownKind = errors.New("unknown message kind")

// Kind tags the payload an envelope carries.
type Kind uint8

const (
	KindJoinRequest Kind = iota + 1
	KindJoinAccepted
	KindJoinRejected
	KindInput
	KindSnapshot
	KindPing
	KindPong
)

func (k Kind) String() string {
	switch k {
	case KindJoinRequest:
		return "join_request"
	case KindJoinAccepted:
		return "join_accepted"
	case KindJoinRejected:
		return "join_rejected"
	case KindInput:
		return "input"
	case KindSnapshot:
		return "snapshot"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Envelope is the single frame type on the wire. Exactly one payload pointer
// matching Kind is set.
type Envelope struct {
	Kind     Kind          `codec:"k"`
	Channel  string        `codec:"ch,omitempty"`
	Token    string        `codec:"tok,omitempty"`
	Join     *JoinRequest  `codec:"join,omitempty"`
	Accepted *JoinAccepted `codec:"acc,omitempty"`
	Rejected *JoinRejected `codec:"rej,omitempty"`
	Input    *InputPacket  `codec:"in,omitempty"`
	Snapshot *Snapshot     `codec:"snap,omitempty"`
	Ping     *Ping         `codec:"ping,omitempty"`
}

var msgpackHandle = &codec.MsgpackHandle{}

// Encode serializes an envelope with msgpack.
func Encode(env Envelope) ([]byte, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	var out []byte
	if err := codec.NewEncoderBytes(&out, msgpackHandle).Encode(&env); err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Kind, err)
	}
	return out, nil
}

// Decode parses and validates an envelope. Snapshots are sanitized before
// they are handed out.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := codec.NewDecoderBytes(data, msgpackHandle).Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.validate(); err != nil {
		return Envelope{}, err
	}
	if env.Snapshot != nil {
		env.Snapshot.Sanitize()
	}
	return env, nil
}

func (env Envelope) validate() error {
	var ok bool
	switch env.Kind {
	case KindJoinRequest:
		ok = env.Join != nil
	case KindJoinAccepted:
		ok = env.Accepted != nil
	case KindJoinRejected:
		ok = env.Rejected != nil
	case KindInput:
		ok = env.Input != nil
	case KindSnapshot:
		ok = env.Snapshot != nil
	case KindPing, KindPong:
		ok = env.Ping != nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(env.Kind))
	}
	if !ok {
		return fmt.Errorf("%s envelope without payload", env.Kind)
	}
	return nil
}
