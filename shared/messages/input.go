package messages

import (
	"fmt"

	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
)

// InputRecord is one local key press. Frame is the client frame the input was
// issued on and is kept for its whole lifetime so it can be retired or
// replayed without ambiguity.
type InputRecord struct {
	PlayerID esync.NetworkId `codec:"p"`
	Key      netconfig.Key   `codec:"k"`
	Frame    uint32          `codec:"f"`
	Turbo    bool            `codec:"t,omitempty"`
}

// InputPacket is a batch of input records flushed by the input buffer.
type InputPacket struct {
	Sequence  uint32        `codec:"seq"`
	Timestamp int64         `codec:"ts"` // Client timestamp (Unix ms)
	Inputs    []InputRecord `codec:"in"`
}

// InputChannel names the per-player, per-session channel inputs travel on.
func InputChannel(session string, player esync.NetworkId) string {
	return fmt.Sprintf("hoopjam.%s.input.%d", session, player)
}
