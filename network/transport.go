package network

import (
	"errors"

	"github.com/automoto/hoopjam-mp/shared/messages"
)

// ErrNotConnected is returned when input is sent before the join completes.
var ErrNotConnected = errors.New("not connected")

// InputSink accepts batched input packets for the authority.
type InputSink interface {
	SendInputs(packet messages.InputPacket) error
}

// SnapshotSource yields authoritative snapshots received since the last call.
// It never blocks.
type SnapshotSource interface {
	DrainSnapshots() []messages.Snapshot
}

func drainChan[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
