package network

import (
	"sync"

	"github.com/automoto/hoopjam-mp/shared/messages"
)

// Loopback is an in-process transport. A coordinator client routes its own
// inputs straight into the authority through it, and tests use it to observe
// writes.
type Loopback struct {
	mu        sync.Mutex
	sent      []messages.InputPacket
	snapshots []messages.Snapshot
	failWith  error

	// Relay receives every packet that was accepted.
	Relay func(messages.InputPacket) error
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

// SendInputs records the packet and forwards it to Relay.
func (l *Loopback) SendInputs(packet messages.InputPacket) error {
	l.mu.Lock()
	if l.failWith != nil {
		err := l.failWith
		l.mu.Unlock()
		return err
	}
	l.sent = append(l.sent, packet)
	relay := l.Relay
	l.mu.Unlock()

	if relay != nil {
		return relay(packet)
	}
	return nil
}

// Publish queues a snapshot for the next drain.
func (l *Loopback) Publish(s messages.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = append(l.snapshots, s)
}

// DrainSnapshots returns and clears the queued snapshots.
func (l *Loopback) DrainSnapshots() []messages.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.snapshots
	l.snapshots = nil
	return out
}

// Sent returns a copy of every accepted packet.
func (l *Loopback) Sent() []messages.InputPacket {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]messages.InputPacket, len(l.sent))
	copy(out, l.sent)
	return out
}

// FailWith makes subsequent sends return err until cleared with nil.
func (l *Loopback) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failWith = err
}
