package network

import (
	"log"
	"time"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
)

// InputMeta is the optional part of an input record.
type InputMeta struct {
	PlayerID esync.NetworkId
	Turbo    bool
}

// InputBuffer batches local inputs so the packet rate stays bounded.
type InputBuffer struct {
	cfg       config.InputBufferConfig
	pending   []messages.InputRecord
	interval  time.Duration
	lastFlush time.Time
	sequence  uint32
}

func NewInputBuffer(cfg config.InputBufferConfig) *InputBuffer {
	b := &InputBuffer{cfg: cfg}
	b.SetFlushInterval(cfg.DefaultFlushInterval)
	return b
}

// AddInput appends a record. Frame ordering is the caller's responsibility.
func (b *InputBuffer) AddInput(key netconfig.Key, frame uint32, meta InputMeta) {
	b.pending = append(b.pending, messages.InputRecord{
		PlayerID: meta.PlayerID,
		Key:      key,
		Frame:    frame,
		Turbo:    meta.Turbo,
	})
}

// SetFlushInterval clamps d to the configured range.
func (b *InputBuffer) SetFlushInterval(d time.Duration) {
	if d < b.cfg.MinFlushInterval {
		d = b.cfg.MinFlushInterval
	}
	if d > b.cfg.MaxFlushInterval {
		d = b.cfg.MaxFlushInterval
	}
	b.interval = d
}

func (b *InputBuffer) FlushInterval() time.Duration { return b.interval }

func (b *InputBuffer) Len() int { return len(b.pending) }

// ShouldFlush reports whether the buffer has inputs and the interval elapsed.
func (b *InputBuffer) ShouldFlush(now time.Time) bool {
	return len(b.pending) > 0 && now.Sub(b.lastFlush) >= b.interval
}

// Flush submits the buffered inputs when due. It returns the packet so a
// coordinator can relay it. On a sink error the inputs stay buffered.
func (b *InputBuffer) Flush(now time.Time, sink InputSink) (*messages.InputPacket, bool) {
	if sink == nil || !b.ShouldFlush(now) {
		return nil, false
	}
	return b.submit(now, sink, false)
}

// ForceFlush submits regardless of timing. Inputs are dropped even when the
// send fails.
func (b *InputBuffer) ForceFlush(now time.Time, sink InputSink) (*messages.InputPacket, bool) {
	if sink == nil || len(b.pending) == 0 {
		return nil, false
	}
	return b.submit(now, sink, true)
}

func (b *InputBuffer) submit(now time.Time, sink InputSink, force bool) (*messages.InputPacket, bool) {
	inputs := make([]messages.InputRecord, len(b.pending))
	copy(inputs, b.pending)
	packet := messages.InputPacket{
		Sequence:  b.sequence,
		Timestamp: now.UnixMilli(),
		Inputs:    inputs,
	}
	b.sequence++
	b.lastFlush = now

	if err := sink.SendInputs(packet); err != nil {
		log.Printf("[inputbuf] flush seq=%d (%d inputs) failed: %v", packet.Sequence, len(inputs), err)
		if force {
			b.pending = nil
		}
		return nil, false
	}
	b.pending = nil
	return &packet, true
}
