package network

import (
	"github.com/automoto/hoopjam-mp/shared/gamemath"
	"github.com/automoto/hoopjam-mp/shared/messages"
)

// PendingInput is an unconfirmed local input with the sprite position
// before and after it was predicted.
type PendingInput struct {
	Record       messages.InputRecord
	PreX, PreY   float64
	PostX, PostY float64
	Applied      bool // Movement was predicted locally
}

// PendingInputs is the bounded list of inputs the authority has not yet
// confirmed. Filtering always produces a fresh slice.
type PendingInputs struct {
	items []PendingInput
	limit int
}

func NewPendingInputs(limit int) *PendingInputs {
	return &PendingInputs{limit: max(limit, 1)}
}

// Add appends an input, evicting the oldest when full.
func (p *PendingInputs) Add(in PendingInput) {
	if len(p.items) >= p.limit {
		p.items = append([]PendingInput(nil), p.items[1:]...)
	}
	p.items = append(p.items, in)
}

// Retire drops every input with a frame at or before frame and returns the
// retired inputs.
func (p *PendingInputs) Retire(frame uint32) []PendingInput {
	var retired, kept []PendingInput
	for _, in := range p.items {
		if in.Record.Frame <= frame {
			retired = append(retired, in)
		} else {
			kept = append(kept, in)
		}
	}
	p.items = kept
	return retired
}

// After returns a copy of the inputs issued after frame, oldest first.
func (p *PendingInputs) After(frame uint32) []PendingInput {
	var out []PendingInput
	for _, in := range p.items {
		if in.Record.Frame > frame {
			out = append(out, in)
		}
	}
	return out
}

// Base returns the position the inputs after frame were predicted from. With
// nothing left to replay the current position is the base.
func (p *PendingInputs) Base(frame uint32, curX, curY float64) (x, y float64) {
	for _, in := range p.items {
		if in.Record.Frame > frame {
			return in.PreX, in.PreY
		}
	}
	return curX, curY
}

// Replace swaps in rebased inputs, keeping order.
func (p *PendingInputs) Replace(items []PendingInput) {
	p.items = append([]PendingInput(nil), items...)
}

func (p *PendingInputs) Len() int { return len(p.items) }

// Items returns a copy of the list.
func (p *PendingInputs) Items() []PendingInput {
	return append([]PendingInput(nil), p.items...)
}

func (p *PendingInputs) Clear() {
	p.items = nil
}

const replayHistorySize = 64

// ReplayEntry is an input with the position it was predicted to produce.
type ReplayEntry struct {
	Seq        uint32
	Record     messages.InputRecord
	PredictedX float64
	PredictedY float64
}

// ReplayHistory is a ring buffer of recent predictions used to measure how
// far the prediction for a frame strayed from authority.
type ReplayHistory struct {
	history [replayHistorySize]ReplayEntry
	nextSeq uint32
	count   int
}

// Store records an input and the predicted position after it.
func (h *ReplayHistory) Store(rec messages.InputRecord, predX, predY float64) {
	seq := h.nextSeq
	h.history[seq%replayHistorySize] = ReplayEntry{
		Seq:        seq,
		Record:     rec,
		PredictedX: predX,
		PredictedY: predY,
	}
	h.nextSeq++
	h.count = min(h.count+1, replayHistorySize)
}

// Latest returns the newest entry with a frame at or before frame.
func (h *ReplayHistory) Latest(frame uint32) (ReplayEntry, bool) {
	for i := 1; i <= h.count; i++ {
		e := h.history[(h.nextSeq-uint32(i))%replayHistorySize]
		if e.Record.Frame <= frame {
			return e, true
		}
	}
	return ReplayEntry{}, false
}

// PredictionError is the distance between the prediction for frame and the
// authoritative position. It reports false when no prediction covers frame.
func (h *ReplayHistory) PredictionError(frame uint32, authX, authY float64) (float64, bool) {
	e, ok := h.Latest(frame)
	if !ok {
		return 0, false
	}
	return gamemath.Distance(e.PredictedX, e.PredictedY, authX, authY), true
}

func (h *ReplayHistory) Len() int { return h.count }

func (h *ReplayHistory) Reset() {
	h.count = 0
}
