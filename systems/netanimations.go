package systems

import (
	"log"

	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
)

// Ledger is a bounded set of processed payload IDs. The oldest ID is evicted
// once the capacity is reached.
type Ledger struct {
	capacity int
	seen     map[uint64]struct{}
	history  []uint64
}

func NewLedger(capacity int) *Ledger {
	capacity = max(capacity, 1)
	return &Ledger{
		capacity: capacity,
		seen:     make(map[uint64]struct{}, capacity),
		history:  make([]uint64, 0, capacity),
	}
}

func (l *Ledger) Seen(id uint64) bool {
	_, ok := l.seen[id]
	return ok
}

// Record marks id processed.
func (l *Ledger) Record(id uint64) {
	if l.Seen(id) {
		return
	}
	if len(l.history) >= l.capacity {
		oldest := l.history[0]
		delete(l.seen, oldest)
		l.history = append(l.history[:0:0], l.history[1:]...)
	}
	l.seen[id] = struct{}{}
	l.history = append(l.history, id)
}

func (l *Ledger) Len() int { return len(l.history) }

// deferred is a payload waiting for its actor or target to resolve.
type deferred[T any] struct {
	id      uint64
	item    T
	expires uint32
}

// deferQueue holds payloads whose entities are not known yet.
type deferQueue[T any] struct {
	ttl   uint32
	items []deferred[T]
}

func (q *deferQueue[T]) has(id uint64) bool {
	for _, d := range q.items {
		if d.id == id {
			return true
		}
	}
	return false
}

func (q *deferQueue[T]) add(frame uint32, id uint64, item T) {
	q.items = append(q.items, deferred[T]{id: id, item: item, expires: frame + q.ttl})
}

// take removes and returns every queued payload. Expired ones are dropped.
func (q *deferQueue[T]) take(frame uint32) []deferred[T] {
	var live []deferred[T]
	for _, d := range q.items {
		if d.expires >= frame {
			live = append(live, d)
		}
	}
	q.items = nil
	return live
}

// AnimationDispatcher hands each discrete animation to the animation queue
// exactly once.
type AnimationDispatcher struct {
	ctx     *MatchContext
	ledger  *Ledger
	waiting deferQueue[messages.AnimationRecord]
	played  int
}

func NewAnimationDispatcher(ctx *MatchContext, capacity int, ttl uint32) *AnimationDispatcher {
	return &AnimationDispatcher{
		ctx:     ctx,
		ledger:  NewLedger(capacity),
		waiting: deferQueue[messages.AnimationRecord]{ttl: ttl},
	}
}

// Dispatch executes the new animations carried by the snapshot at frame and
// retries ones still waiting for their entities.
func (d *AnimationDispatcher) Dispatch(frame uint32, anims []messages.AnimationRecord) {
	for _, a := range anims {
		if d.ledger.Seen(a.ID) || d.waiting.has(a.ID) {
			continue
		}
		d.waiting.add(frame, a.ID, a)
	}
	for _, w := range d.waiting.take(frame) {
		if !d.play(w.item) {
			d.waiting.items = append(d.waiting.items, w)
		}
	}
}

// play reports false when the animation must wait for an entity.
func (d *AnimationDispatcher) play(a messages.AnimationRecord) bool {
	switch a.Type {
	case netconfig.AnimShot, netconfig.AnimPass, netconfig.AnimDunk, netconfig.AnimRebound, netconfig.AnimBallClear:
	default:
		log.Printf("[netanim] unknown animation type %q (id %d)", a.Type, a.ID)
		d.ledger.Record(a.ID)
		return true
	}
	actor, ok := d.ctx.resolveOptional(a.Actor)
	if !ok {
		return false
	}
	target, ok := d.ctx.resolveOptional(a.Target)
	if !ok {
		return false
	}
	d.ctx.Animations.Enqueue(a, actor, target)
	d.ledger.Record(a.ID)
	d.played++
	return true
}

func (d *AnimationDispatcher) Played() int { return d.played }

func (d *AnimationDispatcher) Waiting() int { return len(d.waiting.items) }

func (d *AnimationDispatcher) Ledger() *Ledger { return d.ledger }
