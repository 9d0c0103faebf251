package systems

import (
	"log"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/gamemath"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
)

// EventDispatcher applies discrete game events exactly once and passes them
// on to the registered handlers.
type EventDispatcher struct {
	ctx     *MatchContext
	ledger  *Ledger
	waiting deferQueue[messages.EventRecord]
	applied int
}

func NewEventDispatcher(ctx *MatchContext, capacity int, ttl uint32) *EventDispatcher {
	return &EventDispatcher{
		ctx:     ctx,
		ledger:  NewLedger(capacity),
		waiting: deferQueue[messages.EventRecord]{ttl: ttl},
	}
}

// Dispatch applies the new events carried by the snapshot at frame and
// retries ones still waiting for their entities.
func (d *EventDispatcher) Dispatch(frame uint32, events []messages.EventRecord) {
	for _, ev := range events {
		if d.ledger.Seen(ev.ID) || d.waiting.has(ev.ID) {
			continue
		}
		d.waiting.add(frame, ev.ID, ev)
	}
	for _, w := range d.waiting.take(frame) {
		if !d.apply(w.item) {
			d.waiting.items = append(d.waiting.items, w)
		}
	}
}

func (d *EventDispatcher) apply(ev messages.EventRecord) bool {
	actor, ok := d.ctx.resolveOptional(ev.Actor)
	if !ok {
		return false
	}
	target, ok := d.ctx.resolveOptional(ev.Target)
	if !ok {
		return false
	}

	switch ev.Type {
	case netconfig.EventAnnouncer:
		if m := d.match(); m != nil {
			m.Announcer = ev.Text
			m.AnnouncerTimer = ev.Frames
		}
	case netconfig.EventShoveResult:
		if s := d.sprite(ev.Target, target); s != nil {
			s.KnockdownTimer = ev.Frames
			s.HasDribble = false
		}
	case netconfig.EventReboundSecured:
		if b := d.ball(); b != nil {
			b.CarrierID = ev.Actor
			b.ReboundActive = false
		}
		if s := d.sprite(ev.Actor, actor); s != nil {
			s.HasDribble = true
		}
	case netconfig.EventReboundCreated:
		if b := d.ball(); b != nil {
			b.CarrierID = 0
			b.ReboundActive = true
			b.ReboundX, b.ReboundY = ev.X, ev.Y
		}
		if d.ctx.Authority == nil {
			d.clearDribble()
		}
	case netconfig.EventTurboUpdate:
		if s := d.sprite(ev.Actor, actor); s != nil {
			s.Turbo = gamemath.Clamp(ev.Value, 0, config.Movement.TurboMax)
		}
	case netconfig.EventCooldownSync:
		if s := d.sprite(ev.Actor, actor); s != nil {
			s.StealRecoverFrames = ev.Frames
		}
	case netconfig.EventDeadDribble:
		if m := d.match(); m != nil {
			m.DeadDribbleTimer = ev.Frames
		}
	case netconfig.EventHalftime:
		if m := d.match(); m != nil {
			m.IsHalftime = true
		}
	default:
		log.Printf("[netevent] unknown event type %q (id %d)", ev.Type, ev.ID)
		d.ledger.Record(ev.ID)
		return true
	}

	if h := d.ctx.Events[ev.Type]; h != nil {
		h(ev)
	}
	d.ledger.Record(ev.ID)
	d.applied++
	return true
}

// match returns the match state unless the in-process authority owns it.
func (d *EventDispatcher) match() *components.MatchData {
	if d.ctx.Authority != nil {
		return nil
	}
	entry, ok := components.Match.First(d.ctx.World)
	if !ok {
		return nil
	}
	return components.Match.Get(entry)
}

func (d *EventDispatcher) ball() *components.BallData {
	if d.ctx.Authority != nil {
		return nil
	}
	entry, ok := components.Ball.First(d.ctx.World)
	if !ok {
		return nil
	}
	return components.Ball.Get(entry)
}

// sprite returns the sprite to update, or nil when there is none or the
// authority simulates it in this process.
func (d *EventDispatcher) sprite(id esync.NetworkId, entry *donburi.Entry) *components.SpriteData {
	if entry == nil || d.ctx.coordinator(id) {
		return nil
	}
	return components.Sprite.Get(entry)
}

func (d *EventDispatcher) clearDribble() {
	for _, entry := range spriteEntries(d.ctx.World) {
		components.Sprite.Get(entry).HasDribble = false
	}
}

func (d *EventDispatcher) Applied() int { return d.applied }

func (d *EventDispatcher) Waiting() int { return len(d.waiting.items) }

func (d *EventDispatcher) Ledger() *Ledger { return d.ledger }
