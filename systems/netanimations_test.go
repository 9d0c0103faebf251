package systems

import (
	"testing"

	"github.com/automoto/hoopjam-mp/archetypes"
	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/yohamta/donburi"
)

type recordingQueue struct {
	played map[uint64]int
	actors map[uint64]*donburi.Entry
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{played: map[uint64]int{}, actors: map[uint64]*donburi.Entry{}}
}

func (q *recordingQueue) Enqueue(anim messages.AnimationRecord, actor, _ *donburi.Entry) {
	q.played[anim.ID]++
	q.actors[anim.ID] = actor
}

func TestLedgerEvictsOldest(t *testing.T) {
	l := NewLedger(3)
	for id := uint64(1); id <= 4; id++ {
		l.Record(id)
	}
	l.Record(4)
	if l.Len() != 3 {
		t.Fatalf("len = %d, want 3", l.Len())
	}
	if l.Seen(1) {
		t.Fatal("oldest id not evicted")
	}
	for id := uint64(2); id <= 4; id++ {
		if !l.Seen(id) {
			t.Fatalf("id %d lost", id)
		}
	}
}

func TestAnimationAtMostOnce(t *testing.T) {
	world := donburi.NewWorld()
	spawnAt(world, 2, 0, 10, 10)
	q := newRecordingQueue()
	d := NewAnimationDispatcher(&MatchContext{World: world, Animations: q}, 96, 30)

	shot := messages.AnimationRecord{ID: 7, Type: netconfig.AnimShot, Actor: 2}
	for frame := uint32(1); frame <= 5; frame++ {
		d.Dispatch(frame, []messages.AnimationRecord{shot, shot})
	}
	if q.played[7] != 1 {
		t.Fatalf("animation 7 played %d times, want 1", q.played[7])
	}
	if q.actors[7] == nil {
		t.Fatal("actor not resolved")
	}
}

func TestAnimationWaitsForActor(t *testing.T) {
	world := donburi.NewWorld()
	q := newRecordingQueue()
	d := NewAnimationDispatcher(&MatchContext{World: world, Animations: q}, 96, 3)

	d.Dispatch(1, []messages.AnimationRecord{
		{ID: 1, Type: netconfig.AnimDunk, Actor: 4},
		{ID: 2, Type: netconfig.AnimPass, Actor: 5},
		{ID: 3, Type: netconfig.AnimBallClear},
	})
	if q.played[3] != 1 || d.Waiting() != 2 {
		t.Fatalf("played %v, waiting %d", q.played, d.Waiting())
	}

	spawnAt(world, 4, 0, 1, 1)
	d.Dispatch(2, nil)
	if q.played[1] != 1 {
		t.Fatal("animation not played once its actor resolved")
	}

	// Actor 5 never shows up; the animation expires after its TTL.
	d.Dispatch(5, nil)
	if d.Waiting() != 0 || q.played[2] != 0 {
		t.Fatalf("expired animation still waiting (%d) or played", d.Waiting())
	}
}

func TestAnimationUnknownTypeRecorded(t *testing.T) {
	q := newRecordingQueue()
	d := NewAnimationDispatcher(&MatchContext{World: donburi.NewWorld(), Animations: q}, 96, 30)
	d.Dispatch(1, []messages.AnimationRecord{{ID: 9, Type: "alley_oop"}})
	if len(q.played) != 0 || !d.Ledger().Seen(9) {
		t.Fatal("unknown animation must be skipped and not retried")
	}
}

func TestEventsApplyStateEffects(t *testing.T) {
	world := donburi.NewWorld()
	ball, match := archetypes.SpawnMatch(world)
	shooter := spawnAt(world, 2, 0, 10, 10)
	victim := spawnAt(world, 3, 1, 12, 10)
	components.Sprite.Get(victim).HasDribble = true

	calls := map[netconfig.EventType]int{}
	count := func(ev messages.EventRecord) { calls[ev.Type]++ }
	ctx := &MatchContext{World: world, Events: EventHandlers{
		netconfig.EventAnnouncer: count,
		netconfig.EventHalftime:  count,
	}}
	d := NewEventDispatcher(ctx, 96, 30)

	events := []messages.EventRecord{
		{ID: 1, Type: netconfig.EventAnnouncer, Text: "HE'S ON FIRE", Frames: 40},
		{ID: 2, Type: netconfig.EventShoveResult, Actor: 2, Target: 3, Frames: 15},
		{ID: 3, Type: netconfig.EventReboundCreated, X: 70, Y: 20},
		{ID: 4, Type: netconfig.EventReboundSecured, Actor: 2},
		{ID: 5, Type: netconfig.EventTurboUpdate, Actor: 2, Value: 250},
		{ID: 6, Type: netconfig.EventCooldownSync, Actor: 2, Frames: 12},
		{ID: 7, Type: netconfig.EventDeadDribble, Frames: 30},
		{ID: 8, Type: netconfig.EventHalftime},
	}
	d.Dispatch(1, events)
	d.Dispatch(2, events)

	m := components.Match.Get(match)
	if m.Announcer != "HE'S ON FIRE" || m.AnnouncerTimer != 40 || m.DeadDribbleTimer != 30 || !m.IsHalftime {
		t.Fatalf("match = %+v", *m)
	}
	b := components.Ball.Get(ball)
	if b.CarrierID != 2 || b.ReboundActive || b.ReboundX != 70 {
		t.Fatalf("ball = %+v", *b)
	}
	v := components.Sprite.Get(victim)
	if v.KnockdownTimer != 15 || v.HasDribble {
		t.Fatalf("victim = %+v", *v)
	}
	s := components.Sprite.Get(shooter)
	if !s.HasDribble || s.Turbo != 100 || s.StealRecoverFrames != 12 {
		t.Fatalf("shooter = %+v", *s)
	}
	if calls[netconfig.EventAnnouncer] != 1 || calls[netconfig.EventHalftime] != 1 {
		t.Fatalf("handler calls = %v, want one each", calls)
	}
	if d.Applied() != len(events) {
		t.Fatalf("applied = %d, want %d", d.Applied(), len(events))
	}
}

func TestEventsLeaveAuthorityStateAlone(t *testing.T) {
	world := donburi.NewWorld()
	_, match := archetypes.SpawnMatch(world)
	d := NewEventDispatcher(&MatchContext{World: world, Authority: fakeAuthority{}}, 96, 30)
	d.Dispatch(1, []messages.EventRecord{{ID: 1, Type: netconfig.EventHalftime}})
	if components.Match.Get(match).IsHalftime {
		t.Fatal("coordinator overwrote authority match state")
	}
	if d.Applied() != 1 {
		t.Fatal("event must still count as applied")
	}
}

func TestReboundCreatedClearsDribbleWithoutBall(t *testing.T) {
	for _, coordinator := range []bool{false, true} {
		world := donburi.NewWorld()
		carrier := spawnAt(world, 2, 0, 10, 10)
		components.Sprite.Get(carrier).HasDribble = true

		ctx := &MatchContext{World: world}
		if coordinator {
			ctx.Authority = fakeAuthority{}
		}
		d := NewEventDispatcher(ctx, 96, 30)
		d.Dispatch(1, []messages.EventRecord{{ID: 1, Type: netconfig.EventReboundCreated, X: 40, Y: 40}})

		if got := components.Sprite.Get(carrier).HasDribble; got != coordinator {
			t.Fatalf("coordinator=%v: HasDribble = %v, want %v", coordinator, got, coordinator)
		}
		if d.Applied() != 1 {
			t.Fatalf("coordinator=%v: applied = %d, want 1", coordinator, d.Applied())
		}
	}
}
