package systems

import (
	"testing"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/yohamta/donburi"
)

func newHintCache(world donburi.World) *HintCache {
	return NewHintCache(&MatchContext{World: world, Court: testCourt()}, config.Hints)
}

func TestHintRefreshNotDuplicate(t *testing.T) {
	c := newHintCache(donburi.NewWorld())
	c.Ingest(1, []messages.HintRecord{{Type: netconfig.HintInboundWalk, Target: 2, Meta: messages.HintMeta{X: 5, Y: 5}}})
	c.Ingest(2, []messages.HintRecord{{Type: netconfig.HintInboundWalk, Target: 2, Meta: messages.HintMeta{X: 8, Y: 9}}})

	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	e, ok := c.Entry(netconfig.HintInboundWalk, 2)
	if !ok || e.Meta.X != 8 || e.Meta.Y != 9 {
		t.Fatalf("entry = %+v, want latest meta", e)
	}
	if e.ExpiresAt != 2+config.Hints.DefaultTTL {
		t.Fatalf("expires at %d, want refreshed TTL", e.ExpiresAt)
	}

	c.Ingest(2, []messages.HintRecord{{Type: netconfig.HintShoveKnockback, Target: 2}})
	if c.Len() != 2 {
		t.Fatalf("a different type must be a separate entry, len = %d", c.Len())
	}
}

func TestHintExecutesOnce(t *testing.T) {
	world := donburi.NewWorld()
	entry := spawnAt(world, 2, 1, 10, 10)
	c := newHintCache(world)
	hint := []messages.HintRecord{{Type: netconfig.HintInboundWalk, Target: 2, Meta: messages.HintMeta{X: 2, Y: 10, Frames: 4}}}

	ran := 0
	for frame := uint32(1); frame <= 4; frame++ {
		c.Ingest(frame, hint)
		ran += len(c.Apply(frame))
	}
	if ran != 1 {
		t.Fatalf("hint ran %d times, want 1", ran)
	}
	s := components.Sprite.Get(entry)
	if !s.AnimationLocked || s.Bearing != netconfig.BearingW {
		t.Fatalf("walk did not start: locked=%v bearing=%s", s.AnimationLocked, s.Bearing)
	}
}

func TestHintWaitsForTarget(t *testing.T) {
	world := donburi.NewWorld()
	c := newHintCache(world)
	c.Ingest(1, []messages.HintRecord{{Type: netconfig.HintInboundReady, Target: 5, Meta: messages.HintMeta{X: 3, Y: 4, Bearing: netconfig.BearingE}}})

	if ran := c.Apply(1); len(ran) != 0 {
		t.Fatal("hint ran before its target existed")
	}
	if e, _ := c.Entry(netconfig.HintInboundReady, 5); e.Processed {
		t.Fatal("unresolved hint marked processed")
	}

	entry := spawnAt(world, 5, 0, 20, 20)
	if ran := c.Apply(2); len(ran) != 1 {
		t.Fatalf("ran %d hints once the target resolved, want 1", len(ran))
	}
	s := components.Sprite.Get(entry)
	if s.X != 3 || s.Y != 4 || s.Bearing != netconfig.BearingE {
		t.Fatalf("inbound ready left sprite at %+v", *s)
	}
}

func TestHintPruneAfterTTL(t *testing.T) {
	c := newHintCache(donburi.NewWorld())
	c.Ingest(1, []messages.HintRecord{{Type: netconfig.HintDriftSnap, Target: 3, TTL: 2}})

	c.Prune(3)
	if c.Len() != 1 {
		t.Fatal("hint pruned on its expiry frame")
	}
	c.Prune(4)
	if c.Len() != 0 {
		t.Fatal("expired hint kept")
	}
}

func TestHintUnknownTypeIsNoop(t *testing.T) {
	world := donburi.NewWorld()
	entry := spawnAt(world, 2, 0, 10, 10)
	c := newHintCache(world)
	c.Ingest(1, []messages.HintRecord{{Type: "moonwalk", Target: 2, Meta: messages.HintMeta{X: 1, Y: 1}}})

	if ran := c.Apply(1); len(ran) != 0 {
		t.Fatal("unknown hint reported as run")
	}
	if x, y := pos(entry); x != 10 || y != 10 {
		t.Fatal("unknown hint moved the sprite")
	}
	if e, _ := c.Entry("moonwalk", 2); !e.Processed {
		t.Fatal("unknown hint must not be retried")
	}
}

func TestShoveKnockbackHint(t *testing.T) {
	world := donburi.NewWorld()
	entry := spawnAt(world, 2, 1, 10, 10)
	components.Sprite.Get(entry).HasDribble = true
	c := newHintCache(world)
	c.Ingest(1, []messages.HintRecord{{
		Type:   netconfig.HintShoveKnockback,
		Target: 2,
		Meta:   messages.HintMeta{X: 13, Y: 10, Frames: 3, KnockdownFrames: 2},
	}})
	c.Apply(1)

	s := components.Sprite.Get(entry)
	if s.HasDribble || s.KnockdownTimer != 2 || !s.AnimationLocked {
		t.Fatalf("knockback state = %+v", *s)
	}
	for i := 0; i < 5; i++ {
		StepScripted(world)
	}
	if s := components.Sprite.Get(entry); s.AnimationLocked || s.X != 13 || s.Y != 10 {
		t.Fatalf("after knockback sprite = %+v", *s)
	}
}

func TestHintSkipsLocallySimulatedTargets(t *testing.T) {
	world := donburi.NewWorld()
	entry := spawnAt(world, 2, 0, 10, 10)
	c := NewHintCache(&MatchContext{World: world, Court: testCourt(), Authority: fakeAuthority{}}, config.Hints)
	c.Ingest(1, []messages.HintRecord{{Type: netconfig.HintInboundWalk, Target: 2, Meta: messages.HintMeta{X: 2, Y: 2}}})

	if ran := c.Apply(1); len(ran) != 0 {
		t.Fatal("hint ran for a sprite the authority simulates")
	}
	if components.Sprite.Get(entry).AnimationLocked {
		t.Fatal("coordinator sprite locked")
	}
	if e, _ := c.Entry(netconfig.HintInboundWalk, 2); !e.Processed {
		t.Fatal("skipped hint must still be marked processed")
	}
}
